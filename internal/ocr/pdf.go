package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Poppler wraps pdftotext and pdftoppm.
type Poppler struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewPoppler(cfg Config, runner Runner, logger *slog.Logger) *Poppler {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Poppler{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Text reads the PDF text layer; pages are counted by form feeds.
func (p *Poppler) Text(ctx context.Context, path string) (Recognition, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Recognition{Confidence: UnknownConfidence, Warnings: stderrWarning(errb)}, fmt.Errorf("pdftotext: %w", err)
	}
	text := string(out)
	pages := 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return Recognition{Text: text, Confidence: UnknownConfidence, Pages: pages}, nil
}

// Rasterize renders pages as PNGs into dir and returns them in page order.
func (p *Poppler) Rasterize(ctx context.Context, path, dir string) ([]string, []string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(p.cfg.DPI), "-png"}
	if p.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.cfg.MaxPages))
	}
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	_, errb, err := p.runner.Run(ctx, p.cfg.Pdftoppm, append(args, path, prefix)...)
	if err != nil {
		return nil, stderrWarning(errb), fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...); zero padding varies with page count
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if p.cfg.MaxPages > 0 && len(matches) > p.cfg.MaxPages {
		matches = matches[:p.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("pdftoppm: no pages rendered")
	}
	return matches, nil, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndex(base, "-")
	n, _ := strconv.Atoi(base[i+1:])
	return n
}

// PDFScanner OCRs every page of a PDF: rasterize into a per-call temp dir,
// recognize each page, remove the temp dir on every path.
type PDFScanner struct {
	poppler *Poppler
	tess    *Tesseract
	tempDir string
	logger  *slog.Logger
}

func NewPDFScanner(poppler *Poppler, tess *Tesseract, logger *slog.Logger) *PDFScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFScanner{poppler: poppler, tess: tess, tempDir: poppler.cfg.TempDir, logger: logger}
}

func (s *PDFScanner) Scan(ctx context.Context, path string) (Recognition, error) {
	tmpDir, err := os.MkdirTemp(s.tempDir, "artists-pp-*")
	if err != nil {
		return Recognition{Confidence: UnknownConfidence}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	pages, warns, err := s.poppler.Rasterize(ctx, path, tmpDir)
	if err != nil {
		return Recognition{Confidence: UnknownConfidence, Warnings: warns}, err
	}

	var b strings.Builder
	var confSum float64
	var confN int
	for i, img := range pages {
		rec, err := s.tess.Recognize(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return Recognition{Confidence: UnknownConfidence, Warnings: warns}, ctx.Err()
			}
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		warns = append(warns, rec.Warnings...)
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rec.Text)
		if rec.Confidence != UnknownConfidence {
			confSum += rec.Confidence
			confN++
		}
	}

	conf := float64(UnknownConfidence)
	if confN > 0 {
		conf = confSum / float64(confN)
	}
	return Recognition{Text: b.String(), Confidence: conf, Pages: len(pages), Warnings: warns}, nil
}
