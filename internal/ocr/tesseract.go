package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Tesseract drives the tesseract CLI in TSV mode, which yields both the
// recognized words and their confidences in a single pass.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Tesseract{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Recognize OCRs a single image file.
func (t *Tesseract) Recognize(ctx context.Context, path string) (Recognition, error) {
	args := []string{path, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	// tesseract <file> stdout -l <lang> tsv
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return Recognition{Confidence: UnknownConfidence, Warnings: stderrWarning(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	text, conf := parseTSV(string(out))
	t.logger.Debug("tesseract done", "path", path, "chars", len(text), "confidence", conf)
	return Recognition{Text: text, Confidence: conf, Pages: 1}, nil
}

// TSV columns: level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvLevel = 0
	tsvBlock = 2
	tsvPar   = 3
	tsvLine  = 4
	tsvConf  = 10
	tsvText  = 11
	tsvCols  = 12

	tsvWordLevel = "5"
)

// parseTSV rebuilds text from word rows (newline per line, blank line
// between paragraphs) and returns the mean word confidence (0..100).
func parseTSV(out string) (string, float64) {
	var b strings.Builder
	var sum, n float64
	var lastBlock, lastPar, lastLine string
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvCols || cols[tsvLevel] != tsvWordLevel {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" {
			continue
		}
		if v, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil && v >= 0 {
			sum += v
			n++
		}

		block, par, line := cols[tsvBlock], cols[tsvPar], cols[tsvLine]
		switch {
		case b.Len() == 0:
		case block != lastBlock || par != lastPar:
			b.WriteString("\n\n")
		case line != lastLine:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
		b.WriteString(word)
		lastBlock, lastPar, lastLine = block, par, line
	}
	if n == 0 {
		return b.String(), UnknownConfidence
	}
	return b.String(), sum / n
}
