package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Office wraps the legacy .doc reader (antiword) and the optional office
// renderer (soffice) used to turn Word documents into PDFs for OCR.
type Office struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewOffice(cfg Config, runner Runner, logger *slog.Logger) *Office {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Office{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// DocText extracts text from a binary .doc file.
func (o *Office) DocText(ctx context.Context, path string) (Recognition, error) {
	// antiword -m UTF-8.txt <file>
	out, errb, err := o.runner.Run(ctx, o.cfg.Antiword, "-m", "UTF-8.txt", path)
	if err != nil {
		return Recognition{Confidence: UnknownConfidence, Warnings: stderrWarning(errb)}, fmt.Errorf("antiword: %w", err)
	}
	return Recognition{Text: string(out), Confidence: UnknownConfidence, Pages: 1}, nil
}

// CanRender reports whether an office renderer is configured.
func (o *Office) CanRender() bool {
	return o != nil && o.cfg.OfficeRenderer != ""
}

// RenderPDF converts a Word document to PDF inside outDir.
func (o *Office) RenderPDF(ctx context.Context, path, outDir string) (string, error) {
	if !o.CanRender() {
		return "", fmt.Errorf("office renderer not configured")
	}
	// soffice --headless --convert-to pdf --outdir <dir> <file>
	_, errb, err := o.runner.Run(ctx, o.cfg.OfficeRenderer, "--headless", "--convert-to", "pdf", "--outdir", outDir, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", o.cfg.OfficeRenderer, err, strings.TrimSpace(string(errb)))
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(outDir, base+".pdf")
	if _, statErr := os.Stat(out); statErr != nil {
		return "", fmt.Errorf("office render produced no output: %v", statErr)
	}
	return out, nil
}
