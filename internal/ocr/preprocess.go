package ocr

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// Preprocessor prepares a copy of an image for OCR: grayscale, contrast
// stretch, sharpen, and upscaling of small scans.
type Preprocessor struct {
	Contrast float64 // percentage, -100..100
	Sharpen  float64 // gaussian sigma; 0 disables
	MinWidth int     // narrower images are upscaled to this width
	TempDir  string
}

func NewPreprocessor(contrast, sharpen float64, tempDir string) *Preprocessor {
	return &Preprocessor{Contrast: contrast, Sharpen: sharpen, MinWidth: 1200, TempDir: tempDir}
}

// Prepare writes the processed copy to a temp PNG. cleanup removes it and is
// non-nil whenever a file may have been created.
func (p *Preprocessor) Prepare(src string) (string, func(), error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}

	if p.MinWidth > 0 && img.Bounds().Dx() < p.MinWidth {
		img = imaging.Resize(img, p.MinWidth, 0, imaging.Lanczos)
	}
	out := imaging.Grayscale(img)
	if p.Contrast != 0 {
		out = imaging.AdjustContrast(out, p.Contrast)
	}
	if p.Sharpen > 0 {
		out = imaging.Sharpen(out, p.Sharpen)
	}

	f, err := os.CreateTemp(p.TempDir, "artists-pre-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	cleanup := func() { _ = os.Remove(name) }
	if err := f.Close(); err != nil {
		return "", cleanup, err
	}
	if err := imaging.Save(out, name); err != nil {
		return "", cleanup, fmt.Errorf("save preprocessed image: %w", err)
	}
	return name, cleanup, nil
}
