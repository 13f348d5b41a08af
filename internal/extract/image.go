package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/artists-registry/internal/confidence"
)

const (
	MethodTesseractPreprocessed = "Tesseract (Preprocessed)"
	MethodTesseractOriginal     = "Tesseract (Original)"
)

// ImageAdapter runs an ordered OCR chain: cloud, preprocessed, original.
// The first step reaching minUsable characters wins.
type ImageAdapter struct {
	cloud     CloudOCR // optional
	tess      Recognizer
	prep      ImagePreparer // optional
	minUsable int
	logger    *slog.Logger
}

type ImageOption func(*ImageAdapter)

// WithMinUsableChars raises the length a step needs to end the chain.
// Values below 1 are ignored.
func WithMinUsableChars(n int) ImageOption {
	return func(a *ImageAdapter) {
		if n >= 1 {
			a.minUsable = n
		}
	}
}

func NewImageAdapter(cloud CloudOCR, tess Recognizer, prep ImagePreparer, logger *slog.Logger, opts ...ImageOption) *ImageAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &ImageAdapter{cloud: cloud, tess: tess, prep: prep, minUsable: 1, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type imageStep struct {
	method string
	run    func(ctx context.Context, path string) (string, confidence.Tier, []string, error)
}

func (a *ImageAdapter) steps() []imageStep {
	var steps []imageStep
	if a.cloud != nil {
		steps = append(steps, imageStep{method: a.cloud.Name(), run: a.runCloud})
	}
	if a.tess != nil {
		if a.prep != nil {
			steps = append(steps, imageStep{method: MethodTesseractPreprocessed, run: a.runPreprocessed})
		}
		steps = append(steps, imageStep{method: MethodTesseractOriginal, run: a.runOriginal})
	}
	return steps
}

func (a *ImageAdapter) ExtractText(ctx context.Context, path string) (TextResult, error) {
	var res TextResult
	var best *TextResult

	for i, step := range a.steps() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, tier, warns, err := step.run(ctx, path)
		n := textChars(text)
		res.Attempts = append(res.Attempts, Attempt{Method: step.method, Chars: n, Err: errString(err)})
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			a.logger.Warn("extract.image.step_failed", "path", path, "method", step.method, "error", err)
		}
		if n == 0 {
			continue
		}
		cand := TextResult{Text: text, Method: step.method, Confidence: tier}
		if n >= a.minUsable {
			res.FallbackUsed = i > 0
			return merge(res, cand), nil
		}
		if best == nil || n > textChars(best.Text) {
			best = &cand
		}
	}

	if best == nil {
		return res, &OcrExhaustedError{Attempts: res.Attempts}
	}
	best.Method = fmt.Sprintf("%s (Best of %d)", best.Method, len(res.Attempts))
	res.FallbackUsed = len(res.Attempts) > 1
	a.logger.Info("extract.image.best_of", "path", path, "method", best.Method, "min_usable", a.minUsable)
	return merge(res, *best), nil
}

func (a *ImageAdapter) runCloud(ctx context.Context, path string) (string, confidence.Tier, []string, error) {
	text, err := a.cloud.DetectText(ctx, path)
	return text, confidence.High, nil, err
}

// runPreprocessed removes the prepared copy on every exit path.
func (a *ImageAdapter) runPreprocessed(ctx context.Context, path string) (string, confidence.Tier, []string, error) {
	out, cleanup, err := a.prep.Prepare(path)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return "", confidence.Low, nil, fmt.Errorf("preprocess: %w", err)
	}
	rec, err := a.tess.Recognize(ctx, out)
	return rec.Text, ocrTier(rec.Confidence), rec.Warnings, err
}

func (a *ImageAdapter) runOriginal(ctx context.Context, path string) (string, confidence.Tier, []string, error) {
	rec, err := a.tess.Recognize(ctx, path)
	return rec.Text, ocrTier(rec.Confidence), rec.Warnings, err
}
