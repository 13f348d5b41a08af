package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/confidence"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
)

// MinimalTextChars is the text-layer length below which a document is
// treated as scanned and an OCR fallback is tried.
const MinimalTextChars = 50

// Observer receives one call per finished extraction.
type Observer interface {
	ObserveExtraction(fileType, method string, fallbackUsed bool, d time.Duration, err error)
}

// Orchestrator validates the input, dispatches by file type and assembles
// the result. It holds no per-call state, so one value serves concurrent calls.
type Orchestrator struct {
	pdf      Adapter
	word     Adapter
	image    Adapter
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithObserver(o Observer) Option {
	return func(or *Orchestrator) { or.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(or *Orchestrator) {
		if now != nil {
			or.now = now
		}
	}
}

func NewOrchestrator(pdf, word, image Adapter, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{pdf: pdf, word: word, image: image, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract runs the pipeline for one file. fileType is case-insensitive and
// may carry a leading dot.
func (o *Orchestrator) Extract(ctx context.Context, filePath, fileType string) (res ExtractionResult, err error) {
	start := o.now()
	ft := constants.NormalizeExt(fileType)
	var method string
	var fallback bool
	defer func() {
		if o.observer != nil {
			o.observer.ObserveExtraction(ft, method, fallback, o.now().Sub(start), err)
		}
	}()

	if _, statErr := os.Stat(filePath); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return ExtractionResult{}, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
		}
		return ExtractionResult{}, &ExtractionError{FileType: ft, Cause: statErr}
	}

	adapter, ok := o.adapterFor(ft)
	if !ok {
		o.logger.Warn("extract.unsupported", "file_type", fileType, "path", filePath)
		return ExtractionResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileType)
	}
	if adapter == nil {
		return ExtractionResult{}, &ExtractionError{FileType: ft, Cause: errors.New("no adapter configured")}
	}

	o.logger.Debug("extract.start", "path", filePath, "file_type", ft)
	tr, aerr := adapter.ExtractText(ctx, filePath)
	method, fallback = tr.Method, tr.FallbackUsed
	if aerr != nil {
		o.logger.Error("extract.failed", "path", filePath, "file_type", ft, "error", aerr)
		return ExtractionResult{}, &ExtractionError{FileType: ft, Cause: aerr}
	}
	if strings.TrimSpace(tr.Text) == "" {
		o.logger.Error("extract.empty", "path", filePath, "file_type", ft, "attempts", len(tr.Attempts))
		return ExtractionResult{}, &ExtractionError{FileType: ft, Cause: ErrNoText}
	}

	raw := normalize.Sanitize(tr.Text)
	engineTier := tr.Confidence
	if engineTier == "" {
		engineTier = confidence.Low
	}
	elapsed := o.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	res = ExtractionResult{
		RawText: raw,
		Fields:  normalize.Normalize(tr.Text),
		Metadata: ExtractionMetadata{
			Method:           tr.Method,
			Confidence:       confidence.Score(raw),
			EngineConfidence: engineTier,
			FallbackUsed:     tr.FallbackUsed,
			ProcessingTimeMs: elapsed.Milliseconds(),
			TextLength:       utf8.RuneCountInString(raw),
			WordCount:        normalize.WordCount(raw),
			Pages:            tr.Pages,
			FileType:         ft,
			ExtractedAt:      o.now().UTC(),
			Attempts:         tr.Attempts,
			Warnings:         tr.Warnings,
		},
	}
	o.logger.Info("extract.done",
		"path", filePath,
		"file_type", ft,
		"method", tr.Method,
		"fallback_used", tr.FallbackUsed,
		"confidence", res.Metadata.Confidence,
		"chars", res.Metadata.TextLength,
		"duration_ms", res.Metadata.ProcessingTimeMs,
	)
	return res, nil
}

func (o *Orchestrator) adapterFor(fileType string) (Adapter, bool) {
	switch constants.MapTypeToFormat(fileType) {
	case constants.FormatPDF:
		return o.pdf, true
	case constants.FormatWord:
		return o.word, true
	case constants.FormatImage:
		return o.image, true
	}
	return nil, false
}

// textChars is the trimmed rune count used by the minimal-text heuristics.
func textChars(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
