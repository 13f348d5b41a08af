package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/artists-registry/internal/confidence"
	"github.com/joseph-ayodele/artists-registry/internal/ocr"
)

const (
	MethodPDFParser = "PDF Parser"
	MethodPDFToText = "PDF Parser (pdftotext)"
	MethodPDFOCR    = "PDF OCR Fallback (Tesseract)"
)

// PDFAdapter reads the text layer and falls back to page OCR for scans.
type PDFAdapter struct {
	layer    TextLayerReader // optional second text-layer reader
	scanner  PageScanner     // optional OCR fallback
	minChars int
	logger   *slog.Logger

	parse func(path string) (string, int, error)
}

func NewPDFAdapter(layer TextLayerReader, scanner PageScanner, logger *slog.Logger) *PDFAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFAdapter{layer: layer, scanner: scanner, minChars: MinimalTextChars, logger: logger, parse: parsePDFText}
}

func (a *PDFAdapter) ExtractText(ctx context.Context, path string) (TextResult, error) {
	var res TextResult

	text, pages, perr := a.parse(path)
	res.Attempts = append(res.Attempts, Attempt{Method: MethodPDFParser, Chars: textChars(text), Err: errString(perr)})
	primary := TextResult{Text: text, Method: MethodPDFParser, Pages: pages}

	if (perr != nil || textChars(text) < a.minChars) && a.layer != nil {
		rec, lerr := a.layer.Text(ctx, path)
		res.Attempts = append(res.Attempts, Attempt{Method: MethodPDFToText, Chars: textChars(rec.Text), Err: errString(lerr)})
		res.Warnings = append(res.Warnings, rec.Warnings...)
		if lerr == nil {
			if textChars(rec.Text) > textChars(primary.Text) || perr != nil {
				primary = TextResult{Text: rec.Text, Method: MethodPDFToText, Pages: rec.Pages}
			}
			perr = nil
		}
	}
	primary.Confidence = textLayerTier(primary.Text, a.minChars)

	if textChars(primary.Text) >= a.minChars || a.scanner == nil {
		if perr != nil {
			return res, perr
		}
		return merge(res, primary), nil
	}

	a.logger.Info("extract.pdf.fallback", "path", path, "primary_chars", textChars(primary.Text))
	rec, ferr := a.scanner.Scan(ctx, path)
	res.Attempts = append(res.Attempts, Attempt{Method: MethodPDFOCR, Chars: textChars(rec.Text), Err: errString(ferr)})
	res.Warnings = append(res.Warnings, rec.Warnings...)
	res.FallbackUsed = true

	if textChars(rec.Text) > textChars(primary.Text) {
		return merge(res, TextResult{Text: rec.Text, Method: MethodPDFOCR, Pages: rec.Pages, Confidence: ocrTier(rec.Confidence)}), nil
	}
	if perr != nil && textChars(rec.Text) == 0 {
		if ferr != nil {
			return res, fmt.Errorf("%w; ocr fallback: %v", perr, ferr)
		}
		return res, perr
	}
	return merge(res, primary), nil
}

// merge copies the chosen text into the accumulated attempts/warnings.
func merge(acc, chosen TextResult) TextResult {
	acc.Text = chosen.Text
	acc.Method = chosen.Method
	acc.Confidence = chosen.Confidence
	acc.Pages = chosen.Pages
	return acc
}

func textLayerTier(text string, minChars int) confidence.Tier {
	if textChars(text) >= minChars {
		return confidence.High
	}
	return confidence.Low
}

func ocrTier(conf float64) confidence.Tier {
	if conf == ocr.UnknownConfidence {
		return confidence.Low
	}
	return confidence.FromOCR(conf)
}

// parsePDFText reads every page's text layer. The parser panics on some
// malformed files; that is reported as an error.
func parsePDFText(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue // skip unreadable pages
		}
		if pageText = strings.TrimSpace(pageText); pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), pages, nil
}
