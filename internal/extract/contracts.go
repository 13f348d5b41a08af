package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/artists-registry/internal/confidence"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
	"github.com/joseph-ayodele/artists-registry/internal/ocr"
)

// Adapter is a per-file-type strategy: file -> raw text.
type Adapter interface {
	ExtractText(ctx context.Context, path string) (TextResult, error)
}

// TextResult is what an adapter hands back to the orchestrator.
type TextResult struct {
	Text         string
	Method       string
	Confidence   confidence.Tier
	FallbackUsed bool
	Pages        int
	Attempts     []Attempt
	Warnings     []string
}

// StructuredFields is the parsed view of the raw text.
type StructuredFields = normalize.Fields

// ExtractionResult is built fresh per call and not mutated afterwards.
type ExtractionResult struct {
	RawText  string             `json:"rawText"`
	Fields   StructuredFields   `json:"fields"`
	Metadata ExtractionMetadata `json:"metadata"`
}

type ExtractionMetadata struct {
	Method           string          `json:"method"`
	Confidence       confidence.Tier `json:"confidence"`
	EngineConfidence confidence.Tier `json:"engineConfidence"`
	FallbackUsed     bool            `json:"fallbackUsed"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	TextLength       int             `json:"textLength"`
	WordCount        int             `json:"wordCount"`
	Pages            int             `json:"pages,omitempty"`
	FileType         string          `json:"fileType"`
	ExtractedAt      time.Time       `json:"extractedAt"`
	Attempts         []Attempt       `json:"attempts,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
}

// Capabilities the adapters depend on; ocr types satisfy them.
type (
	// Recognizer is a local OCR engine.
	Recognizer interface {
		Recognize(ctx context.Context, path string) (ocr.Recognition, error)
	}

	// CloudOCR is an optional remote text-detection service.
	CloudOCR interface {
		Name() string
		DetectText(ctx context.Context, path string) (string, error)
	}

	// ImagePreparer writes a cleaned-up copy of an image; cleanup removes it.
	ImagePreparer interface {
		Prepare(src string) (out string, cleanup func(), err error)
	}

	// TextLayerReader reads text embedded in a PDF.
	TextLayerReader interface {
		Text(ctx context.Context, path string) (ocr.Recognition, error)
	}

	// PageScanner OCRs every page of a PDF.
	PageScanner interface {
		Scan(ctx context.Context, path string) (ocr.Recognition, error)
	}

	// DocReader reads legacy binary .doc files.
	DocReader interface {
		DocText(ctx context.Context, path string) (ocr.Recognition, error)
	}

	// PDFRenderer converts office documents to PDF.
	PDFRenderer interface {
		CanRender() bool
		RenderPDF(ctx context.Context, path, outDir string) (string, error)
	}
)

var (
	_ Recognizer      = (*ocr.Tesseract)(nil)
	_ CloudOCR        = (*ocr.VisionClient)(nil)
	_ ImagePreparer   = (*ocr.Preprocessor)(nil)
	_ TextLayerReader = (*ocr.Poppler)(nil)
	_ PageScanner     = (*ocr.PDFScanner)(nil)
	_ DocReader       = (*ocr.Office)(nil)
	_ PDFRenderer     = (*ocr.Office)(nil)
)
