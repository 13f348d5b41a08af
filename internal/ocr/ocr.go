// Package ocr wraps the text-recognition engines used by the extraction
// adapters: local binaries (tesseract, poppler, antiword, soffice) driven
// through a Runner, an image preprocessor and the Google Vision REST API.
package ocr

import (
	"os"

	"github.com/joseph-ayodele/artists-registry/internal/common"
)

type Config struct {
	Pdftotext      string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm       string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract      string // binary name or absolute path; if empty -> "tesseract"
	Antiword       string // binary name or absolute path; if empty -> "antiword"
	OfficeRenderer string // e.g. "soffice"; empty disables office -> pdf rendering

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned pages, default 300
	MaxPages      int // 0 = no limit

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	TempDir string // parent for per-invocation temp files; "" = os.TempDir()
}

// ConfigFromCommon maps the application OCR group onto engine settings.
func ConfigFromCommon(c common.OCRConfig) Config {
	return Config{
		Pdftotext:      c.Pdftotext,
		Pdftoppm:       c.Pdftoppm,
		Tesseract:      c.Tesseract,
		Antiword:       c.Antiword,
		OfficeRenderer: c.OfficeRenderer,
		TesseractLang:  c.TesseractLang,
		TessdataDir:    c.TessdataDir,
		DPI:            c.DPI,
		MaxPages:       c.MaxPages,
		PSM:            c.PSM,
		OEM:            c.OEM,
		TempDir:        c.TempDir,
	}
}

func (c Config) withDefaults() Config {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Antiword == "" {
		c.Antiword = "antiword"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

// UnknownConfidence marks a recognition without an engine score.
const UnknownConfidence = -1

// Recognition is the output of one engine pass.
type Recognition struct {
	Text       string
	Confidence float64 // mean word confidence 0..100, or UnknownConfidence
	Pages      int
	Warnings   []string
}
