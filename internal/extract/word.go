package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/artists-registry/internal/ocr"
)

const (
	MethodWordParser   = "Word Document Parser"
	MethodWordAntiword = "Word Document Parser (antiword)"
	MethodWordOCR      = "Word OCR Fallback (Tesseract)"
)

var zipMagic = []byte("PK\x03\x04")

// WordAdapter reads .docx natively and legacy .doc through antiword. When
// the text is too short it renders the document to PDF and OCRs the pages.
type WordAdapter struct {
	doc      DocReader   // optional
	renderer PDFRenderer // optional
	scanner  PageScanner // optional
	tempDir  string
	minChars int
	logger   *slog.Logger
}

func NewWordAdapter(doc DocReader, renderer PDFRenderer, scanner PageScanner, tempDir string, logger *slog.Logger) *WordAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WordAdapter{doc: doc, renderer: renderer, scanner: scanner, tempDir: tempDir, minChars: MinimalTextChars, logger: logger}
}

func (a *WordAdapter) ExtractText(ctx context.Context, path string) (TextResult, error) {
	var res TextResult

	isZip, err := sniffZip(path)
	if err != nil {
		return res, err
	}

	var primary TextResult
	var perr error
	if isZip {
		text, derr := readDocx(path)
		res.Attempts = append(res.Attempts, Attempt{Method: MethodWordParser, Chars: textChars(text), Err: errString(derr)})
		primary, perr = TextResult{Text: text, Method: MethodWordParser}, derr
	} else if a.doc != nil {
		rec, derr := a.doc.DocText(ctx, path)
		res.Attempts = append(res.Attempts, Attempt{Method: MethodWordAntiword, Chars: textChars(rec.Text), Err: errString(derr)})
		res.Warnings = append(res.Warnings, rec.Warnings...)
		primary, perr = TextResult{Text: rec.Text, Method: MethodWordAntiword}, derr
	} else {
		perr = errors.New("legacy .doc reader not configured")
		res.Attempts = append(res.Attempts, Attempt{Method: MethodWordAntiword, Err: perr.Error()})
	}
	primary.Confidence = textLayerTier(primary.Text, a.minChars)

	if textChars(primary.Text) >= a.minChars || !a.canFallback() {
		if perr != nil {
			return res, perr
		}
		return merge(res, primary), nil
	}

	a.logger.Info("extract.word.fallback", "path", path, "primary_chars", textChars(primary.Text))
	res.FallbackUsed = true
	rec, ferr := a.ocr(ctx, path)
	res.Attempts = append(res.Attempts, Attempt{Method: MethodWordOCR, Chars: textChars(rec.Text), Err: errString(ferr)})
	res.Warnings = append(res.Warnings, rec.Warnings...)

	if textChars(rec.Text) > textChars(primary.Text) {
		return merge(res, TextResult{Text: rec.Text, Method: MethodWordOCR, Pages: rec.Pages, Confidence: ocrTier(rec.Confidence)}), nil
	}
	if perr != nil && textChars(rec.Text) == 0 {
		if ferr != nil {
			return res, fmt.Errorf("%w; ocr fallback: %v", perr, ferr)
		}
		return res, perr
	}
	return merge(res, primary), nil
}

func (a *WordAdapter) canFallback() bool {
	return a.renderer != nil && a.scanner != nil && a.renderer.CanRender()
}

// ocr renders the document into a private temp dir removed on return.
func (a *WordAdapter) ocr(ctx context.Context, path string) (ocr.Recognition, error) {
	dir, err := os.MkdirTemp(a.tempDir, "artists-word-*")
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath, err := a.renderer.RenderPDF(ctx, path, dir)
	if err != nil {
		return ocr.Recognition{}, err
	}
	return a.scanner.Scan(ctx, pdfPath)
}

func sniffZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.Equal(head[:n], zipMagic), nil
}

// readDocx walks word/document.xml keeping runs of w:t text, tabs and
// breaks, with one line per paragraph.
func readDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			if body, err = f.Open(); err != nil {
				return "", fmt.Errorf("open document.xml: %w", err)
			}
			break
		}
	}
	if body == nil {
		return "", errors.New("docx has no word/document.xml")
	}
	defer body.Close()

	var b strings.Builder
	dec := xml.NewDecoder(body)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.String(), fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
