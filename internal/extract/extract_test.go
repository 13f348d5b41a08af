package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/artists-registry/internal/confidence"
	"github.com/joseph-ayodele/artists-registry/internal/ocr"
)

type fakeScanner struct {
	rec   ocr.Recognition
	err   error
	calls int
}

func (f *fakeScanner) Scan(context.Context, string) (ocr.Recognition, error) {
	f.calls++
	return f.rec, f.err
}

type fakeRecognizer struct {
	byPath map[string]ocr.Recognition
	err    error
	errFor string // path suffix that fails with err
	paths  []string
}

func (f *fakeRecognizer) Recognize(_ context.Context, path string) (ocr.Recognition, error) {
	f.paths = append(f.paths, path)
	if f.err != nil && (f.errFor == "" || strings.HasSuffix(path, f.errFor)) {
		return ocr.Recognition{}, f.err
	}
	for suffix, rec := range f.byPath {
		if strings.HasSuffix(path, suffix) {
			return rec, nil
		}
	}
	return ocr.Recognition{Confidence: ocr.UnknownConfidence}, nil
}

type fakeCloud struct {
	text string
	err  error
}

func (f fakeCloud) Name() string { return "Google Vision AI" }
func (f fakeCloud) DetectText(context.Context, string) (string, error) {
	return f.text, f.err
}

// tempPreparer writes a real file so cleanup can be asserted.
type tempPreparer struct {
	dir  string
	made []string
}

func (p *tempPreparer) Prepare(string) (string, func(), error) {
	f, err := os.CreateTemp(p.dir, "pre-*.png")
	if err != nil {
		return "", nil, err
	}
	f.Close()
	p.made = append(p.made, f.Name())
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}

func (p *tempPreparer) assertRemoved(t *testing.T) {
	t.Helper()
	if len(p.made) == 0 {
		t.Fatal("preparer was not used")
	}
	for _, path := range p.made {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("temp file %s not removed", path)
		}
	}
}

type stubAdapter struct {
	res TextResult
	err error
}

func (s stubAdapter) ExtractText(context.Context, string) (TextResult, error) { return s.res, s.err }

type recordingObserver struct {
	method string
	err    error
	d      time.Duration
	calls  int
}

func (r *recordingObserver) ObserveExtraction(_, method string, _ bool, d time.Duration, err error) {
	r.calls++
	r.method, r.err, r.d = method, err, d
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPDFFallbackWinsWhenPrimaryShort(t *testing.T) {
	scanner := &fakeScanner{rec: ocr.Recognition{Text: strings.Repeat("a", 200), Confidence: 85, Pages: 1}}
	a := NewPDFAdapter(nil, scanner, nil)
	a.parse = func(string) (string, int, error) { return strings.Repeat("b", 10), 1, nil }

	o := NewOrchestrator(a, nil, nil, nil)
	res, err := o.Extract(context.Background(), writeFile(t, "scan.pdf", "%PDF"), "pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Metadata.TextLength != 200 {
		t.Errorf("TextLength = %d, want 200", res.Metadata.TextLength)
	}
	if !res.Metadata.FallbackUsed {
		t.Error("FallbackUsed = false")
	}
	if !strings.Contains(res.Metadata.Method, "Fallback") {
		t.Errorf("Method = %q, want fallback marker", res.Metadata.Method)
	}
	if res.Metadata.EngineConfidence != confidence.High {
		t.Errorf("EngineConfidence = %q", res.Metadata.EngineConfidence)
	}
	if len(res.Metadata.Attempts) != 2 {
		t.Errorf("attempts = %+v", res.Metadata.Attempts)
	}
}

func TestPDFKeepsTextLayer(t *testing.T) {
	scanner := &fakeScanner{}
	a := NewPDFAdapter(nil, scanner, nil)
	text := strings.Repeat("word ", 20)
	a.parse = func(string) (string, int, error) { return text, 2, nil }

	res, err := a.ExtractText(context.Background(), "x.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodPDFParser || res.FallbackUsed || scanner.calls != 0 {
		t.Errorf("res = %+v, scanner calls = %d", res, scanner.calls)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d", res.Pages)
	}
}

func TestPDFFallbackShorterKeepsPrimary(t *testing.T) {
	scanner := &fakeScanner{rec: ocr.Recognition{Text: "abc"}}
	a := NewPDFAdapter(nil, scanner, nil)
	a.parse = func(string) (string, int, error) { return "ten chars!", 1, nil }

	res, err := a.ExtractText(context.Background(), "x.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodPDFParser || !res.FallbackUsed {
		t.Errorf("res = %+v", res)
	}
}

func TestPDFParserErrorWithoutFallbackText(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("tesseract missing")}
	a := NewPDFAdapter(nil, scanner, nil)
	a.parse = func(string) (string, int, error) { return "", 0, errors.New("malformed xref") }

	_, err := a.ExtractText(context.Background(), "x.pdf")
	if err == nil || !strings.Contains(err.Error(), "malformed xref") {
		t.Fatalf("err = %v", err)
	}
}

func TestParsePDFTextRejectsGarbage(t *testing.T) {
	p := writeFile(t, "bad.pdf", "not a pdf at all")
	if _, _, err := parsePDFText(p); err == nil {
		t.Fatal("expected error")
	}
}

func TestOrchestratorUnsupportedType(t *testing.T) {
	obs := &recordingObserver{}
	o := NewOrchestrator(nil, nil, nil, nil, WithObserver(obs))
	_, err := o.Extract(context.Background(), writeFile(t, "notes.txt", "hello"), "txt")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if obs.calls != 1 || obs.err == nil {
		t.Errorf("observer = %+v", obs)
	}
}

func TestOrchestratorObserverUsesClock(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(3 * time.Second)
	}
	obs := &recordingObserver{}
	o := NewOrchestrator(nil, nil, stubAdapter{res: TextResult{Text: "Ravi Shankar", Method: MethodTesseractOriginal}}, nil,
		WithObserver(obs), WithClock(clock))

	res, err := o.Extract(context.Background(), writeFile(t, "a.png", "x"), "png")
	if err != nil {
		t.Fatal(err)
	}
	if obs.d != 3*time.Second || res.Metadata.ProcessingTimeMs != 3000 {
		t.Errorf("observed %v, metadata %dms", obs.d, res.Metadata.ProcessingTimeMs)
	}
}

func TestOrchestratorMissingFile(t *testing.T) {
	o := NewOrchestrator(stubAdapter{}, nil, nil, nil)
	_, err := o.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "pdf")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func TestOrchestratorEmptyText(t *testing.T) {
	o := NewOrchestrator(nil, nil, stubAdapter{res: TextResult{Text: "  \n "}}, nil)
	_, err := o.Extract(context.Background(), writeFile(t, "a.png", "x"), ".PNG")
	var ee *ExtractionError
	if !errors.As(err, &ee) || !errors.Is(err, ErrNoText) {
		t.Fatalf("err = %v", err)
	}
	if ee.FileType != "png" {
		t.Errorf("FileType = %q", ee.FileType)
	}
}

func TestOrchestratorAdapterErrorWrapped(t *testing.T) {
	cause := &OcrExhaustedError{Attempts: []Attempt{{Method: MethodTesseractOriginal}}}
	o := NewOrchestrator(nil, nil, stubAdapter{err: cause}, nil)
	_, err := o.Extract(context.Background(), writeFile(t, "a.jpg", "x"), "jpg")
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %T %v", err, err)
	}
	var oe *OcrExhaustedError
	if !errors.As(err, &oe) || !errors.Is(err, ErrNoText) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestOrchestratorLowConfidenceForUnstructuredText(t *testing.T) {
	o := NewOrchestrator(nil, nil, stubAdapter{res: TextResult{Text: "qzx vbn", Method: MethodTesseractOriginal}}, nil)
	res, err := o.Extract(context.Background(), writeFile(t, "a.png", "x"), "png")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fields.Empty() {
		t.Errorf("fields = %+v", res.Fields)
	}
	if res.Metadata.Confidence != confidence.Low {
		t.Errorf("Confidence = %q", res.Metadata.Confidence)
	}
	if res.Metadata.EngineConfidence != confidence.Low {
		t.Errorf("EngineConfidence = %q", res.Metadata.EngineConfidence)
	}
	if res.Metadata.ProcessingTimeMs < 0 || res.Metadata.FileType != "png" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestOrchestratorBuildsFields(t *testing.T) {
	text := "Artist Name: Ravi Shankar\nGuru: Ustad Allauddin Khan\nEmail: RAVI@Example.com\n"
	o := NewOrchestrator(stubAdapter{res: TextResult{Text: text, Method: MethodPDFParser, Confidence: confidence.High}}, nil, nil, nil)
	res, err := o.Extract(context.Background(), writeFile(t, "p.pdf", "x"), "pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Fields.ArtistName == nil || *res.Fields.ArtistName != "Ravi Shankar" {
		t.Errorf("ArtistName = %v", res.Fields.ArtistName)
	}
	if res.Fields.Contact.Email == nil || *res.Fields.Contact.Email != "ravi@example.com" {
		t.Errorf("Email = %v", res.Fields.Contact.Email)
	}
	if res.Metadata.WordCount == 0 || strings.Contains(res.RawText, "\n") {
		t.Errorf("raw = %q", res.RawText)
	}
}

func TestImageCloudFirst(t *testing.T) {
	tess := &fakeRecognizer{}
	a := NewImageAdapter(fakeCloud{text: "Ravi Shankar"}, tess, nil, nil)
	res, err := a.ExtractText(context.Background(), "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != "Google Vision AI" || res.FallbackUsed || res.Confidence != confidence.High {
		t.Errorf("res = %+v", res)
	}
	if len(tess.paths) != 0 {
		t.Errorf("tesseract called: %v", tess.paths)
	}
}

func TestImagePreprocessedCleansUp(t *testing.T) {
	dir := t.TempDir()
	prep := &tempPreparer{dir: dir}
	tess := &fakeRecognizer{byPath: map[string]ocr.Recognition{".png": {Text: "Some text", Confidence: 70}}}
	a := NewImageAdapter(fakeCloud{err: errors.New("quota")}, tess, prep, nil)

	res, err := a.ExtractText(context.Background(), "/in/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodTesseractPreprocessed || !res.FallbackUsed || res.Confidence != confidence.Medium {
		t.Errorf("res = %+v", res)
	}
	prep.assertRemoved(t)
	if res.Attempts[0].Err != "quota" {
		t.Errorf("attempts = %+v", res.Attempts)
	}
}

func TestImageOriginalAfterEmptyPreprocessed(t *testing.T) {
	prep := &tempPreparer{dir: t.TempDir()}
	tess := &fakeRecognizer{byPath: map[string]ocr.Recognition{"photo.jpg": {Text: "found it", Confidence: 40}}}
	a := NewImageAdapter(nil, tess, prep, nil)

	res, err := a.ExtractText(context.Background(), "/in/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodTesseractOriginal || !res.FallbackUsed || res.Confidence != confidence.Low {
		t.Errorf("res = %+v", res)
	}
}

func TestImageAllEmpty(t *testing.T) {
	prep := &tempPreparer{dir: t.TempDir()}
	a := NewImageAdapter(fakeCloud{}, &fakeRecognizer{}, prep, nil)

	_, err := a.ExtractText(context.Background(), "/in/photo.jpg")
	var oe *OcrExhaustedError
	if !errors.As(err, &oe) {
		t.Fatalf("err = %v", err)
	}
	if len(oe.Attempts) != 3 {
		t.Errorf("attempts = %+v", oe.Attempts)
	}
	if !strings.Contains(err.Error(), MethodTesseractPreprocessed) {
		t.Errorf("message = %q", err.Error())
	}
	prep.assertRemoved(t)
}

func TestImagePreprocessedErrorCleansUp(t *testing.T) {
	prep := &tempPreparer{dir: t.TempDir()}
	tess := &fakeRecognizer{
		err:    errors.New("tesseract crashed"),
		errFor: ".png",
		byPath: map[string]ocr.Recognition{"photo.jpg": {Text: "found it", Confidence: 40}},
	}
	a := NewImageAdapter(nil, tess, prep, nil)

	res, err := a.ExtractText(context.Background(), "/in/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodTesseractOriginal {
		t.Errorf("method = %q", res.Method)
	}
	prep.assertRemoved(t)
}

func TestImageBestOf(t *testing.T) {
	tess := &fakeRecognizer{byPath: map[string]ocr.Recognition{"photo.jpg": {Text: "short text"}}}
	a := NewImageAdapter(fakeCloud{text: "tiny"}, tess, nil, nil, WithMinUsableChars(50))

	res, err := a.ExtractText(context.Background(), "/in/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != "Tesseract (Original) (Best of 2)" || res.Text != "short text" {
		t.Errorf("res = %+v", res)
	}
}

func TestImageCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewImageAdapter(fakeCloud{text: "x"}, &fakeRecognizer{}, nil, nil)
	if _, err := a.ExtractText(ctx, "a.png"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func writeDocx(t *testing.T, xmlBody string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "profile.docx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(xmlBody))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return p
}

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Artist Name: Zakir Hussain</w:t></w:r></w:p>
<w:p><w:r><w:t>Gharana:</w:t></w:r><w:r><w:tab/><w:t>Punjab</w:t></w:r></w:p>
<w:p><w:r><w:t>A long biography line that easily exceeds the minimum text threshold.</w:t></w:r></w:p>
</w:body></w:document>`

func TestWordReadsDocx(t *testing.T) {
	p := writeDocx(t, docxBody)
	a := NewWordAdapter(nil, nil, nil, "", nil)
	res, err := a.ExtractText(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodWordParser || res.FallbackUsed {
		t.Errorf("res = %+v", res)
	}
	if !strings.Contains(res.Text, "Artist Name: Zakir Hussain\n") || !strings.Contains(res.Text, "Gharana:\tPunjab") {
		t.Errorf("text = %q", res.Text)
	}
}

type fakeDoc struct{ rec ocr.Recognition }

func (f fakeDoc) DocText(context.Context, string) (ocr.Recognition, error) { return f.rec, nil }

type fakeRenderer struct{ outDirs []string }

func (f *fakeRenderer) CanRender() bool { return true }
func (f *fakeRenderer) RenderPDF(_ context.Context, _, outDir string) (string, error) {
	f.outDirs = append(f.outDirs, outDir)
	return filepath.Join(outDir, "doc.pdf"), nil
}

func TestWordLegacyFallsBackToOCR(t *testing.T) {
	p := writeFile(t, "old.doc", "\xd0\xcf\x11\xe0 binary")
	renderer := &fakeRenderer{}
	scanner := &fakeScanner{rec: ocr.Recognition{Text: strings.Repeat("scanned ", 20), Confidence: 90}}
	a := NewWordAdapter(fakeDoc{rec: ocr.Recognition{Text: "hi"}}, renderer, scanner, t.TempDir(), nil)

	res, err := a.ExtractText(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodWordOCR || !res.FallbackUsed {
		t.Errorf("res = %+v", res)
	}
	if len(renderer.outDirs) != 1 {
		t.Fatalf("render calls = %d", len(renderer.outDirs))
	}
	if _, err := os.Stat(renderer.outDirs[0]); !os.IsNotExist(err) {
		t.Errorf("render dir %s not removed", renderer.outDirs[0])
	}
}

func TestWordLegacyWithoutReader(t *testing.T) {
	p := writeFile(t, "old.doc", "binary")
	a := NewWordAdapter(nil, nil, nil, "", nil)
	if _, err := a.ExtractText(context.Background(), p); err == nil {
		t.Fatal("expected error")
	}
}
