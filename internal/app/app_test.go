package app

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
)

func writeDocx(t *testing.T, paragraphs ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "profile.docx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, para := range paragraphs {
		b.WriteString("<w:p><w:r><w:t>" + para + "</w:t></w:r></w:p>")
	}
	b.WriteString("</w:body></w:document>")
	if _, err := w.Write([]byte(b.String())); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	t.Setenv("ARTISTS_CONFIG", "")
	t.Setenv("GOOGLE_VISION_API_KEY", "")
	cfg, err := common.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.OCR.TempDir = t.TempDir()
	return cfg
}

func TestPipelineExtractsDocxWithoutBinaries(t *testing.T) {
	pipe := NewPipeline(testConfig(t), nil, nil)
	p := writeDocx(t,
		"Artist Name: Zakir Hussain",
		"Guru: Ustad Alla Rakha",
		"A long biography line that easily exceeds the minimum text threshold for documents.",
	)

	res, err := pipe.Orchestrator.Extract(context.Background(), p, "docx")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Metadata.Method != extract.MethodWordParser || res.Metadata.FallbackUsed {
		t.Errorf("metadata = %+v", res.Metadata)
	}
	if !strings.Contains(res.RawText, "Zakir Hussain") {
		t.Errorf("raw text = %q", res.RawText)
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mongo"
	if err := Serve(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected config error")
	}
}
