package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/enhance"
)

func enhanceRouter() http.Handler {
	enh := enhance.New(common.EnhanceConfig{}, nil, nil)
	return New(newFakeService(), nil, WithEnhancer(enh)).Router()
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestEnhanceField(t *testing.T) {
	h := enhanceRouter()

	w := do(t, h, post("/api/artists/enhance-field", `{"field":"guruName","value":"alla rakha","context":{"artistName":"Zakir Hussain"}}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got enhance.FieldResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Value != "Pandit Alla Rakha" || got.Provider != enhance.ProviderDeterministic {
		t.Errorf("got = %+v", got)
	}

	w = do(t, h, post("/api/artists/enhance-field", `{"field":"gharana"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing value: expected 400, got %d", w.Code)
	}
}

func TestEnhanceAll(t *testing.T) {
	h := enhanceRouter()

	w := do(t, h, post("/api/artists/enhance-all", `{"data":{"artistName":"pt. jasraj","gharana":"mewati gharana"},"rawText":"..."}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got enhanceAllResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.EnhancedFormData.ArtistName == nil || *got.EnhancedFormData.ArtistName != "Pandit Jasraj" ||
		got.EnhancedFormData.Gharana == nil || *got.EnhancedFormData.Gharana != "Mewati" {
		t.Errorf("got = %+v", got.EnhancedFormData)
	}

	w = do(t, h, post("/api/artists/enhance-all", `{"rawText":"only text"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing data: expected 400, got %d", w.Code)
	}
}

func TestGenerateSummary(t *testing.T) {
	h := enhanceRouter()

	w := do(t, h, post("/api/artists/generate-summary", `{"artistName":"Girija Devi","gharana":"Benares"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got enhance.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Summary != "Girija Devi is a classical music artist from the Benares gharana." {
		t.Errorf("summary = %q", got.Summary)
	}

	w = do(t, h, post("/api/artists/generate-summary", `{"gharana":"Benares"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name: expected 400, got %d", w.Code)
	}
}

func TestComprehensiveDetails(t *testing.T) {
	h := enhanceRouter()

	w := do(t, h, post("/api/artists/comprehensive-details", `{"artistName":"ustd amjad ali khan","gharana":"Senia Bangash"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got enhance.Profile
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Fields.ArtistName == nil || *got.Fields.ArtistName != "Ustad Amjad Ali Khan" || got.Summary.Summary == "" {
		t.Errorf("got = %+v", got)
	}

	w = do(t, h, post("/api/artists/comprehensive-details", `{"artistName":""}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", w.Code)
	}
}

func TestEnhanceProviders(t *testing.T) {
	w := do(t, enhanceRouter(), httptest.NewRequest(http.MethodGet, "/api/enhance/providers", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"providers":[]}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestEnhanceDisabled(t *testing.T) {
	h := New(newFakeService(), nil).Router()
	w := do(t, h, post("/api/artists/enhance-field", `{"field":"gharana","value":"kirana"}`))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if got := decodeError(t, w); got.Code != "ENHANCE_DISABLED" {
		t.Errorf("code = %q", got.Code)
	}
}
