package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
	"github.com/joseph-ayodele/artists-registry/internal/resilience"
)

func strPtr(s string) *string { return &s }

func fastExec() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}, nil)
}

type stubProvider struct {
	name   string
	reply  string
	err    error
	calls  int
	prompt string
	opts   CallOptions
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return "stub-1" }
func (s *stubProvider) Complete(_ context.Context, prompt string, opts CallOptions) (string, error) {
	s.calls++
	s.prompt, s.opts = prompt, opts
	return s.reply, s.err
}

func regexFields() normalize.Fields {
	return normalize.Fields{
		ArtistName: strPtr("Ravi Shankar"),
		GuruName:   strPtr("Ustad Allauddin Khan"),
		Gharana:    strPtr("Maihar"),
		Contact:    normalize.Contact{Phone: strPtr("+91 9876543210")},
	}
}

func TestDeterministicWithoutProviders(t *testing.T) {
	e := New(common.EnhanceConfig{}, fastExec(), nil)
	out, err := e.Enhance(context.Background(), "raw", regexFields())
	if err != nil {
		t.Fatal(err)
	}
	if out.Provider != ProviderDeterministic {
		t.Errorf("Provider = %q", out.Provider)
	}
	want := "Ravi Shankar is a classical music artist from the Maihar gharana trained under Ustad Allauddin Khan."
	if out.Description == nil || *out.Description != want {
		t.Errorf("Description = %v", out.Description)
	}
	if *out.Fields.Contact.Phone != "+91 9876543210" {
		t.Errorf("Phone = %q", *out.Fields.Contact.Phone)
	}
}

func TestAINeverNullsRegexFields(t *testing.T) {
	p := &stubProvider{name: "gemini", reply: "```json\n" + `{"artistName": "pt. ravi shankar", "guruName": null, "gharana": "", "biography": "born in varanasi. he toured widely.", "contact": {"email": "RAVI@EXAMPLE.COM"}}` + "\n```"}
	e := New(common.EnhanceConfig{}, fastExec(), nil, WithProviders(p))

	out, err := e.Enhance(context.Background(), "raw", regexFields())
	if err != nil {
		t.Fatal(err)
	}
	if out.Provider != "gemini" || out.Model != "stub-1" {
		t.Errorf("provider = %q/%q", out.Provider, out.Model)
	}
	if got := *out.Fields.ArtistName; got != "Pandit Ravi Shankar" {
		t.Errorf("ArtistName = %q", got)
	}
	if out.Fields.GuruName == nil || *out.Fields.GuruName != "Ustad Allauddin Khan" {
		t.Errorf("GuruName = %v", out.Fields.GuruName)
	}
	if out.Fields.Gharana == nil || *out.Fields.Gharana != "Maihar" {
		t.Errorf("Gharana = %v", out.Fields.Gharana)
	}
	if out.Fields.Biography == nil || *out.Fields.Biography != "Born in varanasi. He toured widely." {
		t.Errorf("Biography = %v", out.Fields.Biography)
	}
	if out.Fields.Contact.Email == nil || *out.Fields.Contact.Email != "ravi@example.com" {
		t.Errorf("Email = %v", out.Fields.Contact.Email)
	}
	if out.Fields.Contact.Phone == nil {
		t.Error("regex phone dropped")
	}
}

func TestFallsThroughToNextProvider(t *testing.T) {
	bad := &stubProvider{name: "gemini", reply: `{"artistName": 42}`}
	good := &stubProvider{name: "perplexity", reply: `{"artistName": "Zakir Hussain"}`}
	e := New(common.EnhanceConfig{}, fastExec(), nil, WithProviders(bad, good))

	out, err := e.Enhance(context.Background(), "raw", normalize.Fields{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Provider != "perplexity" || *out.Fields.ArtistName != "Zakir Hussain" {
		t.Errorf("out = %+v", out)
	}
	if bad.calls != 1 {
		t.Errorf("schema failures must not be retried, calls = %d", bad.calls)
	}
}

func TestAllProvidersFailFallsBack(t *testing.T) {
	p := &stubProvider{name: "gemini", err: &common.StatusError{Service: "gemini", Status: 503}}
	e := New(common.EnhanceConfig{}, fastExec(), nil, WithProviders(p))

	out, err := e.Enhance(context.Background(), "raw", regexFields())
	if err != nil {
		t.Fatal(err)
	}
	if out.Provider != ProviderDeterministic {
		t.Errorf("Provider = %q", out.Provider)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want retry", p.calls)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &stubProvider{name: "gemini", reply: `{"artistName": "X"}`}
	e := New(common.EnhanceConfig{}, fastExec(), nil, WithProviders(p))
	if _, err := e.Enhance(ctx, "raw", regexFields()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateJSONRequiresIdentity(t *testing.T) {
	if err := ValidateJSON([]byte(`{"biography": "only a bio"}`)); err == nil {
		t.Error("expected error without identity field")
	}
	if err := ValidateJSON([]byte(`{"gharana": "Kirana", "contact": null}`)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUnfence(t *testing.T) {
	got := Unfence("Sure! Here you go:\n```json\n{\"a\": 1}\n```\nThanks")
	if got != `{"a": 1}` {
		t.Errorf("Unfence = %q", got)
	}
}

func TestGeminiRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" || r.URL.Query().Get("key") != "k1" {
			t.Errorf("url = %s", r.URL)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["contents"]; !ok {
			t.Error("missing contents")
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" hello "}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(ProviderConfig{APIKey: "k1", BaseURL: srv.URL + "/models", Model: "gemini-test"}, nil)
	got, err := g.Complete(context.Background(), "prompt", CallOptions{})
	if err != nil || got != "hello" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}

func TestPerplexityBearerAndErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pk" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"artistName\":\"Kishori Amonkar\"}"}}]}`))
	}))
	defer srv.Close()

	p := NewPerplexity(ProviderConfig{APIKey: "pk", BaseURL: srv.URL}, nil)
	got, err := p.Complete(context.Background(), "prompt", CallOptions{})
	if err != nil || !strings.Contains(got, "Kishori") {
		t.Fatalf("Complete = %q, %v", got, err)
	}

	bad := NewPerplexity(ProviderConfig{APIKey: "wrong", BaseURL: srv.URL}, nil)
	_, err = bad.Complete(context.Background(), "prompt", CallOptions{})
	var se *common.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
}

func TestNewBuildsConfiguredProviders(t *testing.T) {
	e := New(common.EnhanceConfig{Enabled: true, GeminiAPIKey: "g", PerplexityAPIKey: "p"}, fastExec(), nil)
	if got := strings.Join(e.Providers(), ","); got != "gemini,perplexity" {
		t.Errorf("Providers = %q", got)
	}
	off := New(common.EnhanceConfig{Enabled: false, GeminiAPIKey: "g"}, fastExec(), nil)
	if len(off.Providers()) != 0 {
		t.Errorf("disabled enhancer has providers %v", off.Providers())
	}
}

func TestFormatBiography(t *testing.T) {
	if got := FormatBiography("  born   in pune.  she sings!  "); got != "Born in pune. She sings!" {
		t.Errorf("FormatBiography = %q", got)
	}
}
