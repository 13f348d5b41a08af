package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
	"github.com/joseph-ayodele/artists-registry/internal/resilience"
)

// ErrNoProviders is logged when enhancement runs without any API key.
var ErrNoProviders = errors.New("no enhancement providers configured")

var errNoReply = errors.New("no provider produced a usable reply")

const structuredMaxTokens = 1024

// Enhancer tries each provider in order and falls back to deterministic
// formatting. Safe for concurrent use.
type Enhancer struct {
	providers   []Provider
	limiter     *rate.Limiter
	exec        *resilience.Executor
	temperature float32
	logger      *slog.Logger
}

type Option func(*Enhancer)

// WithProviders replaces the configured providers, mainly for tests.
func WithProviders(p ...Provider) Option {
	return func(e *Enhancer) { e.providers = p }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(e *Enhancer) {
		if l != nil {
			e.limiter = l
		}
	}
}

// New builds providers for every API key present in cfg.
func New(cfg common.EnhanceConfig, exec *resilience.Executor, logger *slog.Logger, opts ...Option) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	e := &Enhancer{
		limiter:     rate.NewLimiter(limit, burst),
		exec:        exec,
		temperature: cfg.Temperature,
		logger:      logger,
	}
	if cfg.Enabled {
		if cfg.GeminiAPIKey != "" {
			e.providers = append(e.providers, NewGemini(ProviderConfig{
				APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL, Model: cfg.GeminiModel, Timeout: cfg.Timeout,
			}, logger))
		}
		if cfg.PerplexityAPIKey != "" {
			e.providers = append(e.providers, NewPerplexity(ProviderConfig{
				APIKey: cfg.PerplexityAPIKey, BaseURL: cfg.PerplexityBaseURL, Model: cfg.PerplexityModel, Timeout: cfg.Timeout,
			}, logger))
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Providers lists the configured provider names in call order.
func (e *Enhancer) Providers() []string {
	names := make([]string, 0, len(e.providers))
	for _, p := range e.providers {
		names = append(names, p.Name())
	}
	return names
}

// ProviderStatus is one configured provider and its breaker state.
type ProviderStatus struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Breaker string `json:"breaker"`
}

// ProviderStatus reports the provider chain in call order. An empty chain
// means every call is answered deterministically.
func (e *Enhancer) ProviderStatus() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(e.providers))
	for _, p := range e.providers {
		out = append(out, ProviderStatus{Name: p.Name(), Model: p.Model(), Breaker: e.exec.State(operationName(p))})
	}
	return out
}

// Enhance never drops a regex value. The only error is a done context;
// every provider failure ends in the deterministic result.
func (e *Enhancer) Enhance(ctx context.Context, raw string, fields normalize.Fields) (Enhanced, error) {
	start := time.Now()
	prompt := BuildStructuredPrompt(raw, fields)
	opts := CallOptions{Temperature: e.temperature, MaxTokens: structuredMaxTokens}

	var ai aiFields
	p, err := e.firstReply(ctx, "structured", prompt, opts, func(reply string) error {
		var perr error
		ai, perr = parseReply(reply)
		return perr
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Deterministic(fields), ctxErr
		}
		return Deterministic(fields), nil
	}
	out := mergeAI(fields, ai)
	out.Provider, out.Model = p.Name(), p.Model()
	e.logger.Info("enhance.ok", "provider", p.Name(), "model", p.Model(), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// firstReply walks the provider chain and returns the first provider whose
// reply accept takes. A rejected reply moves on to the next provider without
// a retry. The error is ctx's when it is done, otherwise errNoReply.
func (e *Enhancer) firstReply(ctx context.Context, mode, prompt string, opts CallOptions, accept func(string) error) (Provider, error) {
	if len(e.providers) == 0 {
		e.logger.Debug("enhance.skip", "mode", mode, "reason", ErrNoProviders)
		return nil, ErrNoProviders
	}
	var lastErr error
	for _, p := range e.providers {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		reply, err := e.complete(ctx, p, prompt, opts)
		if err == nil {
			if err = accept(reply); err != nil {
				err = fmt.Errorf("%s reply: %w", p.Name(), err)
			}
		}
		if err == nil {
			return p, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("enhance.provider_failed", "mode", mode, "provider", p.Name(), "error", err)
		lastErr = err
	}
	e.logger.Warn("enhance.fallback", "mode", mode, "provider", ProviderDeterministic, "last_error", lastErr)
	return nil, fmt.Errorf("%w: %w", errNoReply, lastErr)
}

func (e *Enhancer) complete(ctx context.Context, p Provider, prompt string, opts CallOptions) (string, error) {
	var reply string
	err := e.exec.Execute(ctx, operationName(p), func(ctx context.Context) error {
		var err error
		reply, err = p.Complete(ctx, prompt, opts)
		return err
	}, nil)
	return reply, err
}

func operationName(p Provider) string { return "enhance." + p.Name() }

// mergeAI starts from the regex fields and lets non-empty AI values win.
func mergeAI(base normalize.Fields, ai aiFields) Enhanced {
	f := Deterministic(base).Fields
	pick(&f.ArtistName, ai.ArtistName, normalize.FormatName)
	pick(&f.GuruName, ai.GuruName, normalize.FormatGuruName)
	pick(&f.Gharana, ai.Gharana, normalize.FormatGharana)
	pick(&f.Biography, ai.Biography, FormatBiography)
	if c := ai.Contact; c != nil {
		pick(&f.Contact.Phone, c.Phone, normalize.FormatPhone)
		pick(&f.Contact.Email, c.Email, formatEmail)
		pick(&f.Contact.Address, c.Address, collapse)
	}

	out := Enhanced{Fields: f}
	pick(&out.Description, ai.Description, collapse)
	if out.Description == nil {
		out.Description = describe(f)
	}
	return out
}

func pick(dst **string, v *string, format func(string) string) {
	if v == nil {
		return
	}
	if s := strings.TrimSpace(format(strings.TrimSpace(*v))); s != "" {
		*dst = &s
	}
}

// Deterministic reformats the regex fields without any remote call.
func Deterministic(fields normalize.Fields) Enhanced {
	var f normalize.Fields
	pick(&f.ArtistName, fields.ArtistName, normalize.FormatName)
	pick(&f.GuruName, fields.GuruName, normalize.FormatGuruName)
	pick(&f.Gharana, fields.Gharana, normalize.FormatGharana)
	pick(&f.Biography, fields.Biography, FormatBiography)
	pick(&f.Contact.Phone, fields.Contact.Phone, normalize.FormatPhone)
	pick(&f.Contact.Email, fields.Contact.Email, formatEmail)
	pick(&f.Contact.Address, fields.Contact.Address, collapse)
	return Enhanced{Fields: f, Description: describe(f), Provider: ProviderDeterministic}
}

// describe builds the one-line summary used when no model wrote one.
func describe(f normalize.Fields) *string {
	if f.ArtistName == nil && f.Gharana == nil && f.GuruName == nil {
		return nil
	}
	subject := "This artist"
	if f.ArtistName != nil {
		subject = *f.ArtistName
	}
	var b strings.Builder
	b.WriteString(subject)
	b.WriteString(" is a classical music artist")
	if f.Gharana != nil {
		b.WriteString(" from the " + *f.Gharana + " gharana")
	}
	if f.GuruName != nil {
		b.WriteString(" trained under " + *f.GuruName)
	}
	b.WriteString(".")
	s := b.String()
	return &s
}

var reSentenceStart = regexp.MustCompile(`([.!?])\s+(\p{Ll})`)

// FormatBiography collapses whitespace and capitalizes sentence starts.
func FormatBiography(bio string) string {
	s := collapse(bio)
	if s == "" {
		return ""
	}
	s = reSentenceStart.ReplaceAllStringFunc(s, func(m string) string {
		r := []rune(m)
		last := len(r) - 1
		return string(r[0]) + " " + strings.ToUpper(string(r[last]))
	})
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func formatEmail(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || common.Email("email", v) != nil {
		return ""
	}
	return v
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
