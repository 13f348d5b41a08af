package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/artists-registry/internal/common"
)

var errEmptyReply = errors.New("empty reply")

// ProviderConfig configures one HTTP-backed provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (c ProviderConfig) client() *http.Client {
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	return &http.Client{Timeout: c.Timeout}
}

// Gemini calls the generateContent endpoint of the Generative Language API.
type Gemini struct {
	cfg    ProviderConfig
	http   *http.Client
	logger *slog.Logger
}

func NewGemini(cfg ProviderConfig, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &Gemini{cfg: cfg, http: cfg.client(), logger: logger}
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.cfg.Model }

func (g *Gemini) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model, url.QueryEscape(g.cfg.APIKey))
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     opts.Temperature,
			"maxOutputTokens": opts.MaxTokens,
			"topP":            0.8,
			"topK":            40,
		},
	}
	raw, err := common.SendJSON(ctx, g.http, g.Name(), endpoint, body, nil, g.logger)
	if err != nil {
		return "", err
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: %w", errEmptyReply)
	}
	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("gemini: %w", errEmptyReply)
	}
	return text, nil
}

// Perplexity calls the OpenAI-compatible chat/completions endpoint.
type Perplexity struct {
	cfg    ProviderConfig
	http   *http.Client
	logger *slog.Logger
}

func NewPerplexity(cfg ProviderConfig, logger *slog.Logger) *Perplexity {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.perplexity.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "sonar"
	}
	return &Perplexity{cfg: cfg, http: cfg.client(), logger: logger}
}

func (p *Perplexity) Name() string  { return "perplexity" }
func (p *Perplexity) Model() string { return p.cfg.Model }

func (p *Perplexity) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	body := map[string]any{
		"model": p.cfg.Model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
		"top_p":       0.8,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	raw, err := common.SendJSON(ctx, p.http, p.Name(), endpoint, body, headers, p.logger)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode perplexity response: %w", err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("perplexity: %w", errEmptyReply)
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
