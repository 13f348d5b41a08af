package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/resilience"
)

const DefaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

type VisionConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// VisionClient calls Google Cloud Vision TEXT_DETECTION over REST.
type VisionClient struct {
	cfg    VisionConfig
	http   *http.Client
	exec   *resilience.Executor
	logger *slog.Logger
}

func NewVisionClient(cfg VisionConfig, exec *resilience.Executor, logger *slog.Logger) *VisionClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultVisionEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return &VisionClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, exec: exec, logger: logger}
}

func (c *VisionClient) Name() string { return "Google Vision AI" }

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// DetectText returns the full text Vision recognized in the image.
func (c *VisionClient) DetectText(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	body := visionRequest{Requests: []visionImageRequest{{
		Image:    visionImage{Content: base64.StdEncoding.EncodeToString(raw)},
		Features: []visionFeature{{Type: "TEXT_DETECTION"}},
	}}}
	endpoint := c.cfg.Endpoint + "?key=" + url.QueryEscape(c.cfg.APIKey)

	var text string
	err = c.exec.Execute(ctx, "ocr.vision", func(ctx context.Context) error {
		resp, err := common.SendJSON(ctx, c.http, "vision", endpoint, body, nil, c.logger)
		if err != nil {
			return err
		}
		text, err = parseVision(resp)
		return err
	}, nil)
	if err != nil {
		return "", err
	}
	return text, nil
}

func parseVision(raw []byte) (string, error) {
	var vr visionResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if len(vr.Responses) == 0 {
		return "", nil
	}
	r := vr.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", &common.StatusError{Service: "vision", Status: http.StatusBadRequest, Body: []byte(r.Error.Message)}
	}
	if r.FullTextAnnotation != nil && strings.TrimSpace(r.FullTextAnnotation.Text) != "" {
		return r.FullTextAnnotation.Text, nil
	}
	if len(r.TextAnnotations) > 0 {
		return r.TextAnnotations[0].Description, nil
	}
	return "", nil
}
