package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	OCR        OCRConfig        `yaml:"ocr"`
	Enhance    EnhanceConfig    `yaml:"enhance"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Async      AsyncConfig      `yaml:"async"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // "postgres" | "sqlite"
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string        `yaml:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	UploadDir      string        `yaml:"upload_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	InboxDir       string        `yaml:"inbox_dir"` // empty disables the watched inbox
	InboxDebounce  time.Duration `yaml:"inbox_debounce"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext      string `yaml:"pdftotext"`
	Pdftoppm       string `yaml:"pdftoppm"`
	Tesseract      string `yaml:"tesseract"`
	Antiword       string `yaml:"antiword"`
	OfficeRenderer string `yaml:"office_renderer"` // e.g. "soffice"; empty disables the Word OCR fallback
	TesseractLang  string `yaml:"tesseract_lang"`
	TessdataDir    string `yaml:"tessdata_dir"`
	DPI            int    `yaml:"dpi"`
	MaxPages       int    `yaml:"max_pages"`
	PSM            int    `yaml:"psm"`
	OEM            int    `yaml:"oem"`
	TempDir        string `yaml:"temp_dir"`

	MinUsableChars int     `yaml:"min_usable_chars"`
	Contrast       float64 `yaml:"contrast"`
	Sharpen        float64 `yaml:"sharpen"`

	VisionAPIKey   string        `yaml:"vision_api_key"`
	VisionEndpoint string        `yaml:"vision_endpoint"`
	VisionTimeout  time.Duration `yaml:"vision_timeout"`
}

// EnhanceConfig holds AI-enhancement provider configuration
type EnhanceConfig struct {
	Enabled           bool          `yaml:"enabled"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	GeminiBaseURL     string        `yaml:"gemini_base_url"`
	PerplexityAPIKey  string        `yaml:"perplexity_api_key"`
	PerplexityModel   string        `yaml:"perplexity_model"`
	PerplexityBaseURL string        `yaml:"perplexity_base_url"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RatePerSecond     float64       `yaml:"rate_per_second"`
	Burst             int           `yaml:"burst"`
}

// ResilienceConfig holds retry and circuit-breaker settings for outbound calls
type ResilienceConfig struct {
	RetryMaxAttempts    int           `yaml:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout"`
}

// AsyncConfig controls background extraction
type AsyncConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "text"
}

// LoadConfig loads configuration from an optional YAML file (ARTISTS_CONFIG)
// and then from environment variables, which take precedence.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("ARTISTS_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.overlayEnv()
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:artists.db?_pragma=busy_timeout(5000)",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:       ":8080",
			GRPCAddr:       ":9090",
			UploadDir:      "./uploads",
			MaxUploadBytes: 10 << 20,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   3 * time.Minute,
			InboxDebounce:  2 * time.Second,
		},
		OCR: OCRConfig{
			Pdftotext:      "pdftotext",
			Pdftoppm:       "pdftoppm",
			Tesseract:      "tesseract",
			Antiword:       "antiword",
			TesseractLang:  "eng",
			DPI:            300,
			MinUsableChars: 1,
			Contrast:       20,
			Sharpen:        1.0,
			VisionEndpoint: "https://vision.googleapis.com/v1/images:annotate",
			VisionTimeout:  30 * time.Second,
		},
		Enhance: EnhanceConfig{
			GeminiModel:       "gemini-1.5-flash",
			GeminiBaseURL:     "https://generativelanguage.googleapis.com/v1beta/models",
			PerplexityModel:   "sonar",
			PerplexityBaseURL: "https://api.perplexity.ai",
			Temperature:       0.2,
			Timeout:           45 * time.Second,
			RatePerSecond:     1,
			Burst:             2,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:    3,
			RetryInitialBackoff: 200 * time.Millisecond,
			RetryMaxBackoff:     2 * time.Second,
			BreakerEnabled:      true,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.5,
			BreakerOpenTimeout:  30 * time.Second,
		},
		Async: AsyncConfig{
			Workers:        4,
			QueueSize:      128,
			ProcessTimeout: 3 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)
	c.Server.InboxDir = getEnv("INBOX_DIR", c.Server.InboxDir)
	c.Server.InboxDebounce = getEnvAsDuration("INBOX_DEBOUNCE", c.Server.InboxDebounce)

	c.OCR.Pdftotext = getEnv("PDFTOTEXT_BIN", c.OCR.Pdftotext)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Antiword = getEnv("ANTIWORD_BIN", c.OCR.Antiword)
	c.OCR.OfficeRenderer = getEnv("OFFICE_RENDERER", c.OCR.OfficeRenderer)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("TESSERACT_OEM", c.OCR.OEM)
	c.OCR.TempDir = getEnv("OCR_TEMP_DIR", c.OCR.TempDir)
	c.OCR.MinUsableChars = getEnvAsInt("OCR_MIN_USABLE_CHARS", c.OCR.MinUsableChars)
	c.OCR.VisionAPIKey = getEnv("GOOGLE_VISION_API_KEY", c.OCR.VisionAPIKey)
	c.OCR.VisionEndpoint = getEnv("GOOGLE_VISION_ENDPOINT", c.OCR.VisionEndpoint)
	c.OCR.VisionTimeout = getEnvAsDuration("GOOGLE_VISION_TIMEOUT", c.OCR.VisionTimeout)

	c.Enhance.Enabled = getEnvAsBool("ENHANCE_ENABLED", c.Enhance.Enabled)
	c.Enhance.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Enhance.GeminiAPIKey)
	c.Enhance.GeminiModel = getEnv("GEMINI_MODEL", c.Enhance.GeminiModel)
	c.Enhance.GeminiBaseURL = getEnv("GEMINI_BASE_URL", c.Enhance.GeminiBaseURL)
	c.Enhance.PerplexityAPIKey = getEnv("PERPLEXITY_API_KEY", c.Enhance.PerplexityAPIKey)
	c.Enhance.PerplexityModel = getEnv("PERPLEXITY_MODEL", c.Enhance.PerplexityModel)
	c.Enhance.PerplexityBaseURL = getEnv("PERPLEXITY_BASE_URL", c.Enhance.PerplexityBaseURL)
	c.Enhance.Temperature = getEnvAsFloat32("ENHANCE_TEMPERATURE", c.Enhance.Temperature)
	c.Enhance.Timeout = getEnvAsDuration("ENHANCE_TIMEOUT", c.Enhance.Timeout)
	c.Enhance.RatePerSecond = getEnvAsFloat64("ENHANCE_RATE_PER_SECOND", c.Enhance.RatePerSecond)
	c.Enhance.Burst = getEnvAsInt("ENHANCE_BURST", c.Enhance.Burst)

	c.Resilience.RetryMaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", c.Resilience.RetryMaxAttempts)
	c.Resilience.RetryInitialBackoff = getEnvAsDuration("RETRY_INITIAL_BACKOFF", c.Resilience.RetryInitialBackoff)
	c.Resilience.RetryMaxBackoff = getEnvAsDuration("RETRY_MAX_BACKOFF", c.Resilience.RetryMaxBackoff)
	c.Resilience.BreakerEnabled = getEnvAsBool("BREAKER_ENABLED", c.Resilience.BreakerEnabled)
	c.Resilience.BreakerOpenTimeout = getEnvAsDuration("BREAKER_OPEN_TIMEOUT", c.Resilience.BreakerOpenTimeout)

	c.Async.Enabled = getEnvAsBool("ASYNC_EXTRACTION", c.Async.Enabled)
	c.Async.Workers = getEnvAsInt("ASYNC_WORKERS", c.Async.Workers)
	c.Async.QueueSize = getEnvAsInt("ASYNC_QUEUE_SIZE", c.Async.QueueSize)
	c.Async.ProcessTimeout = getEnvAsDuration("ASYNC_PROCESS_TIMEOUT", c.Async.ProcessTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "pgx", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("DB_DRIVER %q is not supported", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.UploadDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
	}
	if c.Enhance.Enabled && c.Enhance.GeminiAPIKey == "" && c.Enhance.PerplexityAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "ENHANCE_ENABLED requires GEMINI_API_KEY or PERPLEXITY_API_KEY", ErrInvalidInput)
	}
	if c.Async.Enabled && c.Async.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "ASYNC_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
