package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ARTISTS_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.OCR.DPI != 300 || cfg.OCR.TesseractLang != "eng" {
		t.Fatalf("unexpected ocr defaults: %+v", cfg.OCR)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "database:\n  driver: postgres\n  dsn: postgres://file\nocr:\n  dpi: 200\nasync:\n  process_timeout: 90s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARTISTS_CONFIG", path)
	t.Setenv("DB_URL", "postgres://env")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q, want postgres from file", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://env" {
		t.Fatalf("dsn = %q, env should win", cfg.Database.DSN)
	}
	if cfg.OCR.DPI != 200 {
		t.Fatalf("dpi = %d, want 200", cfg.OCR.DPI)
	}
	if cfg.Async.ProcessTimeout != 90*time.Second {
		t.Fatalf("process timeout = %v", cfg.Async.ProcessTimeout)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("ARTISTS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestValidateRejectsEnhanceWithoutKeys(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enhance.Enabled = true
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidatorCollectsErrors(t *testing.T) {
	blank := "  "
	bad := "not-an-email"
	err := NewValidator().
		Field("artist_name", &blank, NotBlank).
		Field("email", &bad, Email).
		Field("id", "nope", UUID).
		Err()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	var nilStr *string
	if err := NewValidator().Field("gharana", nilStr, NotBlank, Email, MaxLength(5)).Err(); err != nil {
		t.Fatalf("nil optional value should pass, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "warning": "WARN", "error": "ERROR", "": "INFO"}
	for in, want := range cases {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
