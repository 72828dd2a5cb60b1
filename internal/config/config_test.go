package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.TranscribeURL != DefaultTranscribeURL {
		t.Errorf("unexpected transcribe URL: %q", cfg.TranscribeURL)
	}
	if cfg.AnalyzeURL != DefaultAnalyzeURL {
		t.Errorf("unexpected analyze URL: %q", cfg.AnalyzeURL)
	}
	if cfg.AnalyzeModel != DefaultAnalyzeModel {
		t.Errorf("unexpected model: %q", cfg.AnalyzeModel)
	}
	if cfg.Language != DefaultLanguage {
		t.Errorf("unexpected language: %q", cfg.Language)
	}
	if cfg.RetryCount != DefaultRetryCount {
		t.Errorf("unexpected retry count: %d", cfg.RetryCount)
	}
	if cfg.StabilizationIntervalMs != DefaultStabilizationIntervalMs {
		t.Errorf("unexpected stabilization interval: %d", cfg.StabilizationIntervalMs)
	}
	if cfg.StabilizationChecks != DefaultStabilizationChecks {
		t.Errorf("unexpected stabilization checks: %d", cfg.StabilizationChecks)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		TranscribeURL: "http://asr.internal:8000",
		RetryCount:    7,
	}
	cfg.ApplyDefaults()

	if cfg.TranscribeURL != "http://asr.internal:8000" {
		t.Errorf("explicit URL overwritten: %q", cfg.TranscribeURL)
	}
	if cfg.RetryCount != 7 {
		t.Errorf("explicit retry count overwritten: %d", cfg.RetryCount)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); !errors.Is(err, ErrTranscribeURLRequired) {
		t.Errorf("expected ErrTranscribeURLRequired, got: %v", err)
	}

	cfg.TranscribeURL = "http://localhost:9000"
	if err := cfg.Validate(); !errors.Is(err, ErrAnalyzeURLRequired) {
		t.Errorf("expected ErrAnalyzeURLRequired, got: %v", err)
	}

	cfg.AnalyzeURL = "https://api.openai.com/v1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatal(err)
	}

	original := &Config{
		TranscribeURL: "http://asr:9000",
		AnalyzeURL:    "http://llm:8080/v1",
		Language:      "de",
		RetryCount:    5,
	}
	if err := original.SaveTo(root); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(root)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.TranscribeURL != "http://asr:9000" {
		t.Errorf("unexpected transcribe URL: %q", loaded.TranscribeURL)
	}
	if loaded.Language != "de" {
		t.Errorf("unexpected language: %q", loaded.Language)
	}
	if loaded.RetryCount != 5 {
		t.Errorf("unexpected retry count: %d", loaded.RetryCount)
	}
	// Unset fields pick up defaults on load.
	if loaded.AnalyzeModel != DefaultAnalyzeModel {
		t.Errorf("expected default model, got %q", loaded.AnalyzeModel)
	}
}

func TestLoadFrom_ExpandsTilde(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		TranscribeURL: "http://localhost:9000",
		AnalyzeURL:    "http://localhost:8080",
		ArchiveDir:    "~/archive",
		LogDir:        "~/logs",
	}
	if err := cfg.SaveTo(root); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFrom(root)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}
	if loaded.ArchiveDir != filepath.Join(home, "archive") {
		t.Errorf("archive dir not expanded: %q", loaded.ArchiveDir)
	}
	if loaded.LogDir != filepath.Join(home, "logs") {
		t.Errorf("log dir not expanded: %q", loaded.LogDir)
	}
}

func TestAnalyzeKey_FromEnvironment(t *testing.T) {
	cfg := &Config{}

	t.Setenv(EnvAnalyzeKey, "sk-secret")
	if got := cfg.AnalyzeKey(); got != "sk-secret" {
		t.Errorf("unexpected key: %q", got)
	}

	t.Setenv(EnvAnalyzeKey, "")
	if got := cfg.AnalyzeKey(); got != "" {
		t.Errorf("expected empty key, got %q", got)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bare_tilde", "~", home},
		{"tilde_path", "~/x/y", filepath.Join(home, "x/y")},
		{"absolute", "/var/log", "/var/log"},
		{"relative", "logs", "logs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandTilde(tt.in); got != tt.want {
				t.Errorf("expandTilde(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
