package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: gemini
  max_tokens: 2000
  temperature: 0.3
  gemini:
    model: gemini-2.0-flash
embedding:
  provider: gemini
  model: text-embedding-004
  dimensions: 768
store:
  backend: postgres
postgres:
  dsn: postgres://pmrag@localhost:5432/pmrag?sslmode=disable
  migrate: true
pubmed:
  tool: pmrag
  email: ops@example.org
server:
  port: 9090
  rate_limit_burst: 4
  routes:
    ask_rps: 0.5
    translate_rps: 2
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE", "GEMINI_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"STORE_BACKEND", "DATABASE_URL", "PG_MIGRATE",
		"NCBI_TOOL", "NCBI_EMAIL", "PMRAG_PORT",
		"PMRAG_RATE_LIMIT_BURST", "PMRAG_ASK_RPS", "PMRAG_SAVE_RPS", "PMRAG_TRANSLATE_RPS",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":         "gemini",
		"MODEL_MAX_TOKENS":       "2000",
		"MODEL_TEMPERATURE":      "0.3",
		"GEMINI_MODEL":           "gemini-2.0-flash",
		"EMBEDDING_PROVIDER":     "gemini",
		"EMBEDDING_MODEL":        "text-embedding-004",
		"EMBEDDING_DIMENSIONS":   "768",
		"STORE_BACKEND":          "postgres",
		"DATABASE_URL":           "postgres://pmrag@localhost:5432/pmrag?sslmode=disable",
		"PG_MIGRATE":             "true",
		"NCBI_TOOL":              "pmrag",
		"NCBI_EMAIL":             "ops@example.org",
		"PMRAG_PORT":             "9090",
		"PMRAG_RATE_LIMIT_BURST": "4",
		"PMRAG_ASK_RPS":          "0.5",
		"PMRAG_TRANSLATE_RPS":    "2",
		"PMRAG_SAVE_RPS":         "",
		"LOG_LEVEL":              "debug",
		"LOG_FORMAT":             "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  backend: qdrant
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it should NOT be overwritten.
	t.Setenv("STORE_BACKEND", "sqlite")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("STORE_BACKEND"); got != "sqlite" {
		t.Errorf("STORE_BACKEND: expected env override %q, got %q", "sqlite", got)
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pmrag.yaml")
	if err := os.WriteFile(cfgPath, []byte("translate:\n  model: gemini-2.5-flash\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PMRAG_CONFIG", cfgPath)
	t.Setenv("TRANSLATE_MODEL", "")
	os.Unsetenv("TRANSLATE_MODEL")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("TRANSLATE_MODEL"); got != "gemini-2.5-flash" {
		t.Errorf("TRANSLATE_MODEL: got %q", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NCBI_EMAIL=dotenv@example.org\nPMRAG_API_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NCBI_EMAIL", "")
	os.Unsetenv("NCBI_EMAIL")
	t.Setenv("PMRAG_API_KEY", "from-env")

	if err := LoadDotEnv(envPath, slog.Default()); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("NCBI_EMAIL"); got != "dotenv@example.org" {
		t.Errorf("NCBI_EMAIL: got %q", got)
	}
	if got := os.Getenv("PMRAG_API_KEY"); got != "from-env" {
		t.Errorf("PMRAG_API_KEY: dotenv must not override, got %q", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), slog.Default()); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
