package audit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.pmrag/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.pmrag/config.yaml" {
			t.Errorf("expected '~/.pmrag/config.yaml', got %q", got)
		}
	}
}

func TestSanitiseKey_DatabaseURLIsSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("DATABASE_URL", "postgres://u:p@h/db"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("PMRAG_API_KEY", "super-secret")
	t.Setenv("STORE_BACKEND", "sqlite")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "ask", "")

	out := buf.String()
	if strings.Contains(out, "super-secret") {
		t.Errorf("audit log leaked a secret: %s", out)
	}
	if !strings.Contains(out, `"PMRAG_API_KEY":"set"`) {
		t.Errorf("expected PMRAG_API_KEY=set in %s", out)
	}
	if !strings.Contains(out, `"STORE_BACKEND":"sqlite"`) {
		t.Errorf("expected STORE_BACKEND=sqlite in %s", out)
	}
	if !strings.Contains(out, `"config_file":"none"`) {
		t.Errorf("expected config_file=none in %s", out)
	}
}
