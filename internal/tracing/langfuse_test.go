package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	flush, ok := Setup()
	if ok {
		t.Fatal("expected tracing to be disabled without keys")
	}
	if flush == nil {
		t.Fatal("flush must never be nil")
	}
	flush()
}
