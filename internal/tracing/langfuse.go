// Package tracing wires opt-in Langfuse tracing into every Eino model call.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/pmrag-go/internal/version"
)

// traceName labels every trace emitted by this process.
const traceName = "pmrag"

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set and registers it globally, so relevance and
// generation calls are both traced. Returns a flush function that must be
// called before process exit to ensure all traces are sent. If Langfuse is
// not configured, flush is a no-op and ok is false.
func Setup() (flush func(), ok bool) {
	host := os.Getenv("LANGFUSE_HOST")
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")

	if publicKey == "" || secretKey == "" {
		return func() {}, false
	}
	if host == "" {
		host = "http://localhost:3000"
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      traceName,
		Release:   version.Version,
	})
	callbacks.AppendGlobalHandlers(handler)

	return flusher, true
}
