package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelClient implements Client on top of an Eino chat model. The model
// is built once by the provider package; per-call tuning is passed as Eino
// call options.
type ChatModelClient struct {
	// model is the underlying Eino chat model.
	model model.BaseChatModel
	// name labels the backend in errors (e.g. "gemini").
	name string
	// noTemperature drops Options.Temperature for models that reject it.
	noTemperature bool
}

// NewChatModelClient wraps m. name labels the backend in error messages.
func NewChatModelClient(m model.BaseChatModel, name string) (*ChatModelClient, error) {
	if m == nil {
		return nil, fmt.Errorf("llm: chat model must not be nil")
	}
	return &ChatModelClient{model: m, name: name}, nil
}

// WithoutTemperature returns a copy of c that never sends a temperature.
func (c *ChatModelClient) WithoutTemperature() *ChatModelClient {
	cp := *c
	cp.noTemperature = true
	return &cp
}

// Complete sends prompt as a single user message.
func (c *ChatModelClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	var callOpts []model.Option
	if opts.Temperature > 0 && !c.noTemperature {
		callOpts = append(callOpts, model.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, model.WithMaxTokens(opts.MaxTokens))
	}

	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm: %s generate: %w", c.name, Classify(err))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("llm: %s generate: %w", c.name, ErrMalformedResponse)
	}
	return msg.Content, nil
}
