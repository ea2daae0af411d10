package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		overloaded bool
		quota      bool
		status     int
	}{
		{name: "genai 503", err: fmt.Errorf("wrap: %w", genai.APIError{Code: 503, Message: "overloaded"}), overloaded: true, status: 503},
		{name: "genai 429", err: genai.APIError{Code: 429}, quota: true, status: 429},
		{name: "genai 400", err: genai.APIError{Code: 400}, status: 400},
		{name: "openai style text", err: errors.New("error, status code: 429, message: slow down"), quota: true, status: 429},
		{name: "http text 503", err: errors.New("HTTP 503 Service Unavailable"), overloaded: true, status: 503},
		{name: "grpc unavailable", err: errors.New("rpc error: code = UNAVAILABLE"), overloaded: true, status: 503},
		{name: "resource exhausted", err: errors.New("RESOURCE_EXHAUSTED: quota"), quota: true, status: 429},
		{name: "transport", err: errors.New("dial tcp: connection refused")},
		{name: "status error passthrough", err: &StatusError{Code: 500}, status: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.err)
			assert.Equal(t, tt.overloaded, errors.Is(got, ErrOverloaded))
			assert.Equal(t, tt.quota, errors.Is(got, ErrQuotaExceeded))

			var se *StatusError
			if tt.status == 0 {
				assert.False(t, errors.As(got, &se), "unexpected status error %v", got)
				return
			}
			require.True(t, errors.As(got, &se))
			assert.Equal(t, tt.status, se.Code)
		})
	}
}

func TestClassify_ContextErrorsUntouched(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, Classify(context.Canceled), context.Canceled)
	assert.Nil(t, Classify(nil))
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "llm: backend returned HTTP 500", (&StatusError{Code: http.StatusInternalServerError}).Error())
	assert.Contains(t, (&StatusError{Code: 400, Message: "bad"}).Error(), "bad")
}

// fakeChatModel implements model.BaseChatModel for adapter tests.
type fakeChatModel struct {
	reply *schema.Message
	err   error
	opts  *model.Options
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.opts = model.GetCommonOptions(nil, opts...)
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatModelClient_Complete(t *testing.T) {
	t.Parallel()

	fm := &fakeChatModel{reply: schema.AssistantMessage("answer", nil)}
	c, err := NewChatModelClient(fm, "fake")
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "prompt", Options{Temperature: 0.3, MaxTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	require.NotNil(t, fm.opts.Temperature)
	assert.InDelta(t, 0.3, *fm.opts.Temperature, 1e-6)
	require.NotNil(t, fm.opts.MaxTokens)
	assert.Equal(t, 2000, *fm.opts.MaxTokens)
}

func TestChatModelClient_EmptyContentIsMalformed(t *testing.T) {
	t.Parallel()

	c, err := NewChatModelClient(&fakeChatModel{reply: schema.AssistantMessage("  ", nil)}, "fake")
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestChatModelClient_ClassifiesErrors(t *testing.T) {
	t.Parallel()

	c, err := NewChatModelClient(&fakeChatModel{err: genai.APIError{Code: 503}}, "fake")
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, ErrOverloaded)
}

func TestNewChatModelClient_Nil(t *testing.T) {
	t.Parallel()
	_, err := NewChatModelClient(nil, "x")
	assert.Error(t, err)
}

func TestChatModelClient_WithoutTemperature(t *testing.T) {
	t.Parallel()

	fm := &fakeChatModel{reply: schema.AssistantMessage("ok", nil)}
	c, err := NewChatModelClient(fm, "fake")
	require.NoError(t, err)

	_, err = c.WithoutTemperature().Complete(context.Background(), "prompt", Options{Temperature: 0.2, MaxTokens: 10})
	require.NoError(t, err)
	assert.Nil(t, fm.opts.Temperature)
	require.NotNil(t, fm.opts.MaxTokens)
	assert.Equal(t, 10, *fm.opts.MaxTokens)
}
