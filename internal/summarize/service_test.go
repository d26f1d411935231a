package summarize

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	requests []openai.ChatCompletionRequest
	content  string
	err      error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestNormalizeLength(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", LengthShort},
		{"brief", LengthShort},
		{"medium", LengthMedium},
		{"median", LengthMedium},
		{"summary", LengthMedium},
		{"full", LengthFull},
		{"detailed", LengthFull},
		{"FULL", LengthFull},
		{"", LengthMedium},
		{"nonsense", LengthMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLength(tt.in), "input %q", tt.in)
	}
}

func TestTokenBudgetsIncreaseWithLength(t *testing.T) {
	assert.Less(t, TokenBudget(LengthShort), TokenBudget(LengthMedium))
	assert.Less(t, TokenBudget(LengthMedium), TokenBudget(LengthFull))
}

func TestSummarize_UsesLengthBudget(t *testing.T) {
	chat := &fakeChat{content: "a summary"}
	svc := NewService(chat, "test-model")

	out, err := svc.Summarize(context.Background(), "document text", "full")
	require.NoError(t, err)
	assert.Equal(t, "a summary", out)

	require.Len(t, chat.requests, 1)
	assert.Equal(t, TokenBudget(LengthFull), chat.requests[0].MaxTokens)
	assert.Equal(t, "test-model", chat.requests[0].Model)
}

func TestSummarize_NotConfigured(t *testing.T) {
	svc := NewService(nil, "test-model")

	_, err := svc.Summarize(context.Background(), "text", "short")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSummarize_EmptyCompletion(t *testing.T) {
	chat := &fakeChat{content: "   "}
	svc := NewService(chat, "test-model")

	_, err := svc.Summarize(context.Background(), "text", "short")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestSummarize_ClassifiesProviderErrors(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{"status code 401: invalid api key provided", ErrInvalidAPIKey},
		{"you exceeded your current quota", ErrQuotaExceeded},
		{"status code 429: rate limit reached", ErrQuotaExceeded},
	}
	for _, tt := range tests {
		chat := &fakeChat{err: errors.New(tt.raw)}
		svc := NewService(chat, "test-model")

		_, err := svc.Summarize(context.Background(), "text", "short")
		assert.ErrorIs(t, err, tt.want, "raw error %q", tt.raw)
	}
}

func TestTranslate_EnglishPassesThrough(t *testing.T) {
	chat := &fakeChat{content: "should not be used"}
	svc := NewService(chat, "test-model")

	out := svc.Translate(context.Background(), "**Hello** world", "en")
	assert.Equal(t, "**Hello** world", out)
	assert.Empty(t, chat.requests)
}

func TestTranslate_FailureReturnsOriginal(t *testing.T) {
	chat := &fakeChat{err: errors.New("provider down")}
	svc := NewService(chat, "test-model")

	out := svc.Translate(context.Background(), "original text", "fr")
	assert.Equal(t, "original text", out)
}

func TestTranslate_UnsupportedLanguageReturnsOriginal(t *testing.T) {
	chat := &fakeChat{content: "translated"}
	svc := NewService(chat, "test-model")

	out := svc.Translate(context.Background(), "original", "de")
	assert.Equal(t, "original", out)
	assert.Empty(t, chat.requests)
}

func TestTranslate_Success(t *testing.T) {
	chat := &fakeChat{content: "Bonjour le monde"}
	svc := NewService(chat, "test-model")

	out := svc.Translate(context.Background(), "Hello world", "fr")
	assert.Equal(t, "Bonjour le monde", out)
}
