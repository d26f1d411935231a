package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Summary lengths.
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthFull   = "full"
)

// Completion token budgets per summary length.
var tokenBudgets = map[string]int{
	LengthShort:  150,
	LengthMedium: 400,
	LengthFull:   800,
}

var lengthInstructions = map[string]string{
	LengthShort:  "Write a concise summary of 2-3 sentences capturing only the most essential points.",
	LengthMedium: "Write a summary of 1-2 paragraphs covering the main points and key supporting details.",
	LengthFull:   "Write a thorough summary covering all significant points, structured into clear paragraphs.",
}

// Provider failure classes surfaced to clients.
var (
	ErrNotConfigured   = errors.New("summarization provider is not configured")
	ErrInvalidAPIKey   = errors.New("summarization provider rejected the API key")
	ErrQuotaExceeded   = errors.New("summarization provider quota exceeded")
	ErrEmptyCompletion = errors.New("summarization provider returned an empty completion")
)

// ChatClient is the chat completion surface the service needs.
// *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service produces document summaries via chat completions.
type Service struct {
	chat  ChatClient
	model string
}

// NewService creates a summarization Service. chat may be nil when no
// provider key is configured; Summarize then fails with ErrNotConfigured.
func NewService(chat ChatClient, model string) *Service {
	return &Service{chat: chat, model: model}
}

// NormalizeLength maps request aliases onto a canonical summary length.
func NormalizeLength(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LengthShort, "brief":
		return LengthShort
	case LengthFull, "long", "detailed":
		return LengthFull
	case LengthMedium, "median", "summary", "":
		return LengthMedium
	default:
		return LengthMedium
	}
}

// TokenBudget returns the completion token cap for a canonical length.
func TokenBudget(length string) int {
	if budget, ok := tokenBudgets[length]; ok {
		return budget
	}
	return tokenBudgets[LengthMedium]
}

const systemPrompt = "You are a document summarizer. Summarize the provided document text. " +
	"Use **bold** markdown to highlight the most important terms and figures. " +
	"Respond with the summary only, no preamble."

// Summarize generates a summary of the given length for the document text.
func (s *Service) Summarize(ctx context.Context, text, length string) (string, error) {
	if s.chat == nil {
		return "", ErrNotConfigured
	}

	length = NormalizeLength(length)

	resp, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: lengthInstructions[length] + "\n\nDocument:\n" + text},
		},
		MaxTokens:   TokenBudget(length),
		Temperature: 0.7,
	})
	if err != nil {
		return "", classifyProviderError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyProviderError maps raw provider failures onto stable error classes
// so handlers can choose status codes without string matching.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("summarizing document: %w", err)
	}
}
