package summarize

import (
	"context"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Supported target languages.
var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
}

// SupportedLanguage reports whether lang is a known target language code.
func SupportedLanguage(lang string) bool {
	_, ok := languageNames[strings.ToLower(lang)]
	return ok
}

// Translate renders the summary into the target language. Translation is
// best effort: English input passes through, and any provider failure
// returns the original text untranslated.
func (s *Service) Translate(ctx context.Context, text, lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == "en" {
		return text
	}

	name, ok := languageNames[lang]
	if !ok {
		slog.Warn("unsupported translation language, keeping original", "language", lang)
		return text
	}
	if s.chat == nil {
		return text
	}

	resp, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a translator. Translate the user's text into " + name +
					". Preserve all markdown formatting. Respond with the translation only.",
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
	})
	if err != nil {
		slog.Warn("translation failed, keeping original", "language", lang, "error", err)
		return text
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		slog.Warn("translation returned empty completion, keeping original", "language", lang)
		return text
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
