package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"study-assistant/internal/config"
)

var errNoChoices = errors.New("model returned no choices")

// ChatModel is the slice of llms.Model the assistant needs.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewChatModel creates the chat-completion client for the configured provider
func NewChatModel(llmConfig *config.LLMConfig) (ChatModel, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating chat model")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", llmConfig.Provider)
	}
}

// GenerateContent sends prompt as a single human message and returns the first choice.
func GenerateContent(ctx context.Context, model ChatModel, prompt string) (string, error) {
	msgContent := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := model.GenerateContent(ctx, msgContent)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", errNoChoices
	}
	return res.Choices[0].Content, nil
}
