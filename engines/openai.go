package engines

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"zexplorer/core"
)

// openaiBackend talks to an OpenAI-compatible chat completion endpoint
// (OpenAI itself, or a local server such as Ollama or llama-server).
type openaiBackend struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func newOpenAIBackend(cfg *core.Config, logger *zap.Logger) (*openaiBackend, error) {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientCfg.BaseURL = cfg.LLMBaseURL
	}

	model := cfg.LLMModelName
	if model == "" {
		model = openai.GPT4oMini
	}

	logger.Info("using OpenAI-compatible text backend",
		zap.String("base_url", clientCfg.BaseURL),
		zap.String("model", model),
	)
	return &openaiBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}, nil
}

func (b *openaiBackend) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     b.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("engines: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("engines: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// close is a no-op: the HTTP client holds no model memory. It exists so the
// residency manager can treat both backends uniformly.
func (b *openaiBackend) close() error {
	return nil
}
