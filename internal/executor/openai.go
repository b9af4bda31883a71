// ABOUTME: OpenAI-compatible Executor implementation built on the eino chat model
// ABOUTME: Supports openai, deepseek, and any compatible endpoint via base_url

package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/2389/taskdesk/internal/config"
)

// ChatModelExecutor implements Executor using an OpenAI-compatible chat model.
type ChatModelExecutor struct {
	model  model.BaseChatModel
	name   string
	logger *slog.Logger
}

// NewChatModelExecutor creates an executor from the configured provider.
func NewChatModelExecutor(ctx context.Context, cfg config.ExecutorConfig) (*ChatModelExecutor, error) {
	chatConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "openai":
			baseURL = "https://api.openai.com/v1"
		case "deepseek":
			baseURL = "https://api.deepseek.com/v1"
		}
	}
	if baseURL != "" {
		chatConfig.BaseURL = baseURL
	}

	if cfg.Temperature != nil {
		chatConfig.Temperature = cfg.Temperature
	}

	cm, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}

	return &ChatModelExecutor{
		model:  cm,
		name:   cfg.Model,
		logger: slog.Default().With("component", "executor"),
	}, nil
}

// Invoke sends one system + user exchange and returns the response text.
func (e *ChatModelExecutor) Invoke(ctx context.Context, systemInstruction, userInstruction string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemInstruction),
		schema.UserMessage(userInstruction),
	}

	resp, err := e.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	e.logger.Debug("model responded", "model", e.name, "chars", len(resp.Content))
	return resp.Content, nil
}
