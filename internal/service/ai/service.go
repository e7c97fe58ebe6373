// Package ai 通过 eino 链路把 Ark 大模型封装成面板的生成能力。
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/ctwww/cword/internal/config"
)

// Service implements the panel's generation capability over an eino chain.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the chat model from configuration and compiles the
// prompt chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	// 协调器已经把身份、历史与阶段指令拼进完整提示词，这里按单条
	// 用户消息透传。
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// Generate produces one completion for the prompt. maxTokens/temperature
// override the model defaults for this call when positive.
func (s *Service) Generate(ctx context.Context, promptText string, maxTokens int, temperature float32) (string, error) {
	var opts []model.Option
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}
	if temperature > 0 {
		opts = append(opts, model.WithTemperature(temperature))
	}

	response, err := s.chain.Invoke(ctx,
		map[string]any{"prompt": promptText},
		compose.WithChatModelOption(opts...),
	)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated completion, length=%d", len(response.Content))
	return response.Content, nil
}
