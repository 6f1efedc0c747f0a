package services

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeBackend: backend nhanh, chất lượng cao cho lượt sinh đầu tiên
type ClaudeBackend struct {
	client anthropic.Client
	model  string
}

func NewClaudeBackend() *ClaudeBackend {
	model := os.Getenv("CLAUDE_MODEL")
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &ClaudeBackend{
		client: anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY"))),
		model:  model,
	}
}

func (b *ClaudeBackend) Name() string { return "claude" }

func (b *ClaudeBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	// Prefill "{" ở lượt assistant để ép model trả thẳng JSON,
	// không kèm lời dẫn hay rào markdown
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		return "", fmt.Errorf("lỗi Claude xử lý: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			// Ghép lại dấu "{" đã prefill
			return "{" + block.Text, nil
		}
	}
	return "", fmt.Errorf("claude không trả kết quả hợp lệ")
}
