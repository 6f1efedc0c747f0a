package services

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// DeepSeekBackend: backend rẻ cho các lượt sinh thêm, gọi qua API
// tương thích OpenAI
type DeepSeekBackend struct {
	client *openai.Client
	model  string
}

func NewDeepSeekBackend() *DeepSeekBackend {
	cfg := openai.DefaultConfig(os.Getenv("DEEPSEEK_API_KEY"))
	cfg.BaseURL = "https://api.deepseek.com/v1"

	model := os.Getenv("DEEPSEEK_MODEL")
	if model == "" {
		model = "deepseek-chat"
	}
	return &DeepSeekBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (b *DeepSeekBackend) Name() string { return "deepseek" }

func (b *DeepSeekBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("lỗi DeepSeek xử lý: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek không trả kết quả hợp lệ")
	}
	return resp.Choices[0].Message.Content, nil
}
