package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/medgrove/medai-web-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI is a direct provider for OpenAI-compatible chat-completion
// endpoints, dispatched from config the same way as the Ollama provider.
type OpenAI struct {
	model        string
	systemPrompt string

	client *goopenai.Client
}

// NewOpenAI creates a new OpenAI provider with the specified API key, base
// URL, model name, and system prompt. An empty baseURL uses the default
// OpenAI endpoint.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		client:       goopenai.NewClientWithConfig(cfg),
	}
}

// Chat sends the user's message through the chat-completion API and returns
// the first choice as the reply text.
func (o OpenAI) Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: o.systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Message},
		},
	})
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.ChatReply{}, errors.New("no choices found")
	}

	return models.ChatReply{Response: resp.Choices[0].Message.Content}, nil
}
