package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/medgrove/medai-web-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama is a direct provider for deployments that point the chat surface
// straight at a local Ollama server instead of the MedAI HTTP relay. Replies
// carry only response text; intent and confidence stay zero because no
// classifier runs in this mode.
type Ollama struct {
	host         string
	model        string
	systemPrompt string

	client *api.Client
}

// NewOllama creates a new Ollama provider for the given host URL and model
// name. If the provided host URL is invalid, the function returns an error.
func NewOllama(host, model, systemPrompt string) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:         host,
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
	}, nil
}

// Chat sends the user's message to the Ollama model and collects the full
// reply. The safety gate has already run by the time this is called, so the
// provider never sets the emergency flag itself.
func (o Ollama) Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	msgs := []api.Message{
		{Role: "system", Content: o.systemPrompt},
		{Role: "user", Content: req.Message},
	}

	stream := false
	chatReq := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}

	var text string
	err := o.client.Chat(ctx, &chatReq, func(res api.ChatResponse) error {
		text += res.Message.Content
		return nil
	})
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("error sending request: %w", err)
	}

	return models.ChatReply{Response: text}, nil
}
