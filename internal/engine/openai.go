package engine

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/riddleling/macocr/internal/imaging"
)

// OpenAIEngine implements Engine against an OpenAI-compatible vision
// chat endpoint.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an OpenAI-backed OCR engine. baseURL may be
// empty for the public API or point at a compatible proxy.
func NewOpenAIEngine(apiKey, baseURL, model string) *OpenAIEngine {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

// Recognize submits the image as a data URL with the shared OCR prompt
// and parses the returned line records.
func (e *OpenAIEngine) Recognize(ctx context.Context, data []byte) ([]Observation, error) {
	mime := imaging.SniffMime(data)
	if mime == "" {
		mime = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: visionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return parseLineRecords(resp.Choices[0].Message.Content)
}
