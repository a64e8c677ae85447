package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/riddleling/macocr/internal/imaging"
)

// GeminiEngine implements Engine against the Google Gemini vision API.
type GeminiEngine struct {
	apiKey string
	model  string
}

// NewGeminiEngine creates a Gemini-backed OCR engine.
func NewGeminiEngine(apiKey, model string) *GeminiEngine {
	return &GeminiEngine{
		apiKey: apiKey,
		model:  model,
	}
}

func (e *GeminiEngine) Name() string { return "gemini" }

// Recognize submits the image with the shared OCR prompt and parses the
// returned line records.
func (e *GeminiEngine) Recognize(ctx context.Context, data []byte) ([]Observation, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(e.model)
	model.SetTemperature(0.1)

	resp, err := model.GenerateContent(ctx,
		genai.ImageData(imageFormat(data), data),
		genai.Text(visionPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	return parseLineRecords(sb.String())
}

// imageFormat maps sniffed content to the genai format token ("png",
// "jpeg", ...). Unknown content falls back to png; the API tolerates a
// wrong label better than a missing one.
func imageFormat(data []byte) string {
	mime := imaging.SniffMime(data)
	if format, ok := strings.CutPrefix(mime, "image/"); ok && format != "" {
		return format
	}
	return "png"
}
