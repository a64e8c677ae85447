// Package engine defines the pluggable OCR capability and its backends.
//
// An Engine turns raw image bytes into text observations. Observations
// carry quadrilateral corners in normalized unit-square coordinates with
// the origin at the bottom-left and y increasing upward, independent of
// the actual pixel resolution. Downstream code maps them into pixel
// space (see internal/ocr).
package engine

import (
	"context"
	"fmt"

	"github.com/riddleling/macocr/internal/models"
)

// Point is a position in the normalized unit square.
type Point struct {
	X float64
	Y float64
}

// Observation is one detected line of text with its normalized corner
// geometry, as emitted by the recognition engine.
type Observation struct {
	Text       string
	Confidence float64

	// Corners in normalized coordinates, origin bottom-left, y-up.
	TopLeft     Point
	TopRight    Point
	BottomRight Point
	BottomLeft  Point
}

// Engine is the OCR provider contract: image bytes in, one observation
// per detected text line out. Implementations must be safe for
// concurrent use by multiple goroutines.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, data []byte) ([]Observation, error)
}

// FullFrame returns corners spanning the whole unit square. Used when a
// backend can read text but cannot localize it.
func FullFrame() (tl, tr, br, bl Point) {
	return Point{0, 1}, Point{1, 1}, Point{1, 0}, Point{0, 0}
}

// New creates the engine selected by cfg.Engine. An empty engine name
// selects tesseract.
func New(cfg models.OCRConfig) (Engine, error) {
	switch cfg.Engine {
	case "", "tesseract":
		return NewTesseractEngine(cfg.Languages), nil

	case "gemini":
		model := cfg.Gemini.Model
		if model == "" {
			model = "gemini-1.5-flash"
		}
		return NewGeminiEngine(cfg.Gemini.APIKey, model), nil

	case "openai":
		model := cfg.OpenAI.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, model), nil

	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", cfg.Engine)
	}
}
