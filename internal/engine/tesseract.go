package engine

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/riddleling/macocr/internal/imaging"
)

// TesseractEngine implements Engine using the gosseract client as the
// local OCR provider. Tesseract reports line boxes in pixel space with a
// top-left origin; they are normalized into the unit square (y flipped)
// to satisfy the Engine contract.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine with the
// given language hints (e.g. "eng", "deu"). Empty means Tesseract's
// default language.
func NewTesseractEngine(languages []string) *TesseractEngine {
	return &TesseractEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize performs OCR on a single encoded image.
func (e *TesseractEngine) Recognize(ctx context.Context, data []byte) ([]Observation, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	width, height := imaging.Dimensions(data)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("cannot determine image dimensions for box normalization")
	}
	w := float64(width)
	h := float64(height)

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text lines: %w", err)
	}

	obs := make([]Observation, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		minX := float64(b.Box.Min.X) / w
		maxX := float64(b.Box.Max.X) / w
		// Flip to bottom-left origin: pixel row 0 is normalized y=1.
		topY := 1 - float64(b.Box.Min.Y)/h
		botY := 1 - float64(b.Box.Max.Y)/h

		obs = append(obs, Observation{
			Text:        b.Word,
			Confidence:  b.Confidence / 100.0,
			TopLeft:     Point{minX, topY},
			TopRight:    Point{maxX, topY},
			BottomRight: Point{maxX, botY},
			BottomLeft:  Point{minX, botY},
		})
	}
	return obs, nil
}
