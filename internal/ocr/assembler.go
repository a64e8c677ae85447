package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/riddleling/macocr/internal/engine"
	"github.com/riddleling/macocr/internal/imaging"
	"github.com/riddleling/macocr/internal/models"
)

// Assembler composes the dimension probe, the recognition engine and the
// coordinate mapper into full OCR results.
type Assembler struct {
	engine engine.Engine
	logger *logrus.Logger
}

// NewAssembler creates an assembler around the given engine. logger may
// be nil; the standard logrus logger is used then.
func NewAssembler(eng engine.Engine, logger *logrus.Logger) *Assembler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assembler{
		engine: eng,
		logger: logger,
	}
}

// AssembleFile reads path once and assembles an OCR result from its
// contents. It fails only if the read fails; recognition problems are
// absorbed by Assemble.
func (a *Assembler) AssembleFile(ctx context.Context, path string) (*models.OCRResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return a.Assemble(ctx, data), nil
}

// Assemble runs recognition over the image bytes and maps every
// observation into pixel space. An engine failure is deliberately
// treated like "no text found": the caller gets an empty result, and
// the failure is only logged. Zero observations likewise yield a result
// with empty text and no boxes.
func (a *Assembler) Assemble(ctx context.Context, data []byte) *models.OCRResult {
	width, height := imaging.Dimensions(data)
	if width == 0 || height == 0 {
		a.logger.Debug("dimension probe failed, boxes will collapse to origin")
	}

	observations, err := a.engine.Recognize(ctx, data)
	if err != nil {
		a.logger.WithError(err).WithField("engine", a.engine.Name()).
			Warn("recognition failed, returning empty result")
		observations = nil
	}

	var text strings.Builder
	boxes := make([]models.OCRBoxItem, 0, len(observations))
	for _, obs := range observations {
		text.WriteString(obs.Text)
		text.WriteString("\n")

		box := BoxFromObservation(obs, width, height)
		boxes = append(boxes, models.OCRBoxItem{
			Text: obs.Text,
			X:    box.X,
			Y:    box.Y,
			W:    box.W,
			H:    box.H,
		})
	}

	return &models.OCRResult{
		Text:        text.String(),
		ImageWidth:  width,
		ImageHeight: height,
		Boxes:       boxes,
	}
}
