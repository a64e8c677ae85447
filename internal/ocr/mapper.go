// Package ocr assembles engine observations into pixel-space OCR results.
package ocr

import (
	"math"

	"github.com/riddleling/macocr/internal/engine"
)

// BoundingBox is an axis-aligned rectangle in pixel space with the
// origin at the image's top-left corner, y increasing downward. X and Y
// are the minimum corner coordinates; W and H are never negative.
type BoundingBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// BoxFromObservation maps an observation's normalized bottom-left-origin
// corners into a pixel-space bounding box:
//
//  1. Each corner's x is scaled by width; y maps via (1 - ny) * height,
//     flipping to top-left-origin, y-down pixel space.
//  2. The axis-aligned box enclosing the four transformed corners is
//     returned. For rotated text this encloses more than the visible
//     glyph region; that is an accepted approximation.
//
// Zero width/height (dimension probe failed) collapses every box to a
// zero-area box at the origin; the text is unaffected.
func BoxFromObservation(obs engine.Observation, width, height uint32) BoundingBox {
	w := float64(width)
	h := float64(height)

	corners := [4]engine.Point{obs.TopLeft, obs.TopRight, obs.BottomRight, obs.BottomLeft}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		px := c.X * w
		py := (1 - c.Y) * h
		minX = math.Min(minX, px)
		maxX = math.Max(maxX, px)
		minY = math.Min(minY, py)
		maxY = math.Max(maxY, py)
	}

	return BoundingBox{
		X: minX,
		Y: minY,
		W: maxX - minX,
		H: maxY - minY,
	}
}
