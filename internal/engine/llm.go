package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Vision-LLM backends share one prompt and one response format: a strict
// JSON array of line records with normalized top-left-origin geometry,
// which is what vision models reason about most reliably. Records are
// converted to the Engine contract (bottom-left-origin corners) here.

const visionPrompt = `You are an OCR engine. Read every line of text in the image, top to bottom.

Return ONLY a JSON array (no markdown, no comments). One object per text line:
[{"text": "the exact characters of the line", "x": 0.1, "y": 0.2, "w": 0.5, "h": 0.05}]

x, y, w, h describe the line's bounding box in NORMALIZED coordinates
(0.0 - 1.0 of image width/height), with x, y the top-left corner of the
box measured from the image's top-left corner. If you cannot estimate a
box, omit the x/y/w/h keys but keep the text. Transcribe exactly; never
invent text.`

type lineRecord struct {
	Text string   `json:"text"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	W    *float64 `json:"w"`
	H    *float64 `json:"h"`
}

// parseLineRecords decodes a model response into observations. The
// response may be wrapped in markdown fences or prose; the first JSON
// array found is used. Records with unusable geometry degrade to
// full-frame corners rather than being dropped.
func parseLineRecords(response string) ([]Observation, error) {
	raw := extractJSONArray(response)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in model response")
	}

	var records []lineRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	obs := make([]Observation, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		o := Observation{Text: rec.Text}
		o.TopLeft, o.TopRight, o.BottomRight, o.BottomLeft = recordCorners(rec)
		obs = append(obs, o)
	}
	return obs, nil
}

// recordCorners converts a top-left-origin normalized box into
// bottom-left-origin corners, clamped to the unit square.
func recordCorners(rec lineRecord) (tl, tr, br, bl Point) {
	if rec.X == nil || rec.Y == nil || rec.W == nil || rec.H == nil {
		return FullFrame()
	}
	x := clamp01(*rec.X)
	y := clamp01(*rec.Y)
	w := clamp01(*rec.W)
	h := clamp01(*rec.H)
	if w == 0 || h == 0 {
		return FullFrame()
	}
	right := clamp01(x + w)
	top := clamp01(1 - y)
	bottom := clamp01(1 - y - h)

	return Point{x, top}, Point{right, top}, Point{right, bottom}, Point{x, bottom}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractJSONArray returns the outermost JSON array in s, tolerating
// markdown fences and surrounding prose.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
