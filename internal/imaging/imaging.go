// Package imaging provides content-based image detection and best-effort
// dimension probing for uploaded files.
package imaging

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// IsImage reports whether data starts with the magic bytes of a known
// raster image format. Detection is content-based: uploaded files carry
// randomized names whose extensions may not reflect the true content.
func IsImage(data []byte) bool {
	return SniffMime(data) != ""
}

// SniffMime detects the image MIME type from leading magic bytes.
// Returns "" for unrecognized or truncated content.
func SniffMime(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: little-endian or big-endian byte order mark
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	return ""
}

// Dimensions decodes just enough of data to obtain the pixel width and
// height. Dimensions are best-effort metadata, not a correctness gate:
// any decode failure yields (0, 0).
func Dimensions(data []byte) (width, height uint32) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width < 0 || cfg.Height < 0 {
		return 0, 0
	}
	return uint32(cfg.Width), uint32(cfg.Height)
}
