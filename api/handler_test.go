package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddleling/macocr/internal/engine"
	"github.com/riddleling/macocr/internal/models"
	"github.com/riddleling/macocr/internal/ocr"
	"github.com/riddleling/macocr/internal/uploads"
)

type stubEngine struct {
	obs []engine.Observation
	err error
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(ctx context.Context, data []byte) ([]engine.Observation, error) {
	return s.obs, s.err
}

func lineObservation(text string) engine.Observation {
	return engine.Observation{
		Text:        text,
		TopLeft:     engine.Point{X: 0, Y: 1},
		TopRight:    engine.Point{X: 1, Y: 1},
		BottomRight: engine.Point{X: 1, Y: 0.9},
		BottomLeft:  engine.Point{X: 0, Y: 0.9},
	}
}

func newTestHandler(t *testing.T, eng engine.Engine) (*Handler, *uploads.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := uploads.NewStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	assembler := ocr.NewAssembler(eng, logger)
	return NewHandler(assembler, store, eng.Name(), logger), store
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func doUpload(h *Handler, body io.Reader, contentType, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestUploadJSONSuccess(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{obs: []engine.Observation{lineObservation("hello world")}})
	body, contentType := multipartBody(t, "scan.png", encodePNG(t, 100, 200))

	rec := doUpload(h, body, contentType, "application/json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "File uploaded successfully", resp.Message)
	assert.Equal(t, "hello world\n", resp.OCRResult)
	assert.Equal(t, uint32(100), resp.ImageWidth)
	assert.Equal(t, uint32(200), resp.ImageHeight)
	require.Len(t, resp.OCRBoxes, 1)
	assert.Equal(t, "hello world", resp.OCRBoxes[0].Text)
	assert.InDelta(t, 0, resp.OCRBoxes[0].Y, 1e-9)
	assert.InDelta(t, 100, resp.OCRBoxes[0].W, 1e-9)
	assert.InDelta(t, 20, resp.OCRBoxes[0].H, 1e-9)
}

func TestUploadHTMLSuccessEscapesTranscript(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{obs: []engine.Observation{lineObservation("a<b & c>d")}})
	body, contentType := multipartBody(t, "scan.png", encodePNG(t, 10, 10))

	rec := doUpload(h, body, contentType, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<title>OCR Result</title>")
	assert.Contains(t, rec.Body.String(), "OCR Result:")
	assert.Contains(t, rec.Body.String(), "a&lt;b &amp; c&gt;d")
	assert.NotContains(t, rec.Body.String(), "a<b")
}

func TestUploadNonImage(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{obs: []engine.Observation{lineObservation("never reached")}})
	body, contentType := multipartBody(t, "notes.txt", []byte("just some plain text"))

	rec := doUpload(h, body, contentType, "application/json")

	// A non-image upload is a successful request, not an HTTP error.
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "The file type is not an image", resp.Message)
	assert.Empty(t, resp.OCRResult)
	assert.Empty(t, resp.OCRBoxes)
}

func TestUploadNoField(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	for _, accept := range []string{"application/json", ""} {
		rec := doUpload(h, bytes.NewReader(body.Bytes()), writer.FormDataContentType(), accept)
		assert.Equal(t, http.StatusOK, rec.Code)

		if accept == "application/json" {
			var resp models.UploadResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, "No file received", resp.Message)
		} else {
			assert.Contains(t, rec.Body.String(), "No file received")
		}
	}
}

func TestUploadEmptyField(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})
	body, contentType := multipartBody(t, "empty.png", nil)

	rec := doUpload(h, body, contentType, "application/json")

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "No file received", resp.Message)
}

func TestUploadNotMultipart(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})

	rec := doUpload(h, strings.NewReader("{}"), "application/json", "application/json")

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "No file received", resp.Message)
}

func TestUploadBodyTooLarge(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})
	body, contentType := multipartBody(t, "scan.png", encodePNG(t, 4, 4))

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.ContentLength = MaxUploadSize + 1
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// zeroReader yields zero bytes forever; tests cap it with LimitReader.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestUploadBodyTooLargeChunked(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})

	// A streamed body with no declared length dodges the ContentLength
	// check; the limit must still reject it with 413.
	const boundary = "streamedupload"
	head := "--" + boundary + "\r\n" +
		`Content-Disposition: form-data; name="file"; filename="big.png"` + "\r\n" +
		"Content-Type: application/octet-stream\r\n\r\n"
	tail := "\r\n--" + boundary + "--\r\n"
	body := io.MultiReader(
		strings.NewReader(head),
		io.LimitReader(zeroReader{}, MaxUploadSize+1),
		strings.NewReader(tail),
	)

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("Accept", "application/json")
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Request body too large", resp.Message)
}

func TestUploadErrorPageTitle(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})
	body, contentType := multipartBody(t, "notes.txt", []byte("just some plain text"))

	rec := doUpload(h, body, contentType, "")

	assert.Contains(t, rec.Body.String(), "<title>Error</title>")
}

func TestUploadUsesFirstFieldOnly(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{obs: []engine.Observation{lineObservation("image text")}})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	first, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = first.Write([]byte("not an image"))
	require.NoError(t, err)
	second, err := writer.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	_, err = second.Write(encodePNG(t, 10, 10))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := doUpload(h, &body, writer.FormDataContentType(), "application/json")

	// Only the first field counts; the image in the second is ignored.
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "The file type is not an image", resp.Message)
}

func TestUploadPersistsFile(t *testing.T) {
	h, store := newTestHandler(t, &stubEngine{obs: []engine.Observation{lineObservation("x")}})
	body, contentType := multipartBody(t, "scan.png", encodePNG(t, 8, 8))

	doUpload(h, body, contentType, "application/json")

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".png", filepath.Ext(entries[0].Name()))
}

func TestUploadEngineFailureStillSucceeds(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{err: assert.AnError})
	body, contentType := multipartBody(t, "scan.png", encodePNG(t, 10, 10))

	rec := doUpload(h, body, contentType, "application/json")

	// Engine failure collapses to "no text found".
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.OCRResult)
	assert.Empty(t, resp.OCRBoxes)
	assert.Equal(t, uint32(10), resp.ImageWidth)
}

func TestShowForm(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "macocr v"+Version)
	assert.Contains(t, rec.Body.String(), `action="/upload"`)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &stubEngine{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.Equal(t, "stub", resp.Engine)
}

func TestDirWritableConcurrent(t *testing.T) {
	dir := t.TempDir()

	// Overlapping probes must not trip over each other's files.
	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = dirWritable(dir)
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
