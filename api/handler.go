// Package api exposes the OCR pipeline over HTTP: an upload form, a
// multipart upload endpoint with JSON/HTML content negotiation, and a
// health check.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/riddleling/macocr/internal/imaging"
	"github.com/riddleling/macocr/internal/models"
	"github.com/riddleling/macocr/internal/ocr"
	"github.com/riddleling/macocr/internal/uploads"
)

const (
	// MaxUploadSize caps request bodies before any processing begins.
	MaxUploadSize = 100 * 1024 * 1024 // 100 MiB

	Version = "0.4.0"
)

var startTime = time.Now()

// Handler handles HTTP requests for OCR processing
type Handler struct {
	assembler  *ocr.Assembler
	store      *uploads.Store
	engineName string
	logger     *logrus.Logger
}

// NewHandler creates a new API handler
func NewHandler(assembler *ocr.Assembler, store *uploads.Store, engineName string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		assembler:  assembler,
		store:      store,
		engineName: engineName,
		logger:     logger,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/", h.ShowForm).Methods("GET")
	router.HandleFunc("/upload", h.Upload).Methods("POST")
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// ShowForm serves the file upload form.
func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>macocr</title>
</head>
<body>
    <h1>macocr v%s</h1>
    <form action="/upload" method="post" enctype="multipart/form-data">
        <label>
            Choose file:
            <input type="file" name="file" required>
        </label>
        <br><br>
        <input type="submit" value="Upload file">
    </form>
</body>
</html>
`, Version)
}

// uploadOutcome is the canonical result of one upload request. Every
// exit of the pipeline produces one outcome; a single render step then
// dispatches on the negotiated content type.
type uploadOutcome struct {
	Success bool
	Title   string
	Message string
	Result  *models.OCRResult
}

func failure(message string) uploadOutcome {
	return uploadOutcome{
		Title:   "❌ " + message,
		Message: message,
	}
}

// Upload handles a single-file multipart upload. Pipeline per request:
// receive the first field, persist under a random name, classify,
// recognize, respond. A non-image upload is a successful request with
// success:false, not an HTTP error.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

	if r.ContentLength > MaxUploadSize {
		h.render(w, wantsJSON, http.StatusRequestEntityTooLarge, failure("Request body too large"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	outcome, status := h.processUpload(r)
	h.render(w, wantsJSON, status, outcome)
}

// processUpload runs the upload pipeline and produces one outcome plus
// the HTTP status to render it with. Only an oversized body escalates
// beyond 200; pipeline failures are successful requests.
func (h *Handler) processUpload(r *http.Request) (uploadOutcome, int) {
	reader, err := r.MultipartReader()
	if err != nil {
		return failure("No file received"), http.StatusOK
	}

	// Only the first field counts; subsequent fields are ignored.
	part, err := reader.NextPart()
	if err != nil {
		return failure("No file received"), http.StatusOK
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		// A body with unknown length dodges the ContentLength check and
		// trips MaxBytesReader here instead; it still gets the 413.
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return failure("Request body too large"), http.StatusRequestEntityTooLarge
		}
		return failure("No file received"), http.StatusOK
	}
	if len(data) == 0 {
		return failure("No file received"), http.StatusOK
	}

	savePath, err := h.store.Save(part.FileName(), data)
	if err != nil {
		var message string
		switch err.(type) {
		case *uploads.CreateError:
			message = "Unable to create file"
		default:
			message = "Failed to write file"
		}
		h.logger.WithError(err).Error("upload persistence failed")
		return failure(message), http.StatusOK
	}

	if !imaging.IsImage(data) {
		return failure("The file type is not an image"), http.StatusOK
	}

	result, err := h.assembler.AssembleFile(r.Context(), savePath)
	if err != nil {
		h.logger.WithError(err).Error("failed to read saved upload")
		return failure("Failed to read file"), http.StatusOK
	}

	return uploadOutcome{
		Success: true,
		Title:   "OCR Result:",
		Message: "File uploaded successfully",
		Result:  result,
	}, http.StatusOK
}

// render emits the outcome as JSON when the request's Accept header
// contains application/json, as HTML otherwise.
func (h *Handler) render(w http.ResponseWriter, wantsJSON bool, status int, outcome uploadOutcome) {
	if wantsJSON {
		resp := models.UploadResponse{
			Success:  outcome.Success,
			Message:  outcome.Message,
			OCRBoxes: []models.OCRBoxItem{},
		}
		if outcome.Result != nil {
			resp.OCRResult = outcome.Result.Text
			resp.ImageWidth = outcome.Result.ImageWidth
			resp.ImageHeight = outcome.Result.ImageHeight
			resp.OCRBoxes = outcome.Result.Boxes
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
		return
	}

	var text string
	if outcome.Result != nil {
		text = outcome.Result.Text
	}
	pageTitle := "OCR Result"
	if !outcome.Success {
		pageTitle = "Error"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!doctype html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body>
    <h1>%s</h1>
    <pre>%s</pre>
</body>
</html>
`, pageTitle, outcome.Title, escapeText(text))
}

// escapeText covers exactly &, < and > before transcript text is
// embedded in the result page.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Engine    string `json:"engine"`
	UploadDir string `json:"uploadDir"`
}

// Health endpoint - reports engine selection and upload dir state
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Engine:    h.engineName,
		UploadDir: h.store.Dir(),
	}

	if !dirWritable(h.store.Dir()) {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func dirWritable(dir string) bool {
	// A unique name per probe keeps concurrent health checks from
	// removing each other's files.
	f, err := os.CreateTemp(dir, ".healthcheck*")
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(f.Name())
	return true
}
