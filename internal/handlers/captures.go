package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/uploader"
	"github.com/ekoslightbucket/lightbucket-uploader/pkg/capture"
)

// CaptureSink accepts capture events and reports queue statistics
type CaptureSink interface {
	HandleCapture(ev capture.Event) uploader.Decision
	Stats() uploader.Stats
}

// maxCaptureRequestBytes bounds the webhook body; a real event is a few
// hundred bytes
const maxCaptureRequestBytes = 64 << 10

// PreviewSource serves archived previews by content ID
type PreviewSource interface {
	GetReader(ctx context.Context, contentID string) (io.ReadCloser, error)
	Exists(ctx context.Context, contentID string) (bool, error)
}

// CaptureRequest is the webhook body. It mirrors the captureComplete
// payload; absent numbers default to -1 as they do on D-Bus.
type CaptureRequest struct {
	Filename  string   `json:"filename"`
	Type      *int     `json:"type"`
	HFR       *float64 `json:"hfr"`
	StarCount *int     `json:"starCount"`
	Median    *float64 `json:"median"`
}

// Event converts the request into a capture event
func (r CaptureRequest) Event() capture.Event {
	ev := capture.Event{
		Filename:  r.Filename,
		Type:      -1,
		HFR:       capture.UnknownHFR,
		StarCount: -1,
		Median:    -1,
	}
	if r.Type != nil {
		ev.Type = capture.FrameType(*r.Type)
	}
	if r.HFR != nil {
		ev.HFR = *r.HFR
	}
	if r.StarCount != nil {
		ev.StarCount = *r.StarCount
	}
	if r.Median != nil {
		ev.Median = *r.Median
	}
	return ev
}

// CaptureResponse is returned by POST /v1/captures
type CaptureResponse struct {
	Decision    string `json:"decision"`
	Queued      bool   `json:"queued"`
	QueueLength int    `json:"queue_length"`
}

// CaptureHandler serves the webhook and status endpoints
type CaptureHandler struct {
	sink     CaptureSink
	previews PreviewSource
}

// NewCaptureHandler creates a new capture handler. previews may be nil.
func NewCaptureHandler(sink CaptureSink, previews PreviewSource) *CaptureHandler {
	return &CaptureHandler{
		sink:     sink,
		previews: previews,
	}
}

// Register adds the handler routes to mux
func (h *CaptureHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/captures", h.HandleCapture)
	mux.HandleFunc("/v1/stats", h.HandleStats)
	mux.HandleFunc("/v1/previews/", h.HandlePreview)
	mux.HandleFunc("/health", h.HandleHealth)
}

// HandleCapture handles POST /v1/captures - filters and queues a capture
func (h *CaptureHandler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureRequestBytes)

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		http.Error(w, "filename is required", http.StatusBadRequest)
		return
	}

	decision := h.sink.HandleCapture(req.Event())
	resp := CaptureResponse{
		Decision:    decision.String(),
		Queued:      decision == uploader.Admitted,
		QueueLength: h.sink.Stats().QueueLength,
	}

	status := http.StatusOK
	switch decision {
	case uploader.Admitted:
		log.Printf("Capture queued via webhook: %s", req.Filename)
		status = http.StatusAccepted
	case uploader.DroppedClosed:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// HandleStats handles GET /v1/stats - returns queue and upload counters
func (h *CaptureHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.sink.Stats())
}

// HandlePreview handles GET /v1/previews/{id} - returns an archived JPEG.
// HEAD only reports whether the preview is archived.
func (h *CaptureHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.previews == nil {
		http.Error(w, "Preview archive disabled", http.StatusNotFound)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/previews/")
	if id == "" {
		http.Error(w, "preview id is required", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodHead {
		h.headPreview(w, r, id)
		return
	}

	reader, err := h.previews.GetReader(r.Context(), id)
	if err != nil {
		log.Printf("Failed to load preview %s: %v", id, err)
		http.Error(w, "Preview not found", http.StatusNotFound)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("Failed to stream preview %s: %v", id, err)
	}
}

func (h *CaptureHandler) headPreview(w http.ResponseWriter, r *http.Request, id string) {
	ok, err := h.previews.Exists(r.Context(), id)
	if err != nil {
		log.Printf("Failed to check preview %s: %v", id, err)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
}

// HandleHealth handles GET /health
func (h *CaptureHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
