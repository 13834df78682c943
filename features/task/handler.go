package task

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"newsdesk/apps/backend/internal/middleware"
	"newsdesk/apps/backend/internal/worker"
)

type Handler struct {
	service  *Service
	maxBytes int64
}

// NewHandler limits uploads to maxMB megabytes; 0 means 50.
func NewHandler(service *Service, maxMB int64) *Handler {
	if maxMB <= 0 {
		maxMB = 50
	}
	return &Handler{service: service, maxBytes: maxMB << 20}
}

func (h *Handler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	var req worker.DocumentTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	acc, err := h.service.SubmitDocument(r.Context(), req)
	h.respond(r.Context(), w, acc, err)
}

func (h *Handler) SubmitImages(w http.ResponseWriter, r *http.Request) {
	var req worker.ImagesTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	acc, err := h.service.SubmitImages(r.Context(), req)
	h.respond(r.Context(), w, acc, err)
}

func (h *Handler) SubmitDigital(w http.ResponseWriter, r *http.Request) {
	var req worker.DigitalRawTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	acc, err := h.service.SubmitDigital(r.Context(), req)
	h.respond(r.Context(), w, acc, err)
}

// Upload accepts a multipart PDF plus the document fields as form values.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.writeError(ctx, w, "BAD_REQUEST", "Unsupported file type", http.StatusBadRequest)
		return
	}

	// Identical uploads map to the same object.
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to read file", http.StatusInternalServerError)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to read file", http.StatusInternalServerError)
		return
	}
	key := fmt.Sprintf("uploads/%x_%s", hash.Sum(nil)[:8], filepath.Base(header.Filename))

	notify, _ := strconv.ParseBool(r.FormValue("notify"))
	dpi, _ := strconv.Atoi(r.FormValue("dpi"))
	t := worker.DocumentTask{
		Publication: r.FormValue("publication"),
		Edition:     r.FormValue("edition"),
		Date:        r.FormValue("date"),
		Language:    r.FormValue("language"),
		Zone:        r.FormValue("zone"),
		DPI:         dpi,
		Notify:      notify,
	}

	acc, err := h.service.Upload(ctx, key, file, header.Size, t)
	h.respond(ctx, w, acc, err)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, acc *Accepted, err error) {
	switch {
	case errors.Is(err, ErrMissingField):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrNoObjectStore):
		h.writeError(ctx, w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		slog.ErrorContext(ctx, "task submission failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": acc}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
