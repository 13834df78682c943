package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// List serves GET /jobs/failed?topic=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f, err := filterFrom(r)
	if err != nil {
		writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	jobs, err := h.service.List(ctx, f)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list dead letters", "error", err)
		writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs), "limit": f.limit()},
	})
}

func filterFrom(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{Topic: q.Get("topic")}
	if f.Topic != "" && !slices.Contains(config.Topics, f.Topic) {
		return f, errors.New("unknown topic " + strconv.Quote(f.Topic))
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// Retry serves POST /jobs/{id}/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying dead letter", "id", id)

	j, err := h.service.Retry(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retry dead letter", "id", id, "error", err)
		respondError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"data": map[string]string{"id": id, "topic": j.Handler, "status": "requeued"},
	})
}

// Discard serves DELETE /jobs/{id}.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Discard(ctx, id); err != nil {
		respondError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"data": map[string]string{"id": id, "status": "discarded"},
	})
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
	case errors.Is(err, ErrNoPublisher):
		writeError(ctx, w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, ErrPublishTimeout):
		writeError(ctx, w, "UNAVAILABLE", err.Error(), http.StatusGatewayTimeout)
	default:
		writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	writeJSON(ctx, w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
