package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"newsdesk/apps/backend/internal/keys"
	"newsdesk/apps/backend/internal/middleware"
)

type JobRepo interface {
	Count(ctx context.Context) (int, error)
	CountByHandler(ctx context.Context) (map[string]int, error)
}

type Handler struct {
	jobRepo    JobRepo
	credential *keys.Assignment
}

// NewHandler reports on the dead-letter store and the credential this
// process was assigned. credential is nil in processes that run no
// analysis workers.
func NewHandler(j JobRepo, credential *keys.Assignment) *Handler {
	return &Handler{jobRepo: j, credential: credential}
}

type StatsResponse struct {
	FailedJobs         int            `json:"failed_jobs"`
	FailedByTopic      map[string]int `json:"failed_by_topic"`
	CredentialIndex    int            `json:"credential_index"`
	CredentialPool     int            `json:"credential_pool"`
	CredentialFallback bool           `json:"credential_fallback"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	byTopic, err := h.jobRepo.CountByHandler(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs by topic", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}
	if byTopic == nil {
		byTopic = map[string]int{}
	}

	resp := StatsResponse{
		FailedJobs:      jCount,
		FailedByTopic:   byTopic,
		CredentialIndex: -1,
	}
	if h.credential != nil {
		resp.CredentialIndex = h.credential.Index
		resp.CredentialPool = h.credential.Pool
		resp.CredentialFallback = h.credential.Fallback
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
