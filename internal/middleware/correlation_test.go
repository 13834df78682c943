package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(CorrelationKey).(string)
		if !ok || id == "" {
			t.Error("correlation id missing from context")
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("header missing")
	}
}

func TestCorrelationID_KeepsIncomingHeader(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/tasks/1/progress", nil)
	req.Header.Set(HeaderCorrelationID, "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderCorrelationID))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", GetCorrelationID(ctx))
	assert.Equal(t, "", GetTaskID(ctx))

	ctx = WithTaskID(WithCorrelationID(ctx, "c1"), "task-9")
	assert.Equal(t, "c1", GetCorrelationID(ctx))
	assert.Equal(t, "task-9", GetTaskID(ctx))
}
