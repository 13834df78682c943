package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"newsdesk/apps/backend/internal/middleware"
	"testing"
)

func TestContextHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	jsonHandler := slog.NewJSONHandler(&buf, nil)
	h := NewContextHandler(jsonHandler)
	logger := slog.New(h)

	ctx := context.Background()
	ctx = middleware.WithCorrelationID(ctx, "test-correlation-id")
	ctx = middleware.WithTaskID(ctx, "task-42")

	logger.InfoContext(ctx, "test message")

	var logMap map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logMap); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}

	if logMap["correlation_id"] != "test-correlation-id" {
		t.Errorf("expected correlation_id 'test-correlation-id', got %v", logMap["correlation_id"])
	}
	if logMap["task_id"] != "task-42" {
		t.Errorf("expected task_id 'task-42', got %v", logMap["task_id"])
	}
}

func TestContextHandler_WithAttrsKeepsDecoration(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "raster")

	ctx := middleware.WithCorrelationID(context.Background(), "cid")
	logger.InfoContext(ctx, "hello")

	var logMap map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logMap); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}
	if logMap["component"] != "raster" || logMap["correlation_id"] != "cid" {
		t.Errorf("unexpected record: %v", logMap)
	}
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %s", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("expected warn record")
	}
}
