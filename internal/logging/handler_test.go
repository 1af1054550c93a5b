// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("taskforge", "1.0.0", "json", slog.LevelInfo, &buf)

	logger.Info("request served", "status", 200)

	entry := decode(t, &buf)
	assert.Equal(t, "request served", entry["msg"])
	assert.Equal(t, "taskforge", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.EqualValues(t, 200, entry["status"])
	assert.Contains(t, entry, "time")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	Setup("taskforge", "dev", "text", slog.LevelInfo, &buf).Info("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "service=taskforge")
}

func TestSetup_DefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("taskforge", "dev", "", slog.LevelInfo, &buf).Info("hello")
	decode(t, &buf)
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("taskforge", "dev", "json", slog.LevelWarn, &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("taskforge", "dev", "json", slog.LevelDebug, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.With("component", "auth").InfoContext(ctx, "traced")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Equal(t, "auth", entry["component"])
	assert.Equal(t, "taskforge", entry["service"], "WithAttrs keeps service")
}

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("taskforge", "dev", "json", slog.LevelInfo, &buf)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")
	logger.InfoContext(ctx, "login succeeded")

	assert.Equal(t, "host/abc-000001", decode(t, &buf)["request_id"])
}

func TestHandler_GroupKeepsServiceAtTopLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup("taskforge", "dev", "json", slog.LevelInfo, &buf).WithGroup("task").Info("created", "id", "01J")

	entry := decode(t, &buf)
	assert.Equal(t, "taskforge", entry["service"])
	assert.Equal(t, map[string]any{"id": "01J"}, entry["task"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	Setup("taskforge", "dev", "json", slog.LevelInfo, &buf).Info("untraced")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
	assert.NotContains(t, entry, "request_id")
}

func TestHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	Setup("taskforge", "dev", "json", slog.LevelInfo, &buf).WithGroup("http").Info("grouped", "status", 404)

	assert.Contains(t, buf.String(), `"http":{`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger := SetDefault("taskforge", "2.0.0", "json", slog.LevelInfo)

	assert.Same(t, logger, slog.Default())
}
