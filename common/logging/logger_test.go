package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shisei-toshokan/shisei/common/middleware"
)

func TestNewWithWriter_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		isJSON bool
	}{
		{name: "json", format: "json", isJSON: true},
		{name: "text", format: "text", isJSON: false},
		{name: "default is json", format: "", isJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, slog.LevelInfo, tt.format)
			logger.Info("hello", "k", "v")

			var decoded map[string]any
			err := json.Unmarshal(buf.Bytes(), &decoded)
			if tt.isJSON {
				require.NoError(t, err)
				assert.Equal(t, "hello", decoded["msg"])
			} else {
				assert.Error(t, err)
				assert.Contains(t, buf.String(), "msg=hello")
			}
		})
	}
}

func TestWithContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	logger.InfoContext(ctx, "with id")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "req-42", decoded[FieldRequestID])
}

func TestWithContext_NoRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.WarnContext(context.Background(), "without id")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	_, ok := decoded[FieldRequestID]
	assert.False(t, ok)
	assert.Equal(t, "WARN", decoded["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "json")

	logger.InfoContext(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	logger.ErrorContext(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json").With(Service("web"))
	logger.Info("tagged")

	assert.Contains(t, buf.String(), `"service":"web"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
