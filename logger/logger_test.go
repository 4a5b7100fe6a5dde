package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLoggingWithOptions_JSON(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "claimflow-test",
		JSON:      true,
		MinLevel:  slog.LevelInfo,
		Output:    &buf,
	})

	Get().Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "claimflow-test", record["subsystem"])
}

func TestGet_CorrelationID(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "claimflow-test",
		JSON:      true,
		MinLevel:  slog.LevelInfo,
		Output:    &buf,
	})

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = WithIdentity(ctx, "+4917612345")

	Get(ctx).Info("turn handled")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "corr-123", record["correlation_id"])
	assert.Equal(t, "+4917612345", record["identity"])
}

func TestGetCorrelationID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{"nil context", nil, "", false},
		{"empty context", context.Background(), "", false},
		{"with id", WithCorrelationID(context.Background(), "abc"), "abc", true},
		{"empty id", WithCorrelationID(context.Background(), ""), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, ok := GetCorrelationID(tt.ctx)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestWith_AccumulatesValues(t *testing.T) {
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "claimflow-test",
		JSON:      true,
		MinLevel:  slog.LevelInfo,
		Output:    &buf,
	})

	ctx := With(context.Background(), "state", "AWAITING_JOURNEY_TIME")
	ctx = With(ctx, "round", 2)

	Get(ctx).Info("negotiating")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "AWAITING_JOURNEY_TIME", record["state"])
	assert.InEpsilon(t, float64(2), record["round"], 0.001)
}
