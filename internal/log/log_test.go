package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestJSONLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentBudget})
	l.WithComponent(ComponentCache).Debug("hit", FieldCacheHit, true)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hit", rec["msg"])
	assert.Equal(t, ComponentCache, rec[FieldComponent])
	assert.Equal(t, true, rec[FieldCacheHit])
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogBudgetChange(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	sl.LogBudgetChange(context.Background(), OpSetTarget, "u1", 3, 2025, NewFields().WithTarget(7, 12000, 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, OpSetTarget, rec[FieldOperation])
	assert.Equal(t, "u1", rec[FieldOwnerID])
	assert.Equal(t, float64(7), rec[FieldCategoryID])
	assert.Equal(t, float64(2), rec[FieldVersion])
}

func TestLogErrorAcceptsNilFields(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	sl.LogError(context.Background(), "failed", errors.New("boom"), ComponentStorage, OpRead, nil)
	assert.Contains(t, buf.String(), "boom")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentHTTP})

	ctx := Enrich(NewContext(context.Background(), l), FieldOwnerID, "u1")
	got := FromContext(ctx)
	got.InfoContext(ctx, "inside")
	assert.Equal(t, ComponentHTTP, got.Component())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "u1", entry[FieldOwnerID])
	assert.Equal(t, ComponentHTTP, entry[FieldComponent])

	assert.Equal(t, ComponentApp, FromContext(context.Background()).Component())
}
