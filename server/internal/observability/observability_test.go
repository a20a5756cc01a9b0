package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContextWithID(logger, "req-1", "GET", "/api/v1/slots")
	reqCtx.Info("served", slog.Int(LogFieldStatus, 200))
	reqCtx.Error("failed", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/api/v1/slots")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "error=boom")
}

func TestRequestContextGeneratesID(t *testing.T) {
	reqCtx := NewRequestContextWithID(nil, "", "GET", "/")
	assert.Len(t, reqCtx.RequestID, 36)
	assert.NotNil(t, reqCtx.Logger)
	assert.NotEqual(t, reqCtx.RequestID, NewRequestContext(nil, "GET", "/").RequestID)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.NotNil(t, LoggerFromContext(context.Background()))

	reqCtx := NewRequestContext(nil, "POST", "/api/v1/events")
	ctx := WithRequestContext(context.Background(), reqCtx)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Record("/api/v1/slots", 200, 10*time.Millisecond)
	m.Record("/api/v1/slots", 503, 30*time.Millisecond)
	m.Record("/api/v1/events", 409, 5*time.Millisecond)

	snapshot := m.Snapshot()
	assert.Equal(t, int64(3), snapshot.RequestTotal)
	assert.Equal(t, int64(1), snapshot.RequestFailed)
	require.Len(t, snapshot.Routes, 2)
	assert.Equal(t, "/api/v1/events", snapshot.Routes[0].Route)
	assert.Equal(t, "/api/v1/slots", snapshot.Routes[1].Route)
	assert.Equal(t, int64(2), snapshot.Routes[1].RequestCount)
	assert.Equal(t, int64(20), snapshot.Routes[1].AverageDuration)
	assert.Equal(t, int64(1), snapshot.Routes[1].ErrorCount)
	assert.InDelta(t, 66.67, snapshot.SuccessRate(), 0.01)

	m.Reset()
	assert.Equal(t, 100.0, m.Snapshot().SuccessRate())
	assert.Empty(t, m.Snapshot().Routes)
}
