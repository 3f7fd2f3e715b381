package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/datametry/edr/pkg/logger"
	"github.com/stretchr/testify/require"
)

func BenchmarkInfof(b *testing.B) {
	alertID := "c7a2f0e6-3b5c-4d1e-9a2f-2b7d1f0c9e11"
	table := "analytics.prod.orders"
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		logger.Infof("Sent alert %s for %s", alertID, table)
	}
}

func BenchmarkInfo(b *testing.B) {
	alertID := "c7a2f0e6-3b5c-4d1e-9a2f-2b7d1f0c9e11"
	table := "analytics.prod.orders"
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		logger.Info("Sent alert", "alert_id", alertID, "table", table)
	}
}

func TestSetLevel(t *testing.T) {
	defer logger.SetLevel(slog.LevelInfo) // reset

	// Initial state - INFO
	require.False(t, logger.IsDebug())
	require.True(t, logger.IsInfo())
	require.True(t, logger.IsWarn())

	logger.SetLevel(slog.LevelDebug)
	require.True(t, logger.IsDebug())
	require.True(t, logger.IsInfo())
	require.True(t, logger.IsWarn())

	logger.SetLevel(slog.LevelWarn)
	require.False(t, logger.IsDebug())
	require.False(t, logger.IsInfo())
	require.True(t, logger.IsWarn())

	logger.SetLevel(slog.LevelError)
	require.False(t, logger.IsDebug())
	require.False(t, logger.IsInfo())
	require.False(t, logger.IsWarn())
}

func TestSetOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	logger.Infof("Sent %d alerts", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Sent 3 alerts", line["msg"])
	require.Equal(t, "INFO", line["level"])
}

func TestDebugfSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	logger.Debugf("hidden %s", "message")
	require.Empty(t, buf.String())
}
