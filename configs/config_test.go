package configs_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openapi-mcp/proxy/configs"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := configs.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/tmp/openapi-mcp-proxy.log", cfg.LogFile)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("MCP_PROXY_LISTEN_ADDR", ":9090")
	t.Setenv("MCP_PROXY_SHUTDOWN_TIMEOUT", "10s")
	t.Setenv("MCP_PROXY_LOG_LEVEL", "debug")

	cfg, err := configs.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParsedLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "warning", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "ERROR", want: slog.LevelError},
		{level: "bogus", want: slog.LevelInfo},
		{level: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &configs.Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.ParsedLogLevel())
		})
	}
}
