package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pollhttpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, EnginePoll, cfg.Engine)
	assert.Equal(t, FramingIncremental, cfg.Framing)
	assert.Equal(t, 10, cfg.MaxConns)
	assert.Equal(t, 1500000, cfg.ConnBufferSize)
	assert.Equal(t, 5, cfg.Backlog)
	assert.Equal(t, 10, cfg.Limits.MaxHeaders)
	assert.Equal(t, 1<<20, cfg.Limits.MaxBody)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: 0.0.0.0:9090
engine: gnet
framing: oneshot
max_conns: 64
body: hello
limits:
  max_headers: 32
  max_body: 4096
log:
  level: debug
  format: json
  backend: logrus
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, EngineGnet, cfg.Engine)
	assert.Equal(t, FramingOneShot, cfg.Framing)
	assert.Equal(t, 64, cfg.MaxConns)
	assert.Equal(t, "hello", cfg.Body)
	assert.Equal(t, 32, cfg.Limits.MaxHeaders)
	assert.Equal(t, 4096, cfg.Limits.MaxBody)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json", Backend: "logrus"}, cfg.Log)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5, cfg.Backlog)
	assert.Equal(t, 2048, cfg.Limits.MaxPath)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "addr: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "framing: streaming\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"unknown engine", func(c *Config) { c.Engine = "select" }},
		{"unknown framing", func(c *Config) { c.Framing = "chunked" }},
		{"zero max conns", func(c *Config) { c.MaxConns = 0 }},
		{"zero buffer", func(c *Config) { c.ConnBufferSize = 0 }},
		{"zero backlog", func(c *Config) { c.Backlog = 0 }},
		{"zero header limit", func(c *Config) { c.Limits.MaxHeaders = 0 }},
		{"response buffer too small", func(c *Config) { c.ResponseBufferSize = c.Limits.MaxBody - 1 }},
		{"body over max", func(c *Config) {
			c.Limits.MaxBody = 2
			c.ResponseBufferSize = 1024
			c.Body = "abc"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
