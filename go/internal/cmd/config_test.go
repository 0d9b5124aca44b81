package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"PORT", "STATIC_DIR", "LOG_LEVEL", "NATS_URL", "NATS_SUBJECT_PREFIX", "NATS_STREAM",
	"ROSTER_BACKEND", "ROSTER_FILE", "WS_WRITE_TIMEOUT", "WS_READ_TIMEOUT", "WS_PING_INTERVAL", "WS_SEND_BUFFER",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "frontend", cfg.Server.StaticDir)
	assert.Equal(t, "", cfg.NATS.URL)
	assert.Equal(t, "scoreboard", cfg.NATS.SubjectPrefix)
	assert.Equal(t, RosterBackendJSON, cfg.Roster.Backend)
	assert.Equal(t, "data/roster.json", cfg.Roster.File)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, zerolog.InfoLevel, cfg.logLevel())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  static_dir: /srv/www
log:
  level: debug
nats:
  url: nats://bus:4222
  stream: SCOREBOARD
roster:
  backend: postgres
websocket:
  ping_interval: 5s
  read_timeout: 15s
  send_buffer: 32
`), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("WS_WRITE_TIMEOUT", "3s")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "/srv/www", cfg.Server.StaticDir)
	assert.Equal(t, zerolog.DebugLevel, cfg.logLevel())
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.Equal(t, "SCOREBOARD", cfg.NATS.Stream)
	assert.Equal(t, RosterBackendPostgres, cfg.Roster.Backend)

	ws := cfg.connectionConfig()
	assert.Equal(t, 5*time.Second, ws.PingInterval)
	assert.Equal(t, 15*time.Second, ws.ReadTimeout)
	assert.Equal(t, 3*time.Second, ws.WriteTimeout)
	assert.Equal(t, 32, ws.SendBufferSize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "roster backend", env: map[string]string{"ROSTER_BACKEND": "mongo"}},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "ping exceeds read timeout", env: map[string]string{"WS_PING_INTERVAL": "2m"}},
		{name: "send buffer", env: map[string]string{"WS_SEND_BUFFER": "0"}},
		{name: "malformed yaml", file: "server: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			if tt.file != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}

			_, err := loadConfig(path)
			assert.Error(t, err)
		})
	}
}
