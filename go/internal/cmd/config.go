package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/scoreboard/go/internal/dbconfig"
	"github.com/mcdev12/scoreboard/go/internal/gateway"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	RosterBackendJSON     = "json"
	RosterBackendPostgres = "postgres"
)

// Config is the process configuration. Values come from the optional YAML
// file first; environment variables override them.
type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Stream        string `yaml:"stream"`
	} `yaml:"nats"`

	Roster struct {
		Backend string `yaml:"backend"`
		File    string `yaml:"file"`
	} `yaml:"roster"`

	WebSocket struct {
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		PingInterval time.Duration `yaml:"ping_interval"`
		SendBuffer   int           `yaml:"send_buffer"`
	} `yaml:"websocket"`

	Database dbconfig.Config `yaml:"-"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8000"
	cfg.Server.StaticDir = "frontend"
	cfg.Log.Level = "info"
	cfg.NATS.SubjectPrefix = "scoreboard"
	cfg.Roster.Backend = RosterBackendJSON
	cfg.Roster.File = "data/roster.json"

	ws := gateway.DefaultConnectionConfig()
	cfg.WebSocket.WriteTimeout = ws.WriteTimeout
	cfg.WebSocket.ReadTimeout = ws.ReadTimeout
	cfg.WebSocket.PingInterval = ws.PingInterval
	cfg.WebSocket.SendBuffer = ws.SendBufferSize
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads path (a missing file is fine), then applies env overrides
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.NATS.Stream = getEnv("NATS_STREAM", c.NATS.Stream)
	c.Roster.Backend = strings.ToLower(getEnv("ROSTER_BACKEND", c.Roster.Backend))
	c.Roster.File = getEnv("ROSTER_FILE", c.Roster.File)
	c.WebSocket.WriteTimeout = getEnvAsDuration("WS_WRITE_TIMEOUT", c.WebSocket.WriteTimeout)
	c.WebSocket.ReadTimeout = getEnvAsDuration("WS_READ_TIMEOUT", c.WebSocket.ReadTimeout)
	c.WebSocket.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", c.WebSocket.PingInterval)
	c.WebSocket.SendBuffer = getEnvAsInt("WS_SEND_BUFFER", c.WebSocket.SendBuffer)
	c.Database = dbconfig.NewConfigFromEnv()
}

func (c *Config) validate() error {
	switch c.Roster.Backend {
	case RosterBackendJSON, RosterBackendPostgres:
	default:
		return fmt.Errorf("unknown roster backend %q", c.Roster.Backend)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout (%s) must exceed a positive ping interval (%s)",
			c.WebSocket.ReadTimeout, c.WebSocket.PingInterval)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	return nil
}

// connectionConfig maps the websocket section onto gateway settings
func (c *Config) connectionConfig() gateway.ConnectionConfig {
	ws := gateway.DefaultConnectionConfig()
	ws.WriteTimeout = c.WebSocket.WriteTimeout
	ws.ReadTimeout = c.WebSocket.ReadTimeout
	ws.PingInterval = c.WebSocket.PingInterval
	ws.SendBufferSize = c.WebSocket.SendBuffer
	return ws
}

func (c *Config) logLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
