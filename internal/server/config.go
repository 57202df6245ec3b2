package server

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/pollhttpd/internal/request"
)

// Engines
const (
	EnginePoll = "poll"
	EngineGnet = "gnet"
)

// Framing modes
const (
	// FramingIncremental waits for a complete message before answering.
	FramingIncremental = "incremental"
	// FramingOneShot answers after every read, whatever has arrived.
	FramingOneShot = "oneshot"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config configures the server
type Config struct {
	Addr               string         `yaml:"addr"`
	Engine             string         `yaml:"engine"`
	Framing            string         `yaml:"framing"`
	MaxConns           int            `yaml:"max_conns"`
	ConnBufferSize     int            `yaml:"conn_buffer_size"`
	Backlog            int            `yaml:"backlog"`
	ResponseBufferSize int            `yaml:"response_buffer_size"`
	Body               string         `yaml:"body"` // sent with every 200
	Limits             request.Limits `yaml:"limits"`
	Log                LogConfig      `yaml:"log"`
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		Addr:               "127.0.0.1:8080",
		Engine:             EnginePoll,
		Framing:            FramingIncremental,
		MaxConns:           10,
		ConnBufferSize:     1500000,
		Backlog:            5,
		ResponseBufferSize: request.MaxHeaderBlock + request.MaxBodySize + 1024,
		Limits:             request.DefaultLimits(),
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Backend: "zerolog",
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every field
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is empty", ErrInvalidConfig)
	}
	if c.Engine != EnginePoll && c.Engine != EngineGnet {
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidConfig, c.Engine)
	}
	if c.Framing != FramingIncremental && c.Framing != FramingOneShot {
		return fmt.Errorf("%w: unknown framing %q", ErrInvalidConfig, c.Framing)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("%w: max_conns must be positive", ErrInvalidConfig)
	}
	if c.ConnBufferSize < 1 {
		return fmt.Errorf("%w: conn_buffer_size must be positive", ErrInvalidConfig)
	}
	if c.Backlog < 1 {
		return fmt.Errorf("%w: backlog must be positive", ErrInvalidConfig)
	}

	l := c.Limits
	for name, v := range map[string]int{
		"max_request_line": l.MaxRequestLine,
		"max_method":       l.MaxMethod,
		"max_path":         l.MaxPath,
		"max_protocol":     l.MaxProtocol,
		"max_headers":      l.MaxHeaders,
		"max_header_block": l.MaxHeaderBlock,
		"max_header_key":   l.MaxHeaderKey,
		"max_header_value": l.MaxHeaderValue,
		"max_body":         l.MaxBody,
	} {
		if v < 1 {
			return fmt.Errorf("%w: limits.%s must be positive", ErrInvalidConfig, name)
		}
	}

	if c.ResponseBufferSize < l.MaxBody {
		return fmt.Errorf("%w: response_buffer_size %d smaller than max_body %d",
			ErrInvalidConfig, c.ResponseBufferSize, l.MaxBody)
	}
	if len(c.Body) > l.MaxBody {
		return fmt.Errorf("%w: body longer than max_body", ErrInvalidConfig)
	}
	return nil
}
