package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = "blueprints.yml"

// Transport kinds
const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
)

// Repository kinds
const (
	RepositoryRedis    = "redis"
	RepositoryPostgres = "postgres"
)

// Config represents the top-level blueprints.yml configuration
type Config struct {
	Version   string          `yaml:"version"`
	Transport TransportConfig `yaml:"transport"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
}

// TransportConfig selects the pub/sub link used by editing sessions
type TransportConfig struct {
	Kind           string        `yaml:"kind"`     // websocket or redis
	Endpoint       string        `yaml:"endpoint"` // relay web-socket URL, used by websocket
	RedisURL       string        `yaml:"redis_url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// CanvasConfig sizes the drawing surface
type CanvasConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Margin float64 `yaml:"margin"`
}

// StoreConfig points editing sessions at the relay REST API
type StoreConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig configures `blueprints serve`
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	RedisURL         string `yaml:"redis_url"`
	Repository       string `yaml:"repository"` // redis or postgres
	DatabaseURL      string `yaml:"database_url,omitempty"`
	PolygonThreshold int    `yaml:"polygon_threshold"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportWebSocket
	}
	if c.Transport.Endpoint == "" {
		c.Transport.Endpoint = "ws://localhost:8080/ws"
	}
	if c.Transport.RedisURL == "" {
		c.Transport.RedisURL = "redis://localhost:6379"
	}
	if c.Transport.ReconnectDelay == 0 {
		c.Transport.ReconnectDelay = 5 * time.Second
	}
	if c.Canvas.Width == 0 {
		c.Canvas.Width = 500
	}
	if c.Canvas.Height == 0 {
		c.Canvas.Height = 500
	}
	if c.Canvas.Margin == 0 {
		c.Canvas.Margin = 10
	}
	if c.Store.URL == "" {
		c.Store.URL = "http://localhost:8080"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RedisURL == "" {
		c.Server.RedisURL = "redis://localhost:6379"
	}
	if c.Server.Repository == "" {
		c.Server.Repository = RepositoryRedis
	}
	if c.Server.PolygonThreshold == 0 {
		c.Server.PolygonThreshold = 4
	}
}

// Validate applies defaults and performs strict validation on the
// configuration
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	switch c.Transport.Kind {
	case TransportWebSocket:
		if err := checkURL("transport.endpoint", c.Transport.Endpoint, "ws", "wss"); err != nil {
			return err
		}
	case TransportRedis:
		if err := checkURL("transport.redis_url", c.Transport.RedisURL, "redis", "rediss"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid transport.kind: %s (must be '%s' or '%s')", c.Transport.Kind, TransportWebSocket, TransportRedis)
	}
	if c.Transport.ReconnectDelay < 0 {
		return fmt.Errorf("transport.reconnect_delay must be positive, got %s", c.Transport.ReconnectDelay)
	}

	if c.Canvas.Width < 0 || c.Canvas.Height < 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.Margin < 0 || 2*c.Canvas.Margin >= float64(min(c.Canvas.Width, c.Canvas.Height)) {
		return fmt.Errorf("canvas.margin %g does not fit a %dx%d canvas", c.Canvas.Margin, c.Canvas.Width, c.Canvas.Height)
	}

	if err := checkURL("store.url", c.Store.URL, "http", "https"); err != nil {
		return err
	}

	if err := checkURL("server.redis_url", c.Server.RedisURL, "redis", "rediss"); err != nil {
		return err
	}
	switch c.Server.Repository {
	case RepositoryRedis:
	case RepositoryPostgres:
		if c.Server.DatabaseURL == "" {
			return fmt.Errorf("server.database_url is required when server.repository is '%s'", RepositoryPostgres)
		}
	default:
		return fmt.Errorf("invalid server.repository: %s (must be '%s' or '%s')", c.Server.Repository, RepositoryRedis, RepositoryPostgres)
	}
	if c.Server.PolygonThreshold < 1 {
		return fmt.Errorf("server.polygon_threshold must be >= 1, got %d", c.Server.PolygonThreshold)
	}

	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("invalid %s: %q has no host", field, raw)
			}
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (scheme must be one of %v)", field, raw, schemes)
}

// Load reads and validates blueprints.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault is Load, falling back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}
