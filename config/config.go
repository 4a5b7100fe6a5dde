// Package config loads service configuration from a JSON or YAML file with
// an environment-variable overlay.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned when the config file extension is not
// .json, .yaml or .yml.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

type Config struct {
	Gateway     GatewayConfig     `envPrefix:"CLAIMFLOW_GATEWAY_"     json:"gateway"     yaml:"gateway"`
	Downstreams DownstreamsConfig `envPrefix:"CLAIMFLOW_DOWNSTREAMS_" json:"downstreams" yaml:"downstreams"`
	Client      ClientConfig      `envPrefix:"CLAIMFLOW_CLIENT_"      json:"client"      yaml:"client"`
	Store       StoreConfig       `envPrefix:"CLAIMFLOW_STORE_"       json:"store"       yaml:"store"`
	Outbox      OutboxConfig      `envPrefix:"CLAIMFLOW_OUTBOX_"      json:"outbox"      yaml:"outbox"`
}

// GatewayConfig holds the inbound webhook listener settings.
type GatewayConfig struct {
	Host          string `env:"HOST"           json:"host"           yaml:"host"`
	Port          int    `env:"PORT"           json:"port"           yaml:"port"`
	WebhookSecret string `env:"WEBHOOK_SECRET" json:"webhook_secret" yaml:"webhook_secret"`
}

// Addr returns the host:port pair the gateway listens on.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// DownstreamsConfig holds base URLs of the sibling services the
// conversation engine calls.
type DownstreamsConfig struct {
	RoutesURL      string `env:"ROUTES_URL"      json:"routes_url"      yaml:"routes_url"`
	EligibilityURL string `env:"ELIGIBILITY_URL" json:"eligibility_url" yaml:"eligibility_url"`
	TrackingURL    string `env:"TRACKING_URL"    json:"tracking_url"    yaml:"tracking_url"`
}

// ClientConfig holds the resilient-client knobs shared across downstreams.
type ClientConfig struct {
	Timeout          time.Duration `env:"TIMEOUT"           json:"timeout"           yaml:"timeout"`
	Retries          int           `env:"RETRIES"           json:"retries"           yaml:"retries"`
	BaseDelay        time.Duration `env:"BASE_DELAY"        json:"base_delay"        yaml:"base_delay"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" json:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN"  json:"breaker_cooldown"  yaml:"breaker_cooldown"`
}

// StoreConfig selects the persistence backend. Provider "memory" keeps
// conversations and the outbox in process memory; "dynamo" uses DynamoDB.
type StoreConfig struct {
	Provider      string `env:"PROVIDER"       json:"provider"       yaml:"provider"`
	Region        string `env:"REGION"         json:"region"         yaml:"region"`
	SessionsTable string `env:"SESSIONS_TABLE" json:"sessions_table" yaml:"sessions_table"`
	OutboxTable   string `env:"OUTBOX_TABLE"   json:"outbox_table"   yaml:"outbox_table"`
}

// OutboxConfig controls the background event drainer. An empty SinkURL
// logs drained events instead of delivering them.
type OutboxConfig struct {
	PollInterval time.Duration `env:"POLL_INTERVAL" json:"poll_interval" yaml:"poll_interval"`
	BatchSize    int           `env:"BATCH_SIZE"    json:"batch_size"    yaml:"batch_size"`
	Workers      int           `env:"WORKERS"       json:"workers"       yaml:"workers"`
	SinkURL      string        `env:"SINK_URL"      json:"sink_url"      yaml:"sink_url"`
}

// DefaultConfig returns the configuration template. File and environment
// values overlay these defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Client: ClientConfig{
			Timeout:          15 * time.Second,
			Retries:          3,
			BaseDelay:        time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Store: StoreConfig{
			Provider:      "memory",
			SessionsTable: "claimflow-sessions",
			OutboxTable:   "claimflow-outbox",
		},
		Outbox: OutboxConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    50,
			Workers:      4,
		},
	}
}

// LoadConfig loads configuration from the given path. A missing file is not
// an error; defaults plus environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}

		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	return finish(cfg)
}

// finish applies the environment overlay and validates the result.
func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Client.Retries < 0 {
		return errors.New("client.retries must be >= 0")
	}

	if c.Client.BreakerThreshold < 1 {
		return errors.New("client.breaker_threshold must be >= 1")
	}

	if c.Store.Provider != "memory" && c.Store.Provider != "dynamo" {
		return fmt.Errorf("store.provider must be memory or dynamo, got %q", c.Store.Provider)
	}

	if c.Outbox.BatchSize < 1 {
		return errors.New("outbox.batch_size must be >= 1")
	}

	if c.Outbox.Workers < 1 {
		return errors.New("outbox.workers must be >= 1")
	}

	return nil
}
