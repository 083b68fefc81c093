package config

import (
	"time"

	"github.com/galleralive/realtime/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Hub      HubConfig      `json:"hub" yaml:"hub"`
	Liveness LivenessConfig `json:"liveness" yaml:"liveness"`
	Proposal ProposalConfig `json:"proposal" yaml:"proposal"`
	Logging  logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// HubConfig bounds the per-channel event history.
type HubConfig struct {
	HistoryCapacity int           `json:"history_capacity" yaml:"history_capacity"`
	HistoryMaxAge   time.Duration `json:"history_max_age" yaml:"history_max_age"`
	ReplayCount     int           `json:"replay_count" yaml:"replay_count"`
}

// LivenessConfig controls heartbeat probing and dead-connection eviction.
type LivenessConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// ProposalConfig controls the negotiation store.
type ProposalConfig struct {
	MaxPending     int           `json:"max_pending" yaml:"max_pending"`
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`
	GraceDelay     time.Duration `json:"grace_delay" yaml:"grace_delay"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Hub: HubConfig{
			HistoryCapacity: 100,
			HistoryMaxAge:   24 * time.Hour,
			ReplayCount:     10,
		},
		Liveness: LivenessConfig{
			Interval: 30 * time.Second,
			Timeout:  60 * time.Second,
		},
		Proposal: ProposalConfig{
			MaxPending:     5,
			DefaultTimeout: 180 * time.Second,
			GraceDelay:     5 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Hub.HistoryCapacity <= 0 {
		return NewConfigError("hub.history_capacity", "capacity must be positive")
	}

	if c.Hub.ReplayCount < 0 || c.Hub.ReplayCount > c.Hub.HistoryCapacity {
		return NewConfigError("hub.replay_count", "replay count must be within history capacity")
	}

	if c.Liveness.Interval <= 0 {
		return NewConfigError("liveness.interval", "interval must be positive")
	}

	if c.Liveness.Timeout < c.Liveness.Interval {
		return NewConfigError("liveness.timeout", "timeout must be at least one interval")
	}

	if c.Proposal.MaxPending <= 0 {
		return NewConfigError("proposal.max_pending", "quota must be positive")
	}

	if c.Proposal.DefaultTimeout <= 0 {
		return NewConfigError("proposal.default_timeout", "timeout must be positive")
	}

	return nil
}
