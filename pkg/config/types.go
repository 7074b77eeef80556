package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	AutoReply  AutoReplyConfig  `yaml:"autoreply"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Validation ValidationConfig `yaml:"validation"`
}

// ValidationConfig declares shape rules applied to inbound messages.
type ValidationConfig struct {
	Required []string `yaml:"required"`
	Types    []struct {
		Path string `yaml:"path"`
		Type string `yaml:"type"`
	} `yaml:"types"`
	MaxLen []struct {
		Path string `yaml:"path"`
		Max  int    `yaml:"max"`
	} `yaml:"max_len"`
	Enums []struct {
		Path   string   `yaml:"path"`
		Values []string `yaml:"values"`
	} `yaml:"enums"`
	WhenThen []struct {
		When struct {
			Path   string      `yaml:"path"`
			Equals interface{} `yaml:"equals"`
		} `yaml:"when"`
		Then struct {
			Required []string `yaml:"required"`
		} `yaml:"then"`
	} `yaml:"when_then"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
		Admin    []string `yaml:"admin"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DispatchConfig controls dispatcher policy and the strand queue.
type DispatchConfig struct {
	// ImmediateRecipientLimit is the recipient count at or below which a send
	// is processed synchronously. Above it, the send is deferred onto the
	// conversation's strand.
	ImmediateRecipientLimit int `yaml:"immediate_recipient_limit"`
	// MaxParticipants caps the total participant count of a conversation.
	MaxParticipants int         `yaml:"max_participants"`
	Queue           QueueConfig `yaml:"queue"`
}

// QueueConfig holds in-memory strand queue tunables.
type QueueConfig struct {
	Capacity             int       `yaml:"capacity"`
	Workers              int       `yaml:"workers"`
	MaxPooledBufferBytes SizeBytes `yaml:"max_pooled_buffer_bytes"`
}

// AutoReplyConfig holds configuration for the out-of-office sweep runner.
type AutoReplyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Cron      string `yaml:"cron"`
	BatchSize int    `yaml:"batch_size"`
	Paused    bool   `yaml:"paused"`
}

// TelemetryConfig holds request tracing tunables.
type TelemetryConfig struct {
	SampleRate    float64  `yaml:"sample_rate"`
	SlowThreshold Duration `yaml:"slow_threshold"`
}

// ImmediateLimit returns the configured immediate-dispatch threshold or its
// default.
func (d DispatchConfig) ImmediateLimit() int {
	if d.ImmediateRecipientLimit > 0 {
		return d.ImmediateRecipientLimit
	}
	return 50
}

// ParticipantCap returns the configured participant capacity or its default.
func (d DispatchConfig) ParticipantCap() int {
	if d.MaxParticipants > 0 {
		return d.MaxParticipants
	}
	return 100
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
