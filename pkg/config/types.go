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
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Policy    PolicyConfig    `yaml:"policy"`
	Retention RetentionConfig `yaml:"retention"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings for the log API.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// StorageConfig holds paths for the record store and the attachment cache.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	AttachmentDir string `yaml:"attachment_dir"`
	// SaveAttachments enables caching attachment blobs of deleted messages.
	SaveAttachments bool `yaml:"save_attachments"`
}

// PolicyConfig mirrors the retention policy knobs exposed to the user.
// Allow/deny lists are comma-separated server, channel, or user ids.
type PolicyConfig struct {
	// SelfID identifies the current user for self-filtering and ghost-ping
	// detection when no host identity source is wired in.
	SelfID           string `yaml:"self_id"`
	WhitelistedIDs   string `yaml:"whitelisted_ids"`
	BlacklistedIDs   string `yaml:"blacklisted_ids"`
	IgnoreBots       bool   `yaml:"ignore_bots"`
	IgnoreSelf       bool   `yaml:"ignore_self"`
	CacheFromServers bool   `yaml:"cache_from_servers"`
	// MessageLimit caps the total retained record count; 0 = unlimited.
	MessageLimit int `yaml:"message_limit"`
	// CacheLimit bounds the in-memory send cache.
	CacheLimit int `yaml:"cache_limit"`
}

// RetentionConfig drives the scheduled background sweep.
type RetentionConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Cron      string   `yaml:"cron"`
	MaxAge    Duration `yaml:"max_age"`
	BatchSize int      `yaml:"batch_size"`
}

// DispatchConfig tunes the event queue between the host bus and the
// ingestion worker.
type DispatchConfig struct {
	QueueCapacity        int       `yaml:"queue_capacity"`
	MaxPooledBufferBytes SizeBytes `yaml:"max_pooled_buffer_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "127.0.0.1"
	}
	p := c.Server.Port
	if p == 0 {
		p = 7487
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
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

// Duration wraps time.Duration and supports YAML parsing from strings like
// "720h" or plain numbers (interpreted as seconds).
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
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
