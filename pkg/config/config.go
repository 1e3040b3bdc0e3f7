package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a config file. A missing file is reported as an error so the
// caller can decide whether defaults are acceptable.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", "127.0.0.1:7487", "HTTP listen address for the log API")
	dbPtr := flag.String("db", "./.msgvault", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and MSGVAULT_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("MSGVAULT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// LoadEnvOverrides applies environment overrides onto cfg and reports
// whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	boolVal := func(v string) bool {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true
		}
		return false
	}

	if v := os.Getenv("MSGVAULT_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("MSGVAULT_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("MSGVAULT_ATTACHMENT_DIR"); v != "" {
		envUsed = true
		cfg.Storage.AttachmentDir = v
	}
	if v := os.Getenv("MSGVAULT_SAVE_ATTACHMENTS"); v != "" {
		envUsed = true
		cfg.Storage.SaveAttachments = boolVal(v)
	}
	if v := os.Getenv("MSGVAULT_SELF_ID"); v != "" {
		envUsed = true
		cfg.Policy.SelfID = v
	}
	if v := os.Getenv("MSGVAULT_WHITELISTED_IDS"); v != "" {
		envUsed = true
		cfg.Policy.WhitelistedIDs = v
	}
	if v := os.Getenv("MSGVAULT_BLACKLISTED_IDS"); v != "" {
		envUsed = true
		cfg.Policy.BlacklistedIDs = v
	}
	if v := os.Getenv("MSGVAULT_IGNORE_BOTS"); v != "" {
		envUsed = true
		cfg.Policy.IgnoreBots = boolVal(v)
	}
	if v := os.Getenv("MSGVAULT_IGNORE_SELF"); v != "" {
		envUsed = true
		cfg.Policy.IgnoreSelf = boolVal(v)
	}
	if v := os.Getenv("MSGVAULT_CACHE_FROM_SERVERS"); v != "" {
		envUsed = true
		cfg.Policy.CacheFromServers = boolVal(v)
	}
	if v := os.Getenv("MSGVAULT_MESSAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Policy.MessageLimit = n
		}
	}
	if v := os.Getenv("MSGVAULT_CACHE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Policy.CacheLimit = n
		}
	}
	if v := os.Getenv("MSGVAULT_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.Retention.Enabled = true
		cfg.Retention.Cron = v
	}
	if v := os.Getenv("MSGVAULT_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective loads config from path and applies environment overrides.
// A missing file yields defaults rather than an error.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

func applyDefaults(cfg *Config) {
	// MessageLimit keeps its zero value: 0 means unlimited.
	if cfg.Policy.CacheLimit == 0 {
		cfg.Policy.CacheLimit = 1000
	}
	if cfg.Dispatch.QueueCapacity == 0 {
		cfg.Dispatch.QueueCapacity = 4096
	}
	if cfg.Retention.BatchSize == 0 {
		cfg.Retention.BatchSize = 100
	}
}
