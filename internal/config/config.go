package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Name            string      `toml:"name"`
	ListenAddr      string      `toml:"listen_addr"`
	AdminListenAddr string      `toml:"admin_listen_addr"`
	AdminToken      string      `toml:"admin_token"`
	CorsOrigins     []string    `toml:"cors_origins"`
	SecurityMode    string      `toml:"security_mode"`
	MaxRequestLen   uint64      `toml:"max_request_len"`
	ReadTimeout     string      `toml:"read_timeout"`
	WriteTimeout    string      `toml:"write_timeout"`
	LookupTimeout   string      `toml:"lookup_timeout"`
	Heartbeat       string      `toml:"heartbeat_interval"`
	TLS             TLSConfig   `toml:"tls"`
	Maps            []MapConfig `toml:"maps"`
}

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type MapConfig struct {
	Name            string            `toml:"name"`
	Kind            string            `toml:"kind"`
	Path            string            `toml:"path"`
	Entries         map[string]string `toml:"entries"`
	URL             string            `toml:"url"`
	BearerToken     string            `toml:"bearer_token"`
	RequestTimeout  string            `toml:"request_timeout"`
	CacheMaxEntries int               `toml:"cache_max_entries"`
	CacheTTL        string            `toml:"cache_ttl"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "nsmapd"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "inet:127.0.0.1:9760"
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server config missing listen_addr")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SecurityMode)) {
	case "", "development", "production":
	default:
		return fmt.Errorf("server config security_mode %q invalid", cfg.SecurityMode)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"read_timeout", cfg.ReadTimeout},
		{"write_timeout", cfg.WriteTimeout},
		{"lookup_timeout", cfg.LookupTimeout},
		{"heartbeat_interval", cfg.Heartbeat},
	} {
		if _, err := parseDuration(field.name, field.value); err != nil {
			return err
		}
	}
	for i, mapCfg := range cfg.Maps {
		if err := ValidateMapEntry(mapCfg); err != nil {
			return fmt.Errorf("map[%d] invalid: %w", i, err)
		}
	}
	return nil
}

func ValidateMapEntry(cfg MapConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "static":
		if strings.TrimSpace(cfg.Path) == "" && len(cfg.Entries) == 0 {
			return fmt.Errorf("static map needs path or entries")
		}
	case "pebble":
		if strings.TrimSpace(cfg.Path) == "" {
			return fmt.Errorf("pebble map needs path")
		}
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return fmt.Errorf("http map needs url")
		}
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("kind %q unknown (expected static, pebble, or http)", cfg.Kind)
	}
	if _, err := parseDuration("request_timeout", cfg.RequestTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("cache_ttl", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must not be negative")
	}
	if strings.TrimSpace(cfg.CacheTTL) != "" && cfg.CacheMaxEntries == 0 {
		return fmt.Errorf("cache_ttl requires cache_max_entries")
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s %q invalid: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
