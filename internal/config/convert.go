package config

import (
	"strings"
	"time"

	"github.com/nsmapd/nsmapd/internal/protocol/socketmap"
	"github.com/nsmapd/nsmapd/internal/server"
)

// Runtime converts file shapes into the server's runtime config. Durations
// stay at their defaults when the file leaves them empty.
func Runtime(cfg ServerConfig) (server.ServiceConfig, error) {
	out := server.DefaultServiceConfig()
	out.Name = cfg.Name
	out.ListenAddr = cfg.ListenAddr
	out.AdminListenAddr = cfg.AdminListenAddr
	out.AdminToken = cfg.AdminToken
	out.CORSOrigins = cfg.CorsOrigins
	out.SecurityMode = socketmap.NormalizeSecurityMode(socketmap.SecurityMode(cfg.SecurityMode))
	out.TLS = socketmap.TLSConfig{
		Enabled:            cfg.TLS.Enabled,
		Mutual:             cfg.TLS.Mutual,
		CertFile:           cfg.TLS.CertFile,
		KeyFile:            cfg.TLS.KeyFile,
		CAFile:             cfg.TLS.CAFile,
		ServerName:         cfg.TLS.ServerName,
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
	}
	if cfg.MaxRequestLen > 0 {
		out.MaxRequestLen = cfg.MaxRequestLen
	}

	for _, field := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"read_timeout", cfg.ReadTimeout, &out.ReadTimeout},
		{"write_timeout", cfg.WriteTimeout, &out.WriteTimeout},
		{"lookup_timeout", cfg.LookupTimeout, &out.LookupTimeout},
		{"heartbeat_interval", cfg.Heartbeat, &out.HeartbeatInterval},
	} {
		d, err := parseDuration(field.name, field.value)
		if err != nil {
			return server.ServiceConfig{}, err
		}
		if d > 0 {
			*field.dst = d
		}
	}

	specs := make([]server.MapSpec, 0, len(cfg.Maps))
	for _, mapCfg := range cfg.Maps {
		spec, err := mapSpec(mapCfg)
		if err != nil {
			return server.ServiceConfig{}, err
		}
		specs = append(specs, spec)
	}
	out.Maps = specs
	return out, nil
}

func mapSpec(cfg MapConfig) (server.MapSpec, error) {
	requestTimeout, err := parseDuration("request_timeout", cfg.RequestTimeout)
	if err != nil {
		return server.MapSpec{}, err
	}
	cacheTTL, err := parseDuration("cache_ttl", cfg.CacheTTL)
	if err != nil {
		return server.MapSpec{}, err
	}
	return server.MapSpec{
		Name:            cfg.Name,
		Kind:            strings.ToLower(strings.TrimSpace(cfg.Kind)),
		Path:            cfg.Path,
		Entries:         cfg.Entries,
		URL:             cfg.URL,
		BearerToken:     cfg.BearerToken,
		RequestTimeout:  requestTimeout,
		CacheMaxEntries: cfg.CacheMaxEntries,
		CacheTTL:        cacheTTL,
	}, nil
}
