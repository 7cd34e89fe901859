package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/logging"
	"github.com/nsmapd/nsmapd/internal/protocol/socketmap"
)

const defaultTargetsPath = "cmd/nsquery/targets.toml"

// queryConfigFile persists named nsmapd endpoints for the client.
type queryConfigFile struct {
	DefaultTarget string         `toml:"default_target"`
	Targets       []targetConfig `toml:"targets"`
}

// targetConfig binds a display name to one socketmap endpoint.
type targetConfig struct {
	Name string          `toml:"name"`
	Addr string          `toml:"addr"`
	TLS  targetTLSConfig `toml:"tls"`
}

type targetTLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

func main() {
	configPath := flag.String("config", defaultTargetsPath, "path to targets file")
	targetName := flag.String("target", "", "named target from the targets file")
	addr := flag.String("addr", "", "socketmap server address (overrides targets file)")
	timeout := flag.Duration("timeout", 5*time.Second, "per-operation timeout")
	flag.Parse()

	logging.ConfigureCLI()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: nsquery [-config targets.toml] [-target name] [-addr inet:host:port] map key [key ...]")
		os.Exit(2)
	}
	mapName := args[0]
	keys := args[1:]

	address := strings.TrimSpace(*addr)
	session := socketmap.DefaultConfig()
	if address == "" {
		fileCfg, err := loadTargets(*configPath)
		if err != nil {
			log.Error().Err(err).Msg("nsquery targets load failed")
			os.Exit(2)
		}
		target, err := resolveTarget(fileCfg, *targetName)
		if err != nil {
			log.Error().Err(err).Msg("nsquery target selection failed")
			os.Exit(2)
		}
		address = target.Addr
		session.TLS = socketmap.TLSConfig{
			Enabled:            target.TLS.Enabled,
			Mutual:             target.TLS.Mutual,
			CertFile:           target.TLS.CertFile,
			KeyFile:            target.TLS.KeyFile,
			CAFile:             target.TLS.CAFile,
			ServerName:         target.TLS.ServerName,
			InsecureSkipVerify: target.TLS.InsecureSkipVerify,
		}
	}

	os.Exit(run(address, session, mapName, keys, *timeout))
}

// run connects once and looks up every key in order. The exit code follows
// the postmap convention: 0 all found, 1 at least one miss, 2 failure.
func run(address string, session socketmap.Config, mapName string, keys []string, timeout time.Duration) int {
	ccfg := socketmap.DefaultClientConfig()
	ccfg.Address = address
	ccfg.Session = session
	ccfg.MaxConnectAttempts = 1

	client, err := socketmap.NewClient(ccfg)
	if err != nil {
		log.Error().Err(err).Msg("nsquery client setup failed")
		return 2
	}
	defer client.Close()

	connectCtx, cancel := context.WithTimeout(context.Background(), timeout)
	err = client.Connect(connectCtx)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("addr", address).Msg("nsquery connect failed")
		return 2
	}

	exit := 0
	for _, key := range keys {
		lookupCtx, cancel := context.WithTimeout(context.Background(), timeout)
		reply, err := client.Lookup(lookupCtx, mapName, key)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("map", mapName).Str("key", key).Msg("nsquery lookup failed")
			return 2
		}
		switch reply.Status {
		case socketmap.StatusOK:
			fmt.Println(reply.Text)
		case socketmap.StatusNotFound:
			log.Warn().Str("map", mapName).Str("key", key).Msg("key not found")
			if exit == 0 {
				exit = 1
			}
		default:
			log.Error().
				Str("map", mapName).
				Str("key", key).
				Str("status", string(reply.Status)).
				Str("text", reply.Text).
				Msg("lookup rejected")
			exit = 2
		}
	}
	return exit
}

func loadTargets(path string) (queryConfigFile, error) {
	var cfg queryConfigFile
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return queryConfigFile{}, fmt.Errorf("load targets: %w", err)
	}
	return cfg, nil
}

// resolveTarget picks the named target, falling back to default_target and
// then to a sole configured entry.
func resolveTarget(cfg queryConfigFile, name string) (targetConfig, error) {
	if len(cfg.Targets) == 0 {
		return targetConfig{}, fmt.Errorf("targets file has no targets")
	}
	want := strings.TrimSpace(name)
	if want == "" {
		want = strings.TrimSpace(cfg.DefaultTarget)
	}
	if want == "" {
		if len(cfg.Targets) == 1 {
			return cfg.Targets[0], nil
		}
		return targetConfig{}, fmt.Errorf("multiple targets configured; pass -target or set default_target")
	}
	for _, target := range cfg.Targets {
		if strings.TrimSpace(target.Name) == want {
			if strings.TrimSpace(target.Addr) == "" {
				return targetConfig{}, fmt.Errorf("target %q has no addr", want)
			}
			return target, nil
		}
	}
	return targetConfig{}, fmt.Errorf("target %q not found", want)
}
