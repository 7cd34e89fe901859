package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/config"
	"github.com/nsmapd/nsmapd/internal/observability"
	"github.com/nsmapd/nsmapd/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to nsmapd config file")
	listenAddr := flag.String("listen", "", "socketmap listen address (overrides config)")
	adminAddr := flag.String("admin", "", "admin listen address (overrides config)")
	flag.Parse()

	observability.InitLogger("nsmapd")

	cfg := server.DefaultServiceConfig()
	if *configPath != "" {
		fileCfg, err := config.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load nsmapd config")
		}
		cfg, err = config.Runtime(fileCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid nsmapd config")
		}
		log.Info().Str("path", *configPath).Msg("loaded nsmapd config")
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *adminAddr != "" {
		cfg.AdminListenAddr = *adminAddr
	}

	svc := server.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		log.Fatal().Err(err).Msg("nsmapd stopped")
	}
}
