package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/auth"
	"github.com/nsmapd/nsmapd/internal/lookup"
	"github.com/nsmapd/nsmapd/internal/observability"
)

// serveAdmin runs the HTTP admin plane until ctx cancels.
func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.newAdminEngine(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("admin listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Service) newAdminEngine() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s.registerAdminRoutes(r)
	return r
}

func (s *Service) registerAdminRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": "nsmapd-admin",
			"version":   "0.1.0",
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":     s.registry != nil,
			"uptime":    time.Since(s.started).String(),
			"component": "nsmapd-admin",
			"version":   "0.1.0",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/maps", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"maps": s.registry.ListMetadata(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Stats())
	})

	r.POST("/maps/:name/reload", s.requireAdminToken(), s.handleMapReload)
}

// requireAdminToken gates mutating admin routes behind the shared token.
// With no token configured every request is denied.
func (s *Service) requireAdminToken() gin.HandlerFunc {
	validator := auth.StaticToken{Token: s.cfg.AdminToken}
	return func(c *gin.Context) {
		token, _ := auth.BearerToken(c.GetHeader("Authorization"))
		if err := validator.Validate(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Service) handleMapReload(c *gin.Context) {
	name := c.Param("name")
	m, ok := s.registry.Resolve(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "map not found"})
		return
	}

	err := lookup.ErrNotReloadable
	if reloader, ok := m.(lookup.Reloader); ok {
		err = reloader.Reload()
	}
	switch {
	case errors.Is(err, lookup.ErrNotReloadable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "map does not support reload"})
	case err != nil:
		log.Warn().Str("map", name).Err(err).Msg("map reload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		log.Info().Str("map", name).Msg("map reloaded")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "map": name})
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
