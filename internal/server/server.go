package server

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nsmapd/nsmapd/internal/lookup"
	"github.com/nsmapd/nsmapd/internal/protocol/socketmap"
)

var (
	ErrListenAddrRequired       = errors.New("server: listen address required")
	ErrInvalidHeartbeatInterval = errors.New("server: invalid heartbeat interval")
	ErrUnknownMapKind           = errors.New("server: unknown map kind")
)

// ServiceConfig configures nsmapd standalone runtime defaults.
type ServiceConfig struct {
	Name              string
	ListenAddr        string
	AdminListenAddr   string
	AdminToken        string
	CORSOrigins       []string
	SecurityMode      socketmap.SecurityMode
	TLS               socketmap.TLSConfig
	MaxRequestLen     uint64
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	LookupTimeout     time.Duration
	HeartbeatInterval time.Duration
	Maps              []MapSpec
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:              "nsmapd",
		ListenAddr:        "inet:127.0.0.1:9760",
		AdminListenAddr:   "",
		MaxRequestLen:     socketmap.DefaultMaxRequestLen,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		LookupTimeout:     5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Service runs the socketmap listener and optional admin plane as a
// standalone process.
type Service struct {
	cfg      ServiceConfig
	registry *lookup.Registry
	started  time.Time

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	clientCount atomic.Int64
	requests    atomic.Uint64
	decodeDrops atomic.Uint64
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "nsmapd"
	}
	if cfg.MaxRequestLen == 0 {
		cfg.MaxRequestLen = socketmap.DefaultMaxRequestLen
	}
	return &Service{
		cfg:     cfg,
		conns:   make(map[net.Conn]struct{}),
		started: time.Now(),
	}
}

// Run blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.bootstrap(); err != nil {
		return err
	}
	defer s.closeRegistry()
	return s.serve(ctx)
}

// bootstrap validates config and builds the map registry.
func (s *Service) bootstrap() error {
	if strings.TrimSpace(s.cfg.ListenAddr) == "" {
		return ErrListenAddrRequired
	}
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if err := s.transportConfig().ValidateServerTransport(); err != nil {
		return err
	}

	reg, err := BuildRegistry(s.cfg.Maps)
	if err != nil {
		return err
	}
	s.registry = reg

	metas := reg.ListMetadata()
	if len(metas) == 0 {
		log.Warn().Msg("no maps configured; every lookup will answer PERM")
	}
	log.Info().
		Str("name", s.cfg.Name).
		Int("maps", len(metas)).
		Msg("nsmapd bootstrap ready")
	return nil
}

// serve runs both listeners plus the heartbeat until ctx cancels. A
// failure in either listener cancels the group and surfaces through
// Wait; plain shutdown returns nil from every branch.
func (s *Service) serve(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("socketmap listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(ctx, ln)
	})
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		g.Go(func() error {
			return s.serveAdmin(ctx, addr)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("nsmapd shutdown")
				return nil
			case <-ticker.C:
				stats := s.Stats()
				log.Info().
					Int64("active_clients", stats.ActiveClients).
					Uint64("requests", stats.Requests).
					Uint64("decode_drops", stats.DecodeDrops).
					Int("maps", stats.Maps).
					Msg("nsmapd heartbeat")
			}
		}
	})
	return g.Wait()
}

func (s *Service) transportConfig() socketmap.Config {
	cfg := socketmap.DefaultConfig()
	cfg.SecurityMode = s.cfg.SecurityMode
	cfg.TLS = s.cfg.TLS
	if s.cfg.ReadTimeout > 0 {
		cfg.ReadTimeout = s.cfg.ReadTimeout
	}
	if s.cfg.WriteTimeout > 0 {
		cfg.WriteTimeout = s.cfg.WriteTimeout
	}
	return cfg
}

func (s *Service) closeRegistry() {
	if s.registry == nil {
		return
	}
	if err := s.registry.Close(); err != nil {
		log.Warn().Err(err).Msg("closing maps")
	}
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// closeAllConns closes and drains tracked connections on shutdown.
func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

// Stats is the admin-plane runtime counters payload.
type Stats struct {
	Name          string `json:"name"`
	Uptime        string `json:"uptime"`
	ActiveClients int64  `json:"active_clients"`
	Requests      uint64 `json:"requests"`
	DecodeDrops   uint64 `json:"decode_drops"`
	Maps          int    `json:"maps"`
}

func (s *Service) Stats() Stats {
	maps := 0
	if s.registry != nil {
		maps = len(s.registry.ListMetadata())
	}
	return Stats{
		Name:          s.cfg.Name,
		Uptime:        time.Since(s.started).String(),
		ActiveClients: s.clientCount.Load(),
		Requests:      s.requests.Load(),
		DecodeDrops:   s.decodeDrops.Load(),
		Maps:          maps,
	}
}
