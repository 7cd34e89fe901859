package server

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/observability"
	"github.com/nsmapd/nsmapd/internal/protocol/netstring"
	"github.com/nsmapd/nsmapd/internal/protocol/socketmap"
)

// listen builds the socketmap listener for TCP, unix, or TLS transport.
func (s *Service) listen() (net.Listener, error) {
	network, address := socketmap.SplitNetworkAddress(strings.TrimSpace(s.cfg.ListenAddr))
	if !s.cfg.TLS.Enabled {
		return net.Listen(network, address)
	}
	tlsCfg, err := s.serverTLSConfig()
	if err != nil {
		return nil, err
	}
	return tls.Listen(network, address, tlsCfg)
}

func (s *Service) serverTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}

	if s.cfg.TLS.Mutual {
		caPEM, err := os.ReadFile(s.cfg.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("server: parse tls ca bundle: %s", s.cfg.TLS.CAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// Serve accepts socketmap clients on ln until ctx is canceled.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

// handleConn answers request netstrings one at a time until the client
// goes away or breaks framing.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	observability.ConnectionOpened()
	defer observability.ConnectionClosed()

	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("socketmap client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("socketmap client disconnected")
	}()

	reader := bufio.NewReader(conn)
	maxLen := s.cfg.MaxRequestLen
	accept := func(length uint64) bool { return length <= maxLen }
	var buf bytes.Buffer

	for {
		buf.Reset()
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		// A close or idle timeout between records is a normal exit;
		// anything inside a record is not.
		if _, err := reader.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Str("remote", remote).Err(err).Msg("socketmap connection idle close")
			}
			return
		}

		if _, err := netstring.Decode(reader, accept, &buf); err != nil {
			kind := decodeErrorKind(err)
			s.decodeDrops.Add(1)
			observability.RecordDecodeError(kind)
			log.Warn().
				Str("remote", remote).
				Str("kind", kind).
				Err(err).
				Msg("socketmap request decode failed")
			return
		}

		reply := s.dispatch(buf.Bytes())
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := socketmap.WriteReply(conn, reply); err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("socketmap reply write failed")
			return
		}
	}
}
