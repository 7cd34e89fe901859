package server

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/observability"
	"github.com/nsmapd/nsmapd/internal/protocol/netstring"
	"github.com/nsmapd/nsmapd/internal/protocol/socketmap"
)

// dispatch resolves one decoded request payload to a reply. Bad requests
// and unknown maps are PERM; backend failures are TEMP so the client may
// retry; a lookup that outlives its budget is TIMEOUT.
func (s *Service) dispatch(payload []byte) socketmap.Reply {
	start := time.Now()
	s.requests.Add(1)

	req, err := socketmap.ParseRequest(payload)
	if err != nil {
		log.Warn().Err(err).Msg("socketmap request rejected")
		return s.record("invalid", start, socketmap.Reply{
			Status: socketmap.StatusPerm,
			Text:   "invalid request",
		})
	}

	m, ok := s.registry.Resolve(req.Name)
	if !ok {
		return s.record(req.Name, start, socketmap.Reply{
			Status: socketmap.StatusPerm,
			Text:   "no such map " + req.Name,
		})
	}

	ctx := context.Background()
	if s.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()
	}

	value, found, err := m.Lookup(ctx, req.Key)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Str("map", req.Name).Msg("lookup timed out")
		return s.record(req.Name, start, socketmap.Reply{
			Status: socketmap.StatusTimeout,
			Text:   "lookup timed out",
		})
	case err != nil:
		log.Warn().Str("map", req.Name).Err(err).Msg("lookup backend failed")
		return s.record(req.Name, start, socketmap.Reply{
			Status: socketmap.StatusTemp,
			Text:   "lookup failed",
		})
	case !found:
		return s.record(req.Name, start, socketmap.Reply{Status: socketmap.StatusNotFound})
	}

	// The reply payload carries "OK " plus the value and must stay inside
	// the bound the Postfix client enforces.
	if uint64(len(value))+uint64(len(socketmap.StatusOK))+1 > socketmap.DefaultMaxReplyLen {
		log.Warn().Str("map", req.Name).Int("value_len", len(value)).Msg("lookup value exceeds reply bound")
		return s.record(req.Name, start, socketmap.Reply{
			Status: socketmap.StatusTemp,
			Text:   "value too large",
		})
	}
	return s.record(req.Name, start, socketmap.Reply{Status: socketmap.StatusOK, Text: value})
}

func (s *Service) record(mapName string, start time.Time, reply socketmap.Reply) socketmap.Reply {
	observability.RecordLookup(mapName, string(reply.Status), time.Since(start))
	return reply
}

// decodeErrorKind maps a Decode failure onto its metric label.
func decodeErrorKind(err error) string {
	var lengthErr netstring.LengthError
	switch {
	case errors.As(err, &lengthErr):
		return "length"
	case errors.Is(err, netstring.ErrSyntax):
		return "syntax"
	case errors.Is(err, netstring.ErrOverflow):
		return "overflow"
	case errors.Is(err, netstring.ErrIncomplete):
		return "incomplete"
	default:
		return "io"
	}
}
