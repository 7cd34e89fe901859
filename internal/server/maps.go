package server

import (
	"fmt"
	"time"

	"github.com/nsmapd/nsmapd/internal/lookup"
	"github.com/nsmapd/nsmapd/internal/lookup/httpmap"
	"github.com/nsmapd/nsmapd/internal/lookup/pebbledb"
	"github.com/nsmapd/nsmapd/internal/lookup/static"
)

// MapSpec describes one lookup table to build at startup.
type MapSpec struct {
	Name string
	Kind string

	// static and pebble tables read from Path; a static map may instead
	// carry inline Entries.
	Path    string
	Entries map[string]string

	// http maps forward to URL.
	URL            string
	BearerToken    string
	RequestTimeout time.Duration

	// CacheMaxEntries > 0 wraps the map in a TTL-bounded LRU.
	CacheMaxEntries int
	CacheTTL        time.Duration
}

// BuildRegistry constructs every configured map. On failure the maps
// built so far are closed.
func BuildRegistry(specs []MapSpec) (*lookup.Registry, error) {
	reg := lookup.NewRegistry()
	for _, spec := range specs {
		m, err := buildMap(spec)
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		if spec.CacheMaxEntries > 0 {
			m = lookup.NewCached(m, spec.CacheMaxEntries, spec.CacheTTL)
		}
		if err := reg.Register(m); err != nil {
			_ = m.Close()
			_ = reg.Close()
			return nil, err
		}
	}
	return reg, nil
}

func buildMap(spec MapSpec) (lookup.Map, error) {
	switch spec.Kind {
	case static.Kind:
		if spec.Path == "" {
			return static.New(spec.Name, spec.Entries), nil
		}
		return static.Load(spec.Name, spec.Path)
	case pebbledb.Kind:
		return pebbledb.Open(spec.Name, spec.Path)
	case httpmap.Kind:
		return httpmap.New(httpmap.Config{
			Name:           spec.Name,
			URL:            spec.URL,
			BearerToken:    spec.BearerToken,
			RequestTimeout: spec.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapKind, spec.Kind)
	}
}
