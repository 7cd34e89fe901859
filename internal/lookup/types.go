package lookup

import "context"

// MapMetadata is the contract for map identity and display data.
type MapMetadata struct {
	Name        string
	Kind        string
	Description string
}

// Map is the lookup boundary used by request dispatch. Lookup reports the
// value and whether the key exists; a non-nil error means the backend
// itself failed, not that the key is absent.
type Map interface {
	Metadata() MapMetadata
	Lookup(ctx context.Context, key string) (value string, found bool, err error)
	Close() error
}

// Reloader is implemented by maps that can re-read their backing source.
type Reloader interface {
	Reload() error
}
