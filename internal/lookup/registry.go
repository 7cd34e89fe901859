package lookup

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrMapExists       = errors.New("lookup: map already registered")
	ErrMapNil          = errors.New("lookup: map is nil")
	ErrInvalidMetadata = errors.New("lookup: invalid map metadata")
	ErrNotReloadable   = errors.New("lookup: map does not support reload")
)

// Registry stores maps by name. It is built once at startup and read-only
// afterward.
type Registry struct {
	items map[string]Map
}

// NewRegistry creates an empty map registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Map)}
}

// ValidateMetadata checks required metadata fields and name format.
func ValidateMetadata(meta MapMetadata) error {
	name := strings.TrimSpace(meta.Name)
	kind := strings.TrimSpace(meta.Kind)
	if name == "" || kind == "" {
		return fmt.Errorf("%w: name and kind are required", ErrInvalidMetadata)
	}
	if !isValidName(name) {
		return fmt.Errorf("%w: invalid name format %q", ErrInvalidMetadata, name)
	}
	return nil
}

// Register adds a map under its metadata name.
func (r *Registry) Register(m Map) error {
	if m == nil {
		return ErrMapNil
	}

	meta := m.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}

	if _, ok := r.items[meta.Name]; ok {
		return fmt.Errorf("%w: %s", ErrMapExists, meta.Name)
	}
	r.items[meta.Name] = m
	return nil
}

// Resolve returns a map by name.
func (r *Registry) Resolve(name string) (Map, bool) {
	m, ok := r.items[name]
	return m, ok
}

// ListMetadata returns deterministic metadata ordering by name.
func (r *Registry) ListMetadata() []MapMetadata {
	list := make([]MapMetadata, 0, len(r.items))
	for _, m := range r.items {
		list = append(list, m.Metadata())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Close closes every registered map and returns the first failure.
func (r *Registry) Close() error {
	var first error
	for _, m := range r.items {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// isValidName enforces lowercase names with digits and ./-/_ separators,
// the shape Postfix map names take on the wire.
func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(name)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
