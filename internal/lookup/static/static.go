// Package static serves lookups from in-memory tables, either inline
// configuration entries or key/value files in Postfix texthash shape.
package static

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nsmapd/nsmapd/internal/lookup"
)

// Kind is the map kind served by this package.
const Kind = "static"

// Table is an in-memory lookup table.
type Table struct {
	meta lookup.MapMetadata
	path string

	mu      sync.RWMutex
	entries map[string]string
}

// New builds a table from inline entries.
func New(name string, entries map[string]string) *Table {
	copied := make(map[string]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Table{
		meta: lookup.MapMetadata{
			Name:        name,
			Kind:        Kind,
			Description: "in-memory table from configuration entries",
		},
		entries: copied,
	}
}

// Load builds a table from a key/value file.
func Load(name, path string) (*Table, error) {
	entries, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return &Table{
		meta: lookup.MapMetadata{
			Name:        name,
			Kind:        Kind,
			Description: fmt.Sprintf("table loaded from %s", path),
		},
		path:    path,
		entries: entries,
	}, nil
}

func (t *Table) Metadata() lookup.MapMetadata {
	return t.meta
}

func (t *Table) Lookup(_ context.Context, key string) (string, bool, error) {
	t.mu.RLock()
	value, ok := t.entries[key]
	t.mu.RUnlock()
	return value, ok, nil
}

// Reload re-reads the backing file. Tables built from inline entries have
// nothing to re-read.
func (t *Table) Reload() error {
	if t.path == "" {
		return lookup.ErrNotReloadable
	}
	entries, err := loadFile(t.path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
	return nil
}

func (t *Table) Close() error {
	return nil
}

func loadFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("static: open table: %w", err)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("static: %s: %w", path, err)
	}
	return entries, nil
}

// Parse reads key/value lines. Blank lines and #-comments are skipped;
// the key ends at the first space or tab and the trimmed remainder is the
// value. Duplicate keys keep the last occurrence.
func Parse(r io.Reader) (map[string]string, error) {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexAny(line, " \t")
		if idx < 0 {
			return nil, fmt.Errorf("line %d: missing value for key %q", lineno, line)
		}
		key := line[:idx]
		value := strings.TrimSpace(line[idx+1:])
		if value == "" {
			return nil, fmt.Errorf("line %d: missing value for key %q", lineno, key)
		}
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning table: %w", err)
	}
	return entries, nil
}
