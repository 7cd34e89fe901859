// Package pebbledb serves lookups from a pebble table directory built by
// nstab. The daemon opens tables read-only; the builder owns writes.
package pebbledb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/nsmapd/nsmapd/internal/lookup"
)

// Kind is the map kind served by this package.
const Kind = "pebble"

// flushEvery bounds builder batch memory on large input files.
const flushEvery = 10000

// Table is a read-only pebble-backed lookup table.
type Table struct {
	meta lookup.MapMetadata
	path string

	mu sync.RWMutex
	db *pebble.DB
}

// Open opens an existing table directory read-only.
func Open(name, path string) (*Table, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &Table{
		meta: lookup.MapMetadata{
			Name:        name,
			Kind:        Kind,
			Description: fmt.Sprintf("pebble table at %s", path),
		},
		path: path,
		db:   db,
	}, nil
}

func openReadOnly(path string) (*pebble.DB, error) {
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("pebbledb: open %s: %w", path, err)
	}
	return db, nil
}

func (t *Table) Metadata() lookup.MapMetadata {
	return t.meta
}

func (t *Table) Lookup(_ context.Context, key string) (string, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.db == nil {
		return "", false, fmt.Errorf("pebbledb: %s: table closed", t.meta.Name)
	}

	value, closer, err := t.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("pebbledb: %s: %w", t.meta.Name, err)
	}
	out := string(value)
	if err := closer.Close(); err != nil {
		return "", false, fmt.Errorf("pebbledb: %s: %w", t.meta.Name, err)
	}
	return out, true, nil
}

// Reload reopens the table directory, picking up a table nstab swapped
// in underneath the daemon.
func (t *Table) Reload() error {
	fresh, err := openReadOnly(t.path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	old := t.db
	t.db = fresh
	t.mu.Unlock()
	if old != nil {
		return old.Close()
	}
	return nil
}

func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

// Builder writes a table directory entry by entry.
type Builder struct {
	db    *pebble.DB
	batch *pebble.Batch
}

// Create opens path writable, creating the directory as needed.
func Create(path string) (*Builder, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebbledb: create %s: %w", path, err)
	}
	return &Builder{db: db, batch: db.NewBatch()}, nil
}

func (b *Builder) Put(key, value string) error {
	if err := b.batch.Set([]byte(key), []byte(value), nil); err != nil {
		return err
	}
	if b.batch.Count() >= flushEvery {
		return b.flush(pebble.NoSync)
	}
	return nil
}

// Close commits remaining entries and releases the table.
func (b *Builder) Close() error {
	flushErr := b.flush(pebble.Sync)
	closeErr := b.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (b *Builder) flush(opts *pebble.WriteOptions) error {
	if err := b.db.Apply(b.batch, opts); err != nil {
		_ = b.batch.Close()
		b.batch = b.db.NewBatch()
		return fmt.Errorf("pebbledb: commit batch: %w", err)
	}
	if err := b.batch.Close(); err != nil {
		b.batch = b.db.NewBatch()
		return err
	}
	b.batch = b.db.NewBatch()
	return nil
}
