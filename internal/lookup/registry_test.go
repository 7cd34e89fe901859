package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/nsmapd/nsmapd/internal/testutil/testlog"
)

type fakeMap struct {
	meta    MapMetadata
	entries map[string]string
	closed  bool
}

func (f *fakeMap) Metadata() MapMetadata {
	return f.meta
}

func (f *fakeMap) Lookup(_ context.Context, key string) (string, bool, error) {
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *fakeMap) Close() error {
	f.closed = true
	return nil
}

func TestRegisterResolveAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	m := &fakeMap{meta: MapMetadata{Name: "aliases", Kind: "static", Description: "test aliases"}}

	if err := r.Register(m); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(m); !errors.Is(err, ErrMapExists) {
		t.Fatalf("expected ErrMapExists, got %v", err)
	}
	got, ok := r.Resolve("aliases")
	if !ok || got.Metadata().Name != "aliases" {
		t.Fatalf("resolve failed: ok=%v name=%q", ok, got.Metadata().Name)
	}
}

func TestResolveMissingMap(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, ok := r.Resolve("missing"); ok {
		t.Fatalf("expected missing map to return ok=false")
	}
}

func TestRegisterNilMap(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register(nil); !errors.Is(err, ErrMapNil) {
		t.Fatalf("expected ErrMapNil, got %v", err)
	}
}

func TestValidateMetadataNameFormat(t *testing.T) {
	testlog.Start(t)
	valid := []string{"aliases", "virtual-alias", "relay_domains", "maps.prod", "a1"}
	for _, name := range valid {
		meta := MapMetadata{Name: name, Kind: "static"}
		if err := ValidateMetadata(meta); err != nil {
			t.Fatalf("%q: expected valid, got %v", name, err)
		}
	}

	invalid := []string{"", "Aliases", "has space", "-lead", "trail-", "a..b", "ünicode"}
	for _, name := range invalid {
		meta := MapMetadata{Name: name, Kind: "static"}
		if err := ValidateMetadata(meta); !errors.Is(err, ErrInvalidMetadata) {
			t.Fatalf("%q: expected ErrInvalidMetadata, got %v", name, err)
		}
	}
}

func TestListMetadataDeterministicOrder(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, name := range []string{"relay", "aliases", "virtual"} {
		m := &fakeMap{meta: MapMetadata{Name: name, Kind: "static"}}
		if err := r.Register(m); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	list := r.ListMetadata()
	if len(list) != 3 || list[0].Name != "aliases" || list[1].Name != "relay" || list[2].Name != "virtual" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestRegistryCloseClosesAll(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	maps := []*fakeMap{
		{meta: MapMetadata{Name: "one", Kind: "static"}},
		{meta: MapMetadata{Name: "two", Kind: "static"}},
	}
	for _, m := range maps {
		if err := r.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, m := range maps {
		if !m.closed {
			t.Fatalf("map %s not closed", m.meta.Name)
		}
	}
}
