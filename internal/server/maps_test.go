package server

import (
	"context"
	"errors"
	"testing"

	"github.com/nsmapd/nsmapd/internal/lookup"
	"github.com/nsmapd/nsmapd/internal/testutil/testlog"
)

func TestBuildRegistryStaticInline(t *testing.T) {
	testlog.Start(t)

	reg, err := BuildRegistry([]MapSpec{
		{Name: "aliases", Kind: "static", Entries: map[string]string{"alice": "alice@example.com"}},
	})
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}
	defer reg.Close()

	m, ok := reg.Resolve("aliases")
	if !ok {
		t.Fatal("aliases map not registered")
	}
	value, found, err := m.Lookup(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !found || value != "alice@example.com" {
		t.Fatalf("Lookup = (%q, %v), want (alice@example.com, true)", value, found)
	}
}

func TestBuildRegistryUnknownKind(t *testing.T) {
	testlog.Start(t)

	_, err := BuildRegistry([]MapSpec{{Name: "aliases", Kind: "sqlite"}})
	if !errors.Is(err, ErrUnknownMapKind) {
		t.Fatalf("BuildRegistry error = %v, want ErrUnknownMapKind", err)
	}
}

func TestBuildRegistryDuplicateName(t *testing.T) {
	testlog.Start(t)

	_, err := BuildRegistry([]MapSpec{
		{Name: "aliases", Kind: "static"},
		{Name: "aliases", Kind: "static"},
	})
	if !errors.Is(err, lookup.ErrMapExists) {
		t.Fatalf("BuildRegistry error = %v, want ErrMapExists", err)
	}
}

func TestBuildRegistryWrapsCachedMaps(t *testing.T) {
	testlog.Start(t)

	reg, err := BuildRegistry([]MapSpec{
		{Name: "aliases", Kind: "static", Entries: map[string]string{"a": "b"}, CacheMaxEntries: 8},
	})
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}
	defer reg.Close()

	m, ok := reg.Resolve("aliases")
	if !ok {
		t.Fatal("aliases map not registered")
	}
	if _, isCached := m.(*lookup.Cached); !isCached {
		t.Fatalf("registered map is %T, want *lookup.Cached", m)
	}

	value, found, err := m.Lookup(context.Background(), "a")
	if err != nil || !found || value != "b" {
		t.Fatalf("cached Lookup = (%q, %v, %v), want (b, true, nil)", value, found, err)
	}
}
