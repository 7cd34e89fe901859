package pebbledb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func buildTable(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	b, err := Create(path)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", path, err)
	}
	for k, v := range entries {
		if err := b.Put(k, v); err != nil {
			t.Fatalf("Put(%q) failed: %v", k, err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("builder Close failed: %v", err)
	}
}

func TestBuildOpenLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.pebble")
	buildTable(t, path, map[string]string{
		"alice": "alice@example.com",
		"bob":   "bob@example.org",
	})

	tab, err := Open("aliases", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tab.Close()

	if got := tab.Metadata().Kind; got != Kind {
		t.Fatalf("Metadata().Kind = %q, want %q", got, Kind)
	}

	value, found, err := tab.Lookup(context.Background(), "alice")
	if err != nil || !found {
		t.Fatalf("Lookup(alice) = (%q, %v, %v)", value, found, err)
	}
	if value != "alice@example.com" {
		t.Fatalf("Lookup(alice) = %q, want %q", value, "alice@example.com")
	}

	if _, found, err := tab.Lookup(context.Background(), "carol"); err != nil || found {
		t.Fatalf("Lookup(carol) = (found=%v, err=%v), want miss", found, err)
	}
}

func TestOpenMissingTable(t *testing.T) {
	if _, err := Open("absent", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Open on a missing directory should fail")
	}
}

func TestReloadPicksUpRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.pebble")
	buildTable(t, path, map[string]string{"host": "one"})

	tab, err := Open("relay", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tab.Close()

	value, _, err := tab.Lookup(context.Background(), "host")
	if err != nil || value != "one" {
		t.Fatalf("Lookup before reload = (%q, %v), want one", value, err)
	}

	// Rebuild the directory the way nstab does, then reopen.
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	buildTable(t, path, map[string]string{"host": "two"})

	if err := tab.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	value, _, err = tab.Lookup(context.Background(), "host")
	if err != nil || value != "two" {
		t.Fatalf("Lookup after reload = (%q, %v), want two", value, err)
	}
}

func TestLookupAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.pebble")
	buildTable(t, path, map[string]string{"k": "v"})

	tab, err := Open("closed", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := tab.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, err := tab.Lookup(context.Background(), "k"); err == nil {
		t.Fatal("Lookup on a closed table should fail")
	}
	if err := tab.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}
