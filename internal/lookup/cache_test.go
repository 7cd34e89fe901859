package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nsmapd/nsmapd/internal/testutil/testlog"
)

type countingMap struct {
	entries map[string]string
	calls   int
	err     error
}

func (c *countingMap) Metadata() MapMetadata {
	return MapMetadata{Name: "counting", Kind: "static"}
}

func (c *countingMap) Lookup(_ context.Context, key string) (string, bool, error) {
	c.calls++
	if c.err != nil {
		return "", false, c.err
	}
	value, ok := c.entries[key]
	return value, ok, nil
}

func (c *countingMap) Close() error { return nil }

func TestCachedServesRepeatsFromCache(t *testing.T) {
	testlog.Start(t)
	inner := &countingMap{entries: map[string]string{"alice": "alice@example.net"}}
	cached := NewCached(inner, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		value, found, err := cached.Lookup(ctx, "alice")
		if err != nil || !found || value != "alice@example.net" {
			t.Fatalf("lookup %d: value=%q found=%v err=%v", i, value, found, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("backend called %d times, want 1", inner.calls)
	}
}

func TestCachedCachesMisses(t *testing.T) {
	testlog.Start(t)
	inner := &countingMap{entries: map[string]string{}}
	cached := NewCached(inner, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, found, err := cached.Lookup(ctx, "absent"); found || err != nil {
			t.Fatalf("lookup %d: found=%v err=%v", i, found, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("backend called %d times for a repeated miss, want 1", inner.calls)
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	testlog.Start(t)
	errBackend := errors.New("backend down")
	inner := &countingMap{err: errBackend}
	cached := NewCached(inner, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := cached.Lookup(ctx, "alice"); !errors.Is(err, errBackend) {
			t.Fatalf("lookup %d: expected backend error, got %v", i, err)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("backend called %d times, want every errored lookup to reach it", inner.calls)
	}
}

func TestCachedEvictsBeyondCapacity(t *testing.T) {
	testlog.Start(t)
	inner := &countingMap{entries: map[string]string{"a": "1", "b": "2"}}
	cached := NewCached(inner, 1, 0)
	ctx := context.Background()

	if _, _, err := cached.Lookup(ctx, "a"); err != nil {
		t.Fatalf("lookup a: %v", err)
	}
	if _, _, err := cached.Lookup(ctx, "b"); err != nil {
		t.Fatalf("lookup b: %v", err)
	}
	if _, _, err := cached.Lookup(ctx, "a"); err != nil {
		t.Fatalf("lookup a again: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("backend called %d times, want eviction to force a refetch", inner.calls)
	}
}

func TestCachedReloadRequiresReloadableInner(t *testing.T) {
	testlog.Start(t)
	inner := &countingMap{entries: map[string]string{}}
	cached := NewCached(inner, 4, 0)
	if err := cached.Reload(); !errors.Is(err, ErrNotReloadable) {
		t.Fatalf("expected ErrNotReloadable, got %v", err)
	}
}
