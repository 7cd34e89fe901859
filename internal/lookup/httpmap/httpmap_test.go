package httpmap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestLookupHitMissAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Name != "aliases" {
			t.Errorf("request name = %q, want aliases", req.Name)
		}
		resp := wireResponse{}
		if req.Key == "alice" {
			resp = wireResponse{Found: true, Value: "alice@example.com"}
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encoding response: %v", err)
		}
	}))
	defer srv.Close()

	tab, err := New(Config{Name: "aliases", URL: srv.URL, BearerToken: "sekrit"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tab.Close()

	value, found, err := tab.Lookup(context.Background(), "alice")
	if err != nil || !found || value != "alice@example.com" {
		t.Fatalf("Lookup(alice) = (%q, %v, %v)", value, found, err)
	}

	value, found, err = tab.Lookup(context.Background(), "nobody")
	if err != nil || found || value != "" {
		t.Fatalf("Lookup(nobody) = (%q, %v, %v), want miss", value, found, err)
	}
}

func TestLookupUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tab, err := New(Config{Name: "flaky", URL: srv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tab.Close()

	if _, _, err := tab.Lookup(context.Background(), "key"); err == nil {
		t.Fatal("Lookup should surface upstream failure")
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Config{Name: "bare"}); err == nil {
		t.Fatal("New without a URL should fail")
	}
}

func TestLookupSharesInflightRequests(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		if err := json.NewEncoder(w).Encode(wireResponse{Found: true, Value: "shared"}); err != nil {
			t.Errorf("encoding response: %v", err)
		}
	}))
	defer srv.Close()

	tab, err := New(Config{Name: "dedup", URL: srv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tab.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, found, err := tab.Lookup(context.Background(), "same-key")
			if err != nil || !found || value != "shared" {
				t.Errorf("Lookup = (%q, %v, %v)", value, found, err)
			}
		}()
	}
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Fatalf("upstream saw %d requests for one key, want 1", got)
	}
}
