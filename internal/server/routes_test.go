package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nsmapd/nsmapd/internal/testutil/testlog"
)

func adminGet(engine http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func adminPost(engine http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func TestAdminHealthReadyMaps(t *testing.T) {
	testlog.Start(t)

	svc := newStaticService(t, map[string]string{"alice": "alice@example.com"})
	engine := svc.newAdminEngine()

	rr := adminGet(engine, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health payload: %v", err)
	}
	if health["status"] != "ok" || health["component"] != "nsmapd-admin" {
		t.Fatalf("health payload = %v", health)
	}

	rr = adminGet(engine, "/ready")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ready = %d, want 200", rr.Code)
	}
	var ready map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &ready); err != nil {
		t.Fatalf("decoding ready payload: %v", err)
	}
	if ready["ready"] != true {
		t.Fatalf("ready payload = %v", ready)
	}

	rr = adminGet(engine, "/maps")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /maps = %d, want 200", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "aliases") {
		t.Fatalf("GET /maps body %q missing aliases entry", body)
	}
}

func TestAdminStatsCountsDispatches(t *testing.T) {
	testlog.Start(t)

	svc := newStaticService(t, map[string]string{"alice": "alice@example.com"})
	svc.dispatch([]byte("aliases alice"))
	engine := svc.newAdminEngine()

	rr := adminGet(engine, "/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /stats = %d, want 200", rr.Code)
	}
	var stats Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats payload: %v", err)
	}
	if stats.Requests != 1 || stats.Maps != 1 {
		t.Fatalf("stats = %+v, want requests=1 maps=1", stats)
	}
}

func TestAdminMetricsExposesLookupSeries(t *testing.T) {
	testlog.Start(t)

	svc := newStaticService(t, map[string]string{"alice": "alice@example.com"})
	svc.dispatch([]byte("aliases alice"))
	engine := svc.newAdminEngine()

	rr := adminGet(engine, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "nsmapd_socketmap_requests_total") {
		t.Fatal("metrics output missing nsmapd_socketmap_requests_total series")
	}
}

func TestAdminReloadRequiresToken(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "aliases.map")
	if err := os.WriteFile(path, []byte("alice alice@example.com\n"), 0o644); err != nil {
		t.Fatalf("writing map file: %v", err)
	}

	cfg := DefaultServiceConfig()
	cfg.ListenAddr = "inet:127.0.0.1:0"
	cfg.AdminToken = "sekrit"
	cfg.Maps = []MapSpec{{Name: "aliases", Kind: "static", Path: path}}
	svc := NewServiceWithConfig(cfg)
	if err := svc.bootstrap(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer svc.closeRegistry()
	engine := svc.newAdminEngine()

	if rr := adminPost(engine, "/maps/aliases/reload", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("reload without token = %d, want 401", rr.Code)
	}
	if rr := adminPost(engine, "/maps/aliases/reload", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("reload with wrong token = %d, want 401", rr.Code)
	}
	if rr := adminPost(engine, "/maps/nosuch/reload", "sekrit"); rr.Code != http.StatusNotFound {
		t.Fatalf("reload of unknown map = %d, want 404", rr.Code)
	}

	// Rewrite the source file, reload, and confirm lookups see the change.
	if err := os.WriteFile(path, []byte("alice rerouted@example.com\n"), 0o644); err != nil {
		t.Fatalf("rewriting map file: %v", err)
	}
	rr := adminPost(engine, "/maps/aliases/reload", "sekrit")
	if rr.Code != http.StatusOK {
		t.Fatalf("reload = %d body=%s, want 200", rr.Code, rr.Body.String())
	}
	reply := svc.dispatch([]byte("aliases alice"))
	if reply.Text != "rerouted@example.com" {
		t.Fatalf("post-reload lookup = %q, want rerouted@example.com", reply.Text)
	}
}

func TestAdminReloadInlineMapIsRejected(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultServiceConfig()
	cfg.ListenAddr = "inet:127.0.0.1:0"
	cfg.AdminToken = "sekrit"
	cfg.Maps = []MapSpec{{Name: "aliases", Kind: "static", Entries: map[string]string{"a": "b"}}}
	svc := NewServiceWithConfig(cfg)
	if err := svc.bootstrap(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer svc.closeRegistry()
	engine := svc.newAdminEngine()

	if rr := adminPost(engine, "/maps/aliases/reload", "sekrit"); rr.Code != http.StatusBadRequest {
		t.Fatalf("inline map reload = %d, want 400", rr.Code)
	}
}
