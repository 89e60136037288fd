package statusserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ibc-tools/escrow-auditor/internal/descriptorcache"
)

type fakeCache struct {
	occupancy descriptorcache.Occupancy
}

func (f fakeCache) Occupancy() descriptorcache.Occupancy { return f.occupancy }

func newTestHandler(t *testing.T, cache CacheInspector) http.Handler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RatePerMinute = 0
	srv := NewServer(cfg, cache)
	return srv.httpServer.Handler
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", body["status"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	handler := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCacheEndpoint_ReportsOccupancy(t *testing.T) {
	cache := fakeCache{occupancy: descriptorcache.Occupancy{SchemaEntries: 3, VersionEntries: 1, SchemaCapacity: 256, VersionCapacity: 256}}
	handler := newTestHandler(t, cache)

	req := httptest.NewRequest(http.MethodGet, "/cache", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got descriptorcache.Occupancy
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != cache.occupancy {
		t.Errorf("Occupancy = %+v, want %+v", got, cache.occupancy)
	}
}

func TestCacheEndpoint_NilInspectorReturnsZeroValue(t *testing.T) {
	handler := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/cache", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint_Served(t *testing.T) {
	handler := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
