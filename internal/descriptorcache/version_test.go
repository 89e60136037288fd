package descriptorcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUnreachable = errors.New("endpoint unreachable")

// TestCheckNeedsUpdate_NoCacheIsPessimistic (P10): with no prior baseline,
// the verdict must be true even though the probe itself succeeds, since
// there is nothing to compare against.
func TestCheckNeedsUpdate_NoCacheIsPessimistic(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	needsUpdate, current, cached, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", time.Hour, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1.0.0"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !needsUpdate {
		t.Error("expected pessimistic true on first-ever probe")
	}
	if current != "v1.0.0" {
		t.Errorf("current = %q, want v1.0.0", current)
	}
	if cached != "" {
		t.Errorf("cached = %q, want empty (no prior baseline)", cached)
	}
}

// TestCheckNeedsUpdate_WithinIntervalUsesCachedVerdict (P10): a second call
// inside the configured interval must not invoke probe again and must
// return the previously computed verdict.
func TestCheckNeedsUpdate_WithinIntervalUsesCachedVerdict(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)
	calls := 0
	probe := func(ctx context.Context) (VersionProbe, error) {
		calls++
		return VersionProbe{AppVersion: "v1.0.0"}, nil
	}

	if _, _, _, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", time.Hour, probe); err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	needsUpdate, _, cached, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", time.Hour, probe)
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("probe called %d times, want 1 (second check should hit cache)", calls)
	}
	if !needsUpdate {
		t.Error("expected cached verdict (true, from the pessimistic first probe) to be reused")
	}
	if cached != "v1.0.0" {
		t.Errorf("cached = %q, want v1.0.0", cached)
	}
}

// TestCheckNeedsUpdate_VersionChangeDetected (P10): once a baseline exists,
// a probe returning a different app_version must flip the verdict to true,
// and report both the newly observed current_version and the previously
// cached_version (spec.md §8 scenario 6).
func TestCheckNeedsUpdate_VersionChangeDetected(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	if _, _, _, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1.0.0"}, nil
	}); err != nil {
		t.Fatalf("first check failed: %v", err)
	}

	needsUpdate, current, cached, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1.0.1"}, nil
	})
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if !needsUpdate {
		t.Error("expected version change to be detected as needing update")
	}
	if current != "v1.0.1" {
		t.Errorf("current = %q, want v1.0.1", current)
	}
	if cached != "v1.0.0" {
		t.Errorf("cached = %q, want v1.0.0", cached)
	}

	needsUpdate, _, _, err = cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1.0.1"}, nil
	})
	if err != nil {
		t.Fatalf("third check failed: %v", err)
	}
	if needsUpdate {
		t.Error("expected matching version to report no update needed")
	}
}

// TestCheckNeedsUpdate_VersionChangeScenarioVector pins spec.md §8
// scenario 6 exactly: seed the version cache with app_version=v1, mock the
// live probe to return v2, and assert needs_update=true, current=v2,
// cached=v1.
func TestCheckNeedsUpdate_VersionChangeScenarioVector(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	if _, _, _, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1"}, nil
	}); err != nil {
		t.Fatalf("seeding baseline failed: %v", err)
	}

	needsUpdate, current, cached, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v2"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !needsUpdate {
		t.Error("needs_update = false, want true")
	}
	if current != "v2" {
		t.Errorf("current = %q, want v2", current)
	}
	if cached != "v1" {
		t.Errorf("cached = %q, want v1", cached)
	}
}

// TestCheckNeedsUpdate_FetchFailureFallsBackToStaleBaseline (P10): once a
// baseline exists, a probe failure must not propagate as a hard error, and
// must report needs_update=false regardless of what the last live verdict
// happened to be - a version bump detected before the endpoint went dark
// must not be replayed as a false positive forever.
func TestCheckNeedsUpdate_FetchFailureFallsBackToStaleBaseline(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	if _, _, _, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1.0.0"}, nil
	}); err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	// Detect a version bump, so the last computed verdict is needs_update=true.
	needsUpdate, _, _, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{AppVersion: "v1.0.1"}, nil
	})
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if !needsUpdate {
		t.Fatal("expected the version bump to be detected before exercising the failure path")
	}

	needsUpdate, _, cached, err := cache.CheckNeedsUpdate(context.Background(), "chain-1", 0, func(ctx context.Context) (VersionProbe, error) {
		return VersionProbe{}, errUnreachable
	})
	if err != nil {
		t.Fatalf("expected stale-but-usable fallback, got error: %v", err)
	}
	if needsUpdate {
		t.Error("expected needs_update=false on probe failure regardless of the last live verdict")
	}
	if cached != "v1.0.1" {
		t.Errorf("cached = %q, want v1.0.1", cached)
	}
}
