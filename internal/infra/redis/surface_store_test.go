package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"ipzy-gateway/internal/app"
)

func TestSurfaceStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSurfaceStore(newClient(mr), time.Minute, nil)
	s := store.Open("tab-1")

	s.Set(app.KeyPostLoginRedirect, app.PathLoading)
	if got := mr.HGet("ipzy:tab:tab-1", app.KeyPostLoginRedirect); got != app.PathLoading {
		t.Fatalf("expected hash field set, got %q", got)
	}
	if ttl := mr.TTL("ipzy:tab:tab-1"); ttl != time.Minute {
		t.Fatalf("expected sliding ttl, got %v", ttl)
	}
	if v, ok := s.Get(app.KeyPostLoginRedirect); !ok || v != app.PathLoading {
		t.Fatalf("expected value back, got %q %v", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatalf("expected missing key absent")
	}

	s.Remove(app.KeyPostLoginRedirect)
	if _, ok := s.Get(app.KeyPostLoginRedirect); ok {
		t.Fatalf("expected key removed")
	}

	s.Set("k", "v")
	store.Clear("tab-1")
	if mr.Exists("ipzy:tab:tab-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSurfaceStoreSupportsSnapshotHelpers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	s := NewSurfaceStore(newClient(mr), time.Minute, nil).Open("tab-2")
	s.Set(app.KeyPendingAnswers, `{"1":"date","2":"casual"}`)
	s.Set("auth_user", `{"id":"u1"}`)
	s.Set("auth_expires", "0")

	answers, ok, err := app.PendingAnswers(s)
	if !ok || err != nil {
		t.Fatalf("expected parked answers, ok=%v err=%v", ok, err)
	}
	if answers[2] != "casual" {
		t.Fatalf("unexpected answers %v", answers)
	}

	if removed := app.RemovePrefixed(s, app.AuthKeyPrefix); removed != 2 {
		t.Fatalf("expected 2 auth keys removed, got %d", removed)
	}
	if keys := s.Keys(""); len(keys) != 1 || keys[0] != app.KeyPendingAnswers {
		t.Fatalf("unexpected remaining keys %v", keys)
	}
}
