package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/domain"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.Fake(start)
	store := NewMemoryStore(clk)

	sess := domain.Session{ID: "s1", UserID: "u1", Role: domain.RoleUser, ExpiresAt: start.Add(time.Hour)}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("user: got %q, want u1", got.UserID)
	}

	if err := store.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after revoke: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.Fake(start)
	store := NewMemoryStore(clk)

	_ = store.Create(ctx, domain.Session{ID: "s1", UserID: "u1", ExpiresAt: start.Add(time.Minute)})
	clk.Advance(time.Minute)

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session: got %v, want ErrNotFound", err)
	}
}
