package session

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing profile, got %v", err)
	}

	profile := Profile{UserID: "u-1", Name: "Ana", Email: "ana@example.com", Role: "admin"}
	if err := store.Save(ctx, profile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := store.Load(ctx, "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != profile {
		t.Fatalf("expected %+v, got %+v", profile, loaded)
	}

	if err := store.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Load(ctx, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSession_IsAdmin(t *testing.T) {
	if (Session{Role: "user"}).IsAdmin() {
		t.Fatal("expected user role not to be admin")
	}
	if !(Session{Role: RoleAdmin}).IsAdmin() {
		t.Fatal("expected admin role to be admin")
	}
}
