package wishlist

import (
	"context"
	"errors"
	"testing"
)

func TestAddAndList(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Add(ctx, "user-1", "p1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := repo.Add(ctx, "user-1", "p2"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	list, err := repo.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 entries, got %d", len(list))
	}

	// Another user's wishlist stays empty
	other, err := repo.List(ctx, "user-2")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected empty wishlist for other user, got %d", len(other))
	}
}

func TestAdd_Duplicate(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Add(ctx, "user-1", "p1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := repo.Add(ctx, "user-1", "p1"); !errors.Is(err, ErrAlreadyListed) {
		t.Errorf("expected ErrAlreadyListed, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Add(ctx, "user-1", "p1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := repo.Remove(ctx, "user-1", "p1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := repo.Remove(ctx, "user-1", "p1"); !errors.Is(err, ErrNotListed) {
		t.Errorf("expected ErrNotListed, got %v", err)
	}
}

func TestContains(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	found, err := repo.Contains(ctx, "user-1", "p1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if found {
		t.Error("expected product not to be listed")
	}

	if err := repo.Add(ctx, "user-1", "p1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	found, err = repo.Contains(ctx, "user-1", "p1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !found {
		t.Error("expected product to be listed")
	}
}
