package cache

import (
	"testing"
	"time"
)

func TestStore_SetGet(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	store.Set("dashboard", 42)

	value, ok := store.Get("dashboard")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if value != 42 {
		t.Fatalf("Get = %v, want 42", value)
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set("dashboard", "stale")
	now = now.Add(2 * time.Minute)

	if _, ok := store.Get("dashboard"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestStore_InvalidateAll(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	store.Set("a", 1)
	store.Set("b", 2)

	store.Invalidate()

	if _, ok := store.Get("a"); ok {
		t.Fatal("expected a to be invalidated")
	}
	if _, ok := store.Get("b"); ok {
		t.Fatal("expected b to be invalidated")
	}
}

func TestStore_InvalidateSelected(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	store.Set("a", 1)
	store.Set("b", 2)

	store.Invalidate("a")

	if _, ok := store.Get("a"); ok {
		t.Fatal("expected a to be invalidated")
	}
	if _, ok := store.Get("b"); !ok {
		t.Fatal("expected b to survive")
	}
}
