package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreGetSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("Get(k) = %q ok=%v err=%v", value, ok, err)
	}

	// Mutating the returned slice must not affect the stored value.
	value[0] = 'x'
	value2, _, _ := s.Get(ctx, "k")
	if string(value2) != "v" {
		t.Errorf("stored value mutated through returned slice: %q", value2)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("key should be live before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("key should be expired")
	}
}

func TestMemoryStoreDeleteReportsExistence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	existed, err := s.Delete(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("first Delete = %v, %v; want true, nil", existed, err)
	}

	existed, err = s.Delete(ctx, "k")
	if err != nil || existed {
		t.Fatalf("second Delete = %v, %v; want false, nil", existed, err)
	}
}

func TestMemoryStoreDeleteExpiredKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if err := s.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(time.Minute)

	existed, err := s.Delete(ctx, "k")
	if err != nil || existed {
		t.Fatalf("Delete of expired key = %v, %v; want false, nil", existed, err)
	}
}
