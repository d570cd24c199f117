package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gatekeeper/gatekeeper/internal/storage"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	port := storage.NewMemory()

	if _, err := port.Get(ctx, "missing"); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := port.Set(ctx, "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := port.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `{"x":1}` {
		t.Errorf("expected stored value back, got %q", value)
	}
}

func TestMemoryKeysAndClear(t *testing.T) {
	ctx := context.Background()
	port := storage.NewMemory()

	for _, k := range []string{"b", "a", "c"} {
		if err := port.Set(ctx, k, []byte("v")); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	keys, err := port.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("expected sorted keys [a b c], got %v", keys)
	}

	if err := port.Remove(ctx, "b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an absent key is a no-op.
	if err := port.Remove(ctx, "b"); err != nil {
		t.Fatalf("second remove: %v", err)
	}

	if err := port.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	keys, err = port.Keys(ctx)
	if err != nil {
		t.Fatalf("keys after clear: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys after clear, got %v", keys)
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	port := storage.NewMemory()

	in := []byte("original")
	if err := port.Set(ctx, "k", in); err != nil {
		t.Fatalf("set: %v", err)
	}
	in[0] = 'X'

	out, err := port.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(out) != "original" {
		t.Errorf("stored value aliased caller's slice: %q", out)
	}
}
