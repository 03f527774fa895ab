package rng

import (
	"context"
	"testing"
)

// TestSeededStreamDeterminism tests that equal names and seeds reproduce streams
func TestSeededStreamDeterminism(t *testing.T) {
	adapter := NewStreamAdapter()
	ctx := context.Background()

	a, err := adapter.SeededStream(ctx, "warmup", 42)
	if err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	b, err := adapter.SeededStream(ctx, "warmup", 42)
	if err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}

	for i := 0; i < 100; i++ {
		va, vb := a.Float64(), b.Float64()
		if va != vb {
			t.Fatalf("Streams diverged at draw %d: %.17g vs %.17g", i, va, vb)
		}
	}
}

// TestSeededStreamIndependence tests that names and seeds both separate streams
func TestSeededStreamIndependence(t *testing.T) {
	adapter := NewStreamAdapter()
	ctx := context.Background()

	base, _ := adapter.SeededStream(ctx, "warmup", 42)
	otherName, _ := adapter.SeededStream(ctx, "sampling", 42)
	otherSeed, _ := adapter.SeededStream(ctx, "warmup", 43)

	// First draws matching across all three would mean the derivation ignores
	// part of its input
	b, n, s := base.Uint64(), otherName.Uint64(), otherSeed.Uint64()
	if b == n {
		t.Error("Expected different streams for different names")
	}
	if b == s {
		t.Error("Expected different streams for different seeds")
	}
}

// TestChainStream tests per-chain stream separation and reproduction
func TestChainStream(t *testing.T) {
	adapter := NewStreamAdapter()
	ctx := context.Background()

	c0, err := adapter.ChainStream(ctx, "m1", 0, 7)
	if err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	c0again, _ := adapter.ChainStream(ctx, "m1", 0, 7)
	c1, _ := adapter.ChainStream(ctx, "m1", 1, 7)
	otherVariant, _ := adapter.ChainStream(ctx, "m2", 0, 7)
	otherSeed, _ := adapter.ChainStream(ctx, "m1", 0, 8)

	first := c0.Uint64()
	if first != c0again.Uint64() {
		t.Error("Expected identical chain stream on replay")
	}
	if first == c1.Uint64() {
		t.Error("Expected distinct streams across chains")
	}
	if first == otherVariant.Uint64() {
		t.Error("Expected distinct streams across variants")
	}
	if first == otherSeed.Uint64() {
		t.Error("Expected distinct streams across base seeds")
	}
}

// TestStreamValidation tests input guards
func TestStreamValidation(t *testing.T) {
	adapter := NewStreamAdapter()
	ctx := context.Background()

	if _, err := adapter.SeededStream(ctx, "", 1); err == nil {
		t.Error("Expected error for empty stream name")
	}
	if _, err := adapter.ChainStream(ctx, "", 0, 1); err == nil {
		t.Error("Expected error for empty variant ID")
	}
}
