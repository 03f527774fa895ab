package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic sampling
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error)

	// ChainStream creates the private generator for one chain of one variant.
	// Streams derived from the same base seed never collide across distinct
	// (variant, chain) pairs, which keeps parallel chains independent while
	// the whole sweep stays replayable from a single seed.
	ChainStream(ctx context.Context, variantID string, chain int, baseSeed uint64) (*rand.Rand, error)
}
