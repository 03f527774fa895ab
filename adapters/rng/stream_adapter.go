package rng

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"gowbic/ports"
)

// StreamAdapter implements ports.RNGPort with PCG generators whose state is
// derived by hashing the stream name into the base seed. Equal (name, seed)
// pairs always reproduce the same stream; distinct names never share one.
type StreamAdapter struct{}

var _ ports.RNGPort = (*StreamAdapter)(nil)

// NewStreamAdapter creates the production RNG adapter
func NewStreamAdapter() *StreamAdapter {
	return &StreamAdapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *StreamAdapter) SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error) {
	if name == "" {
		return nil, fmt.Errorf("stream name cannot be empty")
	}
	hi, lo := deriveSeeds(name, seed)
	return rand.New(rand.NewPCG(hi, lo)), nil
}

// ChainStream creates the private generator for one chain of one variant.
// The name depends only on the variant and chain index, never on run
// identity, so a replay with the same base seed reproduces every draw.
func (a *StreamAdapter) ChainStream(ctx context.Context, variantID string, chain int, baseSeed uint64) (*rand.Rand, error) {
	if variantID == "" {
		return nil, fmt.Errorf("variant ID cannot be empty")
	}
	name := fmt.Sprintf("%s/chain-%d", variantID, chain)
	return a.SeededStream(ctx, name, baseSeed)
}

// deriveSeeds hashes (seed, name) into the two PCG state words
func deriveSeeds(name string, seed uint64) (uint64, uint64) {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	h.Write([]byte(name))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])
}
