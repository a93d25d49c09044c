// Package rng provides the seeded stream adapter behind ports.RNGPort.
// Stream names are hashed into sub-seeds, so independent stages and
// replicates of the same run never share RNG state while remaining fully
// determined by the base seed.
package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"survsim/internal/errors"
)

// Adapter derives deterministic sub-streams from a base seed
type Adapter struct{}

// NewAdapter creates the stream adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// SeededStream returns an independent generator for a named operation. The
// same (name, seed) pair always yields an identical stream.
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if name == "" {
		return nil, errors.InvalidParameter("rng stream name cannot be empty")
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	sub := seed ^ int64(h.Sum64())
	return rand.New(rand.NewSource(sub)), nil
}

// Stream returns the generator for one replicate of a stage
func (a *Adapter) Stream(ctx context.Context, stageName string, replicate int, baseSeed int64) (*rand.Rand, error) {
	if replicate < 0 {
		return nil, errors.InvalidParameterf("replicate index cannot be negative, got %d", replicate)
	}
	return a.SeededStream(ctx, fmt.Sprintf("%s/%d", stageName, replicate), baseSeed)
}
