package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for a specific replicate of a
	// stage. Replicate i always receives the same sub-seed for a given stage
	// and base seed, regardless of goroutine scheduling, so parallel
	// replication stays reproducible.
	Stream(ctx context.Context, stageName string, replicate int, baseSeed int64) (*rand.Rand, error)
}
