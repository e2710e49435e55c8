package ports

import (
	"context"

	"golang.org/x/exp/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation. The same (name, seed) pair always yields the same
	// stream, so chains and replications reproduce exactly.
	SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error)
}
