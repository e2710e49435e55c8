package mcmc

import (
	"context"
	"hash/fnv"

	"golang.org/x/exp/rand"

	"gesturelab/internal/errors"
)

// StreamFactory hands out deterministic RNG streams keyed by operation name.
// The same (name, seed) pair always produces the same stream, so chains and
// posterior replications reproduce exactly across runs.
type StreamFactory struct{}

// NewStreamFactory creates a seeded stream factory
func NewStreamFactory() *StreamFactory {
	return &StreamFactory{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (f *StreamFactory) SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error) {
	if name == "" {
		return nil, errors.InvalidInput("stream name cannot be empty")
	}
	h := fnv.New64a()
	if _, err := h.Write([]byte(name)); err != nil {
		return nil, errors.Wrap(err, "hashing stream name")
	}
	return rand.New(rand.NewSource(seed ^ h.Sum64())), nil
}
