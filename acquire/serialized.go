package acquire

import (
	"context"

	"github.com/nickng/dinephil/fork"
	"golang.org/x/sync/semaphore"
)

// SerializedStrategy admits one philosopher at a time into the acquisition
// phase. Forks stay held after the serialization point is given back.
type SerializedStrategy struct {
	control *semaphore.Weighted
}

// NewSerialized creates a strategy with its own serialization point. All
// philosophers of a table must share the same strategy value.
func NewSerialized() *SerializedStrategy {
	return &SerializedStrategy{control: semaphore.NewWeighted(1)}
}

func (s *SerializedStrategy) AcquirePair(ctx context.Context, r *fork.Ring, id int) error {
	if err := s.control.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.control.Release(1)
	return blockingPair(ctx, r, id, nil)
}

func (s *SerializedStrategy) ReleasePair(r *fork.Ring, id int) { releasePair(r, id) }

func (s *SerializedStrategy) Policy() Policy { return Serialized }

func (s *SerializedStrategy) String() string { return describe(s) }
