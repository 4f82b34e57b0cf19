package acquire

import (
	"context"

	"github.com/nickng/dinephil/fork"
)

// NaiveStrategy blocks on the left fork and then on the right fork.
//
// UNSAFE: it deadlocks as soon as every philosopher holds its left fork.
type NaiveStrategy struct {
	// Hesitate, if set, runs after the left fork is taken and before the
	// right fork is requested. If it returns an error the left fork is put
	// back and AcquirePair fails with that error.
	Hesitate func(ctx context.Context, id int) error
}

func (s *NaiveStrategy) AcquirePair(ctx context.Context, r *fork.Ring, id int) error {
	return blockingPair(ctx, r, id, s.Hesitate)
}

func (s *NaiveStrategy) ReleasePair(r *fork.Ring, id int) { releasePair(r, id) }

func (s *NaiveStrategy) Policy() Policy { return Naive }

func (s *NaiveStrategy) String() string { return describe(s) + " (deadlock-prone)" }
