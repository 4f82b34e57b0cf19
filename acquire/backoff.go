package acquire

import (
	"context"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/nickng/dinephil/fork"
	"github.com/pkg/errors"
)

// ErrGaveUp is returned by BackoffStrategy when its backoff policy stops
// before both forks could be taken.
var ErrGaveUp = errors.New("gave up acquiring forks")

// BackoffStrategy takes forks with non-blocking attempts only. A philosopher
// never keeps its left fork while the right one is unavailable.
type BackoffStrategy struct {
	// NewBackOff creates the pause schedule for one AcquirePair call. If the
	// schedule returns backoff.Stop, AcquirePair fails with ErrGaveUp.
	NewBackOff func() backoff.BackOff

	// Pause waits d between attempts, or returns early with ctx's error.
	Pause func(ctx context.Context, d time.Duration) error
}

// TryAcquirePair makes one attempt at taking both forks of philosopher id.
// On failure no fork is held.
func (s *BackoffStrategy) TryAcquirePair(r *fork.Ring, id int) (bool, error) {
	left, right := pair(r, id)
	ok, err := r.TryAcquire(id, left)
	if !ok || err != nil {
		return false, err
	}
	if left == right {
		return true, nil
	}
	ok, err = r.TryAcquire(id, right)
	if !ok || err != nil {
		r.Release(id, left)
		return false, err
	}
	return true, nil
}

func (s *BackoffStrategy) AcquirePair(ctx context.Context, r *fork.Ring, id int) error {
	b := s.backOff()
	b.Reset()
	pause := s.Pause
	if pause == nil {
		pause = Yield
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := s.TryAcquirePair(r, id)
		if ok || err != nil {
			return err
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return errors.Wrapf(ErrGaveUp, "philosopher %d", id)
		}
		if err := pause(ctx, d); err != nil {
			return err
		}
	}
}

func (s *BackoffStrategy) backOff() backoff.BackOff {
	if s.NewBackOff == nil {
		return &backoff.ZeroBackOff{}
	}
	return s.NewBackOff()
}

func (s *BackoffStrategy) ReleasePair(r *fork.Ring, id int) { releasePair(r, id) }

func (s *BackoffStrategy) Policy() Policy { return Backoff }

func (s *BackoffStrategy) String() string { return describe(s) }

// ExponentialBackOff returns a schedule factory doubling from initial up to
// ceiling with ±50% jitter. The schedule never stops on its own.
func ExponentialBackOff(initial, ceiling time.Duration, clk clock.Clock) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = ceiling
		b.RandomizationFactor = 0.5
		b.Multiplier = 2
		b.MaxElapsedTime = 0
		if clk != nil {
			b.Clock = clk
		}
		b.Reset()
		return b
	}
}

// Sleep returns a pause function waiting on clk. Non-positive durations
// yield the processor instead.
func Sleep(clk clock.Clock) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return Yield(ctx, d)
		}
		t := clk.Timer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Yield is a pause function that only yields the processor.
func Yield(ctx context.Context, _ time.Duration) error {
	runtime.Gosched()
	return ctx.Err()
}
