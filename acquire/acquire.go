// Package acquire implements the policies a philosopher follows to obtain
// both of its forks.
//
// Three policies are provided:
//
//   - Naive blocks on the left fork, then on the right fork. It is UNSAFE:
//     if every philosopher holds its left fork, each waits forever on its
//     right neighbour (circular wait). It exists to demonstrate the deadlock
//     and is never detected or retried here.
//   - Serialized takes a table-wide serialization point before blocking on
//     the two forks and gives it back once both are held. Only one
//     philosopher is ever in the acquisition phase, so no circular wait can
//     form; eating still happens concurrently.
//   - Backoff never blocks: it tries the left fork, then the right one, and
//     puts the left fork back if the right one is taken, pausing with
//     jittered exponential backoff between attempts. Circular wait cannot
//     form, but neighbours may in theory keep stealing each other's forks
//     (livelock); jitter makes this unlikely in practice.
//
// No policy is fair: a philosopher may starve while its neighbours keep
// eating.
package acquire // "github.com/nickng/dinephil/acquire"

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nickng/dinephil/fork"
	"github.com/pkg/errors"
)

// Policy names an acquisition policy.
type Policy string

const (
	Naive      Policy = "naive"
	Serialized Policy = "serialized"
	Backoff    Policy = "backoff"
)

// Policies lists the known policies.
var Policies = []Policy{Backoff, Serialized, Naive}

// ParsePolicy converts a policy name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", errors.Errorf("unknown acquisition policy %q (want one of %v)", s, Policies)
}

// Deadlocks reports whether the policy admits circular wait.
func (p Policy) Deadlocks() bool { return p == Naive }

func (p Policy) String() string { return string(p) }

// Strategy acquires and releases the pair of forks of a philosopher.
//
// AcquirePair returns with both forks held, or with none held and an error.
// ReleasePair must be called exactly once after each successful AcquirePair.
type Strategy interface {
	AcquirePair(ctx context.Context, r *fork.Ring, id int) error
	ReleasePair(r *fork.Ring, id int)
	Policy() Policy
}

// Options tunes the strategies built by New.
type Options struct {
	Clock clock.Clock

	// Hesitate is a pause between the left and right fork (naive only).
	Hesitate time.Duration

	// BackoffInitial and BackoffMax bound the retry pauses (backoff only).
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Default retry pauses for the backoff policy.
const (
	DefaultBackoffInitial = time.Millisecond
	DefaultBackoffMax     = 50 * time.Millisecond
)

// New creates the strategy for policy p.
func New(p Policy, opts Options) (Strategy, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	switch p {
	case Naive:
		s := &NaiveStrategy{}
		if opts.Hesitate > 0 {
			pause, d := Sleep(opts.Clock), opts.Hesitate
			s.Hesitate = func(ctx context.Context, _ int) error { return pause(ctx, d) }
		}
		return s, nil
	case Serialized:
		return NewSerialized(), nil
	case Backoff:
		initial, ceiling := opts.BackoffInitial, opts.BackoffMax
		if initial <= 0 {
			initial = DefaultBackoffInitial
		}
		if ceiling <= 0 {
			ceiling = DefaultBackoffMax
		}
		if ceiling < initial {
			ceiling = initial
		}
		return &BackoffStrategy{
			NewBackOff: ExponentialBackOff(initial, ceiling, opts.Clock),
			Pause:      Sleep(opts.Clock),
		}, nil
	}
	return nil, errors.Errorf("unknown acquisition policy %q", p)
}

// pair returns the forks of philosopher id.
func pair(r *fork.Ring, id int) (left, right int) {
	return r.Left(id), r.Right(id)
}

// releasePair puts back both forks of philosopher id, right first.
func releasePair(r *fork.Ring, id int) {
	left, right := pair(r, id)
	if right != left {
		r.Release(id, right)
	}
	r.Release(id, left)
}

// blockingPair blocks on left then right. If the right fork cannot be taken
// the left one is put back before returning.
func blockingPair(ctx context.Context, r *fork.Ring, id int, between func(context.Context, int) error) error {
	left, right := pair(r, id)
	if err := r.Acquire(ctx, id, left); err != nil {
		return err
	}
	if left == right {
		return nil
	}
	if between != nil {
		if err := between(ctx, id); err != nil {
			r.Release(id, left)
			return err
		}
	}
	if err := r.Acquire(ctx, id, right); err != nil {
		r.Release(id, left)
		return err
	}
	return nil
}

func describe(s Strategy) string {
	return fmt.Sprintf("%s acquisition", s.Policy())
}
