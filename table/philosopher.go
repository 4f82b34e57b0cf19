package table

import (
	"context"
	"time"

	"github.com/nickng/dinephil/event"
	"github.com/pkg/errors"
)

// State is the state of a philosopher.
type State int32

const (
	Thinking State = iota
	AcquiringForks
	Eating
)

func (s State) String() string {
	switch s {
	case Thinking:
		return "thinking"
	case AcquiringForks:
		return "acquiring"
	case Eating:
		return "eating"
	}
	return "unknown"
}

func (t *Table) emit(id int, k event.Kind, d time.Duration) {
	t.sink.Emit(event.Event{Philosopher: id, Kind: k, Time: t.clock.Now(), Duration: d})
}

func (t *Table) setState(id int, s State) { t.states[id].Store(int32(s)) }

// dine runs philosopher id until ctx ends or a fault occurs.
func (t *Table) dine(ctx context.Context, id int) error {
	defer t.setState(id, Thinking)
	for {
		t.setState(id, Thinking)
		t.emit(id, event.ThinkingStart, t.cfg.Think)
		if err := t.pause(ctx, t.cfg.Think); err != nil {
			return nil
		}

		t.setState(id, AcquiringForks)
		t.emit(id, event.Acquiring, 0)
		start := t.clock.Now()
		if err := t.strategy.AcquirePair(ctx, t.ring, id); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &FaultError{Philosopher: id, Cause: errors.Wrap(err, "acquire forks")}
		}
		t.emit(id, event.Acquired, t.clock.Since(start))

		if err := t.eat(ctx, id); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// eat holds both forks for one meal. The forks are released when eat
// returns, or poisoned if the meal panics.
func (t *Table) eat(ctx context.Context, id int) (err error) {
	t.setState(id, Eating)
	t.emit(id, event.EatingStart, t.cfg.Eat)
	start := t.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			cause := errors.Errorf("panic while eating: %v", r)
			left, right := t.ring.Left(id), t.ring.Right(id)
			t.ring.Poison(id, left, cause)
			if right != left {
				t.ring.Poison(id, right, cause)
			}
			err = &FaultError{Philosopher: id, Cause: cause}
			return
		}
		t.strategy.ReleasePair(t.ring, id)
	}()

	herr := t.hold(ctx, id, t.cfg.Eat)
	if herr == nil {
		t.meals[id].Inc()
		t.total.Inc()
	}
	t.emit(id, event.EatingEnd, t.clock.Since(start))
	if herr != nil && ctx.Err() == nil {
		return &FaultError{Philosopher: id, Cause: errors.Wrap(herr, "eat")}
	}
	return nil
}
