// Package fork implements the forks shared by philosophers around a table.
//
// A fork is a binary exclusive token with no payload, identified by its
// position in a ring of n forks. Philosopher i uses fork Left(i) = i and
// fork Right(i) = (i+1) mod n, so every fork is shared by exactly two
// adjacent philosophers (or by the only philosopher when n == 1).
//
// Forks are not reentrant and possession is only tracked by token state:
// the philosopher that took a fork must release it, exactly once.
package fork // "github.com/nickng/dinephil/fork"

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Free is the holder of a fork nobody possesses, and the waiting position of
// a philosopher not blocked on any fork.
const Free = -1

// ErrPoisoned is returned when acquiring a fork that was left permanently
// unusable by a philosopher that terminated abnormally while holding it.
var ErrPoisoned = errors.New("fork poisoned")

// Fork is a mutual exclusion token.
type Fork struct {
	pos      int
	token    chan struct{} // holds one value while the fork is on the table
	holder   atomic.Int32
	poisoned chan struct{}
	once     sync.Once
	cause    error
}

func (f *Fork) init(pos int) {
	f.pos = pos
	f.token = make(chan struct{}, 1)
	f.token <- struct{}{}
	f.holder.Store(Free)
	f.poisoned = make(chan struct{})
}

// take records p as the holder after receiving the token.
func (f *Fork) take(p int) {
	if !f.holder.CompareAndSwap(Free, int32(p)) {
		panic(fmt.Sprintf("fork %d: taken by %d while held by %d", f.pos, p, f.holder.Load()))
	}
}

func (f *Fork) poisonErr() error {
	return errors.Wrapf(ErrPoisoned, "fork %d (%v)", f.pos, f.cause)
}

// Ring is the fixed arena of forks around the table. Forks are created once
// by NewRing and never reallocated.
type Ring struct {
	forks   []Fork
	waiting []atomic.Int32 // per philosopher, fork position blocked on
}

// NewRing creates a ring of n forks for n philosophers.
func NewRing(n int) (*Ring, error) {
	if n < 1 {
		return nil, errors.Errorf("ring of %d forks: need at least one", n)
	}
	r := &Ring{
		forks:   make([]Fork, n),
		waiting: make([]atomic.Int32, n),
	}
	for i := range r.forks {
		r.forks[i].init(i)
		r.waiting[i].Store(Free)
	}
	return r, nil
}

// Len returns the number of forks (and philosophers) in the ring.
func (r *Ring) Len() int { return len(r.forks) }

// Left returns the left fork of philosopher i.
func (r *Ring) Left(i int) int { return Left(i) }

// Right returns the right fork of philosopher i.
func (r *Ring) Right(i int) int { return Right(i, len(r.forks)) }

// Acquire blocks until philosopher p takes fork pos, the fork is poisoned or
// ctx is done. While blocked p is recorded as waiting on pos.
func (r *Ring) Acquire(ctx context.Context, p, pos int) error {
	if ok, err := r.TryAcquire(p, pos); ok || err != nil {
		return err
	}
	f := &r.forks[pos]
	r.waiting[p].Store(int32(pos))
	defer r.waiting[p].Store(Free)
	select {
	case <-f.token:
		f.take(p)
		return nil
	case <-f.poisoned:
		return f.poisonErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes fork pos for philosopher p if it is on the table. It never
// blocks.
func (r *Ring) TryAcquire(p, pos int) (bool, error) {
	f := &r.forks[pos]
	if int(f.holder.Load()) == p {
		panic(fmt.Sprintf("fork %d: philosopher %d already holds it", pos, p))
	}
	select {
	case <-f.token:
		f.take(p)
		return true, nil
	case <-f.poisoned:
		return false, f.poisonErr()
	default:
		return false, nil
	}
}

// Release puts fork pos back on the table. Only the holder may release it.
func (r *Ring) Release(p, pos int) {
	f := &r.forks[pos]
	if !f.holder.CompareAndSwap(int32(p), Free) {
		panic(fmt.Sprintf("fork %d: released by %d but held by %d", pos, p, f.holder.Load()))
	}
	f.token <- struct{}{}
}

// Poison marks fork pos, held by philosopher p, as permanently unusable. The
// fork is never put back; blocked and future acquisitions fail with
// ErrPoisoned.
func (r *Ring) Poison(p, pos int, cause error) {
	f := &r.forks[pos]
	if int(f.holder.Load()) != p {
		panic(fmt.Sprintf("fork %d: poisoned by %d but held by %d", pos, p, f.holder.Load()))
	}
	f.once.Do(func() {
		f.cause = cause
		close(f.poisoned)
	})
}

// Holder returns the philosopher possessing fork pos, or Free.
func (r *Ring) Holder(pos int) int { return int(r.forks[pos].holder.Load()) }

// Snapshot is a point-in-time view of fork possession. Holders and Waiting
// are read independently, so a snapshot taken while philosophers run may
// mix instants.
type Snapshot struct {
	Holders []int // Holders[f] is the philosopher holding fork f, or Free.
	Waiting []int // Waiting[p] is the fork philosopher p is blocked on, or Free.
}

// Snapshot records current holders and waiters.
func (r *Ring) Snapshot() Snapshot {
	s := Snapshot{
		Holders: make([]int, len(r.forks)),
		Waiting: make([]int, len(r.waiting)),
	}
	for i := range r.forks {
		s.Holders[i] = int(r.forks[i].holder.Load())
	}
	for i := range r.waiting {
		s.Waiting[i] = int(r.waiting[i].Load())
	}
	return s
}
