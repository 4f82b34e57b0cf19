package acquire

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/nickng/dinephil/fork"
	"github.com/pkg/errors"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustRing(t *testing.T, n int) *fork.Ring {
	t.Helper()
	r, err := fork.NewRing(n)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func assertAllFree(t *testing.T, r *fork.Ring) {
	t.Helper()
	for f := 0; f < r.Len(); f++ {
		if h := r.Holder(f); h != fork.Free {
			t.Errorf("Expecting fork %d to be free but held by %d\n", f, h)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(string(p))
		if err != nil || got != p {
			t.Errorf("Expecting %s but got %s (%v)\n", p, got, err)
		}
	}
	if got, _ := ParsePolicy("SERIALIZED"); got != Serialized {
		t.Errorf("Expecting case-insensitive match but got %q\n", got)
	}
	if _, err := ParsePolicy("waiter"); err == nil {
		t.Errorf("Expecting error for unknown policy\n")
	}
	if !Naive.Deadlocks() || Serialized.Deadlocks() || Backoff.Deadlocks() {
		t.Errorf("Expecting only naive policy to admit deadlock\n")
	}
}

// Tests a failed attempt leaves the left fork on the table.
func TestTryAcquirePairReleasesLeft(t *testing.T) {
	r := mustRing(t, 3)
	s := &BackoffStrategy{}
	if ok, _ := r.TryAcquire(1, r.Right(0)); !ok {
		t.Fatal("cannot take fork for neighbour")
	}
	ok, err := s.TryAcquirePair(r, 0)
	if ok || err != nil {
		t.Fatalf("Expecting failed attempt but got %v, %v\n", ok, err)
	}
	if h := r.Holder(r.Left(0)); h != fork.Free {
		t.Errorf("Expecting left fork back on the table but held by %d\n", h)
	}
	r.Release(1, r.Right(0))
	if ok, _ := s.TryAcquirePair(r, 0); !ok {
		t.Fatalf("Expecting attempt to succeed once right fork is free\n")
	}
	if r.Holder(0) != 0 || r.Holder(1) != 0 {
		t.Errorf("Expecting philosopher 0 to hold forks 0 and 1\n")
	}
	s.ReleasePair(r, 0)
	assertAllFree(t, r)
}

func TestBackoffGivesUp(t *testing.T) {
	r := mustRing(t, 2)
	r.TryAcquire(1, 1)
	s := &BackoffStrategy{
		NewBackOff: func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3) },
		Pause:      Yield,
	}
	err := s.AcquirePair(context.Background(), r, 0)
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("Expecting %v but got %v\n", ErrGaveUp, err)
	}
	if h := r.Holder(0); h != fork.Free {
		t.Errorf("Expecting fork 0 free after giving up but held by %d\n", h)
	}
}

func TestSingleFork(t *testing.T) {
	for _, p := range Policies {
		r := mustRing(t, 1)
		s, err := New(p, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.AcquirePair(context.Background(), r, 0); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if r.Holder(0) != 0 {
			t.Errorf("%s: Expecting philosopher 0 to hold the only fork\n", p)
		}
		s.ReleasePair(r, 0)
		assertAllFree(t, r)
	}
}

// Tests cancellation while waiting for the right fork puts the left back.
func TestBlockingCancelReleasesLeft(t *testing.T) {
	for _, s := range []Strategy{&NaiveStrategy{}, NewSerialized()} {
		r := mustRing(t, 3)
		r.TryAcquire(1, 1) // right fork of 0
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := s.AcquirePair(ctx, r, 0)
		cancel()
		if err != context.DeadlineExceeded {
			t.Errorf("%s: Expecting %v but got %v\n", s.Policy(), context.DeadlineExceeded, err)
		}
		if h := r.Holder(0); h != fork.Free {
			t.Errorf("%s: Expecting left fork free after cancel but held by %d\n", s.Policy(), h)
		}
	}
}

func TestBackoffCancel(t *testing.T) {
	r := mustRing(t, 2)
	r.TryAcquire(1, 1)
	s, _ := New(Backoff, Options{BackoffInitial: time.Millisecond, BackoffMax: 2 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.AcquirePair(ctx, r, 0); err != context.DeadlineExceeded {
		t.Errorf("Expecting %v but got %v\n", context.DeadlineExceeded, err)
	}
	if h := r.Holder(0); h != fork.Free {
		t.Errorf("Expecting fork 0 free after cancel but held by %d\n", h)
	}
}

// Tests the serialized policy admits one philosopher at a time into the
// acquisition phase.
func TestSerializedOneAtATime(t *testing.T) {
	r := mustRing(t, 4)
	s := NewSerialized()
	r.TryAcquire(3, 1) // philosopher 0 blocks on its right fork inside the section

	entered := make(chan error, 1)
	go func() { entered <- s.AcquirePair(context.Background(), r, 0) }()
	time.Sleep(5 * time.Millisecond)

	// philosopher 2 has free forks but must wait for the serialization point
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	err := s.AcquirePair(ctx, r, 2)
	cancel()
	if err != context.DeadlineExceeded {
		t.Errorf("Expecting philosopher 2 to wait for the section but got %v\n", err)
	}
	if r.Holder(2) != fork.Free || r.Holder(3) != fork.Free {
		t.Errorf("Expecting philosopher 2 to hold nothing\n")
	}

	r.Release(3, 1)
	if err := <-entered; err != nil {
		t.Fatal(err)
	}
	if err := s.AcquirePair(context.Background(), r, 2); err != nil {
		t.Errorf("Expecting philosopher 2 to eat alongside 0 but got %v\n", err)
	}
	s.ReleasePair(r, 0)
	s.ReleasePair(r, 2)
	assertAllFree(t, r)
}

// Tests the naive policy deadlocks when both philosophers take their left
// fork first.
func TestNaiveDeadlock(t *testing.T) {
	r := mustRing(t, 2)
	var barrier sync.WaitGroup
	barrier.Add(2)
	s := &NaiveStrategy{Hesitate: func(context.Context, int) error {
		barrier.Done()
		barrier.Wait()
		return nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(id int) { errs <- s.AcquirePair(ctx, r, id) }(i)
	}

	deadline := time.Now().Add(time.Second)
	for {
		snap := r.Snapshot()
		if snap.Waiting[0] == 1 && snap.Waiting[1] == 0 && snap.Holders[0] == 0 && snap.Holders[1] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expecting circular wait but got %+v\n", snap)
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if snap := r.Snapshot(); snap.Waiting[0] != 1 || snap.Waiting[1] != 0 {
		t.Errorf("Expecting both philosophers still waiting but got %+v\n", snap)
	}
	cancel()
	for i := 0; i < 2; i++ {
		if err := <-errs; err != context.Canceled {
			t.Errorf("Expecting %v but got %v\n", context.Canceled, err)
		}
	}
	assertAllFree(t, r)
}

// Stress tests the deadlock-free policies: every philosopher completes its
// meals holding both forks each time.
func TestStress(t *testing.T) {
	const n, meals = 5, 200
	bs := &BackoffStrategy{
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		Pause:      Yield,
	}
	for _, s := range []Strategy{NewSerialized(), bs} {
		r := mustRing(t, n)
		var violations int32
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for m := 0; m < meals; m++ {
					if err := s.AcquirePair(context.Background(), r, id); err != nil {
						t.Errorf("%s: philosopher %d: %v", s.Policy(), id, err)
						return
					}
					if r.Holder(r.Left(id)) != id || r.Holder(r.Right(id)) != id {
						mu.Lock()
						violations++
						mu.Unlock()
					}
					s.ReleasePair(r, id)
				}
			}(i)
		}
		wg.Wait()
		if violations != 0 {
			t.Errorf("%s: Expecting both forks held after acquire but got %d violations\n", s.Policy(), violations)
		}
		assertAllFree(t, r)
	}
}

// Tests no backoff philosopher holds a fork while pausing between attempts.
func TestBackoffNeverPausesHolding(t *testing.T) {
	const n, meals = 5, 200
	r := mustRing(t, n)
	var mu sync.Mutex
	var bad []int
	s := &BackoffStrategy{
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			own := *s
			own.Pause = func(ctx context.Context, d time.Duration) error {
				if r.Holder(r.Left(id)) == id || r.Holder(r.Right(id)) == id {
					mu.Lock()
					bad = append(bad, id)
					mu.Unlock()
				}
				return Yield(ctx, d)
			}
			for m := 0; m < meals; m++ {
				if err := own.AcquirePair(context.Background(), r, id); err != nil {
					t.Errorf("philosopher %d: %v", id, err)
					return
				}
				own.ReleasePair(r, id)
			}
		}(i)
	}
	wg.Wait()
	if len(bad) > 0 {
		t.Errorf("Expecting no pause while holding a fork but got %d (philosophers %v)\n", len(bad), bad)
	}
	assertAllFree(t, r)
}

// Tests a hesitating naive philosopher stops waiting when its context ends,
// and puts its left fork back.
func TestHesitateCancel(t *testing.T) {
	r := mustRing(t, 2)
	s, err := New(Naive, Options{Clock: clock.NewMock(), Hesitate: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.AcquirePair(ctx, r, 0) }()

	deadline := time.Now().Add(time.Second)
	for r.Holder(r.Left(0)) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expecting philosopher 0 to take its left fork\n")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expecting %v but got %v\n", context.Canceled, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Expecting hesitation to end on cancel\n")
	}
	assertAllFree(t, r)
}
