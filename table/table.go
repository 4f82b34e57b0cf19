// Package table seats philosophers around a ring of forks and runs them.
//
// Each philosopher runs in its own goroutine and cycles forever through
// Thinking, AcquiringForks and Eating until the run's context ends. How the
// two forks are taken is delegated to an acquire.Strategy shared by every
// philosopher at the table.
package table // "github.com/nickng/dinephil/table"

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nickng/dinephil/acquire"
	"github.com/nickng/dinephil/event"
	"github.com/nickng/dinephil/fork"
	"github.com/nickng/dinephil/waitgraph"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Config is the startup configuration of a table.
type Config struct {
	Philosophers int
	Think        time.Duration
	Eat          time.Duration
	Policy       acquire.Policy

	// Acquisition tuning, see acquire.Options.
	Hesitate       time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Watchdog is the window without a completed meal after which the run
	// stops with a StallError. Zero disables the watchdog.
	Watchdog time.Duration
}

// HoldFunc performs a meal of duration d while philosopher id holds both of
// its forks. It returns early with ctx's error when the run ends.
type HoldFunc func(ctx context.Context, id int, d time.Duration) error

// Option configures a Table.
type Option func(*Table)

// WithRing seats the philosophers at an existing ring. Its size must match
// the number of philosophers.
func WithRing(r *fork.Ring) Option { return func(t *Table) { t.ring = r } }

// WithStrategy overrides the strategy built from Config.Policy.
func WithStrategy(s acquire.Strategy) Option { return func(t *Table) { t.strategy = s } }

// WithClock sets the clock used for thinking, eating, event times and the
// watchdog.
func WithClock(clk clock.Clock) Option { return func(t *Table) { t.clock = clk } }

// WithSink sends lifecycle events to s.
func WithSink(s event.Sink) Option { return func(t *Table) { t.sink = s } }

// WithHold replaces the default meal (sleeping for Config.Eat).
func WithHold(h HoldFunc) Option { return func(t *Table) { t.hold = h } }

// Table owns the forks and philosophers for the lifetime of a run.
type Table struct {
	cfg      Config
	ring     *fork.Ring
	strategy acquire.Strategy
	clock    clock.Clock
	sink     event.Sink
	hold     HoldFunc
	pause    func(context.Context, time.Duration) error

	states []atomic.Int32
	meals  []atomic.Uint64
	total  atomic.Uint64
}

// New validates cfg and creates a table. It returns a *ConfigError if the
// configuration cannot describe a table.
func New(cfg Config, opts ...Option) (*Table, error) {
	t := &Table{cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	if t.clock == nil {
		t.clock = clock.New()
	}
	if t.sink == nil {
		t.sink = event.Discard
	}
	t.pause = acquire.Sleep(t.clock)
	if t.hold == nil {
		t.hold = func(ctx context.Context, _ int, d time.Duration) error { return t.pause(ctx, d) }
	}
	if t.ring == nil {
		r, err := fork.NewRing(cfg.Philosophers)
		if err != nil {
			return nil, &ConfigError{Field: "philosophers", Reason: err.Error()}
		}
		t.ring = r
	}
	if t.strategy == nil {
		s, err := acquire.New(t.cfg.Policy, acquire.Options{
			Clock:          t.clock,
			Hesitate:       cfg.Hesitate,
			BackoffInitial: cfg.BackoffInitial,
			BackoffMax:     cfg.BackoffMax,
		})
		if err != nil {
			return nil, &ConfigError{Field: "policy", Reason: err.Error()}
		}
		t.strategy = s
	}
	t.states = make([]atomic.Int32, cfg.Philosophers)
	t.meals = make([]atomic.Uint64, cfg.Philosophers)
	return t, nil
}

func (t *Table) validate() error {
	cfg := &t.cfg
	switch {
	case cfg.Philosophers < 1:
		return &ConfigError{Field: "philosophers", Reason: "must be at least 1"}
	case t.ring != nil && t.ring.Len() != cfg.Philosophers:
		return &ConfigError{Field: "forks", Reason: "must match the number of philosophers"}
	case cfg.Think < 0:
		return &ConfigError{Field: "think", Reason: "must not be negative"}
	case cfg.Eat < 0:
		return &ConfigError{Field: "eat", Reason: "must not be negative"}
	case cfg.Watchdog < 0:
		return &ConfigError{Field: "watchdog", Reason: "must not be negative"}
	}
	if t.strategy != nil {
		cfg.Policy = t.strategy.Policy()
		return nil
	}
	if cfg.Policy == "" {
		cfg.Policy = acquire.Backoff
	}
	p, err := acquire.ParsePolicy(string(cfg.Policy))
	if err != nil {
		return &ConfigError{Field: "policy", Reason: err.Error()}
	}
	cfg.Policy = p
	return nil
}

// Config returns the validated configuration.
func (t *Table) Config() Config { return t.cfg }

// Philosophers returns the number of philosophers.
func (t *Table) Philosophers() int { return t.cfg.Philosophers }

// Ring returns the forks of the table.
func (t *Table) Ring() *fork.Ring { return t.ring }

// Strategy returns the acquisition strategy shared by the philosophers.
func (t *Table) Strategy() acquire.Strategy { return t.strategy }

// Meals returns the number of meals completed so far.
func (t *Table) Meals() uint64 { return t.total.Load() }

// Run starts every philosopher and blocks until ctx ends, returning nil, or
// until the first fault or stall, which stops all philosophers. Every fork
// is back on the table when Run returns, except poisoned ones.
func (t *Table) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < t.cfg.Philosophers; i++ {
		id := i
		g.Go(func() error { return t.dine(ctx, id) })
	}
	if t.cfg.Watchdog > 0 {
		g.Go(func() error { return t.watch(ctx) })
	}
	return g.Wait()
}

// Snapshot is a point-in-time view of the table.
type Snapshot struct {
	States []State
	Meals  []uint64
	Forks  fork.Snapshot
}

// Snapshot records philosopher states, meal counts and fork possession.
func (t *Table) Snapshot() Snapshot {
	s := Snapshot{
		States: make([]State, len(t.states)),
		Meals:  make([]uint64, len(t.meals)),
		Forks:  t.ring.Snapshot(),
	}
	for i := range t.states {
		s.States[i] = State(t.states[i].Load())
		s.Meals[i] = t.meals[i].Load()
	}
	return s
}

// WaitGraph builds the current wait-for graph, labelled with states.
func (t *Table) WaitGraph() *waitgraph.Graph {
	return t.Snapshot().WaitGraph()
}

// WaitGraph builds the wait-for graph of the snapshot.
func (s Snapshot) WaitGraph() *waitgraph.Graph {
	labels := make([]string, len(s.States))
	for i, st := range s.States {
		labels[i] = st.String()
	}
	return waitgraph.Build(s.Forks, labels)
}
