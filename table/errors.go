package table

import (
	"fmt"
	"time"

	"github.com/nickng/dinephil/waitgraph"
)

// ConfigError is an invalid table configuration, detected by New.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// FaultError ends a run when a philosopher cannot continue, either because
// it terminated abnormally while eating or because a fork it needs was
// poisoned. There is no recovery from a fault.
type FaultError struct {
	Philosopher int
	Cause       error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("philosopher %d: %v", e.Philosopher, e.Cause)
}

func (e *FaultError) Unwrap() error { return e.Cause }

// StallError is reported by the watchdog when no meal completed within its
// window while philosophers were trying to acquire forks.
type StallError struct {
	Window time.Duration
	Meals  uint64
	Cycle  []int            // circular wait found, if any
	Graph  *waitgraph.Graph // wait-for graph when the watchdog fired
}

func (e *StallError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("deadlock: no meal in %s after %d meals, circular wait %s",
			e.Window, e.Meals, waitgraph.FormatCycle(e.Cycle))
	}
	return fmt.Sprintf("stalled: no meal in %s after %d meals", e.Window, e.Meals)
}

// Deadlock reports whether the stall is a circular wait.
func (e *StallError) Deadlock() bool { return len(e.Cycle) > 0 }
