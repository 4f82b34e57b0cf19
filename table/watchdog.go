package table

import "context"

// watch samples the meal counter every watchdog window. It reports a stall
// when a full window passed without a meal, nobody is eating and someone is
// trying to acquire forks. A long think or a long meal is not a stall.
func (t *Table) watch(ctx context.Context) error {
	tick := t.clock.Ticker(t.cfg.Watchdog)
	defer tick.Stop()
	last := t.total.Load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		meals := t.total.Load()
		if meals != last {
			last = meals
			continue
		}
		snap := t.Snapshot()
		if !snap.stalled() {
			continue
		}
		g := snap.WaitGraph()
		return &StallError{
			Window: t.cfg.Watchdog,
			Meals:  meals,
			Cycle:  g.Cycle(),
			Graph:  g,
		}
	}
}

func (s Snapshot) stalled() bool {
	acquiring := false
	for _, st := range s.States {
		switch st {
		case Eating:
			return false
		case AcquiringForks:
			acquiring = true
		}
	}
	return acquiring
}
