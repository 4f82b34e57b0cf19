// Package metrics exports philosopher lifecycle events as Prometheus metrics.
package metrics // "github.com/nickng/dinephil/metrics"

import (
	"strconv"

	"github.com/nickng/dinephil/event"
	"github.com/prometheus/client_golang/prometheus"
)

var waitBuckets = prometheus.ExponentialBuckets(0.0001, 4, 10) // 100µs .. ~26s

var states = []string{"thinking", "acquiring", "eating"}

// Collector is an event.Sink updating Prometheus metrics.
type Collector struct {
	meals       *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	acquireWait *prometheus.HistogramVec
	eatDuration prometheus.Histogram
	state       *prometheus.GaugeVec
	policy      string
}

// New creates a Collector for a table using policy and registers it on reg.
func New(reg prometheus.Registerer, policy string) *Collector {
	c := &Collector{
		policy: policy,
		meals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinephil_meals_total",
			Help: "Total number of completed meals",
		}, []string{"philosopher"}),

		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinephil_acquire_attempts_total",
			Help: "Total number of times a philosopher started acquiring forks",
		}, []string{"philosopher"}),

		acquireWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dinephil_acquire_wait_seconds",
			Help:    "Time spent acquiring both forks in seconds",
			Buckets: waitBuckets,
		}, []string{"policy"}),

		eatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dinephil_eat_duration_seconds",
			Help:    "Time spent holding both forks in seconds",
			Buckets: waitBuckets,
		}),

		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dinephil_philosopher_state",
			Help: "1 for the current state of each philosopher, 0 otherwise",
		}, []string{"philosopher", "state"}),
	}
	reg.MustRegister(c.meals, c.attempts, c.acquireWait, c.eatDuration, c.state)
	return c
}

func (c *Collector) setState(id, state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		c.state.WithLabelValues(id, s).Set(v)
	}
}

func (c *Collector) Emit(e event.Event) {
	id := strconv.Itoa(e.Philosopher)
	switch e.Kind {
	case event.ThinkingStart:
		c.setState(id, "thinking")
	case event.Acquiring:
		c.setState(id, "acquiring")
		c.attempts.WithLabelValues(id).Inc()
	case event.Acquired:
		c.acquireWait.WithLabelValues(c.policy).Observe(e.Duration.Seconds())
	case event.EatingStart:
		c.setState(id, "eating")
	case event.EatingEnd:
		c.meals.WithLabelValues(id).Inc()
		c.eatDuration.Observe(e.Duration.Seconds())
	}
}
