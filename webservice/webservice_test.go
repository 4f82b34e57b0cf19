package webservice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nickng/dinephil/acquire"
	"github.com/nickng/dinephil/event"
	"github.com/nickng/dinephil/fork"
	"github.com/nickng/dinephil/metrics"
	"github.com/nickng/dinephil/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

// deadlocked returns a table of two philosophers each holding its left fork
// and blocked on its right fork. stop unblocks them.
func deadlocked(t *testing.T) (tbl *table.Table, stop func()) {
	r, err := fork.NewRing(2)
	require.NoError(t, err)
	for p := 0; p < 2; p++ {
		ok, err := r.TryAcquire(p, r.Left(p))
		require.NoError(t, err)
		require.True(t, ok)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			r.Acquire(ctx, p, r.Right(p))
		}(p)
	}
	require.Eventually(t, func() bool {
		s := r.Snapshot()
		return s.Waiting[0] == 1 && s.Waiting[1] == 0
	}, time.Second, time.Millisecond)

	tbl, err = table.New(table.Config{Philosophers: 2, Policy: acquire.Naive}, table.WithRing(r))
	require.NoError(t, err)
	return tbl, func() { cancel(); wg.Wait() }
}

func TestState(t *testing.T) {
	tbl, stop := deadlocked(t)
	defer stop()
	srv := httptest.NewServer(Handler(&Status{Table: tbl}))
	defer srv.Close()

	code, body := get(t, srv.URL+"/state")
	require.Equal(t, http.StatusOK, code)
	var s tableState
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	require.Equal(t, "naive", s.Policy)
	require.Len(t, s.Philosophers, 2)
	require.Equal(t, []int{0, 1}, s.Cycle)
	require.NotNil(t, s.Forks[1].Holder)
	require.Equal(t, 1, *s.Forks[1].Holder)
	require.NotNil(t, s.Philosophers[0].WaitingOn)
	require.Equal(t, 1, *s.Philosophers[0].WaitingOn)

	code, body = get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Policy:")
	require.Contains(t, body, "0 -> 1 -> 0")

	code, body = get(t, srv.URL+"/waitgraph")
	require.Equal(t, http.StatusOK, code)
	require.True(t, strings.HasPrefix(strings.TrimSpace(body), "digraph"), body)
	require.Contains(t, body, "red")

	code, _ = get(t, srv.URL+"/nowhere")
	require.Equal(t, http.StatusNotFound, code)
}

func TestEvents(t *testing.T) {
	tbl, err := table.New(table.Config{Philosophers: 3})
	require.NoError(t, err)
	rec := event.NewRecorder(0)
	for i := 0; i < 5; i++ {
		rec.Emit(event.Event{Philosopher: i % 3, Kind: event.ThinkingStart, Time: time.Now()})
	}
	srv := httptest.NewServer(Handler(&Status{Table: tbl, Events: rec}))
	defer srv.Close()

	code, body := get(t, srv.URL+"/events")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, strings.Split(strings.TrimSpace(body), "\n"), 5)

	code, body = get(t, srv.URL+"/events?n=2")
	require.Equal(t, http.StatusOK, code)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "philosopher 1 THINKING_START")

	code, _ = get(t, srv.URL+"/events?n=x")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestOptionalRoutes(t *testing.T) {
	tbl, err := table.New(table.Config{Philosophers: 3})
	require.NoError(t, err)
	srv := httptest.NewServer(Handler(&Status{Table: tbl}))
	defer srv.Close()

	code, _ := get(t, srv.URL+"/events")
	require.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusNotFound, code)
}

func TestMetrics(t *testing.T) {
	tbl, err := table.New(table.Config{Philosophers: 1})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "backoff")
	m.Emit(event.Event{Philosopher: 0, Kind: event.EatingEnd, Duration: time.Millisecond})

	srv := httptest.NewServer(Handler(&Status{Table: tbl, Gatherer: reg}))
	defer srv.Close()
	code, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `dinephil_meals_total{philosopher="0"} 1`)
}

func TestServer(t *testing.T) {
	tbl, err := table.New(table.Config{Philosophers: 2})
	require.NoError(t, err)
	s := NewServer("127.0.0.1", "0", &Status{Table: tbl})
	url, err := s.URL()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	code, body := get(t, url+"state")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"policy": "backoff"`)

	require.NoError(t, s.Close())
	require.NoError(t, <-done)
}
