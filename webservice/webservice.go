// Package webservice runs a webservice to display the state of a running
// table: philosopher states, the wait-for graph, recent events and metrics.
package webservice // "github.com/nickng/dinephil/webservice"

import (
	"log"
	"net/http"

	"github.com/nickng/dinephil/event"
	"github.com/nickng/dinephil/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is what the webservice reports on.
type Status struct {
	Table    *table.Table
	Events   *event.Recorder     // Optional, for /events.
	Gatherer prometheus.Gatherer // Optional, for /metrics.
	Logger   *log.Logger         // Optional, for internal errors.
}

type wsHandler func(http.ResponseWriter, *http.Request) *ErrInternal

// Handler returns the routes of the webservice for st.
func Handler(st *Status) http.Handler {
	mux := http.NewServeMux()
	report := func(fn wsHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if e := fn(w, r); e != nil {
				e.Report(w, st.Logger)
			}
		})
	}
	mux.Handle("/", report(st.indexHandler))
	mux.Handle("/state", report(st.stateHandler))
	mux.Handle("/waitgraph", report(st.waitgraphHandler))
	mux.Handle("/events", report(st.eventsHandler))
	if st.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(st.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
