package webservice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/nickng/dinephil/fork"
	"github.com/nickng/dinephil/waitgraph"
)

type philosopherState struct {
	ID        int    `json:"id"`
	State     string `json:"state"`
	Meals     uint64 `json:"meals"`
	WaitingOn *int   `json:"waiting_on,omitempty"`
}

type forkState struct {
	ID     int  `json:"id"`
	Holder *int `json:"holder"`
}

type tableState struct {
	Policy       string             `json:"policy"`
	Meals        uint64             `json:"meals"`
	Philosophers []philosopherState `json:"philosophers"`
	Forks        []forkState        `json:"forks"`
	Cycle        []int              `json:"cycle,omitempty"`
}

func position(p int) *int {
	if p == fork.Free {
		return nil
	}
	return &p
}

func (st *Status) state() tableState {
	snap := st.Table.Snapshot()
	s := tableState{
		Policy:       string(st.Table.Config().Policy),
		Philosophers: make([]philosopherState, len(snap.States)),
		Forks:        make([]forkState, len(snap.Forks.Holders)),
		Cycle:        snap.WaitGraph().Cycle(),
	}
	for i, state := range snap.States {
		s.Meals += snap.Meals[i]
		s.Philosophers[i] = philosopherState{
			ID:        i,
			State:     state.String(),
			Meals:     snap.Meals[i],
			WaitingOn: position(snap.Forks.Waiting[i]),
		}
	}
	for f, holder := range snap.Forks.Holders {
		s.Forks[f] = forkState{ID: f, Holder: position(holder)}
	}
	return s
}

func (st *Status) indexHandler(w http.ResponseWriter, req *http.Request) *ErrInternal {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return nil
	}
	s := st.state()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Policy:\t%s\n", s.Policy)
	fmt.Fprintf(tw, "Philosophers:\t%d\n", len(s.Philosophers))
	fmt.Fprintf(tw, "Meals:\t%s\n\n", humanize.Comma(int64(s.Meals)))
	for _, p := range s.Philosophers {
		fmt.Fprintf(tw, "  %d\t%s\t%s meals\n", p.ID, p.State, humanize.Comma(int64(p.Meals)))
	}
	if s.Cycle != nil {
		fmt.Fprintf(tw, "\nCircular wait:\t%s\n", waitgraph.FormatCycle(s.Cycle))
	}
	if err := tw.Flush(); err != nil {
		return NewErrInternal(err, "Cannot write summary")
	}
	return nil
}

func (st *Status) stateHandler(w http.ResponseWriter, req *http.Request) *ErrInternal {
	b, err := json.MarshalIndent(st.state(), "", "  ")
	if err != nil {
		return NewErrInternal(err, "Cannot encode state")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
	return nil
}

func (st *Status) waitgraphHandler(w http.ResponseWriter, req *http.Request) *ErrInternal {
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	if _, err := st.Table.WaitGraph().WriteTo(w); err != nil {
		return NewErrInternal(err, "Cannot write wait-for graph")
	}
	return nil
}

// eventsHandler lists recorded events, oldest first. The optional query
// parameter n limits the output to the last n events.
func (st *Status) eventsHandler(w http.ResponseWriter, req *http.Request) *ErrInternal {
	if st.Events == nil {
		http.NotFound(w, req)
		return nil
	}
	events := st.Events.Events()
	if v := req.FormValue("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("bad n: %q", v), http.StatusBadRequest)
			return nil
		}
		if n < len(events) {
			events = events[len(events)-n:]
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, e := range events {
		fmt.Fprintf(w, "%s %s\n", e.Time.Format("15:04:05.000000"), e)
	}
	return nil
}
