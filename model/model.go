// Package model builds a system of communicating finite state machines
// (CFSMs) describing the fork protocol of a table.
//
// Forks and philosophers are machines exchanging messages. The output is in
// the format of github.com/nickng/cfsm and can be passed to a global graph
// synthesis tool (e.g. GMC) to check the protocol for deadlocks: the naive
// protocol is expected to fail the check for every n >= 2.
package model // "github.com/nickng/dinephil/model"

import (
	"fmt"
	"io"

	"github.com/nickng/cfsm"
	"github.com/nickng/dinephil/acquire"
	"github.com/nickng/dinephil/fork"
	"github.com/pkg/errors"
)

// Messages exchanged between machines.
const (
	MsgFork  = "fork"  // Fork token (naive and serialized).
	MsgReq   = "req"   // Ask the butler for the acquisition phase.
	MsgGrant = "grant" // Butler grants the acquisition phase.
	MsgDone  = "done"  // Acquisition phase finished.
	MsgTry   = "try"   // Try to take a fork (backoff).
	MsgOK    = "ok"    // Fork taken.
	MsgBusy  = "busy"  // Fork held by the other neighbour.
	MsgPut   = "put"   // Fork put back.
)

// System is the CFSM system of a table.
type System struct {
	Sys          *cfsm.System
	Policy       acquire.Policy
	Philosophers []*cfsm.CFSM
	Forks        []*cfsm.CFSM
	Butler       *cfsm.CFSM // Only for acquire.Serialized.
}

// New builds the CFSM system of n philosophers using policy p.
func New(n int, p acquire.Policy) (*System, error) {
	if n < 1 {
		return nil, errors.Errorf("cannot model %d philosophers", n)
	}
	sys := &System{
		Sys:          cfsm.NewSystem(),
		Policy:       p,
		Philosophers: make([]*cfsm.CFSM, n),
		Forks:        make([]*cfsm.CFSM, n),
	}
	for i := 0; i < n; i++ {
		m := sys.Sys.NewMachine()
		m.Comment = fmt.Sprintf("philosopher%d", i)
		sys.Philosophers[i] = m
	}
	for i := 0; i < n; i++ {
		m := sys.Sys.NewMachine()
		m.Comment = fmt.Sprintf("fork%d", i)
		sys.Forks[i] = m
	}

	switch p {
	case acquire.Naive:
		for i := 0; i < n; i++ {
			sys.tokenFork(i)
			sys.naivePhilosopher(i)
		}
	case acquire.Serialized:
		sys.Butler = sys.Sys.NewMachine()
		sys.Butler.Comment = "butler"
		sys.butler()
		for i := 0; i < n; i++ {
			sys.tokenFork(i)
			sys.serializedPhilosopher(i)
		}
	case acquire.Backoff:
		for i := 0; i < n; i++ {
			sys.tryFork(i)
			sys.backoffPhilosopher(i)
		}
	default:
		return nil, errors.Errorf("cannot model policy %q", p)
	}
	return sys, nil
}

// users returns the philosophers sharing fork f, without duplicates.
func (sys *System) users(f int) []*cfsm.CFSM {
	n := len(sys.Philosophers)
	left, right := sys.Philosophers[f], sys.Philosophers[(f+n-1)%n]
	if left == right {
		return []*cfsm.CFSM{left}
	}
	return []*cfsm.CFSM{left, right}
}

func (sys *System) leftRight(i int) (*cfsm.CFSM, *cfsm.CFSM) {
	n := len(sys.Forks)
	return sys.Forks[fork.Left(i)], sys.Forks[fork.Right(i, n)]
}

func send(from, to *cfsm.State, m *cfsm.CFSM, msg string) {
	tr := cfsm.NewSend(m, msg)
	tr.SetNext(to)
	from.AddTransition(tr)
}

func recv(from, to *cfsm.State, m *cfsm.CFSM, msg string) {
	tr := cfsm.NewRecv(m, msg)
	tr.SetNext(to)
	from.AddTransition(tr)
}

// tokenFork: q0 -- Send fork --> q(p) -- Recv fork --> q0, for each user p.
func (sys *System) tokenFork(f int) {
	m := sys.Forks[f]
	q0 := m.NewState()
	for _, p := range sys.users(f) {
		held := m.NewState()
		send(q0, held, p, MsgFork)
		recv(held, q0, p, MsgFork)
	}
	m.Start = q0
}

// tryFork answers try with ok when free and busy when held by the other user.
func (sys *System) tryFork(f int) {
	m := sys.Forks[f]
	users := sys.users(f)
	q0 := m.NewState()
	for _, p := range users {
		asked, held := m.NewState(), m.NewState()
		recv(q0, asked, p, MsgTry)
		send(asked, held, p, MsgOK)
		recv(held, q0, p, MsgPut)
		for _, o := range users {
			if o == p {
				continue
			}
			refusing := m.NewState()
			recv(held, refusing, o, MsgTry)
			send(refusing, held, o, MsgBusy)
		}
	}
	m.Start = q0
}

// butler grants the acquisition phase to one philosopher at a time.
func (sys *System) butler() {
	m := sys.Butler
	q0 := m.NewState()
	for _, p := range sys.Philosophers {
		asked, granted := m.NewState(), m.NewState()
		recv(q0, asked, p, MsgReq)
		send(asked, granted, p, MsgGrant)
		recv(granted, q0, p, MsgDone)
	}
	m.Start = q0
}

// takeAndReturn adds the acquisition of the left then the right fork from q.
// It returns the state where both forks are held, and release which adds the
// return of both forks from a given state to end.
func takeAndReturn(m *cfsm.CFSM, q, end *cfsm.State, left, right *cfsm.CFSM) (holding *cfsm.State, release func(*cfsm.State)) {
	if left == right {
		holding = m.NewState()
		recv(q, holding, left, MsgFork)
		return holding, func(from *cfsm.State) { send(from, end, left, MsgFork) }
	}
	hasLeft, holding := m.NewState(), m.NewState()
	recv(q, hasLeft, left, MsgFork)
	recv(hasLeft, holding, right, MsgFork)
	return holding, func(from *cfsm.State) {
		putRight := m.NewState()
		send(from, putRight, right, MsgFork)
		send(putRight, end, left, MsgFork)
	}
}

func (sys *System) naivePhilosopher(i int) {
	m := sys.Philosophers[i]
	left, right := sys.leftRight(i)
	q0 := m.NewState()
	holding, release := takeAndReturn(m, q0, q0, left, right)
	release(holding)
	m.Start = q0
}

func (sys *System) serializedPhilosopher(i int) {
	m := sys.Philosophers[i]
	left, right := sys.leftRight(i)
	q0, asked, granted := m.NewState(), m.NewState(), m.NewState()
	send(q0, asked, sys.Butler, MsgReq)
	recv(asked, granted, sys.Butler, MsgGrant)
	holding, release := takeAndReturn(m, granted, q0, left, right)
	eating := m.NewState()
	send(holding, eating, sys.Butler, MsgDone)
	release(eating)
	m.Start = q0
}

func (sys *System) backoffPhilosopher(i int) {
	m := sys.Philosophers[i]
	left, right := sys.leftRight(i)
	q0, triedLeft, hasLeft := m.NewState(), m.NewState(), m.NewState()
	send(q0, triedLeft, left, MsgTry)
	recv(triedLeft, hasLeft, left, MsgOK)
	recv(triedLeft, q0, left, MsgBusy)
	if left == right {
		send(hasLeft, q0, left, MsgPut)
		m.Start = q0
		return
	}
	triedRight, eating, putRight, backingOff := m.NewState(), m.NewState(), m.NewState(), m.NewState()
	send(hasLeft, triedRight, right, MsgTry)
	recv(triedRight, eating, right, MsgOK)
	recv(triedRight, backingOff, right, MsgBusy)
	send(backingOff, q0, left, MsgPut)
	send(eating, putRight, right, MsgPut)
	send(putRight, q0, left, MsgPut)
	m.Start = q0
}

// WriteTo implements io.WriterTo interface.
func (sys *System) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte(sys.Sys.String()))
	return int64(n), err
}

// PrintSummary shows the machines of the system.
func (sys *System) PrintSummary(w io.Writer) {
	total := len(sys.Philosophers) + len(sys.Forks)
	if sys.Butler != nil {
		total++
	}
	fmt.Fprintf(w, "Total of %d CFSMs (%d are forks) for policy %s\n", total, len(sys.Forks), sys.Policy)
	for _, m := range sys.Philosophers {
		fmt.Fprintf(w, "\t%d\t= %s\n", m.ID, m.Comment)
	}
	for _, m := range sys.Forks {
		fmt.Fprintf(w, "\t%d\t= %s (fork)\n", m.ID, m.Comment)
	}
	if sys.Butler != nil {
		fmt.Fprintf(w, "\t%d\t= %s\n", sys.Butler.ID, sys.Butler.Comment)
	}
}
