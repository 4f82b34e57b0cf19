// Package waitgraph builds the wait-for graph of a table.
//
// There is an edge p -> q when philosopher p is blocked on a fork held by
// philosopher q. A cycle in the graph is a circular wait: none of the
// philosophers on it can make progress.
package waitgraph // "github.com/nickng/dinephil/waitgraph"

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nickng/dinephil/fork"
)

// Edge is a wait-for edge.
type Edge struct {
	From, To int // philosophers
	Fork     int // fork From is blocked on, held by To
}

// Graph is a wait-for graph over n philosophers.
type Graph struct {
	Snapshot fork.Snapshot
	Labels   []string // optional philosopher annotations (e.g. state)
	Edges    []Edge

	next []int // next[p] is the philosopher p waits for, or fork.Free
}

// Build derives the wait-for graph from a fork snapshot.
func Build(s fork.Snapshot, labels []string) *Graph {
	g := &Graph{
		Snapshot: s,
		Labels:   labels,
		next:     make([]int, len(s.Waiting)),
	}
	for p, f := range s.Waiting {
		g.next[p] = fork.Free
		if f == fork.Free {
			continue
		}
		if q := s.Holders[f]; q != fork.Free && q != p {
			g.next[p] = q
			g.Edges = append(g.Edges, Edge{From: p, To: q, Fork: f})
		}
	}
	return g
}

// Waiting returns the philosopher p waits for, or fork.Free.
func (g *Graph) Waiting(p int) int { return g.next[p] }

// Cycle returns a circular wait as a list of philosophers, starting from the
// lowest id on the cycle and without repeating it, or nil if there is none.
//
// Each philosopher waits on at most one fork, so every node has at most one
// outgoing edge and following edges from any node either ends or loops.
func (g *Graph) Cycle() []int {
	const (
		unvisited = iota
		onPath
		done
	)
	mark := make([]int, len(g.next))
	for start := range g.next {
		if mark[start] != unvisited {
			continue
		}
		var path []int
		p := start
		for p != fork.Free && mark[p] == unvisited {
			mark[p] = onPath
			path = append(path, p)
			p = g.next[p]
		}
		if p != fork.Free && mark[p] == onPath {
			for i, q := range path {
				if q == p {
					return rotate(path[i:])
				}
			}
		}
		for _, q := range path {
			mark[q] = done
		}
	}
	return nil
}

func rotate(cycle []int) []int {
	lo := 0
	for i, p := range cycle {
		if p < cycle[lo] {
			lo = i
		}
	}
	out := make([]int, 0, len(cycle))
	out = append(out, cycle[lo:]...)
	return append(out, cycle[:lo]...)
}

// FormatCycle formats a cycle as "0 -> 1 -> 0".
func FormatCycle(cycle []int) string {
	if len(cycle) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cycle)+1)
	for _, p := range cycle {
		parts = append(parts, fmt.Sprint(p))
	}
	parts = append(parts, fmt.Sprint(cycle[0]))
	return strings.Join(parts, " -> ")
}

func (g *Graph) String() string {
	edges := append([]Edge(nil), g.Edges...)
	sort.Slice(edges, func(i, j int) bool { return edges[i].From < edges[j].From })
	var b strings.Builder
	for _, e := range edges {
		fmt.Fprintf(&b, "%d waits for %d (fork %d)\n", e.From, e.To, e.Fork)
	}
	return b.String()
}
