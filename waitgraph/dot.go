package waitgraph

import (
	"fmt"
	"io"

	"github.com/awalterschulze/gographviz"
	"github.com/nickng/dinephil/fork"
)

func philNode(p int) string { return fmt.Sprintf("p%d", p) }
func forkNode(f int) string { return fmt.Sprintf("f%d", f) }

// Dot renders philosophers, forks, holds (fork -> holder) and waits
// (philosopher -> fork). Edges on a circular wait are drawn in red.
func (g *Graph) Dot() string {
	graph := gographviz.NewEscape()
	graph.SetDir(true)
	graph.SetName("waitfor")

	onCycle := make(map[int]bool)
	for _, p := range g.Cycle() {
		onCycle[p] = true
	}

	for p := range g.Snapshot.Waiting {
		label := fmt.Sprintf("philosopher %d", p)
		if p < len(g.Labels) && g.Labels[p] != "" {
			label = fmt.Sprintf("philosopher %d\n%s", p, g.Labels[p])
		}
		attrs := map[string]string{
			"label": fmt.Sprintf("%q", label),
			"shape": "ellipse",
		}
		if onCycle[p] {
			attrs["color"] = "red"
		}
		graph.AddNode(graph.Name, philNode(p), attrs)
	}
	for f, holder := range g.Snapshot.Holders {
		graph.AddNode(graph.Name, forkNode(f), map[string]string{
			"label": fmt.Sprintf("\"fork %d\"", f),
			"shape": "rect",
		})
		if holder != fork.Free {
			attrs := map[string]string{"label": "held"}
			if onCycle[holder] {
				attrs["color"] = "red"
			}
			graph.AddEdge(forkNode(f), philNode(holder), true, attrs)
		}
	}
	for p, f := range g.Snapshot.Waiting {
		if f == fork.Free {
			continue
		}
		attrs := map[string]string{"label": "waits", "style": "dashed"}
		if onCycle[p] {
			attrs["color"] = "red"
		}
		graph.AddEdge(philNode(p), forkNode(f), true, attrs)
	}
	return graph.String()
}

// WriteTo writes the DOT rendering of the graph.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, g.Dot())
	return int64(n), err
}
