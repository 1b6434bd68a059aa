// Package visualization renders networks in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/socgrid/socgrid/internal/graph"
)

// Format specifies the output format for network rendering.
type Format string

const (
	FormatDOT Format = "dot"
)

// valueColors maps opinion values to DOT fill colors.
var valueColors = map[uint8]string{
	0: "lightgray",
	1: "steelblue",
}

// RenderDOT renders the network as a Graphviz DOT document. Nodes are
// filled by opinion value and prestige nodes get a double outline.
func RenderDOT(g *graph.Graph, attrs *graph.Attrs) string {
	var b strings.Builder
	b.WriteString("graph socgrid {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  node [shape=circle, style=filled, fontsize=8];\n\n")

	for id := 0; id < g.NumNodes(); id++ {
		color, ok := valueColors[attrs.Value[id]]
		if !ok {
			color = "white"
		}
		extras := ""
		if attrs.Prestige[id] {
			extras = ", peripheries=2"
		}
		fmt.Fprintf(&b, "  n%d [label=\"%d\", fillcolor=%s%s];\n", id, id, color, extras)
	}
	b.WriteString("\n")
	for id := 0; id < g.NumNodes(); id++ {
		g.ForNeighbors(id, func(nbr int) {
			if id < nbr {
				fmt.Fprintf(&b, "  n%d -- n%d;\n", id, nbr)
			}
		})
	}
	b.WriteString("}\n")
	return b.String()
}

// Render renders the network in the requested format.
func Render(g *graph.Graph, attrs *graph.Attrs, format Format) (string, error) {
	switch format {
	case FormatDOT:
		return RenderDOT(g, attrs), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
