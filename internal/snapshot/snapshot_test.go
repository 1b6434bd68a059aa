package snapshot

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/socgrid/socgrid/internal/graph"
)

func buildNetwork(t *testing.T) (*graph.Graph, *graph.Attrs) {
	t.Helper()
	g, _, _, err := graph.NewTorus(3, 3)
	if err != nil {
		t.Fatalf("NewTorus: %v", err)
	}
	attrs := graph.NewAttrs(g.NumNodes())
	for i := range attrs.Extraversion {
		attrs.Extraversion[i] = float64(i) / 10
		attrs.Conformity[i] = 1 - float64(i)/10
	}
	attrs.Value[4] = 1
	attrs.Prestige[2] = true
	return g, attrs
}

func TestCaptureShape(t *testing.T) {
	g, attrs := buildNetwork(t)
	s := Capture(g, attrs)
	if len(s.Nodes) != g.NumNodes() {
		t.Errorf("len(Nodes) = %d, want %d", len(s.Nodes), g.NumNodes())
	}
	if len(s.Links) != g.NumEdges() {
		t.Errorf("len(Links) = %d, want %d", len(s.Links), g.NumEdges())
	}
	for _, l := range s.Links {
		if l.Source >= l.Target {
			t.Errorf("link %d->%d not ordered", l.Source, l.Target)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g, attrs := buildNetwork(t)
	path := filepath.Join(t.TempDir(), "net.json")

	if err := Capture(g, attrs).Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g2, attrs2, err := loaded.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if g2.NumNodes() != g.NumNodes() || g2.NumEdges() != g.NumEdges() {
		t.Fatalf("restored %d nodes %d edges, want %d and %d",
			g2.NumNodes(), g2.NumEdges(), g.NumNodes(), g.NumEdges())
	}
	for id := 0; id < g.NumNodes(); id++ {
		for _, nbr := range g.Neighbors(id) {
			if !g2.HasEdge(id, nbr) {
				t.Errorf("edge %d-%d lost in round trip", id, nbr)
			}
		}
		if attrs2.Extraversion[id] != attrs.Extraversion[id] ||
			attrs2.Conformity[id] != attrs.Conformity[id] ||
			attrs2.Value[id] != attrs.Value[id] ||
			attrs2.Prestige[id] != attrs.Prestige[id] {
			t.Errorf("node %d attributes changed in round trip", id)
		}
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{
			"node id out of range",
			Snapshot{Nodes: []Node{{ID: 0}, {ID: 5}}},
		},
		{
			"duplicate node id",
			Snapshot{Nodes: []Node{{ID: 0}, {ID: 0}}},
		},
		{
			"link out of range",
			Snapshot{Nodes: []Node{{ID: 0}, {ID: 1}}, Links: []Link{{Source: 0, Target: 7}}},
		},
		{
			"self-loop link",
			Snapshot{Nodes: []Node{{ID: 0}, {ID: 1}}, Links: []Link{{Source: 1, Target: 1}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.snap.Restore(); !errors.Is(err, ErrMalformed) {
				t.Errorf("Restore error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, err := Read(strings.NewReader("not json")); err == nil {
		t.Error("Read accepted garbage input")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load accepted a missing file")
	}
}
