// Package snapshot serializes a network and its node attributes to the
// node-link JSON layout, so finished runs can be stored, inspected and
// reloaded for diffusion experiments.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/socgrid/socgrid/internal/graph"
)

// ErrMalformed is returned when a snapshot fails validation on load.
var ErrMalformed = errors.New("snapshot: malformed")

// Node is one node with its attributes.
type Node struct {
	ID           int     `json:"id"`
	Value        uint8   `json:"value"`
	Extraversion float64 `json:"extraversion"`
	Conformity   float64 `json:"conformity"`
	Prestige     bool    `json:"prestige,omitempty"`
}

// Link is one undirected edge, stored with Source < Target.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Snapshot is the node-link form of a network.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Capture builds a snapshot from a graph and its attributes. Nodes appear
// in id order and each edge exactly once.
func Capture(g *graph.Graph, attrs *graph.Attrs) *Snapshot {
	s := &Snapshot{
		Nodes: make([]Node, 0, g.NumNodes()),
		Links: make([]Link, 0, g.NumEdges()),
	}
	for id := 0; id < g.NumNodes(); id++ {
		s.Nodes = append(s.Nodes, Node{
			ID:           id,
			Value:        attrs.Value[id],
			Extraversion: attrs.Extraversion[id],
			Conformity:   attrs.Conformity[id],
			Prestige:     attrs.Prestige[id],
		})
		g.ForNeighbors(id, func(nbr int) {
			if id < nbr {
				s.Links = append(s.Links, Link{Source: id, Target: nbr})
			}
		})
	}
	return s
}

// Restore rebuilds the graph and attributes a snapshot describes.
func (s *Snapshot) Restore() (*graph.Graph, *graph.Attrs, error) {
	if err := s.validate(); err != nil {
		return nil, nil, err
	}
	n := len(s.Nodes)
	g := graph.New(n)
	attrs := graph.NewAttrs(n)
	for _, node := range s.Nodes {
		attrs.Value[node.ID] = node.Value
		attrs.Extraversion[node.ID] = node.Extraversion
		attrs.Conformity[node.ID] = node.Conformity
		attrs.Prestige[node.ID] = node.Prestige
	}
	for _, link := range s.Links {
		g.AddEdge(link.Source, link.Target)
	}
	return g, attrs, nil
}

func (s *Snapshot) validate() error {
	n := len(s.Nodes)
	seen := make([]bool, n)
	for _, node := range s.Nodes {
		if node.ID < 0 || node.ID >= n {
			return fmt.Errorf("%w: node id %d out of range", ErrMalformed, node.ID)
		}
		if seen[node.ID] {
			return fmt.Errorf("%w: duplicate node id %d", ErrMalformed, node.ID)
		}
		seen[node.ID] = true
	}
	for _, link := range s.Links {
		if link.Source < 0 || link.Source >= n || link.Target < 0 || link.Target >= n {
			return fmt.Errorf("%w: link %d->%d out of range", ErrMalformed, link.Source, link.Target)
		}
		if link.Source == link.Target {
			return fmt.Errorf("%w: self-loop on node %d", ErrMalformed, link.Source)
		}
	}
	return nil
}

// Write encodes the snapshot as indented JSON.
func (s *Snapshot) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

// Read decodes a snapshot and validates it.
func Read(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the snapshot to path, creating or truncating the file.
func (s *Snapshot) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer f.Close()
	if err := s.Write(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a snapshot from path.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
