package graph

// Coord is a position on the torus grid.
type Coord struct {
	Row int
	Col int
}

// CoordMap is the bijection between node indices and torus coordinates.
// It is only needed during construction and by the migration-based
// formation process, which moves nodes around the grid after the fact.
type CoordMap struct {
	Width  int
	Height int
}

// Index returns the node id for a coordinate.
func (m CoordMap) Index(c Coord) int { return c.Row*m.Width + c.Col }

// Coord returns the coordinate for a node id.
func (m CoordMap) Coord(id int) Coord { return Coord{Row: id / m.Width, Col: id % m.Width} }

// Wrap maps an arbitrary coordinate onto the torus.
func (m CoordMap) Wrap(c Coord) Coord {
	r := ((c.Row % m.Height) + m.Height) % m.Height
	col := ((c.Col % m.Width) + m.Width) % m.Width
	return Coord{Row: r, Col: col}
}

// InitialNeighbors records, per node, the lattice neighbors it was born
// with. Pruning treats these as permanent anchors. The snapshot is taken
// once at construction and is read-only thereafter.
type InitialNeighbors [][]int

// Contains reports whether nbr is one of node's anchor neighbors.
func (in InitialNeighbors) Contains(node, nbr int) bool {
	for _, a := range in[node] {
		if a == nbr {
			return true
		}
	}
	return false
}

// NewTorus builds the width x height torus lattice: node (i,j) connects to
// its North, South, East and West neighbors with wraparound on both axes.
// Every node starts with degree 4 (degenerate single-row or single-column
// grids collapse duplicate wrap edges, as an undirected simple graph must).
// The returned InitialNeighbors snapshot equals the construction adjacency.
// Construction is deterministic given (width, height).
func NewTorus(width, height int) (*Graph, InitialNeighbors, CoordMap, error) {
	if width <= 0 || height <= 0 {
		return nil, nil, CoordMap{}, ErrInvalidDimensions
	}
	m := CoordMap{Width: width, Height: height}
	g := New(width * height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			id := m.Index(Coord{Row: row, Col: col})
			g.AddEdge(id, m.Index(m.Wrap(Coord{Row: row, Col: col + 1})))
			g.AddEdge(id, m.Index(m.Wrap(Coord{Row: row + 1, Col: col})))
		}
	}
	initial := make(InitialNeighbors, g.NumNodes())
	for n := 0; n < g.NumNodes(); n++ {
		initial[n] = g.Neighbors(n)
	}
	return g, initial, m, nil
}
