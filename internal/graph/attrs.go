package graph

// Attrs holds the per-node attributes used by formation and diffusion,
// stored struct-of-arrays and indexed by node id. Binary opinion values
// live in Value; the trait parameters are fixed for the life of a run.
type Attrs struct {
	Value        []uint8   // binary opinion, 0 or 1
	Extraversion []float64 // propensity to initiate connections / migrate
	Conformity   []float64 // propensity to adopt the neighbor majority
	Prestige     []bool    // flat, static prestige flag
}

// NewAttrs allocates attributes for n nodes, all zero-valued.
func NewAttrs(n int) *Attrs {
	return &Attrs{
		Value:        make([]uint8, n),
		Extraversion: make([]float64, n),
		Conformity:   make([]float64, n),
		Prestige:     make([]bool, n),
	}
}

// Len returns the node count the attributes cover.
func (a *Attrs) Len() int { return len(a.Value) }

// Clone returns a deep copy. Diffusion runs mutate Value on a copy so the
// grown graph's attributes survive across repeated iterations.
func (a *Attrs) Clone() *Attrs {
	c := NewAttrs(a.Len())
	copy(c.Value, a.Value)
	copy(c.Extraversion, a.Extraversion)
	copy(c.Conformity, a.Conformity)
	copy(c.Prestige, a.Prestige)
	return c
}

// MostExtraverted returns the node with the highest extraversion, breaking
// ties by lowest id.
func (a *Attrs) MostExtraverted() int {
	best := 0
	for n := 1; n < len(a.Extraversion); n++ {
		if a.Extraversion[n] > a.Extraversion[best] {
			best = n
		}
	}
	return best
}

// ZeroFraction returns the fraction of nodes holding value 0.
func (a *Attrs) ZeroFraction() float64 {
	if a.Len() == 0 {
		return 0
	}
	zeros := 0
	for _, v := range a.Value {
		if v == 0 {
			zeros++
		}
	}
	return float64(zeros) / float64(a.Len())
}
