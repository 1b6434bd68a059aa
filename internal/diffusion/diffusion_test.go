package diffusion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/logging"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(17, 23))
}

func torusWithAttrs(t *testing.T, w, h int) (*graph.Graph, *graph.Attrs) {
	t.Helper()
	g, _, _, err := graph.NewTorus(w, h)
	if err != nil {
		t.Fatalf("NewTorus(%d,%d): %v", w, h, err)
	}
	return g, graph.NewAttrs(g.NumNodes())
}

func TestZeroConformityFreezesImmediately(t *testing.T) {
	g, attrs := torusWithAttrs(t, 5, 5)
	sim, err := NewSimulator(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	rng := newRNG()
	sim.Init(g, attrs, rng)

	res, err := sim.Run(context.Background(), g, attrs, rng)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Flips != 0 {
		t.Errorf("Flips = %d, want 0 with zero conformity everywhere", res.Flips)
	}
	// Flip probability is always zero, so the process halts after exactly
	// 2N stay-the-same draws.
	if want := 2 * g.NumNodes(); res.Steps != want {
		t.Errorf("Steps = %d, want %d", res.Steps, want)
	}
	if !res.Converged {
		t.Error("Converged = false, want true")
	}
}

func TestTraceSampling(t *testing.T) {
	g, attrs := torusWithAttrs(t, 3, 3)
	cfg := DefaultConfig()
	cfg.SampleEvery = g.NumNodes()
	sim, err := NewSimulator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	rng := newRNG()
	sim.Init(g, attrs, rng)

	res, err := sim.Run(context.Background(), g, attrs, rng)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Zero conformity everywhere: exactly 2N steps, one sample per N.
	if len(res.Trace) != 2 {
		t.Fatalf("len(Trace) = %d, want 2", len(res.Trace))
	}
	for i, pt := range res.Trace {
		wantStep := (i + 1) * g.NumNodes()
		if pt.Step != wantStep || pt.Generation != i+1 {
			t.Errorf("Trace[%d] = step %d gen %d, want step %d gen %d",
				i, pt.Step, pt.Generation, wantStep, i+1)
		}
		if pt.Flips != 0 {
			t.Errorf("Trace[%d].Flips = %d, want 0", i, pt.Flips)
		}
		if pt.ZeroFraction != attrs.ZeroFraction() {
			t.Errorf("Trace[%d].ZeroFraction = %v, want %v", i, pt.ZeroFraction, attrs.ZeroFraction())
		}
	}
}

func TestFullConformityUnanimousNeighborhood(t *testing.T) {
	// Two nodes, one edge, opposing values, conformity 1: every draw
	// flips, so the pair oscillates and the flip counter grows.
	g := graph.New(2)
	g.AddEdge(0, 1)
	attrs := graph.NewAttrs(2)
	attrs.Value[1] = 1
	attrs.Conformity[0] = 1
	attrs.Conformity[1] = 1

	sim, err := NewSimulator(Config{Init: InitRandom, Power: 1, MaxSteps: 100}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := sim.Run(context.Background(), g, attrs, newRNG())
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("error = %v, want ErrNotConverged for an oscillating pair", err)
	}
	if res.Flips != res.Steps {
		t.Errorf("Flips = %d, Steps = %d; every draw should flip", res.Flips, res.Steps)
	}
	if res.Converged {
		t.Error("Converged = true on a capped run")
	}
}

func TestFlipEventTrace(t *testing.T) {
	// Oscillating pair: every draw flips, so the event file holds one
	// line per step.
	g := graph.New(2)
	g.AddEdge(0, 1)
	attrs := graph.NewAttrs(2)
	attrs.Value[1] = 1
	attrs.Conformity[0] = 1
	attrs.Conformity[1] = 1

	sim, err := NewSimulator(Config{Init: InitRandom, Power: 1, MaxSteps: 20}, nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	events := logging.NewEventLogger(dir, "trace")
	if events == nil {
		t.Fatal("NewEventLogger returned nil at trace level")
	}
	sim.SetEventLogger(events)

	res, err := sim.Run(context.Background(), g, attrs, newRNG())
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("error = %v, want ErrNotConverged for an oscillating pair", err)
	}
	events.Close()

	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("opening events.jsonl: %v", err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
		var ev map[string]any
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", sc.Text(), err)
		}
		if ev["event"] != "flip" {
			t.Fatalf("event kind = %v, want flip", ev["event"])
		}
		if node, ok := ev["node"].(float64); !ok || (node != 0 && node != 1) {
			t.Fatalf("flip event node = %v", ev["node"])
		}
		if v, ok := ev["value"].(float64); !ok || (v != 0 && v != 1) {
			t.Fatalf("flip event value = %v", ev["value"])
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if lines != res.Flips {
		t.Errorf("got %d flip events for %d flips", lines, res.Flips)
	}
}

func TestFlipProbability(t *testing.T) {
	// Star center with 3 disagreeing and 1 agreeing neighbor.
	g := graph.New(5)
	for leaf := 1; leaf < 5; leaf++ {
		g.AddEdge(0, leaf)
	}
	attrs := graph.NewAttrs(5)
	attrs.Conformity[0] = 0.8
	attrs.Value[1] = 1
	attrs.Value[2] = 1
	attrs.Value[3] = 1

	sim, err := NewSimulator(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sim.flipProbability(g, attrs, 0), 0.8*3.0/4.0; got != want {
		t.Errorf("linear flip probability = %v, want %v", got, want)
	}

	// Power 2 sharpens the majority: 0.8 * 9/(1+9).
	sim2, err := NewSimulator(Config{Init: InitRandom, Power: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := sim2.flipProbability(g, attrs, 0), 0.8*9.0/10.0; got != want {
		t.Errorf("power-2 flip probability = %v, want %v", got, want)
	}

	// A lone agreeing neighborhood or an isolated node never flips.
	if got := sim.flipProbability(g, attrs, 4); got != 0 {
		t.Errorf("agreeing leaf flip probability = %v, want 0", got)
	}
	iso := graph.New(1)
	isoAttrs := graph.NewAttrs(1)
	isoAttrs.Conformity[0] = 1
	if got := sim.flipProbability(iso, isoAttrs, 0); got != 0 {
		t.Errorf("isolated node flip probability = %v, want 0", got)
	}
}

func TestInitSeeded(t *testing.T) {
	g, attrs := torusWithAttrs(t, 5, 5)
	for n := range attrs.Extraversion {
		attrs.Extraversion[n] = 0.1
		attrs.Conformity[n] = 0.5
	}
	attrs.Extraversion[13] = 0.9

	sim, err := NewSimulator(Config{Init: InitSeeded, Power: 1, SeedCount: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sim.Init(g, attrs, newRNG())

	if attrs.Value[13] != 1 {
		t.Error("seed adopter was not converted")
	}
	if attrs.Conformity[13] != 0 {
		t.Error("seed adopter should be immune (conformity 0)")
	}
	converted := 0
	for _, nbr := range g.Neighbors(13) {
		if attrs.Value[nbr] == 1 {
			converted++
		}
	}
	if converted != 2 {
		t.Errorf("%d disciples converted, want 2", converted)
	}
	total := 0
	for _, v := range attrs.Value {
		total += int(v)
	}
	if total != 3 {
		t.Errorf("%d nodes hold value 1 after init, want 3", total)
	}
}

func TestInitSeededMoreDisciplesThanNeighbors(t *testing.T) {
	g, attrs := torusWithAttrs(t, 3, 3)
	attrs.Extraversion[4] = 1

	sim, err := NewSimulator(Config{Init: InitSeeded, Power: 1, SeedCount: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sim.Init(g, attrs, newRNG())

	for _, nbr := range g.Neighbors(4) {
		if attrs.Value[nbr] != 1 {
			t.Errorf("neighbor %d not converted although SeedCount exceeds degree", nbr)
		}
	}
}

func TestSeededEarlyStop(t *testing.T) {
	g, attrs := torusWithAttrs(t, 4, 4)
	for n := range attrs.Conformity {
		attrs.Conformity[n] = 1
	}
	attrs.Extraversion[0] = 1

	sim, err := NewSimulator(Config{
		Init:                InitSeeded,
		Power:               1,
		ConversionThreshold: 0.95,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rng := newRNG()
	sim.Init(g, attrs, rng)

	// Seeding converts 1/16 nodes, so the zero fraction starts at 0.9375,
	// already at the threshold: the run must stop before any draw.
	res, err := sim.Run(context.Background(), g, attrs, rng)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.EarlyAdoption {
		t.Error("EarlyAdoption = false, want true")
	}
	if res.Steps != 0 {
		t.Errorf("Steps = %d, want 0 when the threshold is met at start", res.Steps)
	}
	if res.ZeroFraction > 0.95 {
		t.Errorf("ZeroFraction = %v, want <= 0.95 at early stop", res.ZeroFraction)
	}
}

func TestRunHonorsContext(t *testing.T) {
	g, attrs := torusWithAttrs(t, 4, 4)
	for n := range attrs.Conformity {
		attrs.Conformity[n] = 1
	}
	sim, err := NewSimulator(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	rng := newRNG()
	sim.Init(g, attrs, rng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Run(ctx, g, attrs, rng); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "seeded", cfg: Config{Init: InitSeeded, Power: 2, SeedCount: 3, ConversionThreshold: 0.5}},
		{name: "bad init", cfg: Config{Init: "wat", Power: 1}, wantErr: true},
		{name: "zero power", cfg: Config{Init: InitRandom, Power: 0}, wantErr: true},
		{name: "negative seeds", cfg: Config{Init: InitSeeded, Power: 1, SeedCount: -1}, wantErr: true},
		{name: "threshold above 1", cfg: Config{Init: InitRandom, Power: 1, ConversionThreshold: 1.5}, wantErr: true},
		{name: "negative sample interval", cfg: Config{Init: InitRandom, Power: 1, SampleEvery: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
