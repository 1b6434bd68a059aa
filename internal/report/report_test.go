package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/socgrid/socgrid/internal/diffusion"
	"github.com/socgrid/socgrid/internal/equilibrium"
)

func TestWriteDiffusionTrace(t *testing.T) {
	trace := []diffusion.TracePoint{
		{Step: 100, Generation: 1, Flips: 12, ZeroFraction: 0.52},
		{Step: 200, Generation: 2, Flips: 19, ZeroFraction: 0.47},
	}
	var buf bytes.Buffer
	if err := WriteDiffusionTrace(&buf, trace); err != nil {
		t.Fatalf("WriteDiffusionTrace: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if records[0][0] != "step" || records[0][3] != "zero_fraction" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "100" || records[1][2] != "12" || records[1][3] != "0.52" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[2][1] != "2" {
		t.Errorf("row 2 generation = %q, want 2", records[2][1])
	}
}

func TestWriteDiffusionTraceEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDiffusionTrace(&buf, nil); err != nil {
		t.Fatalf("WriteDiffusionTrace: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want header only", len(records))
	}
}

func TestWriteEquilibriumTrace(t *testing.T) {
	trace := equilibrium.Trace{
		{Pass: 1, Iterations: 900, Edges: 1850, Geodesic: 3.4, Clustering: 0.11, AvgDegree: 4.1, DegreeSkew: 0.2, Movement: 0.6},
		{Pass: 2, Iterations: 900, Edges: 1860, Geodesic: 3.1, Clustering: 0.13, AvgDegree: 4.1, DegreeSkew: 0.25, Movement: 0.3},
	}
	var buf bytes.Buffer
	if err := WriteEquilibriumTrace(&buf, trace); err != nil {
		t.Fatalf("WriteEquilibriumTrace: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if records[0][0] != "pass" || records[0][7] != "movement" {
		t.Errorf("header = %v", records[0])
	}
	if records[2][0] != "2" || records[2][3] != "3.1" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestWriteEquilibriumSummary(t *testing.T) {
	res := equilibrium.Result{
		Passes:    4,
		Converged: true,
		Trace: equilibrium.Trace{
			{Pass: 1, Geodesic: 4.0, Clustering: 0.1, AvgDegree: 4.0, Movement: 1.0},
			{Pass: 2, Geodesic: 3.0, Clustering: 0.2, AvgDegree: 4.5, Movement: 0.5},
			{Pass: 3, Geodesic: 2.0, Clustering: 0.3, AvgDegree: 5.0, Movement: 0.1},
			{Pass: 4, Geodesic: 2.0, Clustering: 0.3, AvgDegree: 5.0, Movement: 0.0},
		},
	}
	cond := Condition{Width: 30, Height: 30, PruneProb: 0.1, Strategy: "eigen", Seed: 7}
	row := NewSummaryRow(cond, res, 2)

	if row.Full.AvgGeodesic != 2.75 {
		t.Errorf("Full.AvgGeodesic = %v, want 2.75", row.Full.AvgGeodesic)
	}
	if row.Tail.AvgGeodesic != 2.0 {
		t.Errorf("Tail.AvgGeodesic = %v, want 2.0", row.Tail.AvgGeodesic)
	}

	var buf bytes.Buffer
	if err := WriteEquilibriumSummary(&buf, []SummaryRow{row}); err != nil {
		t.Fatalf("WriteEquilibriumSummary: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want header + 1 row", len(records))
	}
	got := records[1]
	if got[0] != "30" || got[3] != "eigen" || got[4] != "7" {
		t.Errorf("condition columns = %v", got[:5])
	}
	if got[5] != "4" || got[6] != "true" {
		t.Errorf("passes/converged = %v %v", got[5], got[6])
	}
	if got[7] != "2.75" || got[11] != "2" {
		t.Errorf("geodesic columns = %v %v", got[7], got[11])
	}
	if got[15] != "0" {
		t.Errorf("tail geodesic std = %q, want 0", got[15])
	}
}
