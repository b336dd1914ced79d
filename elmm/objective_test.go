package elmm

import (
	"math"
	"testing"
)

func TestObjectiveTermGating(t *testing.T) {
	const (
		m = 3
		n = 3
		l = 5
		p = 2
	)
	s0 := randPosMat(l, p, 0.1, 1)
	a := randSimplexCols(p, m*n)
	psi := constMat(p, m*n, 1)
	data := mixCube(s0, a, psi, m, n)

	s := testSolver(data, a, psi, s0, 1, Scalar(0), Scalar(0), quietOptions())
	ent := s.evalObjective()
	if ent.SpatialA != nil {
		t.Error("spatial abundance term present with zero weight")
	}
	if ent.SpatialPsi != nil {
		t.Error("spatial psi term present with zero weight")
	}
	if !epsEq(ent.Fit+s.lambdaS*ent.Tight, ent.Objective, eps) {
		t.Errorf("objective %g does not match fit %g + lambda_s*tight %g", ent.Objective, ent.Fit, ent.Tight)
	}

	s = testSolver(data, a, psi, s0, 1, Scalar(0.1), Scalar(0.2), quietOptions())
	ent = s.evalObjective()
	if len(ent.SpatialA) != 1 || len(ent.SpatialPsi) != 1 {
		t.Fatalf("scalar weights: want single accumulated terms, got %d and %d", len(ent.SpatialA), len(ent.SpatialPsi))
	}
	want := ent.Fit + s.lambdaS*ent.Tight + 0.1*ent.SpatialA[0] + 0.2*ent.SpatialPsi[0]
	if !epsEq(want, ent.Objective, eps) {
		t.Errorf("objective: want %g, got %g", want, ent.Objective)
	}
}

func TestObjectiveNoiselessGroundTruthIsZeroFit(t *testing.T) {
	const (
		m = 3
		n = 4
		l = 6
		p = 3
	)
	s0 := randPosMat(l, p, 0.1, 1)
	a := randSimplexCols(p, m*n)
	psi := constMat(p, m*n, 1)
	data := mixCube(s0, a, psi, m, n)

	s := testSolver(data, a, psi, s0, 1, Scalar(0), Scalar(0), quietOptions())
	ent := s.evalObjective()
	if ent.Fit > 1e-12 {
		t.Errorf("nonzero fit %g at ground truth", ent.Fit)
	}
	if ent.Tight > 1e-12 {
		t.Errorf("nonzero tightness %g at ground truth", ent.Tight)
	}
}

func TestObjectiveVectorWeightTerms(t *testing.T) {
	const (
		m = 3
		n = 3
		l = 5
		p = 3
	)
	s0 := randPosMat(l, p, 0.1, 1)
	a := randSimplexCols(p, m*n)
	psi := constMat(p, m*n, 1)
	data := mixCube(s0, a, psi, m, n)

	la := []float64{0.1, 0.2, 0.3}
	s := testSolver(data, a, psi, s0, 1, Vector(la), Scalar(0), quietOptions())
	ent := s.evalObjective()
	if len(ent.SpatialA) != p {
		t.Fatalf("vector weight: want %d terms, got %d", p, len(ent.SpatialA))
	}
	var sp float64
	for q, v := range ent.SpatialA {
		if v < 0 || math.IsNaN(v) {
			t.Errorf("term %d: bad value %g", q, v)
		}
		sp += la[q] * v
	}
	want := ent.Fit + s.lambdaS*ent.Tight + sp
	if !epsEq(want, ent.Objective, eps) {
		t.Errorf("objective: want %g, got %g", want, ent.Objective)
	}
}
