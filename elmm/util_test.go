package elmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/lin-go/mat"
)

const eps = 1e-9

func epsEq(want, got, eps float64) bool {
	return math.Abs(want-got) <= eps
}

func testMatEq(t *testing.T, want, got *mat.Mat, eps float64) {
	t.Helper()
	m, n := want.Dims()
	p, q := got.Dims()
	if m != p || n != q {
		t.Fatalf("matrix sizes differ: want %dx%d, got %dx%d", m, n, p, q)
	}
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			u := want.At(i, j)
			v := got.At(i, j)
			if !epsEq(u, v, eps) {
				t.Errorf("at (%d, %d): want %.6g, got %.6g", i, j, u, v)
			}
		}
	}
}

func randMat(rows, cols int) *mat.Mat {
	x := mat.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x.Set(i, j, rand.NormFloat64())
		}
	}
	return x
}

// randPosMat draws entries uniformly from [lo, hi).
func randPosMat(rows, cols int, lo, hi float64) *mat.Mat {
	x := mat.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x.Set(i, j, lo+(hi-lo)*rand.Float64())
		}
	}
	return x
}

// randSimplexCols draws each column from the positive simplex.
func randSimplexCols(rows, cols int) *mat.Mat {
	x := mat.New(rows, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		col := make([]float64, rows)
		for i := range col {
			col[i] = rand.Float64() + 1e-3
			sum += col[i]
		}
		for i := range col {
			x.Set(i, j, col[i]/sum)
		}
	}
	return x
}

func constMat(rows, cols int, v float64) *mat.Mat {
	x := mat.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x.Set(i, j, v)
		}
	}
	return x
}

// mixCube builds the noiseless m x n x L cube with pixel spectra
// x_k = s0 diag(psi_k) a_k.
func mixCube(s0, a, psi *mat.Mat, m, n int) *rimg64.Multi {
	bands, p := s0.Dims()
	x := mat.New(bands, m*n)
	for k := 0; k < m*n; k++ {
		for l := 0; l < bands; l++ {
			var sum float64
			for q := 0; q < p; q++ {
				sum += s0.At(l, q) * psi.At(q, k) * a.At(q, k)
			}
			x.Set(l, k, sum)
		}
	}
	return ToImage(x, m, n)
}

func quietOptions() Options {
	opt := DefaultOptions()
	opt.Verbose = false
	return opt
}

func testSolver(data *rimg64.Multi, aInit, psiInit, s0 *mat.Mat, lambdaS float64, lambdaA, lambdaPsi Weight, opt Options) *solver {
	return newSolver(data, aInit, psiInit, s0, lambdaS, lambdaA, lambdaPsi, opt)
}

func TestRelChange(t *testing.T) {
	if got := relChange(0, 0); got != 0 {
		t.Errorf("relChange(0, 0): want 0, got %g", got)
	}
	if got := relChange(1, 0); !math.IsInf(got, 1) {
		t.Errorf("relChange(1, 0): want +Inf, got %g", got)
	}
	if got := relChange(1, 2); !epsEq(0.5, got, eps) {
		t.Errorf("relChange(1, 2): want 0.5, got %g", got)
	}
}

func TestInvPosDef(t *testing.T) {
	const n = 5
	// a'a + I is positive definite.
	a := randMat(n, n)
	g := mat.New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var v float64
			for l := 0; l < n; l++ {
				v += a.At(l, i) * a.At(l, j)
			}
			if i == j {
				v++
			}
			g.Set(i, j, v)
		}
	}
	inv, err := invPosDef(g)
	if err != nil {
		t.Fatal(err)
	}
	prod := mat.Mul(g, inv)
	testMatEq(t, identity(n), prod, 1e-8)
}

func TestInvPosDefSingularFallsBack(t *testing.T) {
	// Rank-one matrix: the ridge fallback must still produce a result.
	g := constMat(3, 3, 1)
	if _, err := invPosDef(g); err != nil {
		t.Fatalf("ridge fallback failed: %v", err)
	}
}

func identity(n int) *mat.Mat {
	x := mat.New(n, n)
	for i := 0; i < n; i++ {
		x.Set(i, i, 1)
	}
	return x
}

func TestForEachPixelCoversAll(t *testing.T) {
	const n = 1000
	hit := make([]int32, n)
	forEachPixel(n, func(k int) { hit[k]++ })
	for k, h := range hit {
		if h != 1 {
			t.Fatalf("pixel %d visited %d times", k, h)
		}
	}
}
