package elmm

import (
	"testing"

	"github.com/jvlmdr/go-fftw/fftw"
	"github.com/jvlmdr/lin-go/mat"
)

// Tolerance for values that pass through a forward and inverse FFT.
const fftEps = 1e-10

func TestConvAllHorizontalDifference(t *testing.T) {
	const (
		m = 4
		n = 6
		p = 2
	)
	x := randMat(p, m*n)
	kHat := dftDiffKernelH(m, n)
	got := convAll(x, kHat, m, n)
	for q := 0; q < p; q++ {
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				want := x.At(q, i+m*((j+1)%n)) - x.At(q, i+m*j)
				if !epsEq(want, got.At(q, i+m*j), fftEps) {
					t.Errorf("at band %d, (%d, %d): want %.6g, got %.6g", q, i, j, want, got.At(q, i+m*j))
				}
			}
		}
	}
}

func TestConvAllVerticalDifference(t *testing.T) {
	const (
		m = 5
		n = 4
		p = 2
	)
	x := randMat(p, m*n)
	kHat := dftDiffKernelV(m, n)
	got := convAll(x, kHat, m, n)
	for q := 0; q < p; q++ {
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				want := x.At(q, (i+1)%m+m*j) - x.At(q, i+m*j)
				if !epsEq(want, got.At(q, i+m*j), fftEps) {
					t.Errorf("at band %d, (%d, %d): want %.6g, got %.6g", q, i, j, want, got.At(q, i+m*j))
				}
			}
		}
	}
}

func TestDiffKernelsDiffer(t *testing.T) {
	const (
		m = 6
		n = 6
	)
	x := randMat(1, m*n)
	gh := convAll(x, dftDiffKernelH(m, n), m, n)
	gv := convAll(x, dftDiffKernelV(m, n), m, n)
	var maxDiff float64
	for k := 0; k < m*n; k++ {
		d := gh.At(0, k) - gv.At(0, k)
		if d < 0 {
			d = -d
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff <= 1e-6 {
		t.Errorf("horizontal and vertical operators agree on a random field (max diff %g)", maxDiff)
	}
}

func TestConvAllZeroKernel(t *testing.T) {
	const (
		m = 3
		n = 5
		p = 2
	)
	x := randMat(p, m*n)
	got := convAll(x, fftw.NewArray2(m, n), m, n)
	testMatEq(t, mat.New(p, m*n), got, fftEps)
}

func TestConvAllLinear(t *testing.T) {
	const (
		m = 4
		n = 4
		p = 3
	)
	kHat := dftDiffKernelH(m, n)
	x := randMat(p, m*n)
	y := randMat(p, m*n)
	const (
		a = 2.5
		b = -0.75
	)
	z := mat.New(p, m*n)
	for q := 0; q < p; q++ {
		for k := 0; k < m*n; k++ {
			z.Set(q, k, a*x.At(q, k)+b*y.At(q, k))
		}
	}
	gx := convAll(x, kHat, m, n)
	gy := convAll(y, kHat, m, n)
	want := mat.New(p, m*n)
	for q := 0; q < p; q++ {
		for k := 0; k < m*n; k++ {
			want.Set(q, k, a*gx.At(q, k)+b*gy.At(q, k))
		}
	}
	testMatEq(t, want, convAll(z, kHat, m, n), fftEps)
}
