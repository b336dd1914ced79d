package elmm

import (
	"math/rand"
	"testing"

	"github.com/jvlmdr/go-cv/rimg64"
)

func TestToImageToMatrixRoundTrip(t *testing.T) {
	const (
		m = 4
		n = 7
		p = 3
	)
	x := randMat(p, m*n)
	testMatEq(t, x, ToMatrix(ToImage(x, m, n)), eps)
}

func TestToMatrixToImageRoundTrip(t *testing.T) {
	const (
		m = 5
		n = 3
		p = 4
	)
	f := rimg64.NewMulti(m, n, p)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			for q := 0; q < p; q++ {
				f.Set(i, j, q, rand.NormFloat64())
			}
		}
	}
	g := ToImage(ToMatrix(f), m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			for q := 0; q < p; q++ {
				if !epsEq(f.At(i, j, q), g.At(i, j, q), eps) {
					t.Errorf("at (%d, %d, %d): want %.6g, got %.6g", i, j, q, f.At(i, j, q), g.At(i, j, q))
				}
			}
		}
	}
}

func TestToImagePixelOrder(t *testing.T) {
	// Pixel k maps to (i, j) = (k mod m, k div m).
	const (
		m = 3
		n = 2
	)
	x := randMat(1, m*n)
	f := ToImage(x, m, n)
	for k := 0; k < m*n; k++ {
		i, j := k%m, k/m
		if !epsEq(x.At(0, k), f.At(i, j, 0), eps) {
			t.Errorf("pixel %d: want %.6g at (%d, %d), got %.6g", k, x.At(0, k), i, j, f.At(i, j, 0))
		}
	}
}

func TestToImagePanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic for inconsistent pixel count")
		}
	}()
	ToImage(randMat(2, 5), 2, 3)
}
