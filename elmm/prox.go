package elmm

import (
	"math"

	"github.com/jvlmdr/lin-go/mat"
)

// Soft applies elementwise soft-thresholding with threshold t.
// A non-positive threshold returns a copy of the input.
func Soft(x *mat.Mat, t float64) *mat.Mat {
	m, n := x.Dims()
	y := mat.New(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			y.Set(i, j, softOne(x.At(i, j), t))
		}
	}
	return y
}

// SoftRows applies elementwise soft-thresholding with a separate
// threshold per row.
func SoftRows(x *mat.Mat, t []float64) *mat.Mat {
	m, n := x.Dims()
	y := mat.New(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			y.Set(i, j, softOne(x.At(i, j), t[i]))
		}
	}
	return y
}

func softOne(v, t float64) float64 {
	if t <= 0 {
		return v
	}
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	}
	return 0
}

// GroupSoftCols shrinks each column toward zero as a group:
// the proximal operator of t times the sum of column 2-norms.
func GroupSoftCols(x *mat.Mat, t float64) *mat.Mat {
	m, n := x.Dims()
	y := mat.New(m, n)
	for j := 0; j < n; j++ {
		var nu float64
		for i := 0; i < m; i++ {
			nu += x.At(i, j) * x.At(i, j)
		}
		s := groupScale(nu, t)
		for i := 0; i < m; i++ {
			y.Set(i, j, s*x.At(i, j))
		}
	}
	return y
}

// GroupSoftRows shrinks each row as a group with a separate threshold
// per row.
func GroupSoftRows(x *mat.Mat, t []float64) *mat.Mat {
	m, n := x.Dims()
	y := mat.New(m, n)
	for i := 0; i < m; i++ {
		var nu float64
		for j := 0; j < n; j++ {
			nu += x.At(i, j) * x.At(i, j)
		}
		s := groupScale(nu, t[i])
		for j := 0; j < n; j++ {
			y.Set(i, j, s*x.At(i, j))
		}
	}
	return y
}

// groupScale returns the shrinkage factor for a group with squared
// norm nuSq and threshold t.
func groupScale(nuSq, t float64) float64 {
	if t <= 0 {
		return 1
	}
	nu := math.Sqrt(nuSq)
	a := nu - t
	if a <= 0 {
		return 0
	}
	return a / (a + t)
}
