package elmm

import (
	"math"
	"runtime"
	"sync"

	"github.com/jvlmdr/lin-go/lapack"
	"github.com/jvlmdr/lin-go/mat"
)

func cloneMat(a *mat.Mat) *mat.Mat {
	m, n := a.Dims()
	b := mat.New(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, a.At(i, j))
		}
	}
	return b
}

// z <- a - b.
func subMat(a, b *mat.Mat) *mat.Mat {
	m, n := a.Dims()
	z := mat.New(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			z.Set(i, j, a.At(i, j)-b.At(i, j))
		}
	}
	return z
}

// z <- a + b.
func addMat(a, b *mat.Mat) *mat.Mat {
	m, n := a.Dims()
	z := mat.New(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			z.Set(i, j, a.At(i, j)+b.At(i, j))
		}
	}
	return z
}

// a <- a + b in place.
func incMat(a, b *mat.Mat) {
	m, n := a.Dims()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, a.At(i, j)+b.At(i, j))
		}
	}
}

// a <- s * a in place.
func scaleMat(a *mat.Mat, s float64) {
	m, n := a.Dims()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, s*a.At(i, j))
		}
	}
}

func frobSq(a *mat.Mat) float64 {
	m, n := a.Dims()
	var sum float64
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := a.At(i, j)
			sum += v * v
		}
	}
	return sum
}

func frob(a *mat.Mat) float64 { return math.Sqrt(frobSq(a)) }

func frobDiff(a, b *mat.Mat) float64 {
	m, n := a.Dims()
	var sum float64
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := a.At(i, j) - b.At(i, j)
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// column copies column j of a into a new slice.
func column(a *mat.Mat, j int) []float64 {
	m, _ := a.Dims()
	x := make([]float64, m)
	for i := 0; i < m; i++ {
		x[i] = a.At(i, j)
	}
	return x
}

// relChange returns num/den with the degenerate-denominator policy:
// 0/0 counts as no change, anything else over zero as infinite change.
func relChange(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return num / den
}

// solvePosDef solves a x = b for symmetric positive definite a without
// destroying the inputs. A near-singular system falls back to a
// regularized solve with an increasing diagonal ridge.
func solvePosDef(a *mat.Mat, b []float64) ([]float64, error) {
	n, _ := a.Dims()
	rhs := make([]float64, len(b))
	copy(rhs, b)
	x, err := lapack.SolvePosDef(cloneMat(a), rhs)
	if err == nil {
		return x, nil
	}
	var tr float64
	for i := 0; i < n; i++ {
		tr += a.At(i, i)
	}
	ridge := 1e-10 * (1 + math.Abs(tr)/float64(n))
	for attempt := 0; attempt < 3; attempt++ {
		c := cloneMat(a)
		for i := 0; i < n; i++ {
			c.Set(i, i, c.At(i, i)+ridge)
		}
		copy(rhs, b)
		if x, err = lapack.SolvePosDef(c, rhs); err == nil {
			return x, nil
		}
		ridge *= 1e3
	}
	return nil, err
}

// invPosDef inverts a symmetric positive definite matrix column by
// column, with the same ridge fallback as solvePosDef.
func invPosDef(a *mat.Mat) (*mat.Mat, error) {
	n, _ := a.Dims()
	inv := mat.New(n, n)
	e := make([]float64, n)
	for j := 0; j < n; j++ {
		e[j] = 1
		x, err := solvePosDef(a, e)
		e[j] = 0
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			inv.Set(i, j, x[i])
		}
	}
	return inv, nil
}

// forEachPixel runs f for every pixel index in [0, n), chunked over
// the available CPUs. It returns after all pixels are done.
func forEachPixel(n int, f func(k int)) {
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for k := 0; k < n; k++ {
			f(k)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for k := lo; k < hi; k++ {
				f(k)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// forEachPixelErr is forEachPixel for pixel functions that can fail.
// The first error wins; all pixels still run.
func forEachPixelErr(n int, f func(k int) error) error {
	var mu sync.Mutex
	var first error
	forEachPixel(n, func(k int) {
		if err := f(k); err != nil {
			mu.Lock()
			if first == nil {
				first = err
			}
			mu.Unlock()
		}
	})
	return first
}
