package elmm

import (
	"fmt"

	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/lin-go/mat"
)

// ToImage converts a matrix in band x pixel layout (P x N) to image
// layout (m x n x P). Pixel k maps to position (i, j) with k = i + m*j.
func ToImage(x *mat.Mat, m, n int) *rimg64.Multi {
	p, numPix := x.Dims()
	if numPix != m*n {
		panic(fmt.Sprintf("pixel count does not match image: %d, %dx%d", numPix, m, n))
	}
	f := rimg64.NewMulti(m, n, p)
	for q := 0; q < p; q++ {
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				f.Set(i, j, q, x.At(q, i+m*j))
			}
		}
	}
	return f
}

// ToMatrix converts an image in m x n x P layout to band x pixel
// layout (P x N). Inverse of ToImage.
func ToMatrix(f *rimg64.Multi) *mat.Mat {
	m, n := f.Width, f.Height
	x := mat.New(f.Channels, m*n)
	for q := 0; q < f.Channels; q++ {
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				x.Set(q, i+m*j, f.At(i, j, q))
			}
		}
	}
	return x
}
