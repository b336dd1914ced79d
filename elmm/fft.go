package elmm

import (
	"log"
	"math"
	"math/cmplx"

	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/go-fftw/fftw"
	"github.com/jvlmdr/lin-go/mat"
)

// dftDiffKernelH returns the 2-D transform of the first-order forward
// horizontal difference kernel. Convolving with it gives
// x(i, j+1) - x(i, j) with circular boundary.
func dftDiffKernelH(m, n int) *fftw.Array2 {
	k := fftw.NewArray2(m, n)
	if n > 1 {
		k.Set(0, 0, -1)
		k.Set(0, n-1, 1)
	}
	fftw.FFT2To(k, k)
	return k
}

// dftDiffKernelV returns the 2-D transform of the first-order forward
// vertical difference kernel. Convolving with it gives
// x(i+1, j) - x(i, j) with circular boundary.
func dftDiffKernelV(m, n int) *fftw.Array2 {
	k := fftw.NewArray2(m, n)
	if m > 1 {
		k.Set(0, 0, -1)
		k.Set(m-1, 0, 1)
	}
	fftw.FFT2To(k, k)
	return k
}

// Copies one channel of an image into an FFT array and computes the
// forward transform. The array has the exact image dimensions:
// circular convolution admits no padding.
func dftPlane(f *rimg64.Multi, channel int) *fftw.Array2 {
	x := fftw.NewArray2(f.Width, f.Height)
	for i := 0; i < f.Width; i++ {
		for j := 0; j < f.Height; j++ {
			x.Set(i, j, complex(f.At(i, j, channel), 0))
		}
	}
	fftw.FFT2To(x, x)
	return x
}

// Takes the 2-D inverse transform and copies the real part out to one
// channel of an image. The inverse is unnormalized; this divides by
// the plane size.
func idftToPlane(dst *rimg64.Multi, channel int, x *fftw.Array2) {
	fftw.IFFT2To(x, x)
	norm := float64(dst.Width * dst.Height)
	// Accumulate total real and imaginary components to check.
	var re, im float64
	for i := 0; i < dst.Width; i++ {
		for j := 0; j < dst.Height; j++ {
			a, b := real(x.At(i, j)), imag(x.At(i, j))
			re, im = re+a*a, im+b*b
			dst.Set(i, j, channel, a/norm)
		}
	}
	re, im = math.Sqrt(re), math.Sqrt(im)
	const eps = 1e-6
	if (re > eps && im/re > 1e-12) || (re <= eps && im > 1e-6) {
		log.Printf("significant imaginary component (real %g, imag %g)", re, im)
	}
}

// z(u, v) <- z(u, v) * k(u, v) for all u, v.
func mulTo(z, k *fftw.Array2) {
	m, n := z.Dims()
	for u := 0; u < m; u++ {
		for v := 0; v < n; v++ {
			z.Set(u, v, z.At(u, v)*k.At(u, v))
		}
	}
}

// z(u, v) <- z(u, v) + conj(k(u, v)) * x(u, v) for all u, v.
func addConjMul(z, k, x *fftw.Array2) {
	m, n := z.Dims()
	for u := 0; u < m; u++ {
		for v := 0; v < n; v++ {
			z.Set(u, v, z.At(u, v)+cmplx.Conj(k.At(u, v))*x.At(u, v))
		}
	}
}

// convAll applies one frequency-domain kernel to every band of a
// P x N matrix by circular convolution, reshaping through m x n image
// layout.
func convAll(x *mat.Mat, kHat *fftw.Array2, m, n int) *mat.Mat {
	p, _ := x.Dims()
	f := ToImage(x, m, n)
	g := rimg64.NewMulti(m, n, p)
	for q := 0; q < p; q++ {
		xHat := dftPlane(f, q)
		mulTo(xHat, kHat)
		idftToPlane(g, q, xHat)
	}
	return ToMatrix(g)
}
