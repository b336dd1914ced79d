package elmm

import (
	"fmt"

	"github.com/curioloop/optimizer/slsqp"
)

// Scaling of the spectral rows relative to the sum-to-one row in the
// augmented system. Keeps the constraint row dominant without ruining
// the conditioning of the spectral block.
const fclsuDelta = 1e-3

// updateAbundancesFCLSU solves the fully constrained (non-negative,
// sum-to-one) least squares problem per pixel, without spatial
// regularization. Each pixel builds the augmented system
// [delta*S_k; 1'] x = [delta*x_k; 1] and delegates to the NNLS
// active-set solver.
func (s *solver) updateAbundancesFCLSU() error {
	rows := s.bands + 1
	return forEachPixelErr(s.numPix, func(k int) error {
		sk := s.S[k]
		// Column-major working space for NNLS, leading dimension rows.
		a := make([]float64, rows*s.p)
		for q := 0; q < s.p; q++ {
			col := a[q*rows : (q+1)*rows]
			for l := 0; l < s.bands; l++ {
				col[l] = fclsuDelta * sk.At(l, q)
			}
			col[s.bands] = 1
		}
		b := make([]float64, rows)
		for l := 0; l < s.bands; l++ {
			b[l] = fclsuDelta * s.dataMat.At(l, k)
		}
		b[s.bands] = 1

		x := make([]float64, s.p)
		w := make([]float64, s.p)
		z := make([]float64, rows)
		index := make([]int, s.p)
		if _, mode := slsqp.NNLS(rows, s.p, a, rows, b, x, w, z, index, 0); mode != slsqp.HasSolution {
			return fmt.Errorf("constrained least squares: pixel %d: nnls status %v", k, mode)
		}
		for q := 0; q < s.p; q++ {
			s.A.Set(q, k, x[q])
		}
		return nil
	})
}
