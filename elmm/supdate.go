package elmm

import (
	"fmt"

	"github.com/jvlmdr/lin-go/mat"
)

// Endmember reflectances are kept strictly positive.
const endmemberFloor = 1e-6

// updateEndmembers solves the per-pixel ridge regression
//
//	S_k = (x_k a_k' + lambda_s S0 diag(psi_k)) (a_k a_k' + lambda_s I)^-1
//
// and floors every entry at endmemberFloor. Pixels are independent and
// solved in parallel; each pixel's matrix is replaced, never mutated,
// so snapshots taken by the caller stay valid.
func (s *solver) updateEndmembers() error {
	return forEachPixelErr(s.numPix, func(k int) error {
		a := column(s.A, k)

		gram := mat.New(s.p, s.p)
		for q := 0; q < s.p; q++ {
			for r := 0; r < s.p; r++ {
				v := a[q] * a[r]
				if q == r {
					v += s.lambdaS
				}
				gram.Set(q, r, v)
			}
		}
		inv, err := invPosDef(gram)
		if err != nil {
			return fmt.Errorf("endmember update: pixel %d: %v", k, err)
		}

		numer := mat.New(s.bands, s.p)
		for l := 0; l < s.bands; l++ {
			x := s.dataMat.At(l, k)
			for q := 0; q < s.p; q++ {
				numer.Set(l, q, x*a[q]+s.lambdaS*s.s0.At(l, q)*s.Psi.At(q, k))
			}
		}

		sk := mat.Mul(numer, inv)
		for l := 0; l < s.bands; l++ {
			for q := 0; q < s.p; q++ {
				if sk.At(l, q) < endmemberFloor {
					sk.Set(l, q, endmemberFloor)
				}
			}
		}
		s.S[k] = sk
		return nil
	})
}
