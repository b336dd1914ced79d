package elmm

import (
	"log"

	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/lin-go/mat"
)

// updatePsi recomputes the scaling-factor matrix. Without spatial
// regularization each entry is the projection of the pixel's local
// endmember onto the reference direction,
//
//	psi[p,k] = S0[:,p] . S_k[:,p] / S0[:,p] . S0[:,p].
//
// With spatial regularization each endmember band solves the
// stationarity condition
//
//	(lambda_psi (Hh'Hh + Hv'Hv) + lambda_s S0'S0[p] I) psi_p = lambda_s c_p
//
// in the frequency domain, with c_p[k] = S0[:,p] . S_k[:,p].
func (s *solver) updatePsi() {
	if !s.lambdaPsi.Any() {
		for q := 0; q < s.p; q++ {
			den := s.s0DotS0[q]
			if den == 0 {
				if !s.warnedZeroRef {
					log.Printf("psi update: zero-norm reference endmember %d, scaling factors zeroed", q)
					s.warnedZeroRef = true
				}
				for k := 0; k < s.numPix; k++ {
					s.Psi.Set(q, k, 0)
				}
				continue
			}
			for k := 0; k < s.numPix; k++ {
				s.Psi.Set(q, k, s.refDot(q, k)/den)
			}
		}
		return
	}

	c := mat.New(s.p, s.numPix)
	for q := 0; q < s.p; q++ {
		for k := 0; k < s.numPix; k++ {
			c.Set(q, k, s.refDot(q, k))
		}
	}
	cIm := ToImage(c, s.m, s.n)
	out := rimg64.NewMulti(s.m, s.n, s.p)
	zeroBins := 0
	for q := 0; q < s.p; q++ {
		lp := s.lambdaPsi.At(q)
		x := dftPlane(cIm, q)
		for u := 0; u < s.m; u++ {
			for v := 0; v < s.n; v++ {
				den := lp*s.gradSq[u][v] + s.lambdaS*s.s0DotS0[q]
				if den == 0 {
					// Possible only when lambda_s or the reference
					// column vanishes; the numerator vanishes with it.
					x.Set(u, v, 0)
					zeroBins++
					continue
				}
				x.Set(u, v, complex(s.lambdaS, 0)*x.At(u, v)/complex(den, 0))
			}
		}
		idftToPlane(out, q, x)
	}
	if zeroBins > 0 && !s.warnedZeroBin {
		log.Printf("psi update: %d zero-denominator frequency bins", zeroBins)
		s.warnedZeroBin = true
	}
	s.Psi = ToMatrix(out)
}

// refDot is S0[:,q] . S_k[:,q].
func (s *solver) refDot(q, k int) float64 {
	sk := s.S[k]
	var sum float64
	for l := 0; l < s.bands; l++ {
		sum += s.s0.At(l, q) * sk.At(l, q)
	}
	return sum
}
