package elmm

import (
	"math"

	"github.com/jvlmdr/lin-go/mat"
)

// TraceEntry records one outer iteration: the relative changes of the
// three variable blocks and the terms of the objective. A spatial term
// is present only when its weight is active; scalar weights produce a
// single accumulated term, vector weights one term per endmember.
type TraceEntry struct {
	RelS   float64
	RelA   float64
	RelPsi float64

	// 1/2 || data - S (.) A ||^2, per-pixel products summed.
	Fit float64
	// 1/2 || S - S0 diag(psi) ||^2.
	Tight float64
	// Spatial penalty on the abundance gradients; nil when inactive.
	SpatialA []float64
	// Spatial penalty on the scaling-factor gradients; nil when inactive.
	SpatialPsi []float64

	// Weighted sum of the active terms.
	Objective float64
}

func (s *solver) evalObjective() TraceEntry {
	var ent TraceEntry

	for k := 0; k < s.numPix; k++ {
		rec := mat.MulVec(s.S[k], column(s.A, k))
		for l := 0; l < s.bands; l++ {
			r := s.dataMat.At(l, k) - rec[l]
			ent.Fit += r * r
		}
		sk := s.S[k]
		for l := 0; l < s.bands; l++ {
			for q := 0; q < s.p; q++ {
				r := sk.At(l, q) - s.s0.At(l, q)*s.Psi.At(q, k)
				ent.Tight += r * r
			}
		}
	}
	ent.Fit /= 2
	ent.Tight /= 2

	ent.Objective = ent.Fit + s.lambdaS*ent.Tight
	if s.lambdaA.Any() {
		ent.SpatialA = s.spatialTermsA()
		ent.Objective += s.lambdaA.weighted(ent.SpatialA)
	}
	if s.lambdaPsi.Any() {
		ent.SpatialPsi = s.spatialTermsPsi()
		ent.Objective += s.lambdaPsi.weighted(ent.SpatialPsi)
	}
	return ent
}

// spatialTermsA evaluates the abundance spatial penalty on the
// horizontal and vertical gradient fields, matching the proximal
// operator in use: elementwise magnitudes for the TV norm, column
// groups for the scalar group norm and row groups for a vector weight.
func (s *solver) spatialTermsA() []float64 {
	gh := convAll(s.A, s.fdh, s.m, s.n)
	gv := convAll(s.A, s.fdv, s.m, s.n)

	if s.lambdaA.IsScalar() {
		var sum float64
		switch s.opt.Norm {
		case NormGroup:
			for k := 0; k < s.numPix; k++ {
				var nh, nv float64
				for q := 0; q < s.p; q++ {
					nh += gh.At(q, k) * gh.At(q, k)
					nv += gv.At(q, k) * gv.At(q, k)
				}
				sum += math.Sqrt(nh) + math.Sqrt(nv)
			}
		default: // NormTV
			for q := 0; q < s.p; q++ {
				for k := 0; k < s.numPix; k++ {
					sum += math.Abs(gh.At(q, k)) + math.Abs(gv.At(q, k))
				}
			}
		}
		return []float64{sum}
	}

	terms := make([]float64, s.p)
	for q := 0; q < s.p; q++ {
		switch s.opt.Norm {
		case NormGroup:
			var nh, nv float64
			for k := 0; k < s.numPix; k++ {
				nh += gh.At(q, k) * gh.At(q, k)
				nv += gv.At(q, k) * gv.At(q, k)
			}
			terms[q] = math.Sqrt(nh) + math.Sqrt(nv)
		default:
			for k := 0; k < s.numPix; k++ {
				terms[q] += math.Abs(gh.At(q, k)) + math.Abs(gv.At(q, k))
			}
		}
	}
	return terms
}

// spatialTermsPsi is the quadratic smoothness of the scaling-factor
// gradients, 1/2 (||Hh psi||^2 + ||Hv psi||^2), per endmember for a
// vector weight.
func (s *solver) spatialTermsPsi() []float64 {
	gh := convAll(s.Psi, s.fdh, s.m, s.n)
	gv := convAll(s.Psi, s.fdv, s.m, s.n)

	if s.lambdaPsi.IsScalar() {
		return []float64{(frobSq(gh) + frobSq(gv)) / 2}
	}
	terms := make([]float64, s.p)
	for q := 0; q < s.p; q++ {
		var sum float64
		for k := 0; k < s.numPix; k++ {
			sum += gh.At(q, k)*gh.At(q, k) + gv.At(q, k)*gv.At(q, k)
		}
		terms[q] = sum / 2
	}
	return terms
}
