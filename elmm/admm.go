package elmm

import (
	"fmt"
	"log"
	"math"

	"github.com/gonum/floats"
	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/lin-go/mat"
)

// Adaptive penalty schedule of the varying-rho ADMM.
const (
	admmRhoInit = 10.0
	admmTauIncr = 2.0
	admmTauDecr = 2.0
	admmNu      = 10.0
)

// updateAbundancesADMM solves the spatially regularized abundance
// problem by variable splitting:
//
//	v1 = A   coupled to the spectral fit and the gradient surrogates,
//	v2 = Hh v1, v3 = Hv v1   penalized by the spatial norm,
//	v4 = A   constrained to be non-negative,
//
// with scaled dual variables d1..d4 and one sum-to-one Lagrange
// multiplier per pixel. Reaching the iteration cap without meeting the
// residual tolerances is a soft failure: the last iterate is kept.
func (s *solver) updateAbundancesADMM() error {
	rho := admmRhoInit

	v1 := cloneMat(s.A)
	v2 := convAll(s.A, s.fdh, s.m, s.n)
	v3 := convAll(s.A, s.fdv, s.m, s.n)
	v4 := cloneMat(s.A)

	d1 := mat.New(s.p, s.numPix)
	d2 := mat.New(s.p, s.numPix)
	d3 := mat.New(s.p, s.numPix)
	d4 := mat.New(s.p, s.numPix)
	mu := make([]float64, s.numPix)

	hh := convAll(v1, s.fdh, s.m, s.n)
	hv := convAll(v1, s.fdv, s.m, s.n)

	dimPrimal := math.Sqrt(float64(4 * s.p * s.numPix))
	dimDual := math.Sqrt(float64(s.p * s.numPix))

	for j := 0; j < s.opt.MaxIterADMM; j++ {
		aOldNorm := frob(s.A)
		v1Old := v1
		v4Old := v4
		d1OldSq := frobSq(d1)
		d4OldSq := frobSq(d4)
		pRes2Old := subMat(v2, hh)
		pRes3Old := subMat(v3, hv)

		// Closed form for A and the sum-to-one multiplier, pixel by
		// pixel. All pixels must be written back before the
		// whole-plane transform below.
		if err := s.admmSolvePixels(v1, d1, v4, d4, mu, rho); err != nil {
			return err
		}

		// Tikhonov-regularized deconvolution for v1, per band.
		v1 = s.solveV1(d1, v2, d2, v3, d3)
		hh = convAll(v1, s.fdh, s.m, s.n)
		hv = convAll(v1, s.fdv, s.m, s.n)

		// Proximal step for the gradient surrogates.
		v2 = s.proxSpatial(subMat(hh, d2), rho)
		v3 = s.proxSpatial(subMat(hv, d3), rho)

		// Non-negativity projection.
		v4 = subMat(s.A, d4)
		clampNonneg(v4)

		// Dual ascent on the primal-feasibility gaps.
		pRes1 := subMat(v1, s.A)
		pRes2 := subMat(v2, hh)
		pRes3 := subMat(v3, hv)
		pRes4 := subMat(v4, s.A)
		incMat(d1, pRes1)
		incMat(d2, pRes2)
		incMat(d3, pRes3)
		incMat(d4, pRes4)

		primal := math.Sqrt(frobSq(pRes1) + frobSq(pRes2) + frobSq(pRes3) + frobSq(pRes4))
		dv1 := frobDiff(v1Old, v1)
		dv4 := frobDiff(v4Old, v4)
		dual := rho * math.Sqrt(dv1*dv1+dv4*dv4)

		epsPrimal := dimPrimal*s.opt.EpsADMMAbs + s.opt.EpsADMMRel*math.Max(
			math.Sqrt(2*frobSq(s.A)),
			math.Sqrt(frobSq(v1Old)+frobSq(pRes2Old)+frobSq(pRes3Old)+frobSq(v4Old)))
		epsDual := dimDual*s.opt.EpsADMMAbs + rho*s.opt.EpsADMMRel*math.Sqrt(d1OldSq+d4OldSq)

		if s.opt.Verbose {
			relA := relChange(math.Abs(frob(s.A)-aOldNorm), aOldNorm)
			log.Printf("admm %d: rel_A=%.4g primal=%.4g eps_p=%.4g dual=%.4g eps_d=%.4g rho=%.4g",
				j, relA, primal, epsPrimal, dual, epsDual, rho)
		}

		// The envelopes are meaningless before the splits have moved.
		if j > 1 && primal < epsPrimal && dual < epsDual {
			return nil
		}

		// Adaptive penalty. The scaled duals shrink or grow with the
		// inverse of rho to keep the same unscaled multipliers.
		switch {
		case primal > admmNu*dual:
			rho *= admmTauIncr
			rescaleDuals(1/admmTauIncr, d1, d2, d3, d4)
		case dual > admmNu*primal:
			rho /= admmTauDecr
			rescaleDuals(admmTauDecr, d1, d2, d3, d4)
		}
	}
	if s.opt.Verbose {
		log.Printf("admm: no convergence after %d iterations", s.opt.MaxIterADMM)
	}
	return nil
}

// admmSolvePixels updates A and the sum-to-one multipliers. For each
// pixel it forms ALPHA = S_k' S_k + 2 rho I, inverts it, and applies
// the bordered-inverse formula so the equality constraint costs one
// extra rank-one correction instead of a (P+1)x(P+1) solve.
func (s *solver) admmSolvePixels(v1, d1, v4, d4 *mat.Mat, mu []float64, rho float64) error {
	return forEachPixelErr(s.numPix, func(k int) error {
		sk := s.S[k]

		alpha := mat.New(s.p, s.p)
		for q := 0; q < s.p; q++ {
			for r := 0; r < s.p; r++ {
				var v float64
				for l := 0; l < s.bands; l++ {
					v += sk.At(l, q) * sk.At(l, r)
				}
				if q == r {
					v += 2 * rho
				}
				alpha.Set(q, r, v)
			}
		}
		inv, err := invPosDef(alpha)
		if err != nil {
			return fmt.Errorf("abundance update: pixel %d: %v", k, err)
		}

		zeta := make([]float64, s.p)
		for q := 0; q < s.p; q++ {
			var v float64
			for l := 0; l < s.bands; l++ {
				v += sk.At(l, q) * s.dataMat.At(l, k)
			}
			zeta[q] = v + rho*(v1.At(q, k)+d1.At(q, k)+v4.At(q, k)+d4.At(q, k))
		}

		bz := mat.MulVec(inv, zeta)
		rowSum := make([]float64, s.p)
		for q := 0; q < s.p; q++ {
			var v float64
			for r := 0; r < s.p; r++ {
				v += inv.At(q, r)
			}
			rowSum[q] = v
		}
		total := floats.Sum(rowSum)
		if total == 0 {
			return fmt.Errorf("abundance update: pixel %d: degenerate bordered system", k)
		}
		muK := (floats.Sum(bz) - 1) / total
		for q := 0; q < s.p; q++ {
			s.A.Set(q, k, bz[q]-muK*rowSum[q])
		}
		mu[k] = muK
		return nil
	})
}

// solveV1 minimizes over v1 in the frequency domain:
//
//	(I + Hh'Hh + Hv'Hv) v1 = (A - d1) + Hh'(v2 + d2) + Hv'(v3 + d3)
//
// which diagonalizes per band under the circular convolution.
func (s *solver) solveV1(d1, v2, d2, v3, d3 *mat.Mat) *mat.Mat {
	r1 := ToImage(subMat(s.A, d1), s.m, s.n)
	r2 := ToImage(addMat(v2, d2), s.m, s.n)
	r3 := ToImage(addMat(v3, d3), s.m, s.n)
	out := rimg64.NewMulti(s.m, s.n, s.p)
	for q := 0; q < s.p; q++ {
		x := dftPlane(r1, q)
		addConjMul(x, s.fdh, dftPlane(r2, q))
		addConjMul(x, s.fdv, dftPlane(r3, q))
		for u := 0; u < s.m; u++ {
			for v := 0; v < s.n; v++ {
				x.Set(u, v, x.At(u, v)/complex(1+s.gradSq[u][v], 0))
			}
		}
		idftToPlane(out, q, x)
	}
	return ToMatrix(out)
}

// proxSpatial applies the proximal operator of the spatial penalty
// with threshold lambda_a/rho, per endmember when the weight is a
// vector.
func (s *solver) proxSpatial(arg *mat.Mat, rho float64) *mat.Mat {
	if s.lambdaA.IsScalar() {
		t := s.lambdaA.At(0) / rho
		if s.opt.Norm == NormGroup {
			return GroupSoftCols(arg, t)
		}
		return Soft(arg, t)
	}
	t := make([]float64, s.p)
	for q := range t {
		t[q] = s.lambdaA.At(q) / rho
	}
	if s.opt.Norm == NormGroup {
		return GroupSoftRows(arg, t)
	}
	return SoftRows(arg, t)
}

func clampNonneg(a *mat.Mat) {
	m, n := a.Dims()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if a.At(i, j) < 0 {
				a.Set(i, j, 0)
			}
		}
	}
}

func rescaleDuals(f float64, duals ...*mat.Mat) {
	for _, d := range duals {
		scaleMat(d, f)
	}
}
