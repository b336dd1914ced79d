package elmm

import (
	"fmt"
	"log"
	"math"

	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/go-fftw/fftw"
	"github.com/jvlmdr/lin-go/mat"
)

// Result holds the estimates and the per-iteration trace of Unmix.
type Result struct {
	// Abundance matrix, P x N.
	A *mat.Mat
	// Scaling-factor matrix, P x N.
	Psi *mat.Mat
	// Per-pixel endmember matrices, N entries of L x P.
	S []*mat.Mat
	// Relative changes and objective terms per outer iteration.
	Trace []TraceEntry
	// Whether the outer loop met all three tolerances.
	Converged bool
	// Number of outer iterations performed.
	Iters int
}

// Unmix estimates abundances, scaling factors and per-pixel endmembers
// for an image cube under the Extended Linear Mixing Model.
//
// data is the m x n x L cube (Width = rows, Height = columns,
// Channels = bands). aInit and psiInit are P x N with N = m*n; s0 is
// the L x P reference endmember matrix. lambdaS weighs the ELMM
// tightness term, lambdaA and lambdaPsi the spatial penalties on the
// abundances and scaling factors.
//
// The inputs are not modified.
func Unmix(data *rimg64.Multi, aInit, psiInit, s0 *mat.Mat, lambdaS float64, lambdaA, lambdaPsi Weight, opt Options) (*Result, error) {
	if data == nil {
		return nil, fmt.Errorf("no image cube")
	}
	m, n, bands := data.Width, data.Height, data.Channels
	if m <= 0 || n <= 0 || bands <= 0 {
		return nil, fmt.Errorf("bad cube dimensions: %dx%dx%d", m, n, bands)
	}
	numPix := m * n
	s0Rows, p := s0.Dims()
	if s0Rows != bands {
		return nil, fmt.Errorf("reference endmembers have %d bands, cube has %d", s0Rows, bands)
	}
	if ar, ac := aInit.Dims(); ar != p || ac != numPix {
		return nil, fmt.Errorf("initial abundances are %dx%d, want %dx%d", ar, ac, p, numPix)
	}
	if pr, pc := psiInit.Dims(); pr != p || pc != numPix {
		return nil, fmt.Errorf("initial scaling factors are %dx%d, want %dx%d", pr, pc, p, numPix)
	}
	if lambdaS < 0 {
		return nil, fmt.Errorf("negative lambda_s: %g", lambdaS)
	}
	if err := lambdaA.validate("lambda_a", p); err != nil {
		return nil, err
	}
	if err := lambdaPsi.validate("lambda_psi", p); err != nil {
		return nil, err
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}

	s := newSolver(data, aInit, psiInit, s0, lambdaS, lambdaA, lambdaPsi, opt)
	return s.run()
}

// solver holds the state shared by the update steps of one Unmix call.
type solver struct {
	m, n, bands, p, numPix int

	dataMat   *mat.Mat // bands x numPix
	s0        *mat.Mat // bands x p
	s0DotS0   []float64
	lambdaS   float64
	lambdaA   Weight
	lambdaPsi Weight
	opt       Options

	// Transforms of the finite-difference kernels and the combined
	// squared gradient magnitude per frequency bin.
	fdh, fdv *fftw.Array2
	gradSq   [][]float64

	A   *mat.Mat   // p x numPix
	Psi *mat.Mat   // p x numPix
	S   []*mat.Mat // numPix of bands x p

	warnedZeroRef bool
	warnedZeroBin bool
}

func newSolver(data *rimg64.Multi, aInit, psiInit, s0 *mat.Mat, lambdaS float64, lambdaA, lambdaPsi Weight, opt Options) *solver {
	m, n, bands := data.Width, data.Height, data.Channels
	_, p := s0.Dims()
	numPix := m * n

	s := &solver{
		m: m, n: n, bands: bands, p: p, numPix: numPix,
		s0:        cloneMat(s0),
		lambdaS:   lambdaS,
		lambdaA:   lambdaA,
		lambdaPsi: lambdaPsi,
		opt:       opt,
	}

	// Cube in band x pixel layout.
	s.dataMat = mat.New(bands, numPix)
	for l := 0; l < bands; l++ {
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				s.dataMat.Set(l, i+m*j, data.At(i, j, l))
			}
		}
	}

	s.s0DotS0 = make([]float64, p)
	for q := 0; q < p; q++ {
		var sum float64
		for l := 0; l < bands; l++ {
			sum += s0.At(l, q) * s0.At(l, q)
		}
		s.s0DotS0[q] = sum
	}

	s.fdh = dftDiffKernelH(m, n)
	s.fdv = dftDiffKernelV(m, n)
	s.gradSq = make([][]float64, m)
	for u := 0; u < m; u++ {
		s.gradSq[u] = make([]float64, n)
		for v := 0; v < n; v++ {
			h, w := s.fdh.At(u, v), s.fdv.At(u, v)
			s.gradSq[u][v] = real(h)*real(h) + imag(h)*imag(h) + real(w)*real(w) + imag(w)*imag(w)
		}
	}

	s.A = cloneMat(aInit)
	s.Psi = cloneMat(psiInit)
	// Broadcast the reference matrix to every pixel.
	s.S = make([]*mat.Mat, numPix)
	for k := range s.S {
		s.S[k] = cloneMat(s0)
	}
	return s
}

func (s *solver) run() (*Result, error) {
	trace := make([]TraceEntry, 0, s.opt.MaxIterANLS)
	converged := false
	iters := 0
	for i := 0; i < s.opt.MaxIterANLS; i++ {
		sOld := make([]*mat.Mat, s.numPix)
		for k := range sOld {
			sOld[k] = s.S[k]
		}
		aOld := cloneMat(s.A)
		psiOld := cloneMat(s.Psi)

		if err := s.updateEndmembers(); err != nil {
			return nil, err
		}
		if s.lambdaA.Any() {
			if err := s.updateAbundancesADMM(); err != nil {
				return nil, err
			}
		} else {
			if err := s.updateAbundancesFCLSU(); err != nil {
				return nil, err
			}
		}
		s.updatePsi()

		rs := s.relChangeS(sOld)
		ra := relChange(frobDiff(s.A, aOld), frob(aOld))
		rpsi := relChange(frobDiff(s.Psi, psiOld), frob(psiOld))

		ent := s.evalObjective()
		ent.RelS, ent.RelA, ent.RelPsi = rs, ra, rpsi
		trace = append(trace, ent)
		iters = i + 1

		if s.opt.Verbose {
			log.Printf("anls %d: rs=%.4g ra=%.4g rpsi=%.4g objective=%.6g",
				i, rs, ra, rpsi, ent.Objective)
		}
		if rs < s.opt.EpsS && ra < s.opt.EpsA && rpsi < s.opt.EpsPsi {
			converged = true
			break
		}
	}
	if !converged && s.opt.Verbose {
		log.Printf("anls: no convergence after %d iterations", s.opt.MaxIterANLS)
	}
	return &Result{
		A: s.A, Psi: s.Psi, S: s.S,
		Trace: trace, Converged: converged, Iters: iters,
	}, nil
}

// relChangeS is the mean over pixels of the relative Frobenius change
// of the per-pixel endmember matrix. A pixel whose previous matrix has
// zero norm contributes zero if unchanged and +Inf otherwise.
func (s *solver) relChangeS(old []*mat.Mat) float64 {
	var sum float64
	degen := 0
	for k := range s.S {
		r := relChange(frobDiff(s.S[k], old[k]), frob(old[k]))
		if math.IsInf(r, 1) {
			degen++
		}
		sum += r
	}
	if degen > 0 && s.opt.Verbose {
		log.Printf("anls: zero-norm previous endmember matrix at %d pixels", degen)
	}
	return sum / float64(s.numPix)
}
