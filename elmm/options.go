package elmm

import "fmt"

// SpatialNorm selects the norm of the spatial penalty on the abundance
// gradients.
type SpatialNorm string

const (
	// NormTV is the l1,1 (Total Variation) penalty.
	NormTV SpatialNorm = "1,1"
	// NormGroup is the l2,1 (Tikhonov-like group) penalty.
	NormGroup SpatialNorm = "2,1"
)

// Options bundles the optional parameters of Unmix.
type Options struct {
	// Norm of the spatial regularization on the abundances.
	Norm SpatialNorm
	// Print progress of the outer and inner loops.
	Verbose bool
	// Iteration caps for the outer ANLS loop and the inner ADMM loop.
	MaxIterANLS int
	MaxIterADMM int
	// Tolerances on the relative variation of S, A and psi between two
	// consecutive outer iterations.
	EpsS   float64
	EpsA   float64
	EpsPsi float64
	// Absolute and relative tolerances of the ADMM primal and dual
	// residuals.
	EpsADMMAbs float64
	EpsADMMRel float64
}

// DefaultOptions returns the defaults of the reference algorithm.
func DefaultOptions() Options {
	return Options{
		Norm:        NormTV,
		Verbose:     true,
		MaxIterANLS: 100,
		MaxIterADMM: 100,
		EpsS:        1e-3,
		EpsA:        1e-3,
		EpsPsi:      1e-3,
		EpsADMMAbs:  1e-2,
		EpsADMMRel:  1e-2,
	}
}

func (opt Options) validate() error {
	if opt.Norm != NormTV && opt.Norm != NormGroup {
		return fmt.Errorf("unknown spatial norm: %q", opt.Norm)
	}
	if opt.MaxIterANLS <= 0 || opt.MaxIterADMM <= 0 {
		return fmt.Errorf("iteration caps must be positive: anls %d, admm %d", opt.MaxIterANLS, opt.MaxIterADMM)
	}
	return nil
}

// Weight is a regularization weight, either a scalar applied to every
// endmember or a length-P vector weighting each endmember separately.
type Weight struct {
	elems  []float64
	scalar bool
}

// Scalar returns a weight applied uniformly to all endmembers.
func Scalar(v float64) Weight {
	return Weight{elems: []float64{v}, scalar: true}
}

// Vector returns a per-endmember weight. The slice is copied.
func Vector(v []float64) Weight {
	elems := make([]float64, len(v))
	copy(elems, v)
	return Weight{elems: elems}
}

// IsScalar reports whether the weight is a single scalar.
func (w Weight) IsScalar() bool { return w.scalar }

// At returns the weight of endmember p. A scalar broadcasts.
func (w Weight) At(p int) float64 {
	if w.scalar {
		return w.elems[0]
	}
	return w.elems[p]
}

// Any reports whether any entry of the weight is nonzero.
func (w Weight) Any() bool {
	for _, v := range w.elems {
		if v != 0 {
			return true
		}
	}
	return false
}

func (w Weight) validate(name string, numEnd int) error {
	if len(w.elems) == 0 {
		return fmt.Errorf("%s: empty weight", name)
	}
	if !w.scalar && len(w.elems) != numEnd {
		return fmt.Errorf("%s: weight must be a scalar or a %d-vector: got %d entries", name, numEnd, len(w.elems))
	}
	for _, v := range w.elems {
		if v < 0 {
			return fmt.Errorf("%s: negative weight %g", name, v)
		}
	}
	return nil
}

// weighted combines per-endmember terms into a single penalty value.
// A scalar weight expects a single accumulated term.
func (w Weight) weighted(terms []float64) float64 {
	if w.scalar {
		var sum float64
		for _, t := range terms {
			sum += t
		}
		return w.elems[0] * sum
	}
	if len(terms) != len(w.elems) {
		panic(fmt.Sprintf("terms and weights differ: %d, %d", len(terms), len(w.elems)))
	}
	var sum float64
	for p, t := range terms {
		sum += w.elems[p] * t
	}
	return sum
}
