/*
Package elmm performs blind hyperspectral unmixing under the Extended
Linear Mixing Model (ELMM).

Given an m x n x L image cube, a reference endmember matrix S0 (L x P)
and initial abundance and scaling-factor matrices (P x N, N = m*n), it
jointly estimates per-pixel abundances, per-pixel per-endmember scaling
factors and a per-pixel endmember tensor by alternating non-negative
least squares, with an ADMM sub-solver for spatially regularized
abundance estimation:

	opt := elmm.DefaultOptions()
	res, err := elmm.Unmix(cube, aInit, psiInit, s0,
		lambdaS, elmm.Scalar(lambdaA), elmm.Scalar(lambdaPsi), opt)
	if err != nil {
		log.Fatal(err)
	}
	// res.A, res.Psi, res.S, res.Trace

The cube uses rimg64.Multi with Width = rows, Height = columns and
Channels = spectral bands. Pixel k of a P x N matrix corresponds to
image position (i, j) with k = i + m*j.

The algorithm is described in
L. Drumetz, M. A. Veganzones, S. Henrot, R. Phlypo, J. Chanussot and
C. Jutten, "Blind Hyperspectral Unmixing Using an Extended Linear
Mixing Model to Address Spectral Variability", IEEE Trans. Image
Processing, vol. 25, no. 8, 2016.
*/
package elmm
