// Package stableswap implements the StableSwap invariant: plain and
// meta constant-function AMM pools, their invariant solvers, and the
// pairwise/multivariate arbitrage routines that compose them.
package stableswap

import "errors"

var (
	// ErrInvalidArguments indicates a coin index out of range, a
	// non-positive dx, or an amounts slice of the wrong length.
	ErrInvalidArguments = errors.New("stableswap: invalid arguments")

	// ErrInvariantNotConverged indicates solveD/solveY/solveYForD hit the
	// iteration cap without converging.
	ErrInvariantNotConverged = errors.New("stableswap: invariant solver did not converge")

	// ErrInsufficientOutput indicates a swap produced dy <= 0.
	ErrInsufficientOutput = errors.New("stableswap: insufficient output")

	// ErrOptimizationFailed indicates a Brent bracket was invalid (f has
	// the same sign at both ends). The least-squares solver never returns
	// it: it stops after its iteration cap and returns its last point.
	ErrOptimizationFailed = errors.New("stableswap: optimization failed")
)
