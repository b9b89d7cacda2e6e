package stableswap

import "math/big"

// Precision constants used throughout the invariant and fee math. Balances
// are scaled to a common 1e18 virtual axis (xp); fees carry 1e10 precision.
var (
	precision     = big.NewInt(1e18)
	feeDenom      = big.NewInt(1e10)
	maxIterations = 255
)

func bigInt(v int64) *big.Int { return big.NewInt(v) }

// cloneInts returns a deep copy of a big.Int slice.
func cloneInts(xs []*big.Int) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = new(big.Int).Set(x)
	}
	return out
}

// sumInts returns the sum of a slice of big.Ints.
func sumInts(xs []*big.Int) *big.Int {
	s := new(big.Int)
	for _, x := range xs {
		s.Add(s, x)
	}
	return s
}

// prodInts returns the product of a slice of big.Ints.
func prodInts(xs []*big.Int) *big.Int {
	p := big.NewInt(1)
	for _, x := range xs {
		p.Mul(p, x)
	}
	return p
}

// absBig returns |x| as a new big.Int.
func absBig(x *big.Int) *big.Int {
	return new(big.Int).Abs(x)
}

// withoutIndex returns xs with the element at index k removed, preserving
// order of the rest.
func withoutIndex(xs []*big.Int, k int) []*big.Int {
	out := make([]*big.Int, 0, len(xs)-1)
	for idx, x := range xs {
		if idx == k {
			continue
		}
		out = append(out, x)
	}
	return out
}

// computeXp scales native balances x by precision multipliers p onto the
// common 1e18 virtual-balance axis: xp[k] = x[k]*p[k]/1e18.
func computeXp(x, p []*big.Int) []*big.Int {
	xp := make([]*big.Int, len(x))
	for k := range x {
		v := new(big.Int).Mul(x[k], p[k])
		v.Quo(v, precision)
		xp[k] = v
	}
	return xp
}

// mulDivTrunc computes a*b/c using truncating (toward-zero) integer
// division, matching the fixed-point convention used throughout the
// invariant math.
func mulDivTrunc(a, b, c *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	r.Quo(r, c)
	return r
}

// defaultPrecisions returns n precision multipliers of 10**18.
func defaultPrecisions(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int).Set(precision)
	}
	return out
}
