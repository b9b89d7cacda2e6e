package stableswap

import (
	"fmt"
	"math"
)

// brentMachEps is the convergence tolerance floor used by brentq, matching
// the machine-epsilon term in the classical zeroin/Brent algorithm.
const brentMachEps = 2.220446049250313e-16

// brentq finds a root of f within [a, b], where f(a) and f(b) must have
// opposite signs. It is a direct translation of the classical Brent
// (1973) root-finding algorithm - the same algorithm backing
// scipy.optimize.brentq, which original_source's Pool.optarb calls via
// root_scalar(..., method="brentq").
func brentq(f func(float64) (float64, error), a, b, xtol float64, maxIter int) (float64, error) {
	fa, err := f(a)
	if err != nil {
		return 0, err
	}
	fb, err := f(b)
	if err != nil {
		return 0, err
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, fmt.Errorf("%w: root not bracketed in [%v,%v]", ErrOptimizationFailed, a, b)
	}

	c, fc := a, fa
	d := b - a
	e := d

	for iter := 0; iter < maxIter; iter++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*brentMachEps*math.Abs(b) + 0.5*xtol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			min1 := 3*xm*q - math.Abs(tol1*q)
			min2 := math.Abs(e * q)
			if 2*p < math.Min(min1, min2) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else if xm >= 0 {
			b += math.Abs(tol1)
		} else {
			b -= math.Abs(tol1)
		}

		fb, err = f(b)
		if err != nil {
			return 0, err
		}
	}
	return b, nil
}
