package stableswap

import "math"

// boundedLeastSquares minimizes sum(f(x)^2) subject to lo <= x <= hi,
// starting from x0, with a finite-difference-Jacobian Levenberg-Marquardt
// iteration whose steps are clamped back into the box on every trial.
// This plays the role of original_source's
// scipy.optimize.least_squares(..., bounds=(lo, hi)) call in
// Pool.optarbs: same objective (a residual vector per coin pair) and same
// box constraints, a more conventional damped Gauss-Newton loop in place
// of scipy's trust-region-reflective machinery (see DESIGN.md).
func boundedLeastSquares(
	f func([]float64) ([]float64, error),
	x0, lo, hi []float64,
	maxIter int,
) (x, residual []float64, err error) {
	n := len(x0)
	x = clampVec(append([]float64(nil), x0...), lo, hi)

	resid, err := f(x)
	if err != nil {
		return nil, nil, err
	}
	cost := sumSquares(resid)

	lambda := 1e-3
	for iter := 0; iter < maxIter; iter++ {
		J, err := jacobian(f, x, resid, lo, hi)
		if err != nil {
			return nil, nil, err
		}
		JTJ := matAtA(J, n)
		negJTr := negVec(matAtB(J, resid, n))

		improved := false
		for attempt := 0; attempt < 12; attempt++ {
			A := damp(JTJ, lambda, n)
			dx, ok := solveLinear(A, negJTr, n)
			if !ok {
				lambda *= 10
				continue
			}

			xNew := clampVec(addVec(x, dx), lo, hi)
			residNew, err := f(xNew)
			if err != nil {
				return nil, nil, err
			}
			costNew := sumSquares(residNew)

			if costNew < cost {
				stepNorm := vecNorm(subVec(xNew, x))
				costDrop := cost - costNew
				x, resid, cost = xNew, residNew, costNew
				lambda = math.Max(lambda/10, 1e-15)
				improved = true
				if costDrop < 1e-15*math.Max(1, cost) && stepNorm < 1e-15*math.Max(1, vecNorm(x)) {
					return x, resid, nil
				}
				break
			}
			lambda *= 10
			if lambda > 1e15 {
				break
			}
		}
		if !improved {
			break
		}
	}
	return x, resid, nil
}

// jacobian computes a finite-difference Jacobian of f at x, using a
// forward difference unless that step would pass the coordinate's upper
// bound, then a backward difference, and a zero column when neither step
// fits inside the box.
func jacobian(f func([]float64) ([]float64, error), x, f0, lo, hi []float64) ([][]float64, error) {
	n := len(x)
	m := len(f0)
	J := make([][]float64, m)
	for r := range J {
		J[r] = make([]float64, n)
	}

	for c := 0; c < n; c++ {
		h := 1e-6 * math.Max(1, math.Abs(x[c]))
		xh := append([]float64(nil), x...)

		if x[c]+h <= hi[c] {
			xh[c] = x[c] + h
			fh, err := f(xh)
			if err != nil {
				return nil, err
			}
			for r := 0; r < m; r++ {
				J[r][c] = (fh[r] - f0[r]) / h
			}
		} else if x[c]-h >= lo[c] {
			xh[c] = x[c] - h
			fh, err := f(xh)
			if err != nil {
				return nil, err
			}
			for r := 0; r < m; r++ {
				J[r][c] = (f0[r] - fh[r]) / h
			}
		} else {
			for r := 0; r < m; r++ {
				J[r][c] = 0
			}
		}
	}
	return J, nil
}

func clampVec(x, lo, hi []float64) []float64 {
	for i := range x {
		if x[i] < lo[i] {
			x[i] = lo[i]
		}
		if x[i] > hi[i] {
			x[i] = hi[i]
		}
	}
	return x
}

func sumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

func vecNorm(v []float64) float64 { return math.Sqrt(sumSquares(v)) }

func addVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func negVec(a []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = -a[i]
	}
	return out
}

// matAtA returns J^T*J for an m-by-n Jacobian J.
func matAtA(J [][]float64, n int) [][]float64 {
	m := len(J)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := 0.0
			for r := 0; r < m; r++ {
				s += J[r][i] * J[r][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// matAtB returns J^T*r for an m-by-n Jacobian J and length-m residual r.
func matAtB(J [][]float64, r []float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for row := range J {
			s += J[row][i] * r[row]
		}
		out[i] = s
	}
	return out
}

// damp returns A + lambda*diag(A), the Levenberg-Marquardt damped normal matrix.
func damp(A [][]float64, lambda float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), A[i]...)
		out[i][i] += lambda * A[i][i]
		if out[i][i] == 0 {
			out[i][i] = lambda
		}
	}
	return out
}

// solveLinear solves A*x = b via Gaussian elimination with partial
// pivoting, returning ok=false if A is numerically singular.
func solveLinear(A [][]float64, b []float64, n int) ([]float64, bool) {
	M := make([][]float64, n)
	for i := range M {
		M[i] = append([]float64(nil), A[i]...)
		M[i] = append(M[i], b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := math.Abs(M[col][col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(M[r][col]); v > best {
				pivot, best = r, v
			}
		}
		if best < 1e-300 {
			return nil, false
		}
		M[col], M[pivot] = M[pivot], M[col]

		for r := col + 1; r < n; r++ {
			factor := M[r][col] / M[col][col]
			for c := col; c <= n; c++ {
				M[r][c] -= factor * M[col][c]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := M[row][n]
		for c := row + 1; c < n; c++ {
			sum -= M[row][c] * x[c]
		}
		x[row] = sum / M[row][row]
	}
	return x, true
}
