package stableswap

import "math/big"

// solveD computes the StableSwap invariant D for virtual balances xp and
// amplification Ann-convention coefficient A, iterating
//
//	D_P = D
//	for k in 0..n:  D_P = D_P * D / (n * xp[k])
//	D_next = (Ann*S + n*D_P) * D / ((Ann-1)*D + (n+1)*D_P)
//
// until |D_next - D| <= 1. Ported from original_source's Pool.D.
func solveD(xp []*big.Int, A *big.Int) (*big.Int, error) {
	n := len(xp)
	nBig := big.NewInt(int64(n))

	S := sumInts(xp)
	if S.Sign() == 0 {
		return big.NewInt(0), nil
	}

	D := new(big.Int).Set(S)
	Ann := new(big.Int).Mul(A, nBig)
	AnnMinus1 := new(big.Int).Sub(Ann, bigInt(1))
	nPlus1 := big.NewInt(int64(n + 1))

	for iter := 0; iter < maxIterations; iter++ {
		Dprev := new(big.Int).Set(D)

		DP := new(big.Int).Set(D)
		for _, xk := range xp {
			denom := new(big.Int).Mul(nBig, xk)
			DP.Mul(DP, D)
			DP.Quo(DP, denom)
		}

		num := new(big.Int).Mul(Ann, S)
		num.Add(num, new(big.Int).Mul(nBig, DP))
		num.Mul(num, D)

		denom := new(big.Int).Mul(AnnMinus1, D)
		denom.Add(denom, new(big.Int).Mul(nPlus1, DP))

		D.Quo(num, denom)

		diff := new(big.Int).Sub(D, Dprev)
		if absBig(diff).Cmp(bigInt(1)) <= 0 {
			return D, nil
		}
	}
	return nil, ErrInvariantNotConverged
}

// solveY computes y = x[j] after setting x[i] = x, holding the invariant D
// of the original balances xp fixed, by solving the quadratic
//
//	y**2 + b*y = c,  y = (y**2 + c) / (2*y + b)
//
// where b is allowed to go negative (see spec design notes on signed
// intermediates). Ported from original_source's Pool.y.
func solveY(i, j int, x *big.Int, xp []*big.Int, A *big.Int) (*big.Int, error) {
	n := len(xp)
	nBig := big.NewInt(int64(n))

	D, err := solveD(xp, A)
	if err != nil {
		return nil, err
	}

	xpPrime := cloneInts(xp)
	xpPrime[i] = x

	xx := withoutIndex(xpPrime, j)
	Ann := new(big.Int).Mul(A, nBig)

	c := new(big.Int).Set(D)
	for _, v := range xx {
		c.Mul(c, D)
		c.Quo(c, new(big.Int).Mul(v, nBig))
	}
	c.Mul(c, D)
	c.Quo(c, new(big.Int).Mul(nBig, Ann))

	b := sumInts(xx)
	b.Add(b, new(big.Int).Quo(D, Ann))
	b.Sub(b, D)

	return iterateY(D, c, b, nil)
}

// solveYForD computes y = x[i] given a target invariant D' (used when
// withdrawing to a specific D, e.g. remove_liquidity_one_coin). Ported
// from original_source's Pool.y_D.
func solveYForD(i int, xp []*big.Int, A, Dprime *big.Int) (*big.Int, error) {
	n := len(xp)
	nBig := big.NewInt(int64(n))

	xx := withoutIndex(xp, i)
	Ann := new(big.Int).Mul(A, nBig)

	c := new(big.Int).Set(Dprime)
	for _, v := range xx {
		c.Mul(c, Dprime)
		c.Quo(c, new(big.Int).Mul(v, nBig))
	}
	c.Mul(c, Dprime)
	c.Quo(c, new(big.Int).Mul(nBig, Ann))

	b := sumInts(xx)
	b.Add(b, new(big.Int).Quo(Dprime, Ann))

	return iterateY(Dprime, c, b, Dprime)
}

// iterateY runs the shared y = (y**2 + c) / (2*y + b [- shift]) fixed
// point iteration, starting from y = D and capped at maxIterations. shift
// is nil for solveY and D' for solveYForD.
func iterateY(D, c, b, shift *big.Int) (*big.Int, error) {
	y := new(big.Int).Set(D)
	yPrev := new(big.Int)

	for iter := 0; iter < maxIterations; iter++ {
		yPrev.Set(y)

		num := new(big.Int).Mul(y, y)
		num.Add(num, c)

		denom := new(big.Int).Lsh(y, 1)
		denom.Add(denom, b)
		if shift != nil {
			denom.Sub(denom, shift)
		}

		y.Quo(num, denom)

		diff := new(big.Int).Sub(y, yPrev)
		if absBig(diff).Cmp(bigInt(1)) <= 0 {
			return y, nil
		}
	}
	return nil, ErrInvariantNotConverged
}
