package stableswap

import (
	"math/big"

	"github.com/curvesim-go/stableswap/pkg/primitives"
)

// defaultProbe is the probe trade size used by Dydx when the caller does
// not supply one, matching original_source's Pool._dydx default of 10**12.
var defaultProbe = big.NewInt(1_000_000_000_000)

// ratioFloat64 converts the exact rational num/den into the nearest
// float64, at enough precision that the rounding error is far below the
// tolerances spec.md's marginal-pricing checks require.
func ratioFloat64(num, den *big.Int) float64 {
	nf := new(big.Float).SetPrec(256).SetInt(num)
	df := new(big.Float).SetPrec(256).SetInt(den)
	qf := new(big.Float).SetPrec(256).Quo(nf, df)
	f, _ := qf.Float64()
	return f
}

// toPrice wraps a non-negative float64 rate as a primitives.Price, the
// external-facing type for anything the arbitrage and pricing API hands
// back as a quoted rate.
func toPrice(f float64) primitives.Price {
	return primitives.MustPrice(primitives.NewDecimalFromFloat(f))
}

// fromPrice unwraps a primitives.Price back to the float64 the internal
// D/y iterations and root-finders operate on.
func fromPrice(p primitives.Price) float64 {
	return p.Decimal().Float64()
}

// toDecimal wraps a float64 that may be negative (an arbitrage residual,
// for instance) as a primitives.Decimal.
func toDecimal(f float64) primitives.Decimal {
	return primitives.NewDecimalFromFloat(f)
}

// fromDecimal unwraps a primitives.Decimal back to float64.
func fromDecimal(d primitives.Decimal) float64 {
	return d.Float64()
}

// toAmount wraps a non-negative float64 token quantity as a
// primitives.Amount.
func toAmount(f float64) primitives.Amount {
	return primitives.MustAmount(primitives.NewDecimalFromFloat(f))
}

// fromAmount unwraps a primitives.Amount back to float64.
func fromAmount(a primitives.Amount) float64 {
	return a.Decimal().Float64()
}

// rawDydx computes the closed-form marginal rate dy/dx at invariant D and
// virtual balances xp, ignoring fees:
//
//	dydx = xj*(xi*A_pow*x_prod + D_pow) / (xi*(xj*A_pow*x_prod + D_pow))
//
// where A_pow = A*n**(n+1) and D_pow = D**(n+1). Ported from
// original_source's Pool._dydx.
func rawDydx(A *big.Int, D *big.Int, xp []*big.Int, i, j int) float64 {
	n := len(xp)
	nBig := big.NewInt(int64(n))
	nPlus1 := big.NewInt(int64(n + 1))

	xi, xj := xp[i], xp[j]
	xProd := prodInts(xp)
	APow := new(big.Int).Mul(A, new(big.Int).Exp(nBig, nPlus1, nil))
	DPow := new(big.Int).Exp(D, nPlus1, nil)

	num := new(big.Int).Mul(xi, APow)
	num.Mul(num, xProd)
	num.Add(num, DPow)
	num.Mul(num, xj)

	den := new(big.Int).Mul(xj, APow)
	den.Mul(den, xProd)
	den.Add(den, DPow)
	den.Mul(den, xi)

	return ratioFloat64(num, den)
}

// dydxInternal implements original_source's Pool._dydx: the raw marginal
// rate, optionally discounted by the swap fee rate (static, or probed via
// dynamicFee at a small trade size when the pool has a fee multiplier).
func (p *PlainPool) dydxInternal(i, j int, xp []*big.Int, useFee bool) (float64, error) {
	if xp == nil {
		xp = p.Xp()
	}
	D, err := solveD(xp, p.A)
	if err != nil {
		return 0, err
	}

	dydx := rawDydx(p.A, D, xp, i, j)

	if !useFee {
		return dydx, nil
	}

	var feeFactor float64
	if p.FeeMul == nil {
		feeFactor = ratioFloat64(p.Fee, feeDenom)
	} else {
		dx := defaultProbe
		half := new(big.Int).Quo(dx, bigInt(2))
		xiProbe := new(big.Int).Add(xp[i], half)

		dyDx := int64(dydx * 1e12) // matches Python's int(dydx*dx), dx=1e12
		xjProbe := new(big.Int).Sub(xp[j], big.NewInt(dyDx/2))

		feeFactor = ratioFloat64(p.dynamicFee(xiProbe, xjProbe), feeDenom)
	}

	return dydx * (1 - feeFactor), nil
}

// Dydx returns the marginal exchange rate dy/dx at the pool's current
// state. dx is accepted for interface symmetry with Dy and is ignored: the
// dynamic-fee probe always uses a 1e12 trade (defaultProbe).
func (p *PlainPool) Dydx(i, j int, dx *big.Int, useFee bool) (primitives.Price, error) {
	if err := p.validateIndices(i, j); err != nil {
		return primitives.Price{}, err
	}
	rate, err := p.dydxInternal(i, j, nil, useFee)
	if err != nil {
		return primitives.Price{}, err
	}
	return toPrice(rate), nil
}

// Dydxfee is a convenience wrapper equivalent to Dydx(i, j, dx, true).
func Dydxfee(p Pool, i, j int, dx *big.Int) (primitives.Price, error) {
	return p.Dydx(i, j, dx, true)
}

// basePoolDPrime computes D' (the derivative of the base pool's invariant
// with respect to one of its own balances, holding its own D fixed) used
// by the meta pool's cross-level pricing chain rule. Ported from
// original_source's Pool.dydx ismeta branch.
//
//	D' = -(A*n**(n+1)*X + D**(n+1)/x_leg)
//	     / (n**n*X - A*n**(n+1)*X - (n+1)*D**n)
func basePoolDPrime(base *PlainPool, legIdx int) (float64, error) {
	xp := base.Xp()
	D, err := solveD(xp, base.A)
	if err != nil {
		return 0, err
	}

	n := len(xp)
	nBig := big.NewInt(int64(n))
	nPlus1 := big.NewInt(int64(n + 1))

	X := prodInts(xp)
	APow := new(big.Int).Mul(base.A, new(big.Int).Exp(nBig, nPlus1, nil))

	DPow := new(big.Int).Exp(D, nPlus1, nil)
	numLeft := new(big.Int).Mul(APow, X)
	numRight := new(big.Int).Quo(DPow, xp[legIdx])
	num := new(big.Int).Add(numLeft, numRight)
	num.Neg(num)

	nPow := new(big.Int).Exp(nBig, nBig, nil)
	DPowN := new(big.Int).Exp(D, nBig, nil)
	den := new(big.Int).Mul(nPow, X)
	den.Sub(den, new(big.Int).Mul(APow, X))
	den.Sub(den, new(big.Int).Mul(nPlus1, DPowN))

	return ratioFloat64(num, den), nil
}

// Dydx returns the marginal exchange rate between external coins i and j
// of the meta pool, chaining through the base pool's own pricing when one
// or both legs live inside it. Ported from original_source's Pool.dydx
// ismeta branch.
func (m *MetaPool) Dydx(i, j int, dx *big.Int, useFee bool) (primitives.Price, error) {
	if err := m.validateExternal(i, j); err != nil {
		return primitives.Price{}, err
	}

	baseI, metaI := m.metaIndices(i)
	baseJ, metaJ := m.metaIndices(j)

	if baseI >= 0 && baseJ >= 0 {
		return m.Base.Dydx(baseI, baseJ, dx, useFee)
	}

	rates, err := m.rates()
	if err != nil {
		return primitives.Price{}, err
	}
	xp := computeXp(m.Head.X, rates)

	if baseI < 0 {
		dwdz, err := m.Head.dydxInternal(0, m.MaxCoin, xp, useFee)
		if err != nil {
			return primitives.Price{}, err
		}
		dPrime, err := basePoolDPrime(m.Base, baseJ)
		if err != nil {
			return primitives.Price{}, err
		}
		dydx := dwdz / dPrime

		// Extra single-coin-withdrawal-style fee discount for converting
		// basepool-LP-denominated dz into the actual underlying coin j,
		// on top of the head pool's own fee already folded into dwdz.
		baseXp := m.Base.Xp()
		feeRate := m.Base.singleCoinFee(baseXp, baseJ, useFee)
		dydx *= 1 - ratioFloat64(feeRate, feeDenom)

		_ = metaI
		return toPrice(dydx), nil
	}

	// base_i >= 0: probe a small deposit of the input base coin, route it
	// through the head pool's marginal rate, and report the resulting
	// dy/dx at the base pool's native precision.
	probe := defaultProbe
	baseInputs := make([]*big.Int, m.Base.N)
	for k := range baseInputs {
		baseInputs[k] = big.NewInt(0)
	}
	baseInputs[baseI] = probe
	dw, err := m.Base.CalcTokenAmount(baseInputs)
	if err != nil {
		return primitives.Price{}, err
	}
	dwVirtual := mulDivTrunc(dw, rates[m.MaxCoin], precision)

	x := new(big.Int).Add(xp[m.MaxCoin], dwVirtual)
	y, err := solveY(m.MaxCoin, metaJ, x, xp, m.Head.A)
	if err != nil {
		return primitives.Price{}, err
	}
	dyRaw := new(big.Int).Sub(xp[metaJ], y)
	dyRaw.Sub(dyRaw, bigInt(1))

	if useFee {
		dyFee := mulDivTrunc(dyRaw, m.Head.Fee, feeDenom)
		dyRaw.Sub(dyRaw, dyFee)
	}

	dyVirtual := mulDivTrunc(dyRaw, precision, rates[metaJ])
	return toPrice(ratioFloat64(dyVirtual, probe)), nil
}
