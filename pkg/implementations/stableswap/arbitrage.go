package stableswap

import (
	"fmt"
	"math"
	"math/big"

	"github.com/curvesim-go/stableswap/pkg/primitives"
)

// ArbTrade is a single proposed swap, in the (i, j, dx) format original_source
// uses throughout its arbitrage routines.
type ArbTrade struct {
	I, J int
	Dx   *big.Int
}

// ExecutedTrade is a trade after execution, pairing the requested input with
// the net output actually received.
type ExecutedTrade struct {
	I, J int
	Dx   *big.Int
	Dy   *big.Int
}

func floatToBigInt(f float64) *big.Int {
	bf := new(big.Float).SetFloat64(f)
	bi, _ := bf.Int(nil)
	return bi
}

func bigToFloat(b *big.Int) float64 {
	f, _ := new(big.Float).SetInt(b).Float64()
	return f
}

// arberror executes a trial trade of size dx from coin i to coin j,
// measures the post-trade marginal rate against the external price p, then
// restores the pool to its pre-trade state. Ported from original_source's
// module-level arberror.
func arberror(pool Pool, i, j int, dx float64, p float64) (float64, error) {
	snap := pool.Snapshot()
	defer pool.Restore(snap)

	dxInt := floatToBigInt(dx)
	if dxInt.Sign() <= 0 {
		dxInt = bigInt(1)
	}
	if _, _, err := pool.Exchange(i, j, dxInt); err != nil {
		return 0, err
	}
	rate, err := pool.Dydx(i, j, nil, true)
	if err != nil {
		return 0, err
	}
	return fromPrice(rate) - p, nil
}

// arberrors executes a batch of trial trades (one per coin pair), measures
// the post-trade marginal rate error for each pair against its price
// target, then restores the pool. Ported from original_source's
// module-level arberrors.
func arberrors(pool Pool, dxs []float64, coins [][2]int, priceTargs []float64) ([]float64, error) {
	snap := pool.Snapshot()
	defer pool.Restore(snap)

	for k, pair := range coins {
		if math.IsNaN(dxs[k]) {
			continue
		}
		dxInt := floatToBigInt(dxs[k])
		if dxInt.Sign() > 0 {
			if _, _, err := pool.Exchange(pair[0], pair[1], dxInt); err != nil {
				return nil, err
			}
		}
	}

	errs := make([]float64, len(coins))
	for k, pair := range coins {
		rate, err := pool.Dydx(pair[0], pair[1], nil, true)
		if err != nil {
			return nil, err
		}
		errs[k] = fromPrice(rate) - priceTargs[k]
	}
	return errs, nil
}

// hiBound computes the maximum sensible dx for an (i, j) arb trade: the
// input needed to drain coin j's virtual balance down to 1% of its
// current value. Ported from original_source's Pool.optarb bound
// calculation, including its plain/meta branches.
func hiBound(pool Pool, i, j int) (*big.Int, error) {
	switch pp := pool.(type) {
	case *PlainPool:
		xp := pp.Xp()
		target := new(big.Int).Quo(xp[j], bigInt(100))
		y, err := solveY(j, i, target, xp, pp.A)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Sub(y, xp[i]), nil

	case *MetaPool:
		baseI, metaI := pp.metaIndices(i)
		baseJ, metaJ := pp.metaIndices(j)

		if baseI < 0 || baseJ < 0 {
			rates, err := pp.rates()
			if err != nil {
				return nil, err
			}
			xp := computeXp(pp.Head.X, rates)
			target := new(big.Int).Quo(xp[metaJ], bigInt(100))
			y, err := solveY(metaJ, metaI, target, xp, pp.Head.A)
			if err != nil {
				return nil, err
			}
			return new(big.Int).Sub(y, pp.Xp()[metaI]), nil
		}

		baseXp := pp.Base.Xp()
		target := new(big.Int).Quo(baseXp[baseJ], bigInt(100))
		y, err := solveY(baseJ, baseI, target, baseXp, pp.Base.A)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Sub(y, baseXp[baseI]), nil

	default:
		return nil, fmt.Errorf("%w: unsupported pool type", ErrInvalidArguments)
	}
}

// OptArb estimates the trade that optimally arbitrages coin i against
// coin j toward external price p (quoted as dy/dx, coin j per coin i),
// via a bracketed Brent's-method search. Ported from original_source's
// Pool.optarb.
func OptArb(pool Pool, i, j int, price primitives.Price) (ArbTrade, primitives.Decimal, error) {
	priceF := fromPrice(price)

	hi, err := hiBound(pool, i, j)
	if err != nil {
		return ArbTrade{}, primitives.Decimal{}, err
	}
	hiF := bigToFloat(hi)
	lo := 1e12

	root, err := brentq(func(dx float64) (float64, error) {
		return arberror(pool, i, j, dx, priceF)
	}, lo, hiF, 1e-6, 200)
	if err != nil {
		return ArbTrade{}, primitives.Decimal{}, err
	}

	dxInt := floatToBigInt(root)
	errVal, err := arberror(pool, i, j, root, priceF)
	if err != nil {
		return ArbTrade{}, primitives.Decimal{}, err
	}
	return ArbTrade{I: i, J: j, Dx: dxInt}, toDecimal(errVal), nil
}

// OptArbs estimates trades that optimally arbitrage every coin pair in the
// pool at once, given per-pair external prices and volume limits (in
// whole-token units). Ported from original_source's Pool.optarbs.
func OptArbs(pool Pool, prices []primitives.Price, limits []primitives.Amount) ([]ArbTrade, []primitives.Decimal, error) {
	n := pool.NCoins()
	var combos [][2]int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			combos = append(combos, [2]int{i, j})
		}
	}
	if len(prices) != len(combos) || len(limits) != len(combos) {
		return nil, nil, fmt.Errorf("%w: prices/limits must have one entry per coin pair", ErrInvalidArguments)
	}

	priceFloats := make([]float64, len(prices))
	for k, pr := range prices {
		priceFloats[k] = fromPrice(pr)
	}
	limitFloats := make([]float64, len(limits))
	for k, lim := range limits {
		limitFloats[k] = fromAmount(lim)
	}

	var x0, lo, hi, priceTargs []float64
	var coins [][2]int

	for k, pair := range combos {
		i, j := pair[0], pair[1]
		limitRaw := limitFloats[k] * 1e18

		fwd, err := arberror(pool, i, j, 1e12, priceFloats[k])
		if err != nil {
			return nil, nil, err
		}

		switch {
		case fwd > 0:
			guess := 0.0
			if trade, _, err := OptArb(pool, i, j, toPrice(priceFloats[k])); err == nil {
				guess = math.Min(bigToFloat(trade.Dx), limitRaw)
			}
			x0 = append(x0, guess)
			lo = append(lo, 0)
			hi = append(hi, limitRaw+1)
			coins = append(coins, [2]int{i, j})
			priceTargs = append(priceTargs, priceFloats[k])

		default:
			rev, err := arberror(pool, j, i, 1e12, 1/priceFloats[k])
			if err != nil {
				return nil, nil, err
			}
			if rev > 0 {
				guess := 0.0
				if trade, _, err := OptArb(pool, j, i, toPrice(1/priceFloats[k])); err == nil {
					guess = math.Min(bigToFloat(trade.Dx), limitRaw)
				}
				x0 = append(x0, guess)
				lo = append(lo, 0)
				hi = append(hi, limitRaw+1)
				coins = append(coins, [2]int{j, i})
				priceTargs = append(priceTargs, 1/priceFloats[k])
			} else {
				x0 = append(x0, 0)
				lo = append(lo, 0)
				hi = append(hi, limitRaw+1)
				coins = append(coins, [2]int{i, j})
				priceTargs = append(priceTargs, priceFloats[k])
			}
		}
	}

	order := make([]int, len(x0))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for k := i; k > 0 && x0[order[k]] > x0[order[k-1]]; k-- {
			order[k], order[k-1] = order[k-1], order[k]
		}
	}
	reorder := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for i, idx := range order {
			out[i] = v[idx]
		}
		return out
	}
	x0, lo, hi, priceTargs = reorder(x0), reorder(lo), reorder(hi), reorder(priceTargs)
	orderedCoins := make([][2]int, len(coins))
	for i, idx := range order {
		orderedCoins[i] = coins[idx]
	}
	coins = orderedCoins

	objective := func(dxs []float64) ([]float64, error) {
		return arberrors(pool, dxs, coins, priceTargs)
	}

	dxs, errs, err := boundedLeastSquares(objective, x0, lo, hi, 200)
	if err != nil {
		return nil, nil, err
	}

	var trades []ArbTrade
	for k, dx := range dxs {
		if math.IsNaN(dx) {
			continue
		}
		dxInt := floatToBigInt(dx)
		if dxInt.Sign() > 0 {
			trades = append(trades, ArbTrade{I: coins[k][0], J: coins[k][1], Dx: dxInt})
		}
	}

	decErrs := make([]primitives.Decimal, len(errs))
	for k, e := range errs {
		decErrs[k] = toDecimal(e)
	}
	return trades, decErrs, nil
}

// priceDepthPlain implements original_source's Pool.pricedepth against a
// single n-coin representation: for every ordered pair, it finds the trade
// that moves the marginal price by size (e.g. 0.001 for 0.1%) and reports that
// trade's size as a fraction of total pool virtual balances.
func priceDepthPlain(p *PlainPool, size float64) ([]float64, error) {
	sumxp := bigToFloat(sumInts(p.Xp()))

	var depth []float64
	for i := 0; i < p.N; i++ {
		for j := 0; j < p.N; j++ {
			if i == j {
				continue
			}
			rate, err := p.Dydx(i, j, nil, true)
			if err != nil {
				return nil, err
			}
			trade, _, err := OptArb(p, i, j, toPrice(fromPrice(rate)*(1-size)))
			if err != nil {
				return nil, err
			}
			depth = append(depth, bigToFloat(trade.Dx)/sumxp)
		}
	}
	return depth, nil
}

// PriceDepth estimates the proportion of pool holdings needed to move each
// coin pair's marginal price by size (e.g. 0.001 for 0.1%; there is no
// default). For a meta pool this
// operates at the meta level only, with the base-LP-token slot's
// precision temporarily set to the base pool's live virtual price -
// mirroring original_source's Pool.pricedepth "pretend a normal pool"
// trick, without mutating the live meta pool.
func PriceDepth(pool Pool, size primitives.Decimal) ([]primitives.Decimal, error) {
	sizeF := fromDecimal(size)

	var depths []float64
	switch pp := pool.(type) {
	case *PlainPool:
		d, err := priceDepthPlain(pp, sizeF)
		if err != nil {
			return nil, err
		}
		depths = d
	case *MetaPool:
		rates, err := pp.rates()
		if err != nil {
			return nil, err
		}
		temp := &PlainPool{
			A:      pp.Head.A,
			N:      pp.Head.N,
			P:      rates,
			X:      cloneInts(pp.Head.X),
			Fee:    pp.Head.Fee,
			FeeMul: pp.Head.FeeMul,
			Tokens: pp.Head.Tokens,
		}
		d, err := priceDepthPlain(temp, sizeF)
		if err != nil {
			return nil, err
		}
		depths = d
	default:
		return nil, fmt.Errorf("%w: unsupported pool type", ErrInvalidArguments)
	}

	out := make([]primitives.Decimal, len(depths))
	for k, v := range depths {
		out[k] = toDecimal(v)
	}
	return out, nil
}

// DoTrades executes a batch of trades (as produced by OptArbs), returning
// each trade's net output and the total volume transacted, valued in the
// precision-adjusted units of each trade's input coin. For a meta pool,
// trades between two base-pool coins are executed but not counted in the
// volume. Ported from original_source's Pool.dotrades.
func DoTrades(pool Pool, trades []ArbTrade) ([]ExecutedTrade, primitives.Amount, error) {
	results := make([]ExecutedTrade, 0, len(trades))
	volume := big.NewInt(0)

	switch pp := pool.(type) {
	case *PlainPool:
		for _, t := range trades {
			dy, _, err := pp.Exchange(t.I, t.J, t.Dx)
			if err != nil {
				return nil, primitives.ZeroAmount(), err
			}
			results = append(results, ExecutedTrade{I: t.I, J: t.J, Dx: t.Dx, Dy: dy})
			volume.Add(volume, mulDivTrunc(t.Dx, pp.P[t.I], precision))
		}

	case *MetaPool:
		for _, t := range trades {
			dy, _, err := pp.Exchange(t.I, t.J, t.Dx)
			if err != nil {
				return nil, primitives.ZeroAmount(), err
			}
			results = append(results, ExecutedTrade{I: t.I, J: t.J, Dx: t.Dx, Dy: dy})

			if t.I < pp.MaxCoin || t.J < pp.MaxCoin {
				var priceI *big.Int
				if t.I < pp.MaxCoin {
					priceI = pp.Head.P[t.I]
				} else {
					priceI = pp.Base.P[t.I-pp.MaxCoin]
				}
				volume.Add(volume, mulDivTrunc(t.Dx, priceI, precision))
			}
		}

	default:
		return nil, primitives.ZeroAmount(), fmt.Errorf("%w: unsupported pool type", ErrInvalidArguments)
	}

	return results, primitives.MustAmount(primitives.MustDecimalFromString(volume.String())), nil
}
