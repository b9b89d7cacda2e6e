package stableswap

import (
	"fmt"
	"math/big"

	"github.com/curvesim-go/stableswap/pkg/mechanisms"
)

// PlainPool is a single-level StableSwap pool over n coins. It implements
// Pool directly, and MetaPool holds two of them as its Head and Base pools.
type PlainPool struct {
	A      *big.Int
	N      int
	P      []*big.Int
	X      []*big.Int
	Fee    *big.Int
	FeeMul *big.Int // nil means no dynamic fee
	Tokens *big.Int
	R      bool

	venue string
}

// NewPlainPool constructs a plain pool from cfg, splitting a scalar D
// evenly across coins via the precision vector or taking an explicit
// balance list, per spec.md's pool lifecycle rules.
func NewPlainPool(cfg PlainConfig) (*PlainPool, error) {
	if cfg.N <= 0 {
		return nil, fmt.Errorf("%w: n must be positive", ErrInvalidArguments)
	}
	if cfg.A == nil || cfg.A.Sign() <= 0 {
		return nil, fmt.Errorf("%w: A must be positive", ErrInvalidArguments)
	}

	p := cfg.P
	if p == nil {
		p = defaultPrecisions(cfg.N)
	}
	if len(p) != cfg.N {
		return nil, fmt.Errorf("%w: len(p) must equal n", ErrInvalidArguments)
	}

	var x []*big.Int
	if cfg.D.isList() {
		if len(cfg.D.list) != cfg.N {
			return nil, fmt.Errorf("%w: len(balances) must equal n", ErrInvalidArguments)
		}
		x = cloneInts(cfg.D.list)
	} else {
		if cfg.D.scalar == nil {
			return nil, fmt.Errorf("%w: D must be set", ErrInvalidArguments)
		}
		x = make([]*big.Int, cfg.N)
		share := new(big.Int).Quo(cfg.D.scalar, big.NewInt(int64(cfg.N)))
		for k := range x {
			v := new(big.Int).Mul(share, precision)
			v.Quo(v, p[k])
			x[k] = v
		}
	}

	fee := cfg.Fee
	if fee == nil {
		fee = defaultFee()
	}

	pool := &PlainPool{
		A:      new(big.Int).Set(cfg.A),
		N:      cfg.N,
		P:      cloneInts(p),
		X:      x,
		Fee:    new(big.Int).Set(fee),
		FeeMul: cfg.FeeMul,
		R:      cfg.R,
		venue:  "curve",
	}

	if cfg.Tokens != nil {
		pool.Tokens = new(big.Int).Set(cfg.Tokens)
	} else {
		D, err := pool.D()
		if err != nil {
			return nil, err
		}
		pool.Tokens = D
	}

	return pool, nil
}

func (p *PlainPool) Mechanism() mechanisms.MechanismType { return mechanisms.MechanismTypeStableSwap }
func (p *PlainPool) Venue() string                       { return p.venue }
func (p *PlainPool) NCoins() int                         { return p.N }

// Xp returns the current virtual balances: x[k]*p[k]/1e18.
func (p *PlainPool) Xp() []*big.Int { return computeXp(p.X, p.P) }

// D returns the current invariant value.
func (p *PlainPool) D() (*big.Int, error) { return solveD(p.Xp(), p.A) }

// GetVirtualPrice returns D()*1e18/tokens.
func (p *PlainPool) GetVirtualPrice() (*big.Int, error) {
	D, err := p.D()
	if err != nil {
		return nil, err
	}
	vp := new(big.Int).Mul(D, precision)
	vp.Quo(vp, p.Tokens)
	return vp, nil
}

func (p *PlainPool) validateIndices(idxs ...int) error {
	for _, i := range idxs {
		if i < 0 || i >= p.N {
			return fmt.Errorf("%w: coin index %d out of range [0,%d)", ErrInvalidArguments, i, p.N)
		}
	}
	return nil
}

// dynamicFee implements spec.md §4.5: feemul*fee / ((feemul-1e10)*4*xpi*xpj/xps2 + 1e10),
// squaring (xpi+xpj) before multiplying to avoid the overflow the spec
// warns about (moot with big.Int, kept for formula fidelity).
func (p *PlainPool) dynamicFee(xpi, xpj *big.Int) *big.Int {
	xps2 := new(big.Int).Add(xpi, xpj)
	xps2.Mul(xps2, xps2)

	num := new(big.Int).Mul(p.FeeMul, p.Fee)

	feeMulMinus := new(big.Int).Sub(p.FeeMul, feeDenom)
	denom := new(big.Int).Mul(feeMulMinus, bigInt(4))
	denom.Mul(denom, xpi)
	denom.Mul(denom, xpj)
	denom.Quo(denom, xps2)
	denom.Add(denom, feeDenom)

	return new(big.Int).Quo(num, denom)
}

// feeRateAt returns the fee rate to apply to a swap landing at the given
// post-trade virtual balances, either the pool's static fee or, under a
// dynamic-fee pool, dynamicFee evaluated at the trade's midpoint.
func (p *PlainPool) feeRateAt(xpiMid, xpjMid *big.Int) *big.Int {
	if p.FeeMul == nil {
		return p.Fee
	}
	return p.dynamicFee(xpiMid, xpjMid)
}

// Dy quotes the net output of exchanging dx of coin i into coin j without
// mutating state.
func (p *PlainPool) Dy(i, j int, dx *big.Int) (*big.Int, error) {
	if err := p.validateIndices(i, j); err != nil {
		return nil, err
	}
	xp := p.Xp()
	x := new(big.Int).Add(xp[i], dx)
	y, err := solveY(i, j, x, xp, p.A)
	if err != nil {
		return nil, err
	}
	dy := new(big.Int).Sub(xp[j], y)
	fee := mulDivTrunc(dy, p.feeRateAt(
		midpoint(xp[i], x),
		midpoint(xp[j], y),
	), feeDenom)
	return dy.Sub(dy, fee), nil
}

func midpoint(a, b *big.Int) *big.Int {
	s := new(big.Int).Add(a, b)
	return s.Quo(s, bigInt(2))
}

// Exchange executes a swap of dx of coin i into coin j, per spec.md §4.2.
func (p *PlainPool) Exchange(i, j int, dx *big.Int) (dyNet, dyFee *big.Int, err error) {
	if err := p.validateIndices(i, j); err != nil {
		return nil, nil, err
	}
	if dx.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: dx must be positive", ErrInvalidArguments)
	}

	xp := p.Xp()
	x := new(big.Int).Add(xp[i], dx)
	y, err := solveY(i, j, x, xp, p.A)
	if err != nil {
		return nil, nil, err
	}

	dy := new(big.Int).Sub(xp[j], y)
	if dy.Sign() <= 0 {
		return nil, nil, ErrInsufficientOutput
	}

	fee := mulDivTrunc(dy, p.feeRateAt(midpoint(xp[i], x), midpoint(xp[j], y)), feeDenom)

	p.X[i] = mulDivTrunc(x, precision, p.P[i])
	p.X[j] = mulDivTrunc(new(big.Int).Add(y, fee), precision, p.P[j])

	dyNet = new(big.Int).Sub(dy, fee)
	return dyNet, fee, nil
}

// imbalanceFee returns fee * n / (4*(n-1)), the fee applied per-coin on
// imbalanced deposits/withdrawals.
func (p *PlainPool) imbalanceFee() *big.Int {
	num := new(big.Int).Mul(p.Fee, big.NewInt(int64(p.N)))
	denom := new(big.Int).Mul(bigInt(4), big.NewInt(int64(p.N-1)))
	return num.Quo(num, denom)
}

// mintAmount is the shared computation behind AddLiquidity and
// CalcTokenAmount (spec.md §4.2): compute D0, the hypothetical D1 with
// amounts added, per-coin imbalance fees, and D2 with those fees removed.
// Returns the mint amount and the new balances (old balances plus amounts,
// before the imbalance fees are taken out).
func (p *PlainPool) mintAmount(amounts []*big.Int) (mint *big.Int, newBalances []*big.Int, err error) {
	if len(amounts) != p.N {
		return nil, nil, fmt.Errorf("%w: len(amounts) must equal n", ErrInvalidArguments)
	}

	oldBalances := p.X
	D0, err := solveD(computeXp(oldBalances, p.P), p.A)
	if err != nil {
		return nil, nil, err
	}

	newBalances = cloneInts(oldBalances)
	for k := range newBalances {
		newBalances[k].Add(newBalances[k], amounts[k])
	}
	D1, err := solveD(computeXp(newBalances, p.P), p.A)
	if err != nil {
		return nil, nil, err
	}

	_fee := p.imbalanceFee()
	mintBalances := cloneInts(newBalances)
	for k := range mintBalances {
		ideal := mulDivTrunc(D1, oldBalances[k], D0)
		diff := absBig(new(big.Int).Sub(ideal, newBalances[k]))
		feeK := mulDivTrunc(_fee, diff, feeDenom)
		mintBalances[k].Sub(mintBalances[k], feeK)
	}

	D2, err := solveD(computeXp(mintBalances, p.P), p.A)
	if err != nil {
		return nil, nil, err
	}

	mint = mulDivTrunc(p.Tokens, new(big.Int).Sub(D2, D0), D0)
	return mint, newBalances, nil
}

// AddLiquidity deposits amounts and returns the minted LP amount,
// mutating x and tokens.
func (p *PlainPool) AddLiquidity(amounts []*big.Int) (*big.Int, error) {
	mint, newBalances, err := p.mintAmount(amounts)
	if err != nil {
		return nil, err
	}
	p.X = newBalances
	p.Tokens = new(big.Int).Add(p.Tokens, mint)
	return mint, nil
}

// CalcTokenAmount is the pure counterpart of AddLiquidity.
func (p *PlainPool) CalcTokenAmount(amounts []*big.Int) (*big.Int, error) {
	mint, _, err := p.mintAmount(amounts)
	return mint, err
}

// RemoveLiquidityImbalance withdraws amounts and returns the LP burn
// amount, mutating x only (callers decrement tokens).
func (p *PlainPool) RemoveLiquidityImbalance(amounts []*big.Int) (*big.Int, error) {
	if len(amounts) != p.N {
		return nil, fmt.Errorf("%w: len(amounts) must equal n", ErrInvalidArguments)
	}

	oldBalances := p.X
	D0, err := solveD(computeXp(oldBalances, p.P), p.A)
	if err != nil {
		return nil, err
	}

	newBalances := cloneInts(oldBalances)
	for k := range newBalances {
		newBalances[k].Sub(newBalances[k], amounts[k])
	}
	D1, err := solveD(computeXp(newBalances, p.P), p.A)
	if err != nil {
		return nil, err
	}

	_fee := p.imbalanceFee()
	for k := range newBalances {
		ideal := mulDivTrunc(D1, oldBalances[k], D0)
		diff := absBig(new(big.Int).Sub(ideal, newBalances[k]))
		feeK := mulDivTrunc(_fee, diff, feeDenom)
		newBalances[k].Sub(newBalances[k], feeK)
	}

	D2, err := solveD(computeXp(newBalances, p.P), p.A)
	if err != nil {
		return nil, err
	}

	burn := mulDivTrunc(new(big.Int).Sub(D0, D2), p.Tokens, D0)
	p.X = newBalances
	return burn, nil
}

// singleCoinFee returns fee - fee*xp[i]/sum(xp) + 5e5, the withdrawal fee
// applied on a one-coin exit (spec.md §4.2), or zero if fees are off or
// disabled via the `fee` flag.
func (p *PlainPool) singleCoinFee(xp []*big.Int, i int, applyFee bool) *big.Int {
	if p.Fee.Sign() == 0 || !applyFee {
		return big.NewInt(0)
	}
	fee := new(big.Int).Set(p.Fee)
	adj := mulDivTrunc(p.Fee, xp[i], sumInts(xp))
	fee.Sub(fee, adj)
	fee.Add(fee, big.NewInt(5e5))
	return fee
}

// CalcWithdrawOneCoin is the pure counterpart of RemoveLiquidityOneCoin.
func (p *PlainPool) CalcWithdrawOneCoin(tokenAmount *big.Int, i int, fee bool) (*big.Int, error) {
	if err := p.validateIndices(i); err != nil {
		return nil, err
	}
	xp := p.Xp()
	D0, err := solveD(xp, p.A)
	if err != nil {
		return nil, err
	}
	D1 := new(big.Int).Sub(D0, mulDivTrunc(tokenAmount, D0, p.Tokens))

	y, err := solveYForD(i, xp, p.A, D1)
	if err != nil {
		return nil, err
	}
	dyIdeal := new(big.Int).Sub(xp[i], y)

	feeRate := p.singleCoinFee(xp, i, fee)
	dyFee := mulDivTrunc(dyIdeal, feeRate, feeDenom)
	return dyIdeal.Sub(dyIdeal, dyFee), nil
}

// RemoveLiquidityOneCoin burns tokenAmount of LP supply, withdrawing the
// equivalent value entirely in coin i.
func (p *PlainPool) RemoveLiquidityOneCoin(tokenAmount *big.Int, i int) (*big.Int, error) {
	dy, err := p.CalcWithdrawOneCoin(tokenAmount, i, true)
	if err != nil {
		return nil, err
	}
	p.X[i] = new(big.Int).Sub(p.X[i], dy)
	p.Tokens = new(big.Int).Sub(p.Tokens, tokenAmount)
	return dy, nil
}

// Snapshot captures x and tokens by value.
func (p *PlainPool) Snapshot() PoolSnapshot {
	return PoolSnapshot{x: cloneInts(p.X), tokens: new(big.Int).Set(p.Tokens)}
}

// Restore resets x and tokens from a prior Snapshot.
func (p *PlainPool) Restore(s PoolSnapshot) {
	p.X = cloneInts(s.x)
	p.Tokens = new(big.Int).Set(s.tokens)
}
