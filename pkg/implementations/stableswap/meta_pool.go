package stableswap

import (
	"fmt"
	"math/big"

	"github.com/curvesim-go/stableswap/pkg/mechanisms"
)

// MetaPool is a two-level StableSwap pool whose last coin slot (MaxCoin)
// holds the LP token of an owned Base pool. Head represents the meta-level
// pool over its own n_meta coins - including the base-LP-token slot,
// priced at whatever precision was set at construction time, per
// spec.md's data model (the meta-level generic operations never look at
// the base pool's live virtual price; only Exchange/Dy/Dydx do, via the
// `rates` vector computed on demand below).
type MetaPool struct {
	Head    *PlainPool
	Base    *PlainPool
	MaxCoin int
	NTotal  int

	venue string
}

// NewMetaPool constructs a meta pool per spec.md's metapool lifecycle:
// the base pool is built first (its virtual price is needed to split a
// scalar deposit at the meta level), then the head pool's balances are
// derived using `rates` (precision vector with the LP-token slot's entry
// replaced by the base pool's current virtual price).
func NewMetaPool(cfg MetaConfig) (*MetaPool, error) {
	if cfg.NMeta < 2 {
		return nil, fmt.Errorf("%w: n_meta must be at least 2", ErrInvalidArguments)
	}

	base, err := NewPlainPool(PlainConfig{
		A:      cfg.ABase,
		D:      cfg.DBase,
		N:      cfg.NBase,
		Fee:    cfg.FeeBase,
		FeeMul: cfg.FeeMul,
		Tokens: cfg.Tokens,
	})
	if err != nil {
		return nil, fmt.Errorf("base pool: %w", err)
	}

	maxCoin := cfg.NMeta - 1

	p := cfg.P
	if p == nil {
		p = defaultPrecisions(cfg.NMeta)
	}
	if len(p) != cfg.NMeta {
		return nil, fmt.Errorf("%w: len(p) must equal n_meta", ErrInvalidArguments)
	}
	p = cloneInts(p)

	headR := false
	if cfg.R != nil {
		p[0] = new(big.Int).Set(cfg.R)
		headR = true
	}

	var x []*big.Int
	if cfg.DMeta.isList() {
		if len(cfg.DMeta.list) != cfg.NMeta {
			return nil, fmt.Errorf("%w: len(balances) must equal n_meta", ErrInvalidArguments)
		}
		x = cloneInts(cfg.DMeta.list)
	} else {
		if cfg.DMeta.scalar == nil {
			return nil, fmt.Errorf("%w: D_meta must be set", ErrInvalidArguments)
		}
		baseVP, err := base.GetVirtualPrice()
		if err != nil {
			return nil, err
		}
		rates := cloneInts(p)
		rates[maxCoin] = baseVP

		share := new(big.Int).Quo(cfg.DMeta.scalar, big.NewInt(int64(cfg.NMeta)))
		x = make([]*big.Int, cfg.NMeta)
		for k := range x {
			v := new(big.Int).Mul(share, precision)
			v.Quo(v, rates[k])
			x[k] = v
		}
	}

	headFee := cfg.FeeMeta
	if headFee == nil {
		headFee = defaultFee()
	}

	head := &PlainPool{
		A:      new(big.Int).Set(cfg.AMeta),
		N:      cfg.NMeta,
		P:      p,
		X:      x,
		Fee:    new(big.Int).Set(headFee),
		FeeMul: cfg.FeeMul,
		R:      headR,
		venue:  "curve",
	}
	headD, err := head.D()
	if err != nil {
		return nil, err
	}
	head.Tokens = headD

	return &MetaPool{
		Head:    head,
		Base:    base,
		MaxCoin: maxCoin,
		NTotal:  cfg.NMeta + cfg.NBase - 1,
		venue:   "curve-meta",
	}, nil
}

func (m *MetaPool) Mechanism() mechanisms.MechanismType { return mechanisms.MechanismTypeStableSwap }
func (m *MetaPool) Venue() string                       { return m.venue }
func (m *MetaPool) NCoins() int                         { return m.NTotal }

// Xp delegates to the head pool's virtual balances (static precision,
// including the frozen LP-token slot - see the MetaPool doc comment).
func (m *MetaPool) Xp() []*big.Int { return m.Head.Xp() }

// D delegates to the head pool's invariant.
func (m *MetaPool) D() (*big.Int, error) { return m.Head.D() }

// GetVirtualPrice delegates to the head pool.
func (m *MetaPool) GetVirtualPrice() (*big.Int, error) { return m.Head.GetVirtualPrice() }

// AddLiquidity/CalcTokenAmount/RemoveLiquidityImbalance/
// RemoveLiquidityOneCoin/CalcWithdrawOneCoin operate on the meta-level
// representation exactly like a plain pool - per spec.md's data model,
// these never consult the base pool's live virtual price. This matches
// the original implementation, which shares one undifferentiated method
// for plain and meta pools here.
func (m *MetaPool) AddLiquidity(amounts []*big.Int) (*big.Int, error) {
	return m.Head.AddLiquidity(amounts)
}

func (m *MetaPool) CalcTokenAmount(amounts []*big.Int) (*big.Int, error) {
	return m.Head.CalcTokenAmount(amounts)
}

func (m *MetaPool) RemoveLiquidityImbalance(amounts []*big.Int) (*big.Int, error) {
	return m.Head.RemoveLiquidityImbalance(amounts)
}

func (m *MetaPool) RemoveLiquidityOneCoin(tokenAmount *big.Int, i int) (*big.Int, error) {
	return m.Head.RemoveLiquidityOneCoin(tokenAmount, i)
}

func (m *MetaPool) CalcWithdrawOneCoin(tokenAmount *big.Int, i int, fee bool) (*big.Int, error) {
	return m.Head.CalcWithdrawOneCoin(tokenAmount, i, fee)
}

// metaIndices maps an external coin index into its base-pool index
// (negative when the coin lives at the meta level) and the corresponding
// meta-level slot used for the head pool's solveY calls.
func (m *MetaPool) metaIndices(i int) (baseIdx, metaIdx int) {
	baseIdx = i - m.MaxCoin
	if baseIdx < 0 {
		return baseIdx, i
	}
	return baseIdx, m.MaxCoin
}

func (m *MetaPool) validateExternal(idxs ...int) error {
	for _, i := range idxs {
		if i < 0 || i >= m.NTotal {
			return fmt.Errorf("%w: coin index %d out of range [0,%d)", ErrInvalidArguments, i, m.NTotal)
		}
	}
	return nil
}

// rates returns the meta-level precision vector with the LP-token slot
// replaced by the base pool's live virtual price.
func (m *MetaPool) rates() ([]*big.Int, error) {
	vp, err := m.Base.GetVirtualPrice()
	if err != nil {
		return nil, err
	}
	r := cloneInts(m.Head.P)
	r[m.MaxCoin] = vp
	return r, nil
}

// Dy quotes the net output of exchanging dx of external coin i for
// external coin j, without mutating state. See spec.md §4.3.
//
// Open question preserved from spec.md §4.3: for "both in base pool", this
// quote path subtracts an extra meta fee/1e10 on top of the base pool's
// own fee that Exchange does not apply. That asymmetry is in the original
// implementation and is intentionally not "fixed" here.
func (m *MetaPool) Dy(i, j int, dx *big.Int) (*big.Int, error) {
	if err := m.validateExternal(i, j); err != nil {
		return nil, err
	}

	baseI, metaI := m.metaIndices(i)
	baseJ, metaJ := m.metaIndices(j)

	if baseI >= 0 && baseJ >= 0 {
		dy, err := m.Base.Dy(baseI, baseJ, dx)
		if err != nil {
			return nil, err
		}
		fee := mulDivTrunc(dy, m.Head.Fee, feeDenom)
		return dy.Sub(dy, fee), nil
	}

	rates, err := m.rates()
	if err != nil {
		return nil, err
	}
	xp := computeXp(m.Head.X, rates)

	var x *big.Int
	if baseI < 0 {
		x = new(big.Int).Add(xp[i], mulDivTrunc(dx, rates[i], precision))
	} else {
		baseInputs := make([]*big.Int, m.Base.N)
		for k := range baseInputs {
			baseInputs[k] = big.NewInt(0)
		}
		baseInputs[baseI] = dx
		dxLP, err := m.Base.CalcTokenAmount(baseInputs)
		if err != nil {
			return nil, err
		}
		x = new(big.Int).Add(xp[m.MaxCoin], mulDivTrunc(dxLP, rates[m.MaxCoin], precision))
	}

	y, err := solveY(metaI, metaJ, x, xp, m.Head.A)
	if err != nil {
		return nil, err
	}

	dyRaw := new(big.Int).Sub(xp[metaJ], y)
	dyRaw.Sub(dyRaw, bigInt(1))
	dyFee := mulDivTrunc(dyRaw, m.Head.Fee, feeDenom)
	dy := mulDivTrunc(new(big.Int).Sub(dyRaw, dyFee), precision, rates[metaJ])

	if baseJ >= 0 {
		return m.Base.CalcWithdrawOneCoin(dy, baseJ, true)
	}
	return dy, nil
}

// Exchange executes a swap of dx of external coin i into external coin j,
// mutating both the head and (when the trade touches it) base pool
// state. See spec.md §4.3.
func (m *MetaPool) Exchange(i, j int, dx *big.Int) (dyNet, dyFee *big.Int, err error) {
	if err := m.validateExternal(i, j); err != nil {
		return nil, nil, err
	}
	if dx.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: dx must be positive", ErrInvalidArguments)
	}

	baseI, metaI := m.metaIndices(i)
	baseJ, metaJ := m.metaIndices(j)

	if baseI >= 0 && baseJ >= 0 {
		return m.Base.Exchange(baseI, baseJ, dx)
	}

	rates, err := m.rates()
	if err != nil {
		return nil, nil, err
	}
	xp := computeXp(m.Head.X, rates)

	var x *big.Int
	if baseI < 0 {
		x = new(big.Int).Add(xp[i], mulDivTrunc(dx, rates[i], precision))
		m.Head.X[i] = new(big.Int).Add(m.Head.X[i], dx)
	} else {
		baseInputs := make([]*big.Int, m.Base.N)
		for k := range baseInputs {
			baseInputs[k] = big.NewInt(0)
		}
		baseInputs[baseI] = dx
		dxLP, err := m.Base.AddLiquidity(baseInputs)
		if err != nil {
			return nil, nil, err
		}
		m.Head.X[m.MaxCoin] = new(big.Int).Add(m.Head.X[m.MaxCoin], dxLP)
		x = new(big.Int).Add(xp[m.MaxCoin], mulDivTrunc(dxLP, rates[m.MaxCoin], precision))
	}

	y, err := solveY(metaI, metaJ, x, xp, m.Head.A)
	if err != nil {
		return nil, nil, err
	}

	dyRaw := new(big.Int).Sub(xp[metaJ], y)
	dyRaw.Sub(dyRaw, bigInt(1))
	dyFeeRaw := mulDivTrunc(dyRaw, m.Head.Fee, feeDenom)

	dyNoFee := mulDivTrunc(dyRaw, precision, rates[metaJ])
	dy := mulDivTrunc(new(big.Int).Sub(dyRaw, dyFeeRaw), precision, rates[metaJ])

	m.Head.X[metaJ] = new(big.Int).Sub(m.Head.X[metaJ], dy)

	if baseJ >= 0 {
		dyOut, err := m.Base.RemoveLiquidityOneCoin(dy, baseJ)
		if err != nil {
			return nil, nil, err
		}
		dyNoFeeOut, err := m.Base.CalcWithdrawOneCoin(dyNoFee, baseJ, false)
		if err != nil {
			return nil, nil, err
		}
		return dyOut, new(big.Int).Sub(dyNoFeeOut, dyOut), nil
	}

	// Meta-side output: both dy and dy_fee are converted from raw xp
	// units into rates[metaJ] units (spec.md §4.3 point 4).
	dyFee = mulDivTrunc(dyFeeRaw, precision, rates[metaJ])
	return dy, dyFee, nil
}

// Snapshot captures the head and base pool state together.
func (m *MetaPool) Snapshot() PoolSnapshot {
	headSnap := m.Head.Snapshot()
	baseSnap := m.Base.Snapshot()
	headSnap.base = &baseSnap
	return headSnap
}

// Restore resets the head and base pool state from a prior Snapshot.
func (m *MetaPool) Restore(s PoolSnapshot) {
	m.Head.Restore(s)
	if s.base != nil {
		m.Base.Restore(*s.base)
	}
}
