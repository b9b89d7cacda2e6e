package stableswap_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/curvesim-go/stableswap/pkg/implementations/stableswap"
	"github.com/curvesim-go/stableswap/pkg/primitives"
)

// TestSeedScenario3TwoCoinExchange covers spec seed scenario 3: a 2-coin
// plain pool at A=100 with equal balances and a 4bps fee, where exchanging
// 1e21 of coin 0 into coin 1 must net strictly less than 1e21 and the fee
// charged must be close to dy_raw*4e6/1e10.
func TestSeedScenario3TwoCoinExchange(t *testing.T) {
	pool, err := stableswap.NewPlainPool(stableswap.PlainConfig{
		A: big.NewInt(100),
		D: stableswap.ExplicitBalances([]*big.Int{
			mustBig(t, "1000000000000000000000000"),
			mustBig(t, "1000000000000000000000000"),
		}),
		N:   2,
		Fee: big.NewInt(4_000_000),
	})
	if err != nil {
		t.Fatalf("NewPlainPool: %v", err)
	}

	dx := mustBig(t, "1000000000000000000000")
	dyNet, dyFee, err := pool.Exchange(0, 1, dx)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if dyNet.Cmp(dx) >= 0 {
		t.Fatalf("dy_net = %s, want strictly less than dx = %s", dyNet, dx)
	}

	dyRaw := new(big.Int).Add(dyNet, dyFee)
	wantFee := new(big.Int).Mul(dyRaw, big.NewInt(4_000_000))
	wantFee.Quo(wantFee, big.NewInt(1e10))

	diff := new(big.Int).Sub(dyFee, wantFee)
	if diff.Sign() < 0 {
		diff.Neg(diff)
	}
	// This pool has no fee multiplier, so the fee is charged at the static
	// rate on dy_raw; the check allows up to 1e6 of slack around
	// dy_raw*4e6/1e10.
	if diff.Cmp(big.NewInt(1_000_000)) > 0 {
		t.Fatalf("dy_fee = %s, want close to dy_raw*4e6/1e10 = %s (diff %s)", dyFee, wantFee, diff)
	}
}

// TestSeedScenario4MetaBaseSymmetry covers spec seed scenario 4: with a
// balanced meta/base pool pair at equal A and equal precisions, the
// marginal rate from the meta-level primary coin into any base-pool coin
// should agree, since the base pool itself is symmetric.
func TestSeedScenario4MetaBaseSymmetry(t *testing.T) {
	balances := []*big.Int{
		mustBig(t, "1000000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
	}
	pool, err := stableswap.NewMetaPool(stableswap.MetaConfig{
		AMeta: big.NewInt(2000),
		ABase: big.NewInt(2000),
		DMeta: stableswap.ExplicitBalances([]*big.Int{
			mustBig(t, "1000000000000000000000000"),
			mustBig(t, "1000000000000000000000000"),
		}),
		DBase: stableswap.ExplicitBalances(balances),
		NMeta: 2,
		NBase: 3,
	})
	if err != nil {
		t.Fatalf("NewMetaPool: %v", err)
	}

	r01, err := pool.Dydx(0, 1, nil, true)
	if err != nil {
		t.Fatalf("Dydx(0,1): %v", err)
	}
	r02, err := pool.Dydx(0, 2, nil, true)
	if err != nil {
		t.Fatalf("Dydx(0,2): %v", err)
	}
	if math.Abs(r01.Decimal().Float64()-r02.Decimal().Float64()) > 1e-6 {
		t.Fatalf("dydxfee(0,1) = %v, dydxfee(0,2) = %v, want within 1e-6 on a symmetric base pool", r01, r02)
	}
}

// TestSeedScenario5OptArbClosesResidual covers spec seed scenario 5:
// targeting 0.1% below the current marginal rate, optarb must return a
// positive trade and drive the post-trade marginal rate within 1e-8 of the
// target.
func TestSeedScenario5OptArbClosesResidual(t *testing.T) {
	pool, err := stableswap.NewPlainPool(stableswap.PlainConfig{
		A: big.NewInt(100),
		D: stableswap.ExplicitBalances([]*big.Int{
			mustBig(t, "1000000000000000000000000"),
			mustBig(t, "1000000000000000000000000"),
		}),
		N:   2,
		Fee: big.NewInt(4_000_000),
	})
	if err != nil {
		t.Fatalf("NewPlainPool: %v", err)
	}

	rate, err := pool.Dydx(0, 1, nil, true)
	if err != nil {
		t.Fatalf("Dydx: %v", err)
	}
	targetF := rate.Decimal().Float64() * 0.999
	target := primitives.MustPrice(primitives.NewDecimalFromFloat(targetF))

	trade, _, err := stableswap.OptArb(pool, 0, 1, target)
	if err != nil {
		t.Fatalf("OptArb: %v", err)
	}
	if trade.Dx.Sign() <= 0 {
		t.Fatalf("trade.Dx = %s, want positive", trade.Dx)
	}

	if _, _, err := pool.Exchange(trade.I, trade.J, trade.Dx); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	after, err := pool.Dydx(0, 1, nil, true)
	if err != nil {
		t.Fatalf("Dydx after trade: %v", err)
	}
	if math.Abs(after.Decimal().Float64()-targetF) > 1e-8 {
		t.Fatalf("post-trade rate = %v, target = %v, want within 1e-8", after, targetF)
	}
}

// TestSeedScenario6OptArbsNoOpAtCurrentPrices covers spec seed scenario 6:
// when every pair's target price equals the pool's own current marginal
// rate, optarbs must find nothing worth trading.
func TestSeedScenario6OptArbsNoOpAtCurrentPrices(t *testing.T) {
	pool := newBalancedPool(t, 3)

	prices := make([]primitives.Price, 0, 3)
	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	for _, pair := range pairs {
		rate, err := pool.Dydx(pair[0], pair[1], nil, true)
		if err != nil {
			t.Fatalf("Dydx(%d,%d): %v", pair[0], pair[1], err)
		}
		prices = append(prices, rate)
	}
	limit := primitives.MustAmount(primitives.NewDecimal(100000))
	limits := []primitives.Amount{limit, limit, limit}

	trades, _, err := stableswap.OptArbs(pool, prices, limits)
	if err != nil {
		t.Fatalf("OptArbs: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("trades = %+v, want none when prices already match the pool", trades)
	}
}

// TestDydxMatchesNumericalDyLimit covers spec §8's dydx-vs-numerical-limit
// property for a fee-disabled plain pool.
func TestDydxMatchesNumericalDyLimit(t *testing.T) {
	pool, err := stableswap.NewPlainPool(stableswap.PlainConfig{
		A: big.NewInt(2000),
		D: stableswap.ExplicitBalances([]*big.Int{
			mustBig(t, "1000000000000000000000000"),
			mustBig(t, "1000000000000000000000000"),
			mustBig(t, "1000000000000000000000000"),
		}),
		N:   3,
		Fee: big.NewInt(0),
	})
	if err != nil {
		t.Fatalf("NewPlainPool: %v", err)
	}

	analytic, err := pool.Dydx(0, 1, nil, false)
	if err != nil {
		t.Fatalf("Dydx: %v", err)
	}
	analyticF := analytic.Decimal().Float64()

	dx := mustBig(t, "1000000000000000") // a small probe relative to 1e24 balances
	dy, err := pool.Dy(0, 1, dx)
	if err != nil {
		t.Fatalf("Dy: %v", err)
	}
	dxF := new(big.Float).SetInt(dx)
	dyF := new(big.Float).SetInt(dy)
	numeric, _ := new(big.Float).Quo(dyF, dxF).Float64()

	if math.Abs(analyticF-numeric)/numeric > 1e-9 {
		t.Fatalf("analytic dydx = %v, numerical dy/dx = %v, want within 1e-9 relative", analyticF, numeric)
	}
}
