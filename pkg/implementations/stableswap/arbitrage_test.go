package stableswap_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/curvesim-go/stableswap/pkg/implementations/stableswap"
	"github.com/curvesim-go/stableswap/pkg/primitives"
)

// newImbalancedPool builds a 3-coin pool with coin 0 slightly overweight,
// so its marginal price of coin 0 in terms of coin 1 sits below 1:1 and an
// arbitrageur has an incentive to sell coin 0 into the pool.
func newImbalancedPool(t *testing.T) *stableswap.PlainPool {
	t.Helper()
	balances := []*big.Int{
		mustBig(t, "1010000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
	}
	pool, err := stableswap.NewPlainPool(stableswap.PlainConfig{
		A: big.NewInt(2000),
		D:   stableswap.ExplicitBalances(balances),
		N:   3,
		Fee: big.NewInt(0),
	})
	if err != nil {
		t.Fatalf("NewPlainPool: %v", err)
	}
	return pool
}

func TestOptArbConvergesTowardTargetPrice(t *testing.T) {
	pool := newImbalancedPool(t)
	onePrice := primitives.MustPrice(primitives.NewDecimal(1))

	before, err := pool.Dydx(0, 1, nil, true)
	if err != nil {
		t.Fatalf("Dydx: %v", err)
	}
	if !before.LessThan(onePrice) {
		t.Fatalf("expected coin 0 to quote below 1:1 against coin 1 on an overweight pool, got %v", before)
	}

	trade, residual, err := stableswap.OptArb(pool, 0, 1, onePrice)
	if err != nil {
		t.Fatalf("OptArb: %v", err)
	}
	if trade.Dx.Sign() <= 0 {
		t.Fatalf("trade.Dx = %s, want positive", trade.Dx)
	}
	if math.Abs(residual.Float64()) > 1e-4 {
		t.Fatalf("residual price error = %v, want near zero", residual)
	}

	if _, _, err := pool.Exchange(trade.I, trade.J, trade.Dx); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	after, err := pool.Dydx(0, 1, nil, true)
	if err != nil {
		t.Fatalf("Dydx after trade: %v", err)
	}
	if !after.GreaterThan(before) {
		t.Fatalf("executing the arb trade should move the marginal rate toward 1:1: before=%v after=%v", before, after)
	}
}

func TestOptArbsProducesConsistentTradeCount(t *testing.T) {
	pool := newImbalancedPool(t)

	onePrice := primitives.MustPrice(primitives.NewDecimal(1))
	prices := []primitives.Price{onePrice, onePrice, onePrice}
	limit := primitives.MustAmount(primitives.NewDecimal(100000))
	limits := []primitives.Amount{limit, limit, limit}

	trades, errs, err := stableswap.OptArbs(pool, prices, limits)
	if err != nil {
		t.Fatalf("OptArbs: %v", err)
	}
	if len(errs) != 3 {
		t.Fatalf("len(errs) = %d, want 3 (one per coin pair)", len(errs))
	}
	for _, tr := range trades {
		if tr.Dx.Sign() <= 0 {
			t.Fatalf("trade dx = %s, want positive", tr.Dx)
		}
		if tr.I == tr.J {
			t.Fatalf("trade has identical coins i=j=%d", tr.I)
		}
	}
}

func TestOptArbsRejectsMismatchedLengths(t *testing.T) {
	pool := newImbalancedPool(t)
	onePrice := primitives.MustPrice(primitives.NewDecimal(1))
	oneAmount := primitives.MustAmount(primitives.NewDecimal(1))
	_, _, err := stableswap.OptArbs(pool, []primitives.Price{onePrice}, []primitives.Amount{oneAmount, oneAmount, oneAmount})
	if err == nil {
		t.Fatal("expected error for mismatched prices/limits length")
	}
}

func TestDoTradesReportsVolumeAndOutputs(t *testing.T) {
	pool := newImbalancedPool(t)
	trades := []stableswap.ArbTrade{
		{I: 0, J: 1, Dx: mustBig(t, "1000000000000000000000")},
	}

	results, volume, err := stableswap.DoTrades(pool, trades)
	if err != nil {
		t.Fatalf("DoTrades: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Dy.Sign() <= 0 {
		t.Fatalf("results[0].Dy = %s, want positive", results[0].Dy)
	}
	wantVolume := primitives.MustAmount(primitives.MustDecimalFromString(trades[0].Dx.String()))
	if !volume.Equal(wantVolume) {
		t.Fatalf("volume = %s, want %s (1e18-precision input coin)", volume, wantVolume)
	}
}

func TestPriceDepthPlainPool(t *testing.T) {
	pool := newBalancedPool(t, 3)
	depth, err := stableswap.PriceDepth(pool, primitives.NewDecimalFromFloat(0.001))
	if err != nil {
		t.Fatalf("PriceDepth: %v", err)
	}
	// 3 coins, every ordered pair excluding i==j: 3*2 = 6 entries.
	if len(depth) != 6 {
		t.Fatalf("len(depth) = %d, want 6", len(depth))
	}
	for k, d := range depth {
		if !d.IsPositive() {
			t.Fatalf("depth[%d] = %v, want positive", k, d)
		}
	}
}
