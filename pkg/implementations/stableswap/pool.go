package stableswap

import (
	"math/big"

	"github.com/curvesim-go/stableswap/pkg/mechanisms"
	"github.com/curvesim-go/stableswap/pkg/primitives"
)

// Pool is the common operation surface shared by PlainPool and MetaPool.
// Rather than a class hierarchy, the two concrete types are a tagged
// variant behind this interface (see spec design notes on meta-pool
// polymorphism): callers that only need the generic surface - arbitrage
// solvers, pricing - never need to know which one they hold.
type Pool interface {
	mechanisms.MarketMechanism

	// NCoins returns the number of externally visible coin slots: n for a
	// plain pool, n_total for a meta pool.
	NCoins() int

	// Xp returns the current virtual balances (native balance scaled by
	// each coin's precision multiplier).
	Xp() []*big.Int

	// D returns the current invariant value.
	D() (*big.Int, error)

	// GetVirtualPrice returns D()*1e18/tokens, a monotone measure of
	// LP-token value.
	GetVirtualPrice() (*big.Int, error)

	// Dy quotes the net output of exchanging dx of coin i for coin j,
	// without mutating pool state.
	Dy(i, j int, dx *big.Int) (*big.Int, error)

	// Dydx returns the marginal exchange rate dy/dx at the current state,
	// optionally including the pool's fee. dx is not used by either
	// implementation: every probe trade is a fixed 1e12.
	Dydx(i, j int, dx *big.Int, useFee bool) (primitives.Price, error)

	// Exchange executes a swap of dx of coin i into coin j, returning the
	// net amount received and the fee charged (same units as dy).
	Exchange(i, j int, dx *big.Int) (dyNet, dyFee *big.Int, err error)

	// AddLiquidity deposits amounts (one per coin) and returns the minted
	// LP token amount, mutating pool state.
	AddLiquidity(amounts []*big.Int) (*big.Int, error)

	// CalcTokenAmount is the pure (non-mutating) counterpart of
	// AddLiquidity.
	CalcTokenAmount(amounts []*big.Int) (*big.Int, error)

	// RemoveLiquidityImbalance withdraws amounts (one per coin) and
	// returns the LP token amount that would need to be burned. Does not
	// decrement the LP supply; callers do that.
	RemoveLiquidityImbalance(amounts []*big.Int) (*big.Int, error)

	// RemoveLiquidityOneCoin burns tokenAmount of LP supply and withdraws
	// the equivalent value entirely in coin i, mutating pool state.
	RemoveLiquidityOneCoin(tokenAmount *big.Int, i int) (*big.Int, error)

	// CalcWithdrawOneCoin is the pure counterpart of
	// RemoveLiquidityOneCoin; fee toggles whether the single-coin
	// withdrawal fee is applied.
	CalcWithdrawOneCoin(tokenAmount *big.Int, i int, fee bool) (*big.Int, error)

	// Snapshot captures the pool's mutable state by value.
	Snapshot() PoolSnapshot

	// Restore resets the pool's mutable state from a prior Snapshot.
	Restore(PoolSnapshot)
}

// PoolSnapshot is a by-value capture of everything arbitrage routines may
// mutate during a probing trade: x (and tokens, for operations that touch
// LP supply), recursively including a meta pool's base pool. It carries
// no pointers into the live pool, so Restore is a pure copy-back.
type PoolSnapshot struct {
	x      []*big.Int
	tokens *big.Int
	base   *PoolSnapshot // nil for a plain pool
}
