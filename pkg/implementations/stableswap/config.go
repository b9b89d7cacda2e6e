package stableswap

import "math/big"

// Balances represents either a scalar total deposit size (to be split
// evenly across coins using the precision vector) or an explicit
// per-coin balance list, mirroring the Python constructor's
// `isinstance(D, list)` branch.
type Balances struct {
	scalar *big.Int
	list   []*big.Int
}

// TotalDeposit constructs a Balances that splits amount evenly across the
// pool's coins at construction time.
func TotalDeposit(amount *big.Int) Balances {
	return Balances{scalar: amount}
}

// ExplicitBalances constructs a Balances from a concrete per-coin list.
func ExplicitBalances(x []*big.Int) Balances {
	return Balances{list: x}
}

func (b Balances) isList() bool { return b.list != nil }

// PlainConfig configures a new PlainPool.
type PlainConfig struct {
	// A is the pool's amplification coefficient, passed exactly as
	// original_source's test fixtures and on-chain pools use it (e.g. 2000
	// for a typical 3-coin pool); solveD/solveY combine it with n as
	// Ann = A*n to match the invariant convention.
	A *big.Int
	// D is either a total deposit size (split evenly) or explicit balances.
	D Balances
	// N is the number of coins.
	N int
	// P holds per-coin precision multipliers; defaults to 10**18 each.
	P []*big.Int
	// Tokens overrides the initial LP supply; defaults to D().
	Tokens *big.Int
	// Fee is the swap fee with 1e10 precision; defaults to 4e6 (4 bps).
	Fee *big.Int
	// FeeMul is the optional dynamic-fee multiplier.
	FeeMul *big.Int
	// R marks p[0] as a dynamic redemption price.
	R bool
}

// MetaConfig configures a new MetaPool: a meta-level pool whose last coin
// slot holds the LP token of an owned base pool.
type MetaConfig struct {
	AMeta, ABase         *big.Int
	DMeta, DBase         Balances
	NMeta, NBase         int
	P                    []*big.Int // length NMeta; defaults to 10**18 each
	Tokens               *big.Int   // initial base-pool LP supply
	FeeMeta, FeeBase     *big.Int
	FeeMul               *big.Int
	// R, when non-nil, is a redemption price substituted for p[0] at
	// construction time (the only place original_source's r parameter is
	// used; a plain pool takes only the PlainConfig.R bool marker, with no
	// price substitution).
	R *big.Int
}

func defaultFee() *big.Int { return big.NewInt(4_000_000) }
