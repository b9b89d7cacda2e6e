package stableswap_test

import (
	"math/big"
	"testing"

	"github.com/curvesim-go/stableswap/pkg/implementations/stableswap"
)

// newTestMetaPool builds a 2-coin meta pool (one primary coin plus the
// base-LP slot, MaxCoin=1) over a balanced 3-coin base pool, mirroring the
// meta-pool shape original_source's own test fixtures use.
func newTestMetaPool(t *testing.T) *stableswap.MetaPool {
	t.Helper()

	baseBalances := []*big.Int{
		mustBig(t, "1000000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
	}
	metaBalances := []*big.Int{
		mustBig(t, "1000000000000000000000000"),
		mustBig(t, "1000000000000000000000000"),
	}

	pool, err := stableswap.NewMetaPool(stableswap.MetaConfig{
		AMeta: big.NewInt(2000),
		ABase: big.NewInt(2000),
		DMeta: stableswap.ExplicitBalances(metaBalances),
		DBase: stableswap.ExplicitBalances(baseBalances),
		NMeta: 2,
		NBase: 3,
	})
	if err != nil {
		t.Fatalf("NewMetaPool: %v", err)
	}
	return pool
}

func TestMetaPoolNCoinsAndIndices(t *testing.T) {
	pool := newTestMetaPool(t)
	// n_total = n_meta + n_base - 1 = 2 + 3 - 1 = 4.
	if got, want := pool.NCoins(), 4; got != want {
		t.Fatalf("NCoins() = %d, want %d", got, want)
	}
}

func TestMetaPoolExchangeCaseABothInBase(t *testing.T) {
	pool := newTestMetaPool(t)
	// External coins 2 and 3 both map into the base pool (MaxCoin=1, so
	// external index i maps to base index i-1).
	dx := mustBig(t, "1000000000000000000000")

	dy, _, err := pool.Exchange(2, 3, dx)
	if err != nil {
		t.Fatalf("Exchange(2,3): %v", err)
	}
	if dy.Sign() <= 0 {
		t.Fatalf("dy = %s, want positive", dy)
	}
	if dy.Cmp(dx) >= 0 {
		t.Fatalf("dy = %s should be less than dx = %s", dy, dx)
	}
}

func TestMetaPoolExchangeCaseBMetaToBase(t *testing.T) {
	pool := newTestMetaPool(t)
	dx := mustBig(t, "1000000000000000000000")

	vpBefore, err := pool.GetVirtualPrice()
	if err != nil {
		t.Fatalf("GetVirtualPrice: %v", err)
	}

	// External coin 0 is the meta-level primary coin; external coin 2 is
	// base-pool coin 1.
	dy, fee, err := pool.Exchange(0, 2, dx)
	if err != nil {
		t.Fatalf("Exchange(0,2): %v", err)
	}
	if dy.Sign() <= 0 {
		t.Fatalf("dy = %s, want positive", dy)
	}
	if fee.Sign() < 0 {
		t.Fatalf("fee = %s, want non-negative", fee)
	}

	vpAfter, err := pool.GetVirtualPrice()
	if err != nil {
		t.Fatalf("GetVirtualPrice after swap: %v", err)
	}
	if vpAfter.Cmp(vpBefore) < 0 {
		t.Fatalf("meta virtual price fell from %s to %s", vpBefore, vpAfter)
	}
}

func TestMetaPoolDyMatchesExchangeQuoteCaseB(t *testing.T) {
	pool := newTestMetaPool(t)
	dx := mustBig(t, "500000000000000000000")

	quoted, err := pool.Dy(0, 2, dx)
	if err != nil {
		t.Fatalf("Dy: %v", err)
	}
	dy, _, err := pool.Exchange(0, 2, dx)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if quoted.Cmp(dy) != 0 {
		t.Fatalf("Dy quote %s did not match executed dy %s", quoted, dy)
	}
}

func TestMetaPoolSnapshotRestoreCoversBasePool(t *testing.T) {
	pool := newTestMetaPool(t)
	snap := pool.Snapshot()

	// A base-to-base trade mutates only the base pool; confirm restore
	// undoes it via the nested base snapshot.
	if _, _, err := pool.Exchange(2, 3, mustBig(t, "1000000000000000000000")); err != nil {
		t.Fatalf("Exchange(2,3): %v", err)
	}
	baseVPMutated, err := pool.Base.GetVirtualPrice()
	if err != nil {
		t.Fatalf("Base.GetVirtualPrice: %v", err)
	}

	pool.Restore(snap)

	baseVPRestored, err := pool.Base.GetVirtualPrice()
	if err != nil {
		t.Fatalf("Base.GetVirtualPrice after restore: %v", err)
	}
	if baseVPRestored.Cmp(baseVPMutated) == 0 {
		t.Fatal("restore did not undo the base pool mutation")
	}
}

func TestMetaPoolExchangeRejectsOutOfRangeIndices(t *testing.T) {
	pool := newTestMetaPool(t)
	if _, _, err := pool.Exchange(0, 4, big.NewInt(1)); err == nil {
		t.Fatal("expected error for out-of-range external index")
	}
}
