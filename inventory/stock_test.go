package inventory_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/core/store"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/tenant"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T, opts ...inventory.Option) (*inventory.StockLedger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return inventory.NewStockLedger(mem, opts...), mem
}

func seedProduct(t *testing.T, mem *store.Memory, name string, kind core.ProductKind, stock int64) core.Product {
	t.Helper()
	p, err := mem.InsertProduct(context.Background(), core.Product{
		ShopID: "shop-1",
		Name:   name,
		Kind:   kind,
		Stock:  stock,
	})
	require.NoError(t, err)
	return p
}

// racingStore lets another writer win the next n compare-and-swaps.
type racingStore struct {
	*store.Memory
	mu     sync.Mutex
	steals int
}

func (r *racingStore) UpdateProductStock(ctx context.Context, id core.ProductID, stock, expected int64) (core.Product, error) {
	r.mu.Lock()
	steal := r.steals > 0
	if steal {
		r.steals--
	}
	r.mu.Unlock()

	if steal {
		p, err := r.Memory.GetProduct(ctx, id)
		if err != nil {
			return core.Product{}, err
		}
		if _, err := r.Memory.UpdateProductStock(ctx, id, p.Stock+1, p.Version); err != nil {
			return core.Product{}, err
		}
	}
	return r.Memory.UpdateProductStock(ctx, id, stock, expected)
}

// failingStore fails every stock write with a non-conflict error.
type failingStore struct {
	*store.Memory
	writes int
}

func (f *failingStore) UpdateProductStock(context.Context, core.ProductID, int64, int64) (core.Product, error) {
	f.writes++
	return core.Product{}, errors.New("network unreachable")
}

// =============================================================================
// DECREMENT / INCREMENT
// =============================================================================

func TestDecrement_FloorsAtZero(t *testing.T) {
	// GIVEN: 3 cables in stock
	ledger, mem := newTestLedger(t)
	p := seedProduct(t, mem, "Cable", core.KindProduct, 3)

	// WHEN: Selling 5
	change, err := ledger.Decrement(context.Background(), p.ID, 5)

	// THEN: Stock stops at 0 and the change reports what was removed
	require.NoError(t, err)
	assert.Equal(t, int64(3), change.Before)
	assert.Equal(t, int64(0), change.After)
	assert.Equal(t, int64(3), change.Removed())

	got, _ := mem.GetProduct(context.Background(), p.ID)
	assert.Equal(t, int64(0), got.Stock)
}

func TestIncrement_OverflowIsRejected(t *testing.T) {
	// GIVEN: 5 in stock
	ledger, mem := newTestLedger(t)
	p := seedProduct(t, mem, "Cable", core.KindProduct, 5)
	ctx := context.Background()

	// WHEN: Receiving or adjusting by an amount that would wrap around
	_, incErr := ledger.Increment(ctx, p.ID, math.MaxInt64)
	_, adjErr := ledger.Adjust(ctx, p.ID, math.MaxInt64-4)

	// THEN: Both are validation errors, not negative-stock errors, and stock is unchanged
	assert.ErrorIs(t, incErr, core.ErrValidation)
	assert.ErrorIs(t, adjErr, core.ErrValidation)
	assert.NotErrorIs(t, adjErr, core.ErrNegativeStock)

	got, _ := mem.GetProduct(ctx, p.ID)
	assert.Equal(t, int64(5), got.Stock)

	change, err := ledger.Increment(ctx, p.ID, math.MaxInt64-5)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), change.After)
}

func TestIncrementThenDecrement_RoundTrips(t *testing.T) {
	ledger, mem := newTestLedger(t)
	p := seedProduct(t, mem, "Case", core.KindProduct, 10)
	ctx := context.Background()

	_, err := ledger.Increment(ctx, p.ID, 4)
	require.NoError(t, err)
	change, err := ledger.Decrement(ctx, p.ID, 4)
	require.NoError(t, err)

	assert.Equal(t, int64(10), change.After)
	assert.Equal(t, int64(-4), change.Delta())
}

func TestDecrement_ServiceIsSkipped(t *testing.T) {
	ledger, mem := newTestLedger(t)
	p := seedProduct(t, mem, "Screen repair", core.KindService, 0)

	change, err := ledger.Decrement(context.Background(), p.ID, 2)
	require.NoError(t, err)
	assert.True(t, change.Skipped)

	got, _ := mem.GetProduct(context.Background(), p.ID)
	assert.Equal(t, int64(1), got.Version, "nothing written")
}

func TestDecrement_RejectsNonPositiveQuantity(t *testing.T) {
	ledger, mem := newTestLedger(t)
	p := seedProduct(t, mem, "Cable", core.KindProduct, 3)

	for _, qty := range []int64{0, -2} {
		_, err := ledger.Decrement(context.Background(), p.ID, qty)
		assert.ErrorIs(t, err, core.ErrValidation)
		_, err = ledger.Increment(context.Background(), p.ID, qty)
		assert.ErrorIs(t, err, core.ErrValidation)
	}
}

func TestDecrement_UnknownProduct(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.Decrement(context.Background(), "ghost", 1)
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// ADJUST
// =============================================================================

func TestAdjust(t *testing.T) {
	tests := []struct {
		name    string
		kind    core.ProductKind
		stock   int64
		delta   int64
		want    int64
		wantErr error
	}{
		{"count up", core.KindProduct, 5, 3, 8, nil},
		{"count down to zero", core.KindProduct, 5, -5, 0, nil},
		{"below zero rejected", core.KindProduct, 5, -6, 5, core.ErrNegativeStock},
		{"zero delta rejected", core.KindProduct, 5, 0, 5, core.ErrValidation},
		{"service rejected", core.KindService, 0, 1, 0, core.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, mem := newTestLedger(t)
			p := seedProduct(t, mem, "Item", tt.kind, tt.stock)

			_, err := ledger.Adjust(context.Background(), p.ID, tt.delta)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			got, _ := mem.GetProduct(context.Background(), p.ID)
			assert.Equal(t, tt.want, got.Stock)
		})
	}
}

// =============================================================================
// COMPARE-AND-SWAP
// =============================================================================

func TestDecrement_RetriesLostCompareAndSwap(t *testing.T) {
	// GIVEN: 10 in stock and a concurrent writer that adds 1 twice
	mem := store.NewMemory()
	p := seedProduct(t, mem, "Cable", core.KindProduct, 10)
	racer := &racingStore{Memory: mem, steals: 2}
	ledger := inventory.NewStockLedger(racer)

	// WHEN: Selling 4
	change, err := ledger.Decrement(context.Background(), p.ID, 4)

	// THEN: The third attempt applies against the fresh stock
	require.NoError(t, err)
	assert.Equal(t, int64(12), change.Before)
	assert.Equal(t, int64(8), change.After)
}

func TestDecrement_ExhaustedRetriesIsConflict(t *testing.T) {
	mem := store.NewMemory()
	p := seedProduct(t, mem, "Cable", core.KindProduct, 10)
	racer := &racingStore{Memory: mem, steals: 5}
	ledger := inventory.NewStockLedger(racer, inventory.WithMaxAttempts(2))

	_, err := ledger.Decrement(context.Background(), p.ID, 1)

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
	assert.Equal(t, 3, racer.steals, "two attempts consumed two steals")
}

func TestDecrement_StoreErrorNotRetried(t *testing.T) {
	mem := store.NewMemory()
	p := seedProduct(t, mem, "Cable", core.KindProduct, 10)
	failing := &failingStore{Memory: mem}
	ledger := inventory.NewStockLedger(failing)

	_, err := ledger.Decrement(context.Background(), p.ID, 1)
	require.Error(t, err)
	assert.False(t, core.IsConflict(err))
	assert.Equal(t, 1, failing.writes)
}

func TestDecrement_ConcurrentSalesNeverLoseUpdates(t *testing.T) {
	mem := store.NewMemory()
	p := seedProduct(t, mem, "Cable", core.KindProduct, 100)
	ledger := inventory.NewStockLedger(mem, inventory.WithMaxAttempts(50))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Decrement(context.Background(), p.ID, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := mem.GetProduct(context.Background(), p.ID)
	assert.Equal(t, int64(60), got.Stock)
}

func TestDecrement_OtherShopsProductIsNotFound(t *testing.T) {
	// GIVEN: A product of shop-1 and a caller bound to shop-2
	ledger, mem := newTestLedger(t)
	p := seedProduct(t, mem, "Cable", core.KindProduct, 10)
	other := tenant.WithShop(context.Background(), "shop-2")

	// WHEN: The caller decrements it
	_, err := ledger.Decrement(other, p.ID, 1)

	// THEN: It is reported missing and stock is untouched
	assert.True(t, core.IsNotFound(err))
	got, _ := mem.GetProduct(context.Background(), p.ID)
	assert.Equal(t, int64(10), got.Stock)

	_, err = ledger.Decrement(tenant.WithShop(context.Background(), "shop-1"), p.ID, 1)
	assert.NoError(t, err)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicyHandle(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, inventory.PolicyStrict.Handle(boom), boom)
	assert.NoError(t, inventory.PolicyBestEffort.Handle(boom))
	assert.NoError(t, inventory.PolicyStrict.Handle(nil))
}
