package stock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumption(itemID, lotID uuid.UUID, qty, seq int) Consumption {
	return Consumption{
		BaseEntity: shared.NewBaseEntity(),
		SaleItemID: itemID,
		LotID:      lotID,
		Quantity:   qty,
		Sequence:   seq,
	}
}

func TestPlanRelease_RestoresMostRecentFirst(t *testing.T) {
	productID, itemID := uuid.New(), uuid.New()
	a := newTestLot(t, &productID, 2, day(1))
	b := newTestLot(t, &productID, 5, day(2))
	require.NoError(t, a.Consume(2))
	require.NoError(t, b.Consume(3))

	cs := []Consumption{
		consumption(itemID, a.ID, 2, 1),
		consumption(itemID, b.ID, 3, 2),
	}
	claims := map[uuid.UUID]int{a.ID: 2, b.ID: 3}
	lots := IndexLots([]*Lot{a, b})

	plan := PlanRelease(cs, lots, claims)
	require.True(t, plan.Clean())
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, b.ID, plan.Lines[0].LotID)
	assert.Equal(t, 3, plan.Lines[0].Quantity)
	assert.Equal(t, a.ID, plan.Lines[1].LotID)
	assert.Equal(t, 5, plan.Restorable)

	require.NoError(t, ApplyRelease(plan, lots))
	assert.Equal(t, 0, a.OutQuantity)
	assert.Equal(t, 0, b.OutQuantity)
}

func TestPlanRelease_BlockedWhenAlreadyReallocated(t *testing.T) {
	productID, itemID := uuid.New(), uuid.New()
	lot := newTestLot(t, &productID, 5, day(1))
	// item drew 3, another item drew 2, then something gave 2 back
	// without attribution so only 3 remain out
	require.NoError(t, lot.Consume(3))

	cs := []Consumption{consumption(itemID, lot.ID, 3, 1)}
	claims := map[uuid.UUID]int{lot.ID: 5}

	plan := PlanRelease(cs, IndexLots([]*Lot{lot}), claims)
	assert.False(t, plan.Clean())
	assert.Equal(t, 3, plan.Blocked)
	assert.Equal(t, []uuid.UUID{lot.ID}, plan.BlockedOn)
	assert.Empty(t, plan.Lines)
}

func TestPlanRelease_MissingLotIsBlocked(t *testing.T) {
	itemID := uuid.New()
	cs := []Consumption{consumption(itemID, uuid.New(), 1, 1)}
	plan := PlanRelease(cs, map[uuid.UUID]*Lot{}, nil)
	assert.Equal(t, 1, plan.Blocked)
	assert.Equal(t, 1, plan.Requested)
}

func TestPlanRelease_DoesNotTouchOtherItemsShare(t *testing.T) {
	productID, itemID := uuid.New(), uuid.New()
	lot := newTestLot(t, &productID, 10, day(1))
	require.NoError(t, lot.Consume(6)) // 4 ours, 2 someone else

	cs := []Consumption{consumption(itemID, lot.ID, 4, 1)}
	plan := PlanRelease(cs, IndexLots([]*Lot{lot}), map[uuid.UUID]int{lot.ID: 6})
	require.True(t, plan.Clean())
	require.NoError(t, ApplyRelease(plan, IndexLots([]*Lot{lot})))
	assert.Equal(t, 2, lot.OutQuantity)
}

func TestPlanLegacyRelease(t *testing.T) {
	productID := uuid.New()
	older := newTestLot(t, &productID, 5, day(1))
	newer := newTestLot(t, &productID, 5, day(9))
	require.NoError(t, older.Consume(5))
	require.NoError(t, newer.Consume(2))

	t.Run("newest purchase first", func(t *testing.T) {
		plan := PlanLegacyRelease(4, []*Lot{older, newer}, nil)
		require.True(t, plan.Clean())
		require.Len(t, plan.Lines, 2)
		assert.Equal(t, newer.ID, plan.Lines[0].LotID)
		assert.Equal(t, 2, plan.Lines[0].Quantity)
		assert.Equal(t, older.ID, plan.Lines[1].LotID)
		assert.Equal(t, 2, plan.Lines[1].Quantity)
		assert.Nil(t, plan.Lines[0].ConsumptionID)
	})

	t.Run("attributed units are left alone", func(t *testing.T) {
		claims := map[uuid.UUID]int{newer.ID: 2, older.ID: 4}
		plan := PlanLegacyRelease(3, []*Lot{older, newer}, claims)
		assert.Equal(t, 1, plan.Restorable)
		assert.Equal(t, 2, plan.Blocked)
	})
}
