package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	salesapp "github.com/reseller/backend/internal/application/sales"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/lock"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	svc      *salesapp.SaleService
	productA uuid.UUID
	productB uuid.UUID
	lotA     uuid.UUID
}

// newFixture seeds product A with a lot of 5 units and product B with none
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		productA: testutil.SeedProduct(t, db, "12345", "Widget"),
		productB: testutil.SeedProduct(t, db, "67890", "Gadget"),
	}
	f.svc = f.service(lock.NewLocalProductLocker())

	p, err := stock.NewPurchase("Acme", testutil.Date(2024, 1, 1), "")
	require.NoError(t, err)
	lot, err := p.AddLot(stock.LotInput{ProductID: &f.productA, UnitPrice: decimal.NewFromInt(10), Quantity: 5})
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormPurchaseRepository(db).Create(f.ctx, p))
	f.lotA = lot.ID
	return f
}

func (f *fixture) service(locker appstock.ProductLocker) *salesapp.SaleService {
	return salesapp.NewSaleService(
		persistence.NewGormTransactionScope(f.db),
		persistence.NewGormSaleRepository(f.db),
		persistence.NewGormSaleItemRepository(f.db),
		appstock.NewFulfillmentEngine(zap.NewNop()),
		locker,
		zap.NewNop(),
	)
}

func (f *fixture) outA() int {
	f.t.Helper()
	lot, err := persistence.NewGormLotRepository(f.db).FindByID(f.ctx, f.lotA)
	require.NoError(f.t, err)
	return lot.OutQuantity
}

func (f *fixture) create(delivered bool, force bool, items ...salesapp.CreateItemRequest) (*salesapp.SaleMutationResponse, error) {
	for i := range items {
		items[i].Delivered = delivered
	}
	return f.svc.CreateSale(f.ctx, salesapp.CreateSaleRequest{
		CustomerName: "Maria",
		Seller:       "Ana",
		Items:        items,
		Force:        force,
	})
}

func line(productID uuid.UUID, qty int, price int64) salesapp.CreateItemRequest {
	return salesapp.CreateItemRequest{ProductID: &productID, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func ptr[T any](v T) *T { return &v }

func TestSaleService_CreateSaleDerivesAmounts(t *testing.T) {
	f := newFixture(t)
	manual := salesapp.CreateItemRequest{ManualName: "Gift wrap", Quantity: 1, UnitPrice: decimal.NewFromInt(3), Paid: true}

	resp, err := f.create(false, false, line(f.productA, 2, 20), manual)
	require.NoError(t, err)
	require.NotNil(t, resp.Sale)
	assert.Empty(t, resp.Transitions)

	assert.True(t, resp.Sale.TotalAmount.Equal(decimal.NewFromInt(43)))
	assert.True(t, resp.Sale.PaidAmount.Equal(decimal.NewFromInt(3)))
	assert.True(t, resp.Sale.PendingAmount.Equal(decimal.NewFromInt(40)))
	assert.True(t, resp.Sale.DeliveredAmount.IsZero())
	assert.Equal(t, 0, f.outA())
}

func TestSaleService_CreateDeliveredSale(t *testing.T) {
	f := newFixture(t)

	resp, err := f.create(true, false, line(f.productA, 4, 20))
	require.NoError(t, err)
	require.Len(t, resp.Transitions, 1)
	assert.Equal(t, appstock.OutcomeClean, resp.Transitions[0].Outcome)
	assert.True(t, resp.Sale.Items[0].Delivered)
	assert.Equal(t, ptr(4), resp.Sale.Items[0].ConsumedQuantity)
	assert.Equal(t, 4, f.outA())
}

func TestSaleService_CreateSaleShortageRollsBack(t *testing.T) {
	f := newFixture(t)

	resp, err := f.create(true, false, line(f.productA, 3, 20), line(f.productB, 1, 20))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, 0, f.outA())

	list, err := f.svc.ListSales(f.ctx, shared.Filter{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestSaleService_UpdateSaleItemsIsAtomic(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(false, false, line(f.productA, 3, 20), line(f.productB, 2, 20))
	require.NoError(t, err)
	itemA, itemB := created.Sale.Items[0].ID, created.Sale.Items[1].ID

	updates := []salesapp.ItemUpdate{
		{ID: itemA, Delivered: ptr(true), Paid: ptr(true)},
		{ID: itemB, Delivered: ptr(true)},
	}
	_, err = f.svc.UpdateSaleItems(f.ctx, created.Sale.ID, updates, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	de, ok := shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, itemB.String(), de.Details["sale_item_id"])

	// the first item's delivery and paid flag were rolled back with the rest
	assert.Equal(t, 0, f.outA())
	stored, err := f.svc.GetSale(f.ctx, created.Sale.ID)
	require.NoError(t, err)
	for _, item := range stored.Items {
		assert.False(t, item.Delivered)
		assert.False(t, item.Paid)
	}

	resp, err := f.svc.UpdateSaleItems(f.ctx, created.Sale.ID, updates, true)
	require.NoError(t, err)
	require.Len(t, resp.Transitions, 2)
	assert.Equal(t, appstock.OutcomeClean, resp.Transitions[0].Outcome)
	assert.Equal(t, appstock.OutcomeShortfall, resp.Transitions[1].Outcome)
	assert.Equal(t, 2, resp.Transitions[1].Shortage)
	assert.Equal(t, 3, f.outA())
	assert.Equal(t, created.Sale.Version+1, resp.Sale.Version)
	assert.True(t, resp.Sale.DeliveredAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, resp.Sale.PaidAmount.Equal(decimal.NewFromInt(60)))
}

func TestSaleService_UpdateSaleItemsPaidOnly(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(false, false, line(f.productA, 3, 20))
	require.NoError(t, err)

	resp, err := f.svc.UpdateSaleItems(f.ctx, created.Sale.ID, []salesapp.ItemUpdate{
		{ID: created.Sale.Items[0].ID, Paid: ptr(true)},
	}, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Transitions)
	assert.True(t, resp.Sale.Items[0].Paid)
	assert.False(t, resp.Sale.Items[0].Delivered)
	assert.Equal(t, 0, f.outA())
}

func TestSaleService_UpdateSaleItemsValidation(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(false, false, line(f.productA, 3, 20))
	require.NoError(t, err)

	_, err = f.svc.UpdateSaleItems(f.ctx, created.Sale.ID, nil, false)
	assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeValidationFailed, ""))

	_, err = f.svc.UpdateSaleItems(f.ctx, created.Sale.ID, []salesapp.ItemUpdate{{ID: uuid.New(), Delivered: ptr(true)}}, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.UpdateSaleItems(f.ctx, uuid.New(), []salesapp.ItemUpdate{{ID: created.Sale.Items[0].ID}}, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaleService_DeleteSaleReleasesStock(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(true, false, line(f.productA, 2, 20), line(f.productA, 1, 20))
	require.NoError(t, err)
	require.Equal(t, 3, f.outA())

	resp, err := f.svc.DeleteSale(f.ctx, created.Sale.ID, false)
	require.NoError(t, err)
	assert.Len(t, resp.Transitions, 2)
	assert.Equal(t, 0, f.outA())

	_, err = f.svc.GetSale(f.ctx, created.Sale.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.DeleteSale(f.ctx, created.Sale.ID, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaleService_DeleteSaleItem(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(true, false, line(f.productA, 2, 20), line(f.productA, 1, 20))
	require.NoError(t, err)

	resp, err := f.svc.DeleteSaleItem(f.ctx, created.Sale.Items[0].ID, false)
	require.NoError(t, err)
	require.Len(t, resp.Transitions, 1)
	assert.Equal(t, 2, resp.Transitions[0].Applied)
	require.NotNil(t, resp.Sale)
	assert.Len(t, resp.Sale.Items, 1)
	assert.True(t, resp.Sale.TotalAmount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, 1, f.outA())

	_, err = f.svc.DeleteSaleItem(f.ctx, created.Sale.Items[0].ID, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaleService_DeleteManualItemsLeavesLots(t *testing.T) {
	f := newFixture(t)
	consumptions := persistence.NewGormConsumptionRepository(f.db)
	wrap := salesapp.CreateItemRequest{ManualName: "Gift wrap", Quantity: 4, UnitPrice: decimal.NewFromInt(3)}

	mixed, err := f.create(true, false, line(f.productA, 2, 20), wrap)
	require.NoError(t, err)
	require.Equal(t, 2, f.outA())
	manualID := mixed.Sale.Items[1].ID

	resp, err := f.svc.DeleteSaleItem(f.ctx, manualID, false)
	require.NoError(t, err)
	require.Len(t, resp.Transitions, 1)
	assert.Equal(t, appstock.OutcomeNotApplicable, resp.Transitions[0].Outcome)
	assert.Empty(t, resp.Transitions[0].Movements)
	assert.Equal(t, 2, f.outA())

	rows, err := consumptions.FindBySaleItem(f.ctx, manualID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	manualOnly, err := f.create(true, false, wrap, wrap)
	require.NoError(t, err)
	require.Equal(t, 2, f.outA())

	_, err = f.svc.DeleteSale(f.ctx, manualOnly.Sale.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.outA())

	byLot, err := consumptions.SumByLots(f.ctx, []uuid.UUID{f.lotA})
	require.NoError(t, err)
	assert.Equal(t, 2, byLot[f.lotA])
	for _, item := range manualOnly.Sale.Items {
		rows, err := consumptions.FindBySaleItem(f.ctx, item.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	}
}

func TestSaleService_UpdateSaleHeader(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(false, false, line(f.productA, 1, 20))
	require.NoError(t, err)

	resp, err := f.svc.UpdateSaleHeader(f.ctx, created.Sale.ID, sales.SaleHeader{
		CustomerName: "  Joana ",
		Installments: ptr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Joana", resp.CustomerName)
	assert.Equal(t, ptr(3), resp.Installments)

	_, err = f.svc.UpdateSaleHeader(f.ctx, created.Sale.ID, sales.SaleHeader{CustomerName: " "})
	assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeValidationFailed, ""))
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, ...string) (func(), error) {
	return nil, shared.ErrConcurrencyConflict
}

func TestSaleService_LockNotObtained(t *testing.T) {
	f := newFixture(t)
	created, err := f.create(false, false, line(f.productA, 1, 20))
	require.NoError(t, err)

	svc := f.service(busyLocker{})
	_, err = svc.UpdateSaleItems(f.ctx, created.Sale.ID, []salesapp.ItemUpdate{
		{ID: created.Sale.Items[0].ID, Delivered: ptr(true)},
	}, false)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 0, f.outA())
}

func TestSaleService_ConcurrentDeliveriesNeverOversell(t *testing.T) {
	f := newFixture(t)
	const n = 4
	pending := make([]*salesapp.SaleMutationResponse, 0, n)
	for range n {
		created, err := f.create(false, false, line(f.productA, 2, 20))
		require.NoError(t, err)
		pending = append(pending, created)
	}

	errs := make(chan error, n)
	for _, created := range pending {
		go func() {
			_, err := f.svc.UpdateSaleItems(f.ctx, created.Sale.ID, []salesapp.ItemUpdate{
				{ID: created.Sale.Items[0].ID, Delivered: ptr(true)},
			}, false)
			errs <- err
		}()
	}

	delivered, rejected := 0, 0
	timeout := time.After(10 * time.Second)
	for range n {
		select {
		case err := <-errs:
			if err == nil {
				delivered++
				continue
			}
			assert.ErrorIs(t, err, shared.ErrInsufficientStock)
			rejected++
		case <-timeout:
			t.Fatal("deliveries did not finish")
		}
	}
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 2, rejected)
	assert.Equal(t, 4, f.outA())
}
