package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	domainstock "github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPurchase(t *testing.T, db *gorm.DB, date time.Time, lots ...domainstock.LotInput) *domainstock.Purchase {
	t.Helper()
	p, err := domainstock.NewPurchase("Acme", date, "")
	require.NoError(t, err)
	for _, in := range lots {
		_, err := p.AddLot(in)
		require.NoError(t, err)
	}
	require.NoError(t, NewGormPurchaseRepository(db).Create(context.Background(), p))
	return p
}

func lotOf(productID uuid.UUID, qty int) domainstock.LotInput {
	return domainstock.LotInput{
		ProductID: &productID,
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  qty,
	}
}

func TestGormLotRepository_ApplyOutDelta(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "12345", "Widget")
	p := seedPurchase(t, db, testutil.Date(2024, 1, 10), lotOf(productID, 5))
	lotID := p.Lots[0].ID
	repo := NewGormLotRepository(db)

	require.NoError(t, repo.ApplyOutDelta(ctx, lotID, 3))
	assert.ErrorIs(t, repo.ApplyOutDelta(ctx, lotID, 3), shared.ErrLotBoundViolation)
	assert.ErrorIs(t, repo.ApplyOutDelta(ctx, lotID, -4), shared.ErrLotBoundViolation)
	require.NoError(t, repo.ApplyOutDelta(ctx, lotID, 2))
	assert.ErrorIs(t, repo.ApplyOutDelta(ctx, uuid.Must(uuid.NewV7()), 1), shared.ErrNotFound)

	lot, err := repo.FindByID(ctx, lotID)
	require.NoError(t, err)
	assert.Equal(t, 5, lot.OutQuantity)
	assert.Equal(t, 0, lot.Available())
}

func TestGormLotRepository_FIFOOrderAndSums(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "11111", "Widget")
	other := testutil.SeedProduct(t, db, "22222", "Gadget")

	newer := seedPurchase(t, db, testutil.Date(2024, 3, 1), lotOf(productID, 4))
	older := seedPurchase(t, db, testutil.Date(2024, 1, 1), lotOf(productID, 2), lotOf(other, 7))
	seedPurchase(t, db, testutil.Date(2024, 2, 1), domainstock.LotInput{Description: "unmatched", Quantity: 9})

	repo := NewGormLotRepository(db)
	lots, err := repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, older.Lots[0].ID, lots[0].ID)
	assert.Equal(t, newer.Lots[0].ID, lots[1].ID)

	require.NoError(t, repo.ApplyOutDelta(ctx, older.Lots[0].ID, 2))

	sums, err := repo.SumAvailableByProducts(ctx, []uuid.UUID{productID, other, uuid.Must(uuid.NewV7())})
	require.NoError(t, err)
	assert.Equal(t, 4, sums[productID])
	assert.Equal(t, 7, sums[other])
	assert.Len(t, sums, 2)

	linked, err := repo.FindAllLinkedForUpdate(ctx)
	require.NoError(t, err)
	assert.Len(t, linked, 3)

	reset, err := repo.ResetAllConsumption(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)
}

func TestGormLotRepository_UpdateProductLinkKeepsOutQuantity(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "12345", "Widget")
	p := seedPurchase(t, db, testutil.Date(2024, 1, 10), lotOf(productID, 5))
	lotID := p.Lots[0].ID
	repo := NewGormLotRepository(db)
	require.NoError(t, repo.ApplyOutDelta(ctx, lotID, 2))

	require.NoError(t, repo.UpdateProductLink(ctx, lotID, nil))
	lot, err := repo.FindByID(ctx, lotID)
	require.NoError(t, err)
	assert.Nil(t, lot.ProductID)
	assert.Equal(t, 2, lot.OutQuantity)

	assert.ErrorIs(t, repo.UpdateProductLink(ctx, uuid.Must(uuid.NewV7()), &productID), shared.ErrNotFound)
}

func TestGormConsumptionRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "12345", "Widget")
	p := seedPurchase(t, db, testutil.Date(2024, 1, 10), lotOf(productID, 5), lotOf(productID, 5))
	itemA, itemB := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())

	repo := NewGormConsumptionRepository(db)
	require.NoError(t, repo.CreateBatch(ctx, []domainstock.Consumption{
		{BaseEntity: shared.NewBaseEntity(), SaleItemID: itemA, LotID: p.Lots[1].ID, ProductID: productID, Quantity: 1, Sequence: 2},
		{BaseEntity: shared.NewBaseEntity(), SaleItemID: itemA, LotID: p.Lots[0].ID, ProductID: productID, Quantity: 5, Sequence: 1},
		{BaseEntity: shared.NewBaseEntity(), SaleItemID: itemB, LotID: p.Lots[1].ID, ProductID: productID, Quantity: 3, Sequence: 1},
	}))

	got, err := repo.FindBySaleItem(ctx, itemA)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Sequence)
	assert.Equal(t, p.Lots[0].ID, got[0].LotID)

	claims, err := repo.SumByLots(ctx, []uuid.UUID{p.Lots[0].ID, p.Lots[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 5, claims[p.Lots[0].ID])
	assert.Equal(t, 4, claims[p.Lots[1].ID])

	require.NoError(t, repo.DeleteBySaleItem(ctx, itemA))
	got, err = repo.FindBySaleItem(ctx, itemA)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGormSaleRepositories(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "12345", "Widget")

	sale, err := sales.NewSale(sales.SaleHeader{CustomerName: "Ana"}, []sales.ItemInput{
		{ProductID: &productID, Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		{ManualName: "Gift wrap", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		{ProductID: &productID, Quantity: 3, UnitPrice: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)

	saleRepo := NewGormSaleRepository(db)
	itemRepo := NewGormSaleItemRepository(db)
	require.NoError(t, saleRepo.Create(ctx, sale))

	loaded, err := saleRepo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 3)
	for i := range sale.Items {
		assert.Equal(t, sale.Items[i].ID, loaded.Items[i].ID)
	}
	assert.True(t, decimal.NewFromInt(255).Equal(loaded.TotalAmount()))

	pending, err := itemRepo.SumPendingByProducts(ctx, []uuid.UUID{productID})
	require.NoError(t, err)
	assert.Equal(t, 5, pending[productID])

	first := &loaded.Items[0]
	require.NoError(t, first.ApplyTransition(sales.TransitionDeliver))
	first.RecordConsumption(2)
	require.NoError(t, itemRepo.Save(ctx, first))

	delivered, err := itemRepo.FindDeliveredWithProduct(ctx)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, first.ID, delivered[0].ID)
	require.NotNil(t, delivered[0].ConsumedQuantity)
	assert.Equal(t, 2, *delivered[0].ConsumedQuantity)

	pending, err = itemRepo.SumPendingByProducts(ctx, []uuid.UUID{productID})
	require.NoError(t, err)
	assert.Equal(t, 3, pending[productID])

	list, total, err := saleRepo.FindAll(ctx, shared.Filter{Search: "an"}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	require.NoError(t, saleRepo.Delete(ctx, sale.ID))
	_, err = saleRepo.FindByID(ctx, sale.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = itemRepo.FindByID(ctx, first.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormPaymentRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	p := seedPurchase(t, db, testutil.Date(2024, 1, 10), domainstock.LotInput{Description: "Box", Quantity: 1})

	payment, err := p.AddPayment("Bruno", decimal.NewFromInt(30), "pix", time.Time{})
	require.NoError(t, err)
	repo := NewGormPaymentRepository(db)
	require.NoError(t, repo.Create(ctx, payment))

	loaded, err := NewGormPurchaseRepository(db).FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Payments, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(loaded.PaidAmount()))

	require.NoError(t, repo.Delete(ctx, payment.ID))
	assert.ErrorIs(t, repo.Delete(ctx, payment.ID), shared.ErrNotFound)
}

func TestGormProductCatalog(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "54321", "Widget")
	catalog := NewGormProductCatalog(db)

	ok, err := catalog.Exists(ctx, productID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = catalog.Exists(ctx, uuid.Must(uuid.NewV7()))
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := catalog.FindIDByCode(ctx, "54321")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, productID, *id)

	id, err = catalog.FindIDByCode(ctx, "00000")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	productID := testutil.SeedProduct(t, db, "12345", "Widget")
	p := seedPurchase(t, db, testutil.Date(2024, 1, 10), lotOf(productID, 5))
	lotID := p.Lots[0].ID

	boom := errors.New("boom")
	err := NewGormTransactionScope(db).Execute(ctx, func(repos stock.TransactionalRepositories) error {
		if err := repos.LotRepo().ApplyOutDelta(ctx, lotID, 4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	lot, err := NewGormLotRepository(db).FindByID(ctx, lotID)
	require.NoError(t, err)
	assert.Equal(t, 0, lot.OutQuantity)

	err = NewGormTransactionScope(db).Execute(ctx, func(repos stock.TransactionalRepositories) error {
		return repos.LotRepo().ApplyOutDelta(ctx, lotID, 4)
	})
	require.NoError(t, err)
	lot, err = NewGormLotRepository(db).FindByID(ctx, lotID)
	require.NoError(t, err)
	assert.Equal(t, 4, lot.OutQuantity)
}
