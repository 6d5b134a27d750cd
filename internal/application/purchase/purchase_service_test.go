package purchase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	purchaseapp "github.com/reseller/backend/internal/application/purchase"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockProductCatalog is a mock implementation of stock.ProductCatalog
type MockProductCatalog struct {
	mock.Mock
}

func (m *MockProductCatalog) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductCatalog) FindIDByCode(ctx context.Context, code string) (*uuid.UUID, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uuid.UUID), args.Error(1)
}

func newService(t *testing.T, catalog *MockProductCatalog) (*purchaseapp.PurchaseService, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	svc := purchaseapp.NewPurchaseService(
		persistence.NewGormTransactionScope(db),
		persistence.NewGormPurchaseRepository(db),
		persistence.NewGormLotRepository(db),
		catalog,
		zap.NewNop(),
	)
	return svc, db
}

func TestPurchaseService_CreatePurchaseMatchesCodes(t *testing.T) {
	ctx := context.Background()
	catalog := new(MockProductCatalog)
	svc, _ := newService(t, catalog)

	matched := uuid.New()
	explicit := uuid.New()
	catalog.On("FindIDByCode", mock.Anything, "12345").Return(&matched, nil)
	catalog.On("FindIDByCode", mock.Anything, "99999").Return(nil, nil)
	catalog.On("Exists", mock.Anything, explicit).Return(true, nil)

	resp, err := svc.CreatePurchase(ctx, purchaseapp.CreatePurchaseRequest{
		Supplier:     "Acme",
		PurchaseDate: testutil.Date(2024, 5, 2),
		Lots: []purchaseapp.LotRequest{
			{Code: "12345", Description: "Lipstick", UnitPrice: decimal.RequireFromString("2.5"), Quantity: 4},
			{Description: "99999 - Perfume", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
			{ProductID: &explicit, UnitPrice: decimal.NewFromInt(1), Quantity: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Lots, 3)
	assert.Equal(t, &matched, resp.Lots[0].ProductID)
	assert.Nil(t, resp.Lots[1].ProductID)
	assert.Equal(t, &explicit, resp.Lots[2].ProductID)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, 8, resp.TotalUnits)
	for _, lot := range resp.Lots {
		assert.Zero(t, lot.OutQuantity)
		assert.Equal(t, lot.Quantity, lot.Available)
	}
	catalog.AssertExpectations(t)
}

func TestPurchaseService_CreatePurchaseRejects(t *testing.T) {
	ctx := context.Background()
	missing := uuid.New()

	tests := []struct {
		name    string
		setup   func(c *MockProductCatalog)
		req     purchaseapp.CreatePurchaseRequest
		wantErr error
	}{
		{
			name:    "no lots",
			setup:   func(*MockProductCatalog) {},
			req:     purchaseapp.CreatePurchaseRequest{Supplier: "Acme", PurchaseDate: time.Now()},
			wantErr: shared.NewDomainError(shared.CodeValidationFailed, ""),
		},
		{
			name:  "unknown product",
			setup: func(c *MockProductCatalog) { c.On("Exists", mock.Anything, missing).Return(false, nil) },
			req: purchaseapp.CreatePurchaseRequest{
				Supplier:     "Acme",
				PurchaseDate: time.Now(),
				Lots:         []purchaseapp.LotRequest{{ProductID: &missing, Quantity: 1}},
			},
			wantErr: shared.ErrNotFound,
		},
		{
			name:  "negative quantity",
			setup: func(c *MockProductCatalog) { c.On("FindIDByCode", mock.Anything, "12345").Return(nil, nil) },
			req: purchaseapp.CreatePurchaseRequest{
				Supplier:     "Acme",
				PurchaseDate: time.Now(),
				Lots:         []purchaseapp.LotRequest{{Code: "12345", Quantity: -1}},
			},
			wantErr: shared.NewDomainError(shared.CodeValidationFailed, ""),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockProductCatalog)
			tt.setup(catalog)
			svc, _ := newService(t, catalog)

			resp, err := svc.CreatePurchase(ctx, tt.req)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)

			list, err := svc.ListPurchases(ctx, shared.Filter{})
			require.NoError(t, err)
			assert.Zero(t, list.Total)
		})
	}
}

func TestPurchaseService_CatalogFailure(t *testing.T) {
	catalog := new(MockProductCatalog)
	boom := errors.New("catalog unavailable")
	catalog.On("FindIDByCode", mock.Anything, "12345").Return(nil, boom)
	svc, _ := newService(t, catalog)

	_, err := svc.CreatePurchase(context.Background(), purchaseapp.CreatePurchaseRequest{
		Supplier:     "Acme",
		PurchaseDate: time.Now(),
		Lots:         []purchaseapp.LotRequest{{Code: "12345", Quantity: 1}},
	})
	assert.ErrorIs(t, err, boom)
}

func TestPurchaseService_Payments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, new(MockProductCatalog))

	created, err := svc.CreatePurchase(ctx, purchaseapp.CreatePurchaseRequest{
		Supplier:     "Acme",
		PurchaseDate: testutil.Date(2024, 5, 2),
		Lots:         []purchaseapp.LotRequest{{Description: "Soap", UnitPrice: decimal.NewFromInt(10), Quantity: 5}},
	})
	require.NoError(t, err)

	paid, err := svc.AddPayment(ctx, created.ID, purchaseapp.AddPaymentRequest{
		Payer:  "Maria",
		Amount: decimal.NewFromInt(20),
		Method: "pix",
		PaidAt: testutil.Date(2024, 5, 3),
	})
	require.NoError(t, err)
	require.Len(t, paid.Payments, 1)
	assert.True(t, paid.PaidAmount.Equal(decimal.NewFromInt(20)))
	assert.True(t, paid.PendingAmount.Equal(decimal.NewFromInt(30)))

	_, err = svc.AddPayment(ctx, created.ID, purchaseapp.AddPaymentRequest{Payer: "Maria", Amount: decimal.Zero, PaidAt: time.Now()})
	assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeValidationFailed, ""))
	_, err = svc.AddPayment(ctx, uuid.New(), purchaseapp.AddPaymentRequest{Payer: "Maria", Amount: decimal.NewFromInt(1), PaidAt: time.Now()})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.DeletePayment(ctx, paid.Payments[0].ID))
	assert.ErrorIs(t, svc.DeletePayment(ctx, paid.Payments[0].ID), shared.ErrNotFound)

	after, err := svc.GetPurchase(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Payments)
	assert.True(t, after.PendingAmount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 5, after.Lots[0].Available)
}

func TestPurchaseService_AssociateLotKeepsConsumption(t *testing.T) {
	ctx := context.Background()
	catalog := new(MockProductCatalog)
	svc, db := newService(t, catalog)

	productID := testutil.SeedProduct(t, db, "12345", "Widget")
	created, err := svc.CreatePurchase(ctx, purchaseapp.CreatePurchaseRequest{
		Supplier:     "Acme",
		PurchaseDate: testutil.Date(2024, 5, 2),
		Lots:         []purchaseapp.LotRequest{{Description: "Soap", UnitPrice: decimal.NewFromInt(10), Quantity: 5}},
	})
	require.NoError(t, err)
	lotID := created.Lots[0].ID
	require.NoError(t, persistence.NewGormLotRepository(db).ApplyOutDelta(ctx, lotID, 2))

	catalog.On("Exists", mock.Anything, productID).Return(true, nil)
	linked, err := svc.AssociateLot(ctx, lotID, &productID)
	require.NoError(t, err)
	assert.Equal(t, &productID, linked.ProductID)
	assert.Equal(t, 2, linked.OutQuantity)

	byProduct, err := svc.ListLots(ctx, &productID, nil)
	require.NoError(t, err)
	require.Len(t, byProduct, 1)
	assert.Equal(t, lotID, byProduct[0].ID)

	unlinked, err := svc.AssociateLot(ctx, lotID, nil)
	require.NoError(t, err)
	assert.Nil(t, unlinked.ProductID)
	assert.Equal(t, 2, unlinked.OutQuantity)

	_, err = svc.AssociateLot(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.ListLots(ctx, nil, nil)
	assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeInvalidInput, ""))
	catalog.AssertExpectations(t)
}
