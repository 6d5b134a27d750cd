package stock_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func (l *ledger) positions() *appstock.PositionService {
	return appstock.NewPositionService(
		persistence.NewGormLotRepository(l.db),
		persistence.NewGormSaleItemRepository(l.db),
		persistence.NewGormSaleRepository(l.db),
	)
}

func TestNewStockPosition(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name      string
		available int
		reserved  int
		net       int
		short     int
	}{
		{"nothing reserved", 5, 0, 5, 0},
		{"partly reserved", 5, 3, 2, 0},
		{"exactly reserved", 5, 5, 0, 0},
		{"over reserved", 5, 8, 0, 3},
		{"no stock", 0, 2, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := appstock.NewStockPosition(id, tt.available, tt.reserved)
			assert.Equal(t, tt.net, p.NetAvailable)
			assert.Equal(t, tt.short, p.Short)
			// net available and short are never both positive
			assert.Zero(t, min(p.NetAvailable, p.Short))
			assert.Equal(t, tt.available-tt.reserved, p.NetAvailable-p.Short)
		})
	}
}

func TestPositionService_GetStockPosition(t *testing.T) {
	l := newLedger(t)
	productA := l.product("12345")
	productB := l.product("67890")
	l.purchase(productA, testutil.Date(2024, 1, 1), 6, 4)
	l.purchase(productB, testutil.Date(2024, 1, 1), 2)

	delivered := l.sale(productItem(productA, 3))
	_, err := l.transition(&delivered.Items[0], true, false)
	require.NoError(t, err)
	l.sale(productItem(productA, 9), productItem(productB, 1))

	unknown := uuid.New()
	got, err := l.positions().GetStockPosition(l.ctx, []uuid.UUID{productB, productA, unknown, productA})
	require.NoError(t, err)

	assert.Equal(t, []appstock.StockPosition{
		{ProductID: productB, Available: 2, Reserved: 1, NetAvailable: 1, Short: 0},
		{ProductID: productA, Available: 7, Reserved: 9, NetAvailable: 0, Short: 2},
		{ProductID: unknown},
	}, got)
}

func TestPositionService_GetStockPositionEmpty(t *testing.T) {
	l := newLedger(t)
	got, err := l.positions().GetStockPosition(l.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPositionService_FlagSales(t *testing.T) {
	l := newLedger(t)
	productA := l.product("12345")
	productB := l.product("67890")
	l.purchase(productA, testutil.Date(2024, 1, 1), 5)

	early := l.sale(productItem(productA, 5))
	short := l.sale(productItem(productA, 2), productItem(productA, 4), productItem(productB, 1))
	deliveredOnly := l.sale(productItem(productA, 5))
	_, err := l.transition(&deliveredOnly.Items[0], true, false)
	require.NoError(t, err)

	flags, err := l.positions().FlagSales(l.ctx, []uuid.UUID{early.ID, short.ID, deliveredOnly.ID})
	require.NoError(t, err)
	require.Len(t, flags, 3)

	byID := make(map[uuid.UUID]appstock.SaleStockFlag, len(flags))
	for _, f := range flags {
		byID[f.SaleID] = f
	}
	// lot fully consumed by the delivered sale, so nothing is left for pending lines
	assert.True(t, byID[early.ID].ExceedsStock)
	assert.True(t, byID[short.ID].ExceedsStock)
	assert.ElementsMatch(t, []uuid.UUID{productA, productB}, byID[short.ID].ShortProductIDs)
	assert.False(t, byID[deliveredOnly.ID].ExceedsStock)
	assert.Empty(t, byID[deliveredOnly.ID].ShortProductIDs)
}

func TestPositionService_CheckAddToSale(t *testing.T) {
	l := newLedger(t)
	productID := l.product("12345")
	l.purchase(productID, testutil.Date(2024, 1, 1), 5)
	l.sale(productItem(productID, 3))

	ok, err := l.positions().CheckAddToSale(l.ctx, productID, 2)
	require.NoError(t, err)
	assert.False(t, ok.Warning)
	assert.Empty(t, ok.Message)
	assert.Equal(t, 2, ok.NetAvailable)

	warn, err := l.positions().CheckAddToSale(l.ctx, productID, 3)
	require.NoError(t, err)
	assert.True(t, warn.Warning)
	assert.Equal(t, 3, warn.Requested)
	assert.Contains(t, warn.Message, "only 2 unit(s) available")
}

func TestPositionService_CheckAddToSaleRejectsNilProduct(t *testing.T) {
	l := newLedger(t)

	var (
		check *appstock.AddToSaleCheck
		err   error
	)
	assert.NotPanics(t, func() {
		check, err = l.positions().CheckAddToSale(l.ctx, uuid.Nil, 1)
	})
	assert.Nil(t, check)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestPositionService_ExportPositionsXLSX(t *testing.T) {
	l := newLedger(t)
	productID := l.product("12345")
	l.purchase(productID, testutil.Date(2024, 1, 1), 5)
	l.sale(productItem(productID, 7))

	var buf bytes.Buffer
	require.NoError(t, l.positions().ExportPositionsXLSX(l.ctx, []uuid.UUID{productID}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Stock")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Product ID", "Available", "Reserved", "Net available", "Short"}, rows[0])
	assert.Equal(t, []string{productID.String(), "5", "7", "0", "2"}, rows[1])
}
