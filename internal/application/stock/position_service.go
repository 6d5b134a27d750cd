package stock

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/xuri/excelize/v2"
)

// StockPosition is the derived availability of one product
type StockPosition struct {
	ProductID    uuid.UUID `json:"product_id"`
	Available    int       `json:"available"`
	Reserved     int       `json:"reserved"`
	NetAvailable int       `json:"net_available"`
	Short        int       `json:"short"`
}

// SaleStockFlag marks a sale whose pending lines exceed available stock
type SaleStockFlag struct {
	SaleID          uuid.UUID   `json:"sale_id"`
	ExceedsStock    bool        `json:"exceeds_stock"`
	ShortProductIDs []uuid.UUID `json:"short_product_ids"`
}

// AddToSaleCheck is the advisory shown when adding a product to a sale
type AddToSaleCheck struct {
	StockPosition
	Requested int    `json:"requested"`
	Warning   bool   `json:"warning"`
	Message   string `json:"message,omitempty"`
}

// PositionService answers availability questions. It is read-only and
// always reads current out_quantity; results are never cached.
type PositionService struct {
	lotRepo  stock.LotRepository
	itemRepo sales.SaleItemRepository
	saleRepo sales.SaleRepository
}

// NewPositionService creates a PositionService
func NewPositionService(lotRepo stock.LotRepository, itemRepo sales.SaleItemRepository, saleRepo sales.SaleRepository) *PositionService {
	return &PositionService{lotRepo: lotRepo, itemRepo: itemRepo, saleRepo: saleRepo}
}

// GetStockPosition returns available, reserved and net available per
// product, in the order given. Unknown products report zeros.
func (s *PositionService) GetStockPosition(ctx context.Context, productIDs []uuid.UUID) ([]StockPosition, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) == 0 {
		return []StockPosition{}, nil
	}

	available, err := s.lotRepo.SumAvailableByProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sum available stock: %w", err)
	}
	reserved, err := s.itemRepo.SumPendingByProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sum reserved stock: %w", err)
	}

	positions := make([]StockPosition, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, NewStockPosition(id, available[id], reserved[id]))
	}
	return positions, nil
}

// NewStockPosition derives net availability from available and reserved
func NewStockPosition(productID uuid.UUID, available, reserved int) StockPosition {
	return StockPosition{
		ProductID:    productID,
		Available:    available,
		Reserved:     reserved,
		NetAvailable: max(0, available-reserved),
		Short:        max(0, reserved-available),
	}
}

// FlagSales reports, per sale, whether any pending product line asks for
// more than the product's available stock.
func (s *PositionService) FlagSales(ctx context.Context, saleIDs []uuid.UUID) ([]SaleStockFlag, error) {
	ids := uniqueIDs(saleIDs)
	if len(ids) == 0 {
		return []SaleStockFlag{}, nil
	}
	found, err := s.saleRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	pendingBySale := make(map[uuid.UUID]map[uuid.UUID]int, len(found))
	productIDs := make([]uuid.UUID, 0)
	for _, sale := range found {
		pending := sale.PendingProductQuantities()
		pendingBySale[sale.ID] = pending
		for pid := range pending {
			productIDs = append(productIDs, pid)
		}
	}
	available, err := s.lotRepo.SumAvailableByProducts(ctx, uniqueIDs(productIDs))
	if err != nil {
		return nil, fmt.Errorf("sum available stock: %w", err)
	}

	flags := make([]SaleStockFlag, 0, len(ids))
	for _, id := range ids {
		flag := SaleStockFlag{SaleID: id, ShortProductIDs: []uuid.UUID{}}
		for pid, qty := range pendingBySale[id] {
			if qty > available[pid] {
				flag.ShortProductIDs = append(flag.ShortProductIDs, pid)
			}
		}
		slices.SortFunc(flag.ShortProductIDs, compareIDs)
		flag.ExceedsStock = len(flag.ShortProductIDs) > 0
		flags = append(flags, flag)
	}
	return flags, nil
}

// CheckAddToSale warns when quantity more units of a product would exceed
// what is left after existing reservations.
func (s *PositionService) CheckAddToSale(ctx context.Context, productID uuid.UUID, quantity int) (*AddToSaleCheck, error) {
	if productID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithDetails(map[string]any{"product_id": "required"})
	}
	positions, err := s.GetStockPosition(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, shared.ErrInvalidInput
	}
	check := &AddToSaleCheck{StockPosition: positions[0], Requested: quantity}
	if quantity > check.NetAvailable {
		check.Warning = true
		check.Message = fmt.Sprintf("only %d unit(s) available after reservations, %d requested", check.NetAvailable, quantity)
	}
	return check, nil
}

var positionHeaders = []string{"Product ID", "Available", "Reserved", "Net available", "Short"}

// ExportPositionsXLSX writes the stock positions of productIDs as a spreadsheet
func (s *PositionService) ExportPositionsXLSX(ctx context.Context, productIDs []uuid.UUID, w io.Writer) error {
	positions, err := s.GetStockPosition(ctx, productIDs)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Stock"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for col, h := range positionHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, p := range positions {
		row := []any{p.ProductID.String(), p.Available, p.Reserved, p.NetAvailable, p.Short}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
