package sales

import (
	"context"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
)

// SaleRepository persists sales with their items
type SaleRepository interface {
	// Create inserts a sale with its items
	Create(ctx context.Context, sale *Sale) error

	// FindByID loads a sale with items ordered by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByIDForUpdate loads a sale and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindAll lists sales with items
	FindAll(ctx context.Context, filter shared.Filter) ([]*Sale, int64, error)

	// FindByIDs loads the given sales with items
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Sale, error)

	// UpdateHeader saves header fields and bumps the version
	UpdateHeader(ctx context.Context, sale *Sale) error

	// Delete removes a sale and its items
	Delete(ctx context.Context, id uuid.UUID) error
}

// SaleItemRepository persists sale items
type SaleItemRepository interface {
	// Create inserts a new item
	Create(ctx context.Context, item *SaleItem) error

	// FindByID finds an item
	FindByID(ctx context.Context, id uuid.UUID) (*SaleItem, error)

	// Save updates the flags of an item
	Save(ctx context.Context, item *SaleItem) error

	// Delete removes an item
	Delete(ctx context.Context, id uuid.UUID) error

	// FindDeliveredWithProduct returns delivered product lines ordered by
	// sale ID then item ID
	FindDeliveredWithProduct(ctx context.Context) ([]SaleItem, error)

	// DeliveredProductIDs returns the distinct products of delivered lines
	DeliveredProductIDs(ctx context.Context) ([]uuid.UUID, error)

	// SumPendingByProducts returns Σ quantity of undelivered lines per product
	SumPendingByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
}
