package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
)

// LotRepository is the Lot Store.
//
// Methods ending in ForUpdate take row locks and must be called inside a
// transaction. ApplyOutDelta is the only write path for out_quantity
// besides ResetAllConsumption and Save of a lot loaded under lock.
type LotRepository interface {
	// Create inserts a new lot
	Create(ctx context.Context, lot *Lot) error

	// FindByID finds a lot by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindByIDForUpdate finds a lot and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindByIDsForUpdate locks and returns the given lots, missing ones are skipped
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*Lot, error)

	// FindByProduct lists lots linked to a product, oldest first
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]*Lot, error)

	// FindByProductForUpdate lists and locks lots linked to a product
	FindByProductForUpdate(ctx context.Context, productID uuid.UUID) ([]*Lot, error)

	// FindByPurchase lists the lots of a purchase
	FindByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]*Lot, error)

	// FindAllLinkedForUpdate locks and returns every lot linked to a product
	FindAllLinkedForUpdate(ctx context.Context) ([]*Lot, error)

	// UpdateProductLink sets or clears product_id without touching out_quantity
	UpdateProductLink(ctx context.Context, id uuid.UUID, productID *uuid.UUID) error

	// LinkedProductIDs returns the distinct products that have at least one lot
	LinkedProductIDs(ctx context.Context) ([]uuid.UUID, error)

	// ApplyOutDelta atomically adds delta to out_quantity, rejecting
	// the update if the result leaves [0, quantity]
	ApplyOutDelta(ctx context.Context, id uuid.UUID, delta int) error

	// ResetAllConsumption sets out_quantity to 0 on every lot
	ResetAllConsumption(ctx context.Context) (int64, error)

	// SaveConsumption persists out_quantity of a lot loaded under lock
	SaveConsumption(ctx context.Context, lot *Lot) error

	// SumAvailableByProducts returns Σ(quantity - out_quantity) per product
	SumAvailableByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// PurchaseRepository persists purchases together with their lots and payments
type PurchaseRepository interface {
	// Create inserts a purchase with its lots and payments
	Create(ctx context.Context, purchase *Purchase) error

	// FindByID loads a purchase with lots and payments
	FindByID(ctx context.Context, id uuid.UUID) (*Purchase, error)

	// FindAll lists purchases, newest first by default
	FindAll(ctx context.Context, filter shared.Filter) ([]*Purchase, int64, error)
}

// PaymentRepository persists purchase payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConsumptionRepository persists lot attributions per sale item
type ConsumptionRepository interface {
	// CreateBatch inserts consumption records
	CreateBatch(ctx context.Context, consumptions []Consumption) error

	// FindBySaleItem returns an item's consumptions ordered by sequence
	FindBySaleItem(ctx context.Context, saleItemID uuid.UUID) ([]Consumption, error)

	// SumByLots returns the units attributed to each lot across all items
	SumByLots(ctx context.Context, lotIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// DeleteBySaleItem removes an item's consumptions
	DeleteBySaleItem(ctx context.Context, saleItemID uuid.UUID) error

	// DeleteAll removes every consumption record
	DeleteAll(ctx context.Context) (int64, error)
}

// ProductCatalog is the read-only view of the product catalog this
// subsystem needs. Products are owned elsewhere.
type ProductCatalog interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindIDByCode(ctx context.Context, code string) (*uuid.UUID, error)
}
