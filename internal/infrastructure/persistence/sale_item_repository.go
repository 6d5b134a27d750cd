package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSaleItemRepository implements sales.SaleItemRepository using GORM
type GormSaleItemRepository struct {
	db *gorm.DB
}

// NewGormSaleItemRepository creates a new GormSaleItemRepository
func NewGormSaleItemRepository(db *gorm.DB) *GormSaleItemRepository {
	return &GormSaleItemRepository{db: db}
}

// Create inserts a new item
func (r *GormSaleItemRepository) Create(ctx context.Context, item *sales.SaleItem) error {
	return r.db.WithContext(ctx).Create(models.SaleItemModelFromDomain(item)).Error
}

// FindByID finds an item by its ID
func (r *GormSaleItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.SaleItem, error) {
	var m models.SaleItemModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save updates the fulfillment, paid and consumption fields of an item
func (r *GormSaleItemRepository) Save(ctx context.Context, item *sales.SaleItem) error {
	result := r.db.WithContext(ctx).
		Model(&models.SaleItemModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"fulfillment":       string(item.Fulfillment),
			"paid":              item.Paid,
			"consumed_quantity": item.ConsumedQuantity,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an item
func (r *GormSaleItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SaleItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindDeliveredWithProduct returns delivered product lines ordered by sale
// ID then item ID, which is creation order for UUIDv7 keys
func (r *GormSaleItemRepository) FindDeliveredWithProduct(ctx context.Context) ([]sales.SaleItem, error) {
	var ms []models.SaleItemModel
	if err := r.db.WithContext(ctx).
		Where("fulfillment = ? AND product_id IS NOT NULL", string(sales.FulfillmentDelivered)).
		Order("sale_id ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]sales.SaleItem, 0, len(ms))
	for i := range ms {
		out = append(out, *ms[i].ToDomain())
	}
	return out, nil
}

// DeliveredProductIDs returns the distinct product IDs of delivered lines
func (r *GormSaleItemRepository) DeliveredProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SaleItemModel{}).
		Where("fulfillment = ? AND product_id IS NOT NULL", string(sales.FulfillmentDelivered)).
		Distinct("product_id").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SumPendingByProducts returns Σ quantity of undelivered lines per product
func (r *GormSaleItemRepository) SumPendingByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []productSum
	if err := r.db.WithContext(ctx).
		Model(&models.SaleItemModel{}).
		Select("product_id, CAST(COALESCE(SUM(quantity), 0) AS BIGINT) AS total").
		Where("fulfillment = ? AND product_id IN ?", string(sales.FulfillmentPending), productIDs).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

var _ sales.SaleItemRepository = (*GormSaleItemRepository)(nil)
