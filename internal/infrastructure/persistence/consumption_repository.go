package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormConsumptionRepository implements stock.ConsumptionRepository using GORM
type GormConsumptionRepository struct {
	db *gorm.DB
}

// NewGormConsumptionRepository creates a new GormConsumptionRepository
func NewGormConsumptionRepository(db *gorm.DB) *GormConsumptionRepository {
	return &GormConsumptionRepository{db: db}
}

// CreateBatch inserts consumption records in batches of 200
func (r *GormConsumptionRepository) CreateBatch(ctx context.Context, consumptions []stock.Consumption) error {
	if len(consumptions) == 0 {
		return nil
	}
	ms := make([]*models.ConsumptionModel, 0, len(consumptions))
	for i := range consumptions {
		ms = append(ms, models.ConsumptionModelFromDomain(&consumptions[i]))
	}
	return r.db.WithContext(ctx).CreateInBatches(ms, 200).Error
}

// FindBySaleItem returns an item's consumptions ordered by sequence
func (r *GormConsumptionRepository) FindBySaleItem(ctx context.Context, saleItemID uuid.UUID) ([]stock.Consumption, error) {
	var ms []models.ConsumptionModel
	if err := r.db.WithContext(ctx).
		Where("sale_item_id = ?", saleItemID).
		Order("sequence ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]stock.Consumption, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToDomain())
	}
	return out, nil
}

type lotSum struct {
	LotID uuid.UUID
	Total int
}

// SumByLots returns the units attributed to each lot across all items
func (r *GormConsumptionRepository) SumByLots(ctx context.Context, lotIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(lotIDs))
	if len(lotIDs) == 0 {
		return out, nil
	}
	var rows []lotSum
	if err := r.db.WithContext(ctx).
		Model(&models.ConsumptionModel{}).
		Select("lot_id, CAST(COALESCE(SUM(quantity), 0) AS BIGINT) AS total").
		Where("lot_id IN ?", lotIDs).
		Group("lot_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.LotID] = row.Total
	}
	return out, nil
}

// DeleteBySaleItem removes an item's consumptions
func (r *GormConsumptionRepository) DeleteBySaleItem(ctx context.Context, saleItemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("sale_item_id = ?", saleItemID).
		Delete(&models.ConsumptionModel{}).Error
}

// DeleteAll removes every consumption record
func (r *GormConsumptionRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.ConsumptionModel{})
	return result.RowsAffected, result.Error
}

var _ stock.ConsumptionRepository = (*GormConsumptionRepository)(nil)
