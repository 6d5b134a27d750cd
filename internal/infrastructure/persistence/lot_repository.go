package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLotRepository implements stock.LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

const fifoOrder = "purchase_date ASC, id ASC"

// Create inserts a new lot
func (r *GormLotRepository) Create(ctx context.Context, lot *stock.Lot) error {
	return r.db.WithContext(ctx).Create(models.LotModelFromDomain(lot)).Error
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Lot, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a lot and locks its row
func (r *GormLotRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.Lot, error) {
	return r.findOne(r.forUpdate(ctx), id)
}

func (r *GormLotRepository) findOne(db *gorm.DB, id uuid.UUID) (*stock.Lot, error) {
	var m models.LotModel
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDsForUpdate locks and returns the given lots ordered by ID
func (r *GormLotRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*stock.Lot, error) {
	if len(ids) == 0 {
		return []*stock.Lot{}, nil
	}
	var ms []models.LotModel
	if err := r.forUpdate(ctx).Where("id IN ?", ids).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainLots(ms), nil
}

// FindByProduct lists lots linked to a product, oldest first
func (r *GormLotRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*stock.Lot, error) {
	var ms []models.LotModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order(fifoOrder).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainLots(ms), nil
}

// FindByProductForUpdate lists and locks lots linked to a product
func (r *GormLotRepository) FindByProductForUpdate(ctx context.Context, productID uuid.UUID) ([]*stock.Lot, error) {
	var ms []models.LotModel
	if err := r.forUpdate(ctx).
		Where("product_id = ?", productID).
		Order(fifoOrder).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainLots(ms), nil
}

// FindByPurchase lists the lots of a purchase
func (r *GormLotRepository) FindByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]*stock.Lot, error) {
	var ms []models.LotModel
	if err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainLots(ms), nil
}

// FindAllLinkedForUpdate locks and returns every lot linked to a product
func (r *GormLotRepository) FindAllLinkedForUpdate(ctx context.Context) ([]*stock.Lot, error) {
	var ms []models.LotModel
	if err := r.forUpdate(ctx).
		Where("product_id IS NOT NULL").
		Order("product_id ASC, " + fifoOrder).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainLots(ms), nil
}

// LinkedProductIDs returns the distinct product IDs referenced by lots
func (r *GormLotRepository) LinkedProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("product_id IS NOT NULL").
		Distinct("product_id").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateProductLink sets or clears product_id without touching out_quantity
func (r *GormLotRepository) UpdateProductLink(ctx context.Context, id uuid.UUID, productID *uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ?", id).
		Update("product_id", productID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ApplyOutDelta atomically adds delta to out_quantity. The WHERE clause
// guards 0 <= out_quantity + delta <= quantity; a miss is reported as a
// bound violation, or as not found if the lot does not exist.
func (r *GormLotRepository) ApplyOutDelta(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND out_quantity + ? >= 0 AND out_quantity + ? <= quantity", id, delta, delta).
		Update("out_quantity", gorm.Expr("out_quantity + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return shared.ErrLotBoundViolation.WithDetails(map[string]any{
			"lot_id": id.String(),
			"delta":  delta,
		})
	}
	return nil
}

// ResetAllConsumption sets out_quantity to 0 on every lot
func (r *GormLotRepository) ResetAllConsumption(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("out_quantity <> 0").
		Update("out_quantity", 0)
	return result.RowsAffected, result.Error
}

// SaveConsumption persists out_quantity of a lot loaded under lock
func (r *GormLotRepository) SaveConsumption(ctx context.Context, lot *stock.Lot) error {
	if lot.OutQuantity < 0 || lot.OutQuantity > lot.Quantity {
		return shared.ErrLotBoundViolation.WithDetails(map[string]any{"lot_id": lot.ID.String()})
	}
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ?", lot.ID).
		Updates(map[string]any{
			"out_quantity": lot.OutQuantity,
			"updated_at":   lot.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type productSum struct {
	ProductID uuid.UUID
	Total     int
}

// SumAvailableByProducts returns Σ(quantity - out_quantity) per product
func (r *GormLotRepository) SumAvailableByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []productSum
	if err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Select("product_id, CAST(COALESCE(SUM(quantity - out_quantity), 0) AS BIGINT) AS total").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

func (r *GormLotRepository) forUpdate(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func toDomainLots(ms []models.LotModel) []*stock.Lot {
	lots := make([]*stock.Lot, 0, len(ms))
	for i := range ms {
		lots = append(lots, ms[i].ToDomain())
	}
	return lots
}

var _ stock.LotRepository = (*GormLotRepository)(nil)
