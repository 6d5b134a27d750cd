package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPurchaseRepository implements stock.PurchaseRepository using GORM
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewGormPurchaseRepository creates a new GormPurchaseRepository
func NewGormPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// Create inserts a purchase together with its lots and payments
func (r *GormPurchaseRepository) Create(ctx context.Context, purchase *stock.Purchase) error {
	return r.db.WithContext(ctx).Create(models.PurchaseModelFromDomain(purchase)).Error
}

// FindByID loads a purchase with lots and payments
func (r *GormPurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Purchase, error) {
	var m models.PurchaseModel
	if err := r.withChildren(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists purchases matching the filter. Search matches the supplier.
func (r *GormPurchaseRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*stock.Purchase, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PurchaseModel{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(supplier) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.PurchaseModel
	if err := applyPaging(query, filter, PurchaseSortFields).
		Preload("Lots", orderByCreation).
		Preload("Payments", orderByCreation).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	purchases := make([]*stock.Purchase, 0, len(ms))
	for i := range ms {
		purchases = append(purchases, ms[i].ToDomain())
	}
	return purchases, total, nil
}

func (r *GormPurchaseRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lots", orderByCreation).
		Preload("Payments", orderByCreation)
}

func orderByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

var _ stock.PurchaseRepository = (*GormPurchaseRepository)(nil)
