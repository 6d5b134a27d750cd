package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleRepository implements sales.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// Create inserts a sale with its items
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	return r.db.WithContext(ctx).Create(models.SaleModelFromDomain(sale)).Error
}

// FindByID loads a sale with items ordered by ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a sale and locks its row
func (r *GormSaleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormSaleRepository) findOne(db *gorm.DB, id uuid.UUID) (*sales.Sale, error) {
	var m models.SaleModel
	if err := db.Preload("Items", orderByID).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists sales with items. Search matches customer or seller.
func (r *GormSaleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*sales.Sale, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.SaleModel{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(customer_name) LIKE ? OR LOWER(seller) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.SaleModel
	if err := applyPaging(query, filter, SaleSortFields).
		Preload("Items", orderByID).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}
	return toDomainSales(ms), total, nil
}

// FindByIDs loads the given sales with items
func (r *GormSaleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*sales.Sale, error) {
	if len(ids) == 0 {
		return []*sales.Sale{}, nil
	}
	var ms []models.SaleModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderByID).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainSales(ms), nil
}

// UpdateHeader saves header fields and the version
func (r *GormSaleRepository) UpdateHeader(ctx context.Context, sale *sales.Sale) error {
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ?", sale.ID).
		Updates(map[string]any{
			"customer_name": sale.CustomerName,
			"seller":        sale.Seller,
			"notes":         sale.Notes,
			"installments":  sale.Installments,
			"version":       sale.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a sale and its items
func (r *GormSaleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("sale_id = ?", id).Delete(&models.SaleItemModel{}).Error; err != nil {
		return err
	}
	result := db.Delete(&models.SaleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func toDomainSales(ms []models.SaleModel) []*sales.Sale {
	out := make([]*sales.Sale, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToDomain())
	}
	return out
}

var _ sales.SaleRepository = (*GormSaleRepository)(nil)
