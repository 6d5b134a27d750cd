package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductCatalog reads the products table owned by the catalog
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// Exists reports whether a product with the given ID exists
func (c *GormProductCatalog) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindIDByCode returns the oldest product carrying the code, or nil
func (c *GormProductCatalog) FindIDByCode(ctx context.Context, code string) (*uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var m models.ProductModel
	err := c.db.WithContext(ctx).
		Select("id").
		Where("code = ?", code).
		Order("created_at ASC, id ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m.ID, nil
}

var _ stock.ProductCatalog = (*GormProductCatalog)(nil)
