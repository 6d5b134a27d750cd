package models

import (
	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate.
// Amounts are derived from items and have no columns.
type SaleModel struct {
	AggregateModel
	CustomerName string          `gorm:"type:varchar(200);not null;index"`
	Seller       string          `gorm:"type:varchar(100);index"`
	Notes        string          `gorm:"type:text"`
	Installments *int            `gorm:"type:integer"`
	Items        []SaleItemModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale
func (m *SaleModel) ToDomain() *sales.Sale {
	s := &sales.Sale{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		CustomerName:      m.CustomerName,
		Seller:            m.Seller,
		Notes:             m.Notes,
		Installments:      m.Installments,
		Items:             make([]sales.SaleItem, len(m.Items)),
	}
	for i := range m.Items {
		s.Items[i] = *m.Items[i].ToDomain()
	}
	return s
}

// SaleModelFromDomain creates a persistence model from a domain Sale
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{
		CustomerName: s.CustomerName,
		Seller:       s.Seller,
		Notes:        s.Notes,
		Installments: s.Installments,
		Items:        make([]SaleItemModel, len(s.Items)),
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	for i := range s.Items {
		m.Items[i] = *SaleItemModelFromDomain(&s.Items[i])
	}
	return m
}

// SaleItemModel is the persistence model for a sale item.
type SaleItemModel struct {
	BaseModel
	SaleID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID        *uuid.UUID      `gorm:"type:uuid;index"`
	ManualName       string          `gorm:"type:varchar(255)"`
	Quantity         int             `gorm:"not null"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Fulfillment      string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	Paid             bool            `gorm:"not null;default:false"`
	ConsumedQuantity *int            `gorm:"type:integer"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// ToDomain converts the persistence model to a domain SaleItem
func (m *SaleItemModel) ToDomain() *sales.SaleItem {
	return &sales.SaleItem{
		BaseEntity:       m.BaseModel.ToDomain(),
		SaleID:           m.SaleID,
		ProductID:        m.ProductID,
		ManualName:       m.ManualName,
		Quantity:         m.Quantity,
		UnitPrice:        m.UnitPrice,
		Fulfillment:      sales.FulfillmentState(m.Fulfillment),
		Paid:             m.Paid,
		ConsumedQuantity: m.ConsumedQuantity,
	}
}

// SaleItemModelFromDomain creates a persistence model from a domain SaleItem
func SaleItemModelFromDomain(i *sales.SaleItem) *SaleItemModel {
	m := &SaleItemModel{
		SaleID:           i.SaleID,
		ProductID:        i.ProductID,
		ManualName:       i.ManualName,
		Quantity:         i.Quantity,
		UnitPrice:        i.UnitPrice,
		Fulfillment:      string(i.Fulfillment),
		Paid:             i.Paid,
		ConsumedQuantity: i.ConsumedQuantity,
	}
	m.FromDomainBaseEntity(i.BaseEntity)
	return m
}
