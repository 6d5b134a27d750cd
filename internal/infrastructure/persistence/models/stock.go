package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// ProductModel is the slice of the catalog's products table this service reads.
type ProductModel struct {
	BaseModel
	Code string `gorm:"type:varchar(64);index"`
	Name string `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// PurchaseModel is the persistence model for the Purchase aggregate.
type PurchaseModel struct {
	AggregateModel
	Supplier     string         `gorm:"type:varchar(200);not null"`
	PurchaseDate time.Time      `gorm:"type:date;not null;index"`
	Notes        string         `gorm:"type:text"`
	Lots         []LotModel     `gorm:"foreignKey:PurchaseID;references:ID"`
	Payments     []PaymentModel `gorm:"foreignKey:PurchaseID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseModel) TableName() string {
	return "purchases"
}

// ToDomain converts the persistence model to a domain Purchase
func (m *PurchaseModel) ToDomain() *stock.Purchase {
	p := &stock.Purchase{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Supplier:          m.Supplier,
		PurchaseDate:      m.PurchaseDate,
		Notes:             m.Notes,
		Lots:              make([]stock.Lot, len(m.Lots)),
		Payments:          make([]stock.Payment, len(m.Payments)),
	}
	for i := range m.Lots {
		p.Lots[i] = *m.Lots[i].ToDomain()
	}
	for i := range m.Payments {
		p.Payments[i] = *m.Payments[i].ToDomain()
	}
	return p
}

// PurchaseModelFromDomain creates a persistence model from a domain Purchase
func PurchaseModelFromDomain(p *stock.Purchase) *PurchaseModel {
	m := &PurchaseModel{
		Supplier:     p.Supplier,
		PurchaseDate: p.PurchaseDate,
		Notes:        p.Notes,
		Lots:         make([]LotModel, len(p.Lots)),
		Payments:     make([]PaymentModel, len(p.Payments)),
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	for i := range p.Lots {
		m.Lots[i] = *LotModelFromDomain(&p.Lots[i])
	}
	for i := range p.Payments {
		m.Payments[i] = *PaymentModelFromDomain(&p.Payments[i])
	}
	return m
}

// LotModel is the persistence model for a stock lot.
type LotModel struct {
	BaseModel
	PurchaseID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID    *uuid.UUID      `gorm:"type:uuid;index"`
	Description  string          `gorm:"type:varchar(500)"`
	Code         string          `gorm:"type:varchar(64);index"`
	PurchaseDate time.Time       `gorm:"type:date;not null;index"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Quantity     int             `gorm:"not null"`
	OutQuantity  int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "stock_lots"
}

// ToDomain converts the persistence model to a domain Lot
func (m *LotModel) ToDomain() *stock.Lot {
	return &stock.Lot{
		BaseEntity:   m.BaseModel.ToDomain(),
		PurchaseID:   m.PurchaseID,
		ProductID:    m.ProductID,
		Description:  m.Description,
		Code:         m.Code,
		PurchaseDate: m.PurchaseDate,
		UnitPrice:    m.UnitPrice,
		Quantity:     m.Quantity,
		OutQuantity:  m.OutQuantity,
	}
}

// LotModelFromDomain creates a persistence model from a domain Lot
func LotModelFromDomain(l *stock.Lot) *LotModel {
	m := &LotModel{
		PurchaseID:   l.PurchaseID,
		ProductID:    l.ProductID,
		Description:  l.Description,
		Code:         l.Code,
		PurchaseDate: l.PurchaseDate,
		UnitPrice:    l.UnitPrice,
		Quantity:     l.Quantity,
		OutQuantity:  l.OutQuantity,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// PaymentModel is the persistence model for a purchase payment.
type PaymentModel struct {
	BaseModel
	PurchaseID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Payer      string          `gorm:"type:varchar(100);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method     string          `gorm:"type:varchar(50);not null"`
	PaidAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "purchase_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *stock.Payment {
	return &stock.Payment{
		BaseEntity: m.BaseModel.ToDomain(),
		PurchaseID: m.PurchaseID,
		Payer:      m.Payer,
		Amount:     m.Amount,
		Method:     m.Method,
		PaidAt:     m.PaidAt,
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment
func PaymentModelFromDomain(p *stock.Payment) *PaymentModel {
	m := &PaymentModel{
		PurchaseID: p.PurchaseID,
		Payer:      p.Payer,
		Amount:     p.Amount,
		Method:     p.Method,
		PaidAt:     p.PaidAt,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ConsumptionModel attributes units of a lot to a sale item.
type ConsumptionModel struct {
	BaseModel
	SaleItemID uuid.UUID `gorm:"type:uuid;not null;index"`
	LotID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Quantity   int       `gorm:"not null"`
	Sequence   int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConsumptionModel) TableName() string {
	return "stock_consumptions"
}

// ToDomain converts the persistence model to a domain Consumption
func (m *ConsumptionModel) ToDomain() stock.Consumption {
	return stock.Consumption{
		BaseEntity: m.BaseModel.ToDomain(),
		SaleItemID: m.SaleItemID,
		LotID:      m.LotID,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		Sequence:   m.Sequence,
	}
}

// ConsumptionModelFromDomain creates a persistence model from a domain Consumption
func ConsumptionModelFromDomain(c *stock.Consumption) *ConsumptionModel {
	m := &ConsumptionModel{
		SaleItemID: c.SaleItemID,
		LotID:      c.LotID,
		ProductID:  c.ProductID,
		Quantity:   c.Quantity,
		Sequence:   c.Sequence,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}
