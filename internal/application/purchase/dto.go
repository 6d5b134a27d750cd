package purchase

import (
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// CreatePurchaseRequest is the input to CreatePurchase
type CreatePurchaseRequest struct {
	Supplier     string
	PurchaseDate time.Time
	Notes        string
	Lots         []LotRequest
}

// LotRequest describes one lot of a new purchase
type LotRequest struct {
	ProductID   *uuid.UUID
	Description string
	Code        string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// AddPaymentRequest is the input to AddPayment
type AddPaymentRequest struct {
	Payer  string
	Amount decimal.Decimal
	Method string
	PaidAt time.Time
}

// PurchaseResponse represents a purchase in API responses
type PurchaseResponse struct {
	ID            uuid.UUID         `json:"id"`
	Supplier      string            `json:"supplier"`
	PurchaseDate  time.Time         `json:"purchase_date"`
	Notes         string            `json:"notes"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	PendingAmount decimal.Decimal   `json:"pending_amount"`
	TotalUnits    int               `json:"total_units"`
	Lots          []LotResponse     `json:"lots"`
	Payments      []PaymentResponse `json:"payments"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// LotResponse represents a lot in API responses
type LotResponse struct {
	ID           uuid.UUID       `json:"id"`
	PurchaseID   uuid.UUID       `json:"purchase_id"`
	ProductID    *uuid.UUID      `json:"product_id"`
	Description  string          `json:"description"`
	Code         string          `json:"code"`
	PurchaseDate time.Time       `json:"purchase_date"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	OutQuantity  int             `json:"out_quantity"`
	Available    int             `json:"available"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID         uuid.UUID       `json:"id"`
	PurchaseID uuid.UUID       `json:"purchase_id"`
	Payer      string          `json:"payer"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	PaidAt     time.Time       `json:"paid_at"`
}

// ToPurchaseResponse converts a domain purchase to a response
func ToPurchaseResponse(p *stock.Purchase) PurchaseResponse {
	resp := PurchaseResponse{
		ID:            p.ID,
		Supplier:      p.Supplier,
		PurchaseDate:  p.PurchaseDate,
		Notes:         p.Notes,
		TotalAmount:   p.TotalAmount(),
		PaidAmount:    p.PaidAmount(),
		PendingAmount: p.PendingAmount(),
		TotalUnits:    p.TotalUnits(),
		Lots:          make([]LotResponse, 0, len(p.Lots)),
		Payments:      make([]PaymentResponse, 0, len(p.Payments)),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	for i := range p.Lots {
		resp.Lots = append(resp.Lots, ToLotResponse(&p.Lots[i]))
	}
	for i := range p.Payments {
		resp.Payments = append(resp.Payments, ToPaymentResponse(&p.Payments[i]))
	}
	return resp
}

// ToLotResponse converts a domain lot to a response
func ToLotResponse(l *stock.Lot) LotResponse {
	return LotResponse{
		ID:           l.ID,
		PurchaseID:   l.PurchaseID,
		ProductID:    l.ProductID,
		Description:  l.Description,
		Code:         l.Code,
		PurchaseDate: l.PurchaseDate,
		UnitPrice:    l.UnitPrice,
		Quantity:     l.Quantity,
		OutQuantity:  l.OutQuantity,
		Available:    l.Available(),
		TotalAmount:  l.TotalAmount(),
	}
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *stock.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		PurchaseID: p.PurchaseID,
		Payer:      p.Payer,
		Amount:     p.Amount,
		Method:     p.Method,
		PaidAt:     p.PaidAt,
	}
}
