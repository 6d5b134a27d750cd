package sales

import (
	"time"

	"github.com/google/uuid"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// CreateSaleRequest is the input to CreateSale
type CreateSaleRequest struct {
	CustomerName string
	Seller       string
	Notes        string
	Installments *int
	Items        []CreateItemRequest
	Force        bool
}

// CreateItemRequest describes one line of a new sale
type CreateItemRequest struct {
	ProductID  *uuid.UUID
	ManualName string
	Quantity   int
	UnitPrice  decimal.Decimal
	Delivered  bool
	Paid       bool
}

// ItemUpdate carries the desired flags of an existing item
type ItemUpdate struct {
	ID        uuid.UUID
	Delivered *bool
	Paid      *bool
}

// SaleResponse represents a sale with its derived amounts
type SaleResponse struct {
	ID              uuid.UUID          `json:"id"`
	CustomerName    string             `json:"customer_name"`
	Seller          string             `json:"seller"`
	Notes           string             `json:"notes"`
	Installments    *int               `json:"installments"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	DeliveredAmount decimal.Decimal    `json:"delivered_amount"`
	PaidAmount      decimal.Decimal    `json:"paid_amount"`
	PendingAmount   decimal.Decimal    `json:"pending_amount"`
	Items           []SaleItemResponse `json:"items"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// SaleItemResponse represents a sale item
type SaleItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        *uuid.UUID      `json:"product_id"`
	ManualName       string          `json:"manual_name,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Delivered        bool            `json:"delivered"`
	Paid             bool            `json:"paid"`
	ConsumedQuantity *int            `json:"consumed_quantity,omitempty"`
}

// SaleMutationResponse is returned by operations that may move stock
type SaleMutationResponse struct {
	Sale        *SaleResponse                `json:"sale,omitempty"`
	Transitions []*appstock.TransitionResult `json:"transitions"`
}

// HasDiscrepancies reports whether any transition was forced through
func (r *SaleMutationResponse) HasDiscrepancies() bool {
	for _, t := range r.Transitions {
		if t.NeedsAttention() {
			return true
		}
	}
	return false
}

// ToSaleResponse converts a domain sale to a response
func ToSaleResponse(s *sales.Sale) SaleResponse {
	resp := SaleResponse{
		ID:              s.ID,
		CustomerName:    s.CustomerName,
		Seller:          s.Seller,
		Notes:           s.Notes,
		Installments:    s.Installments,
		TotalAmount:     s.TotalAmount(),
		DeliveredAmount: s.DeliveredAmount(),
		PaidAmount:      s.PaidAmount(),
		PendingAmount:   s.PendingPaymentAmount(),
		Items:           make([]SaleItemResponse, 0, len(s.Items)),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		Version:         s.Version,
	}
	for i := range s.Items {
		resp.Items = append(resp.Items, ToSaleItemResponse(&s.Items[i]))
	}
	return resp
}

// ToSaleItemResponse converts a domain sale item to a response
func ToSaleItemResponse(i *sales.SaleItem) SaleItemResponse {
	return SaleItemResponse{
		ID:               i.ID,
		ProductID:        i.ProductID,
		ManualName:       i.ManualName,
		Quantity:         i.Quantity,
		UnitPrice:        i.UnitPrice,
		Subtotal:         i.Subtotal(),
		Delivered:        i.IsDelivered(),
		Paid:             i.Paid,
		ConsumedQuantity: i.ConsumedQuantity,
	}
}
