package sales

import (
	"strings"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Sale is one customer transaction. Amounts are derived from the items on
// every read and never stored.
type Sale struct {
	shared.BaseAggregateRoot
	CustomerName string
	Seller       string
	Notes        string
	Installments *int
	Items        []SaleItem
}

// SaleHeader carries the editable sale fields
type SaleHeader struct {
	CustomerName string
	Seller       string
	Notes        string
	Installments *int
}

// NewSale creates a sale with the given items, all pending delivery
func NewSale(header SaleHeader, items []ItemInput) (*Sale, error) {
	customer := strings.TrimSpace(header.CustomerName)
	if customer == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Customer name cannot be empty")
	}
	if header.Installments != nil && *header.Installments < 1 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Installments must be at least 1")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Sale must have at least one item")
	}

	sale := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerName:      customer,
		Seller:            strings.TrimSpace(header.Seller),
		Notes:             strings.TrimSpace(header.Notes),
		Installments:      header.Installments,
		Items:             make([]SaleItem, 0, len(items)),
	}
	for _, in := range items {
		if _, err := sale.AddItem(in); err != nil {
			return nil, err
		}
	}
	return sale, nil
}

// AddItem appends a pending item to the sale
func (s *Sale) AddItem(in ItemInput) (*SaleItem, error) {
	item, err := NewSaleItem(s.ID, in)
	if err != nil {
		return nil, err
	}
	s.Items = append(s.Items, *item)
	s.Touch()
	return &s.Items[len(s.Items)-1], nil
}

// Item returns the item with the given ID
func (s *Sale) Item(id uuid.UUID) (*SaleItem, error) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], nil
		}
	}
	return nil, shared.ErrNotFound.WithDetails(map[string]any{"sale_item_id": id.String()})
}

// RemoveItem drops an item from the sale
func (s *Sale) RemoveItem(id uuid.UUID) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			s.Touch()
			return
		}
	}
}

// TotalAmount is Σ quantity * unit price
func (s *Sale) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Items {
		total = total.Add(s.Items[i].Subtotal())
	}
	return total
}

// DeliveredAmount sums the subtotal of delivered items
func (s *Sale) DeliveredAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Items {
		if s.Items[i].IsDelivered() {
			total = total.Add(s.Items[i].Subtotal())
		}
	}
	return total
}

// PaidAmount sums the subtotal of paid items
func (s *Sale) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Items {
		if s.Items[i].Paid {
			total = total.Add(s.Items[i].Subtotal())
		}
	}
	return total
}

// PendingPaymentAmount is total minus paid
func (s *Sale) PendingPaymentAmount() decimal.Decimal {
	return s.TotalAmount().Sub(s.PaidAmount())
}

// HasDeliveredItems reports whether any item is delivered
func (s *Sale) HasDeliveredItems() bool {
	for i := range s.Items {
		if s.Items[i].IsDelivered() {
			return true
		}
	}
	return false
}

// PendingProductQuantities sums undelivered quantity per referenced product
func (s *Sale) PendingProductQuantities() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for i := range s.Items {
		item := &s.Items[i]
		if item.ConsumesStock() && !item.IsDelivered() {
			out[*item.ProductID] += item.Quantity
		}
	}
	return out
}

// UpdateHeader replaces the editable header fields
func (s *Sale) UpdateHeader(header SaleHeader) error {
	customer := strings.TrimSpace(header.CustomerName)
	if customer == "" {
		return shared.NewDomainError(shared.CodeValidationFailed, "Customer name cannot be empty")
	}
	if header.Installments != nil && *header.Installments < 1 {
		return shared.NewDomainError(shared.CodeValidationFailed, "Installments must be at least 1")
	}
	s.CustomerName = customer
	s.Seller = strings.TrimSpace(header.Seller)
	s.Notes = strings.TrimSpace(header.Notes)
	s.Installments = header.Installments
	s.Touch()
	return nil
}
