package sales

import (
	"strings"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FulfillmentState is the delivery state of a sale item
type FulfillmentState string

const (
	FulfillmentPending   FulfillmentState = "pending"
	FulfillmentDelivered FulfillmentState = "delivered"
)

// IsValid checks if the state is known
func (s FulfillmentState) IsValid() bool {
	return s == FulfillmentPending || s == FulfillmentDelivered
}

// String returns the string representation
func (s FulfillmentState) String() string {
	return string(s)
}

// Transition is a change in fulfillment state
type Transition string

const (
	TransitionNone      Transition = "none"
	TransitionDeliver   Transition = "deliver"
	TransitionUndeliver Transition = "undeliver"
)

// SaleItem is one line in a sale. Exactly one of ProductID and ManualName
// is set; only product lines consume stock.
type SaleItem struct {
	shared.BaseEntity
	SaleID      uuid.UUID
	ProductID   *uuid.UUID
	ManualName  string
	Quantity    int
	UnitPrice   decimal.Decimal
	Fulfillment FulfillmentState
	Paid        bool

	// ConsumedQuantity is the number of units drawn from lots when the
	// item was delivered. Nil on delivered rows recorded before lot
	// attribution existed, and on pending items.
	ConsumedQuantity *int
}

// ItemInput carries the data for a new sale item
type ItemInput struct {
	ProductID  *uuid.UUID
	ManualName string
	Quantity   int
	UnitPrice  decimal.Decimal
	Paid       bool
}

// NewSaleItem creates a pending item
func NewSaleItem(saleID uuid.UUID, in ItemInput) (*SaleItem, error) {
	item := &SaleItem{
		BaseEntity:  shared.NewBaseEntity(),
		SaleID:      saleID,
		ProductID:   in.ProductID,
		ManualName:  strings.TrimSpace(in.ManualName),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Fulfillment: FulfillmentPending,
		Paid:        in.Paid,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the product/manual name exclusivity and value ranges
func (i *SaleItem) Validate() error {
	hasProduct := i.ProductID != nil && *i.ProductID != uuid.Nil
	hasName := i.ManualName != ""
	switch {
	case hasProduct && hasName:
		return shared.NewDomainError(shared.CodeValidationFailed, "Sale item cannot have both a product and a manual name")
	case !hasProduct && !hasName:
		return shared.NewDomainError(shared.CodeValidationFailed, "Sale item needs a product or a manual name")
	}
	if i.Quantity < 1 {
		return shared.NewDomainError(shared.CodeValidationFailed, "Sale item quantity must be at least 1")
	}
	if i.UnitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeValidationFailed, "Sale item unit price cannot be negative")
	}
	if !i.Fulfillment.IsValid() {
		return shared.NewDomainError(shared.CodeValidationFailed, "Unknown fulfillment state")
	}
	return nil
}

// ConsumesStock reports whether delivering the item draws from lots
func (i *SaleItem) ConsumesStock() bool {
	return i.ProductID != nil
}

// IsDelivered reports whether the item is delivered
func (i *SaleItem) IsDelivered() bool {
	return i.Fulfillment == FulfillmentDelivered
}

// Subtotal is quantity * unit price
func (i *SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DisplayName returns the manual name, or empty for product lines
func (i *SaleItem) DisplayName() string {
	return i.ManualName
}

// PlanDelivery returns the transition needed to reach the delivered flag
func (i *SaleItem) PlanDelivery(delivered bool) Transition {
	switch {
	case delivered && !i.IsDelivered():
		return TransitionDeliver
	case !delivered && i.IsDelivered():
		return TransitionUndeliver
	}
	return TransitionNone
}

// ApplyTransition moves the item to the state the transition leads to.
// It is the only way Fulfillment changes; stock side effects belong to
// the caller and must run in the same transaction.
func (i *SaleItem) ApplyTransition(t Transition) error {
	switch t {
	case TransitionNone:
		return nil
	case TransitionDeliver:
		if i.IsDelivered() {
			return shared.ErrInvalidState.WithDetails(map[string]any{"sale_item_id": i.ID.String(), "state": i.Fulfillment})
		}
		i.Fulfillment = FulfillmentDelivered
	case TransitionUndeliver:
		if !i.IsDelivered() {
			return shared.ErrInvalidState.WithDetails(map[string]any{"sale_item_id": i.ID.String(), "state": i.Fulfillment})
		}
		i.Fulfillment = FulfillmentPending
	default:
		return shared.NewDomainError(shared.CodeInvalidInput, "Unknown transition")
	}
	i.Touch()
	return nil
}

// RecordConsumption stores how many units delivery drew from lots
func (i *SaleItem) RecordConsumption(units int) {
	i.ConsumedQuantity = &units
	i.Touch()
}

// ClearConsumption forgets the consumption record
func (i *SaleItem) ClearConsumption() {
	i.ConsumedQuantity = nil
	i.Touch()
}

// HasAttributedConsumption reports whether the item's lot usage is tracked
func (i *SaleItem) HasAttributedConsumption() bool {
	return i.ConsumedQuantity != nil
}

// SetPaid updates the paid flag
func (i *SaleItem) SetPaid(paid bool) {
	if i.Paid == paid {
		return
	}
	i.Paid = paid
	i.Touch()
}
