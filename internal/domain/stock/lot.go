package stock

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Lot is one purchased batch of a product with its own consumption counter.
//
// OutQuantity is only ever changed through Consume, Restore and
// ResetConsumption, which keep 0 <= OutQuantity <= Quantity.
type Lot struct {
	shared.BaseEntity
	PurchaseID   uuid.UUID
	ProductID    *uuid.UUID // nil when the lot is not matched to a catalog product
	Description  string
	Code         string
	PurchaseDate time.Time
	UnitPrice    decimal.Decimal
	Quantity     int
	OutQuantity  int
}

// LotInput carries the data needed to register a lot under a purchase
type LotInput struct {
	ProductID   *uuid.UUID
	Description string
	Code        string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// NewLot creates a lot owned by the given purchase
func NewLot(purchaseID uuid.UUID, purchaseDate time.Time, in LotInput) (*Lot, error) {
	if in.Quantity < 0 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Lot quantity cannot be negative")
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Lot unit price cannot be negative")
	}
	if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.Code) == "" && in.ProductID == nil {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Lot needs a product, a code or a description")
	}

	return &Lot{
		BaseEntity:   shared.NewBaseEntity(),
		PurchaseID:   purchaseID,
		ProductID:    in.ProductID,
		Description:  strings.TrimSpace(in.Description),
		Code:         strings.TrimSpace(in.Code),
		PurchaseDate: purchaseDate,
		UnitPrice:    in.UnitPrice,
		Quantity:     in.Quantity,
		OutQuantity:  0,
	}, nil
}

// Available returns the quantity still on hand
func (l *Lot) Available() int {
	return l.Quantity - l.OutQuantity
}

// IsLinked reports whether the lot counts towards a product's stock
func (l *Lot) IsLinked() bool {
	return l.ProductID != nil
}

// BelongsTo reports whether the lot is linked to productID
func (l *Lot) BelongsTo(productID uuid.UUID) bool {
	return l.ProductID != nil && *l.ProductID == productID
}

// TotalAmount returns quantity * unit price
func (l *Lot) TotalAmount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Consume moves n units from available to consumed.
// Rejects the change, leaving the lot untouched, if n exceeds Available.
func (l *Lot) Consume(n int) error {
	if n <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Consume quantity must be positive")
	}
	if n > l.Available() {
		return l.boundViolation(n)
	}
	l.OutQuantity += n
	l.Touch()
	return nil
}

// Restore gives n consumed units back to the lot.
// Rejects the change, leaving the lot untouched, if n exceeds OutQuantity.
func (l *Lot) Restore(n int) error {
	if n <= 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Restore quantity must be positive")
	}
	if n > l.OutQuantity {
		return l.boundViolation(-n)
	}
	l.OutQuantity -= n
	l.Touch()
	return nil
}

// ApplyDelta consumes (delta > 0) or restores (delta < 0) units
func (l *Lot) ApplyDelta(delta int) error {
	switch {
	case delta > 0:
		return l.Consume(delta)
	case delta < 0:
		return l.Restore(-delta)
	}
	return nil
}

// ResetConsumption clears the consumed counter. Used by reconciliation only.
func (l *Lot) ResetConsumption() {
	if l.OutQuantity == 0 {
		return
	}
	l.OutQuantity = 0
	l.Touch()
}

// LinkProduct sets or clears the product reference. OutQuantity is untouched.
func (l *Lot) LinkProduct(productID *uuid.UUID) {
	l.ProductID = productID
	l.Touch()
}

// MatchCode returns the code used to match the lot against the catalog
func (l *Lot) MatchCode() string {
	return DeriveProductCode(l.Code, l.Description)
}

func (l *Lot) boundViolation(delta int) error {
	return shared.ErrLotBoundViolation.WithDetails(map[string]any{
		"lot_id":       l.ID.String(),
		"quantity":     l.Quantity,
		"out_quantity": l.OutQuantity,
		"delta":        delta,
	})
}

var fiveDigits = regexp.MustCompile(`\d{5}`)

// DeriveProductCode returns the explicit code when present, otherwise the
// leftmost run of five digits in the description. Empty if neither exists.
func DeriveProductCode(code, description string) string {
	if c := strings.TrimSpace(code); c != "" {
		return c
	}
	return fiveDigits.FindString(description)
}
