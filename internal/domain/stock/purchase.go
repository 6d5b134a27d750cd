package stock

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Purchase groups lots bought together from one supplier on one date,
// plus the payments made against them.
type Purchase struct {
	shared.BaseAggregateRoot
	Supplier     string
	PurchaseDate time.Time
	Notes        string
	Lots         []Lot
	Payments     []Payment
}

// Payment is a payment made against a purchase
type Payment struct {
	shared.BaseEntity
	PurchaseID uuid.UUID
	Payer      string
	Amount     decimal.Decimal
	Method     string
	PaidAt     time.Time
}

// NewPurchase creates an empty purchase
func NewPurchase(supplier string, purchaseDate time.Time, notes string) (*Purchase, error) {
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Supplier cannot be empty")
	}
	if purchaseDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Purchase date is required")
	}
	return &Purchase{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Supplier:          supplier,
		PurchaseDate:      purchaseDate,
		Notes:             strings.TrimSpace(notes),
		Lots:              make([]Lot, 0),
		Payments:          make([]Payment, 0),
	}, nil
}

// AddLot registers a new lot under the purchase
func (p *Purchase) AddLot(in LotInput) (*Lot, error) {
	lot, err := NewLot(p.ID, p.PurchaseDate, in)
	if err != nil {
		return nil, err
	}
	p.Lots = append(p.Lots, *lot)
	p.Touch()
	return &p.Lots[len(p.Lots)-1], nil
}

// AddPayment records a payment. Overpaying is allowed.
func (p *Purchase) AddPayment(payer string, amount decimal.Decimal, method string, paidAt time.Time) (*Payment, error) {
	payer = strings.TrimSpace(payer)
	method = strings.TrimSpace(method)
	if payer == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Payer cannot be empty")
	}
	if method == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Payment method cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Payment amount must be positive")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	payment := Payment{
		BaseEntity: shared.NewBaseEntity(),
		PurchaseID: p.ID,
		Payer:      payer,
		Amount:     amount,
		Method:     method,
		PaidAt:     paidAt,
	}
	p.Payments = append(p.Payments, payment)
	p.Touch()
	return &p.Payments[len(p.Payments)-1], nil
}

// RemovePayment drops a payment from the purchase
func (p *Purchase) RemovePayment(paymentID uuid.UUID) error {
	for i := range p.Payments {
		if p.Payments[i].ID == paymentID {
			p.Payments = append(p.Payments[:i], p.Payments[i+1:]...)
			p.Touch()
			return nil
		}
	}
	return shared.ErrNotFound
}

// TotalAmount is the sum of quantity * unit price over all lots
func (p *Purchase) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range p.Lots {
		total = total.Add(p.Lots[i].TotalAmount())
	}
	return total
}

// PaidAmount is the sum of all payments
func (p *Purchase) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, pay := range p.Payments {
		paid = paid.Add(pay.Amount)
	}
	return paid
}

// PendingAmount is total minus paid; negative when overpaid
func (p *Purchase) PendingAmount() decimal.Decimal {
	return p.TotalAmount().Sub(p.PaidAmount())
}

// TotalUnits returns the number of units purchased across all lots
func (p *Purchase) TotalUnits() int {
	n := 0
	for i := range p.Lots {
		n += p.Lots[i].Quantity
	}
	return n
}
