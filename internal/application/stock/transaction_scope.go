package stock

import (
	"context"

	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/stock"
)

// TransactionScope provides transactional access to ledger repositories.
// Every repository handed to fn shares the same database transaction, which
// is committed if fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories
// within one transaction.
type TransactionalRepositories interface {
	LotRepo() stock.LotRepository
	PurchaseRepo() stock.PurchaseRepository
	PaymentRepo() stock.PaymentRepository
	ConsumptionRepo() stock.ConsumptionRepository
	SaleRepo() sales.SaleRepository
	SaleItemRepo() sales.SaleItemRepository
}
