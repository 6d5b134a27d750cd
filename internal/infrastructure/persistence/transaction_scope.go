package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// SQLSTATE codes postgres uses when a transaction lost a race
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// GormTransactionScope implements appstock.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// ScopeOption configures a GormTransactionScope
type ScopeOption func(*GormTransactionScope)

// WithIsolation sets the isolation level of every transaction
func WithIsolation(level sql.IsolationLevel) ScopeOption {
	return func(s *GormTransactionScope) {
		s.opts = &sql.TxOptions{Isolation: level}
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...ScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction, committing on nil and
// rolling back otherwise. Serialization failures and deadlocks surface as
// shared.ErrConcurrencyConflict; they are not retried.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	var txOpts []*sql.TxOptions
	if s.opts != nil {
		txOpts = append(txOpts, s.opts)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	}, txOpts...)
	return mapTxError(err)
}

func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return shared.ErrConcurrencyConflict.WithDetails(map[string]any{"sqlstate": pgErr.Code})
		}
	}
	return err
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) LotRepo() stock.LotRepository {
	return NewGormLotRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchaseRepo() stock.PurchaseRepository {
	return NewGormPurchaseRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() stock.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) ConsumptionRepo() stock.ConsumptionRepository {
	return NewGormConsumptionRepository(r.tx)
}

func (r *gormTransactionalRepositories) SaleRepo() sales.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *gormTransactionalRepositories) SaleItemRepo() sales.SaleItemRepository {
	return NewGormSaleItemRepository(r.tx)
}

var _ appstock.TransactionScope = (*GormTransactionScope)(nil)
var _ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
