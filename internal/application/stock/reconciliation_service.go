package stock

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ShortageEntry is one product whose delivered quantity exceeds its lots
type ShortageEntry struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Short     int       `json:"short"`
}

// ReconciliationReport summarises a reconciliation sweep
type ReconciliationReport struct {
	SalesProcessed int             `json:"sales_processed"`
	ItemsProcessed int             `json:"items_processed"`
	UnitsRequested int             `json:"units_requested"`
	UnitsDeducted  int             `json:"units_deducted"`
	LotsConsumed   int             `json:"lots_consumed"`
	Shortages      []ShortageEntry `json:"shortages"`
}

// ShortUnits totals the shortage over all products
func (r *ReconciliationReport) ShortUnits() int {
	total := 0
	for _, s := range r.Shortages {
		total += s.Short
	}
	return total
}

// ReconciliationService recomputes every lot's out_quantity from the set
// of delivered sale items.
type ReconciliationService struct {
	scope   TransactionScope
	locker  ProductLocker
	logger  *zap.Logger
	metrics *telemetry.LedgerMetrics
}

// NewReconciliationService creates a ReconciliationService
func NewReconciliationService(scope TransactionScope, locker ProductLocker, log *zap.Logger, opts ...Option) *ReconciliationService {
	if locker == nil {
		locker = NoopLocker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconciliationService{scope: scope, locker: locker, logger: log, metrics: collect(opts).metrics}
}

// ReconcileDeliveredStock resets all lots and replays delivered product
// lines in (sale ID, item ID) order with FIFO allocation. The whole sweep
// commits or nothing does. Shortages are findings, not errors.
func (s *ReconciliationService) ReconcileDeliveredStock(ctx context.Context) (report *ReconciliationReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.reconcile")
	defer func() {
		if report != nil {
			telemetry.SetAttributes(span,
				telemetry.AttrRequested, report.UnitsRequested,
				telemetry.AttrApplied, report.UnitsDeducted,
				"ledger.shortage_products", len(report.Shortages),
			)
		}
		telemetry.End(span, err)
	}()

	productIDs, err := s.sweptProducts(ctx)
	if err != nil {
		return nil, err
	}
	// product keys make in-flight toggles wait for the sweep and vice versa
	unlock, err := s.locker.Lock(ctx, append(ProductLockKeys(productIDs...), ReconcileLockKey)...)
	if err != nil {
		return nil, fmt.Errorf("acquire reconciliation lock: %w", err)
	}
	defer unlock()

	started := time.Now()
	var swept *ReconciliationReport
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := s.sweep(ctx, repos)
		if err != nil {
			return err
		}
		swept = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	report = swept
	elapsed := time.Since(started)
	s.metrics.RecordReconciliation(ctx, elapsed, report.ShortUnits())

	l := logger.WithTraceContext(ctx, logger.FromContextOr(ctx, s.logger))
	l.Info("stock reconciliation completed",
		zap.Int("sales_processed", report.SalesProcessed),
		zap.Int("items_processed", report.ItemsProcessed),
		zap.Int("units_requested", report.UnitsRequested),
		zap.Int("units_deducted", report.UnitsDeducted),
		zap.Int("shortages", len(report.Shortages)),
		zap.Duration("elapsed", elapsed),
	)
	return report, nil
}

// sweptProducts lists every product whose lots or delivered lines the sweep touches
func (s *ReconciliationService) sweptProducts(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		linked, err := repos.LotRepo().LinkedProductIDs(ctx)
		if err != nil {
			return fmt.Errorf("list linked products: %w", err)
		}
		delivered, err := repos.SaleItemRepo().DeliveredProductIDs(ctx)
		if err != nil {
			return fmt.Errorf("list delivered products: %w", err)
		}
		ids = append(linked, delivered...)
		return nil
	})
	return ids, err
}

func (s *ReconciliationService) sweep(ctx context.Context, repos TransactionalRepositories) (*ReconciliationReport, error) {
	lots, err := repos.LotRepo().FindAllLinkedForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock lots: %w", err)
	}
	if _, err := repos.LotRepo().ResetAllConsumption(ctx); err != nil {
		return nil, fmt.Errorf("reset lots: %w", err)
	}
	if _, err := repos.ConsumptionRepo().DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear consumptions: %w", err)
	}

	byProduct := make(map[uuid.UUID][]*stock.Lot)
	for _, lot := range lots {
		lot.ResetConsumption()
		byProduct[*lot.ProductID] = append(byProduct[*lot.ProductID], lot)
	}
	index := stock.IndexLots(lots)

	items, err := repos.SaleItemRepo().FindDeliveredWithProduct(ctx)
	if err != nil {
		return nil, fmt.Errorf("load delivered items: %w", err)
	}

	type tally struct{ requested, allocated int }
	perProduct := make(map[uuid.UUID]*tally)
	salesSeen := make(map[uuid.UUID]struct{})
	consumptions := make([]stock.Consumption, 0)
	report := &ReconciliationReport{Shortages: make([]ShortageEntry, 0)}

	for i := range items {
		item := &items[i]
		productID := *item.ProductID
		salesSeen[item.SaleID] = struct{}{}

		alloc, err := stock.AllocateFIFO(item.Quantity, byProduct[productID])
		if err != nil {
			return nil, err
		}
		if err := stock.ApplyAllocation(alloc, index); err != nil {
			return nil, err
		}
		consumptions = append(consumptions, stock.ConsumptionsFromAllocation(item.ID, productID, alloc)...)

		item.RecordConsumption(alloc.Allocated)
		if err := repos.SaleItemRepo().Save(ctx, item); err != nil {
			return nil, fmt.Errorf("save sale item %s: %w", item.ID, err)
		}

		t, ok := perProduct[productID]
		if !ok {
			t = &tally{}
			perProduct[productID] = t
		}
		t.requested += item.Quantity
		t.allocated += alloc.Allocated
		report.ItemsProcessed++
		report.UnitsRequested += item.Quantity
		report.UnitsDeducted += alloc.Allocated
	}

	for _, lot := range lots {
		if lot.OutQuantity == 0 {
			continue
		}
		if err := repos.LotRepo().SaveConsumption(ctx, lot); err != nil {
			return nil, fmt.Errorf("save lot %s: %w", lot.ID, err)
		}
		report.LotsConsumed++
	}
	if len(consumptions) > 0 {
		if err := repos.ConsumptionRepo().CreateBatch(ctx, consumptions); err != nil {
			return nil, fmt.Errorf("record consumptions: %w", err)
		}
	}

	for productID, t := range perProduct {
		if t.allocated < t.requested {
			report.Shortages = append(report.Shortages, ShortageEntry{
				ProductID: productID,
				Requested: t.requested,
				Available: t.allocated,
				Short:     t.requested - t.allocated,
			})
		}
	}
	sort.Slice(report.Shortages, func(i, j int) bool {
		return bytes.Compare(report.Shortages[i].ProductID[:], report.Shortages[j].ProductID[:]) < 0
	})
	report.SalesProcessed = len(salesSeen)
	return report, nil
}
