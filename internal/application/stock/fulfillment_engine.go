package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Outcome classifies a fulfillment transition that was applied
type Outcome string

const (
	// OutcomeClean means stock moved exactly as requested
	OutcomeClean Outcome = "clean"
	// OutcomeShortfall means a forced delivery drew less than the item quantity
	OutcomeShortfall Outcome = "shortfall"
	// OutcomeInconsistent means a forced undelivery left out_quantity untouched
	OutcomeInconsistent Outcome = "inconsistent"
	// OutcomeNotApplicable means the item does not consume stock or did not change
	OutcomeNotApplicable Outcome = "not_applicable"
)

// LotMovement is the quantity moved on one lot
type LotMovement struct {
	LotID    uuid.UUID `json:"lot_id"`
	Quantity int       `json:"quantity"`
}

// TransitionResult reports what a fulfillment transition did. Rejections
// are returned as errors instead, so a result always means the flag moved.
type TransitionResult struct {
	SaleItemID uuid.UUID        `json:"sale_item_id"`
	ProductID  *uuid.UUID       `json:"product_id,omitempty"`
	Transition sales.Transition `json:"transition"`
	Outcome    Outcome          `json:"outcome"`
	Forced     bool             `json:"forced"`
	Requested  int              `json:"requested"`
	Applied    int              `json:"applied"`
	Shortage   int              `json:"shortage,omitempty"`
	Unreverted int              `json:"unreverted,omitempty"`
	Movements  []LotMovement    `json:"movements"`
}

// NeedsAttention reports whether the operator should be shown this result
func (r *TransitionResult) NeedsAttention() bool {
	return r.Outcome == OutcomeShortfall || r.Outcome == OutcomeInconsistent
}

// FulfillmentEngine moves stock between available and consumed when a sale
// item's delivered flag changes. Transition is the only entry point; it
// must run inside a TransactionScope so the flag and the lots commit together.
type FulfillmentEngine struct {
	logger  *zap.Logger
	metrics *telemetry.LedgerMetrics
}

// NewFulfillmentEngine creates a FulfillmentEngine
func NewFulfillmentEngine(log *zap.Logger, opts ...Option) *FulfillmentEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &FulfillmentEngine{logger: log, metrics: collect(opts).metrics}
}

// Transition drives item to the requested delivered state, consuming or
// releasing stock as needed, and persists the item.
func (e *FulfillmentEngine) Transition(
	ctx context.Context,
	repos TransactionalRepositories,
	item *sales.SaleItem,
	delivered bool,
	force bool,
) (result *TransitionResult, err error) {
	plan := item.PlanDelivery(delivered)

	ctx, span := telemetry.StartSpan(ctx, "fulfillment.transition",
		telemetry.AttrSaleItemID, item.ID.String(),
		telemetry.AttrTransition, string(plan),
		telemetry.AttrForced, force,
	)
	defer func() {
		if result != nil {
			telemetry.SetAttributes(span,
				telemetry.AttrOutcome, string(result.Outcome),
				telemetry.AttrRequested, result.Requested,
				telemetry.AttrApplied, result.Applied,
				telemetry.AttrShortage, result.Shortage,
			)
		}
		telemetry.End(span, err)
	}()
	if item.ProductID != nil {
		telemetry.SetAttributes(span, telemetry.AttrProductID, item.ProductID.String())
	}

	switch {
	case plan == sales.TransitionNone:
		return &TransitionResult{
			SaleItemID: item.ID,
			ProductID:  item.ProductID,
			Transition: plan,
			Outcome:    OutcomeNotApplicable,
			Movements:  []LotMovement{},
		}, nil
	case !item.ConsumesStock():
		result = &TransitionResult{
			SaleItemID: item.ID,
			Transition: plan,
			Outcome:    OutcomeNotApplicable,
			Requested:  item.Quantity,
			Movements:  []LotMovement{},
		}
	case plan == sales.TransitionDeliver:
		result, err = e.consume(ctx, repos, item, force)
	case plan == sales.TransitionUndeliver:
		result, err = e.release(ctx, repos, item, force)
	}
	if err != nil {
		return nil, err
	}

	if err := item.ApplyTransition(plan); err != nil {
		return nil, err
	}
	if err := repos.SaleItemRepo().Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save sale item %s: %w", item.ID, err)
	}

	e.log(ctx, result)
	e.metrics.RecordTransition(ctx, string(result.Transition), string(result.Outcome),
		result.Applied, result.Shortage+result.Unreverted)
	return result, nil
}

// consume draws the item quantity from the product's lots, oldest first.
// Without force a shortage rejects the whole transition untouched.
func (e *FulfillmentEngine) consume(ctx context.Context, repos TransactionalRepositories, item *sales.SaleItem, force bool) (*TransitionResult, error) {
	productID := *item.ProductID

	lots, err := repos.LotRepo().FindByProductForUpdate(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load lots for product %s: %w", productID, err)
	}
	alloc, err := stock.AllocateFIFO(item.Quantity, lots)
	if err != nil {
		return nil, err
	}
	if !alloc.FullyAllocated() && !force {
		return nil, shared.ErrInsufficientStock.WithDetails(map[string]any{
			"sale_item_id": item.ID.String(),
			"product_id":   productID.String(),
			"requested":    alloc.Requested,
			"available":    alloc.Allocated,
			"short":        alloc.Shortage,
		})
	}

	movements := make([]LotMovement, 0, len(alloc.Lines))
	for _, line := range alloc.Lines {
		if err := repos.LotRepo().ApplyOutDelta(ctx, line.LotID, line.Quantity); err != nil {
			return nil, fmt.Errorf("consume lot %s: %w", line.LotID, err)
		}
		movements = append(movements, LotMovement{LotID: line.LotID, Quantity: line.Quantity})
	}
	if consumptions := stock.ConsumptionsFromAllocation(item.ID, productID, alloc); len(consumptions) > 0 {
		if err := repos.ConsumptionRepo().CreateBatch(ctx, consumptions); err != nil {
			return nil, fmt.Errorf("record consumptions: %w", err)
		}
	}
	item.RecordConsumption(alloc.Allocated)

	outcome := OutcomeClean
	if !alloc.FullyAllocated() {
		outcome = OutcomeShortfall
	}
	return &TransitionResult{
		SaleItemID: item.ID,
		ProductID:  item.ProductID,
		Transition: sales.TransitionDeliver,
		Outcome:    outcome,
		Forced:     force,
		Requested:  alloc.Requested,
		Applied:    alloc.Allocated,
		Shortage:   alloc.Shortage,
		Movements:  movements,
	}, nil
}

// release gives the item's consumed units back, most recent draw first.
// If any unit cannot go back without disturbing other items the release is
// rejected, or with force the flag moves and out_quantity is left as is.
func (e *FulfillmentEngine) release(ctx context.Context, repos TransactionalRepositories, item *sales.SaleItem, force bool) (*TransitionResult, error) {
	plan, err := e.planRelease(ctx, repos, item)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{
		SaleItemID: item.ID,
		ProductID:  item.ProductID,
		Transition: sales.TransitionUndeliver,
		Forced:     force,
		Requested:  plan.Requested,
		Movements:  []LotMovement{},
	}

	if !plan.Clean() {
		if !force {
			blockedOn := make([]string, 0, len(plan.BlockedOn))
			for _, id := range plan.BlockedOn {
				blockedOn = append(blockedOn, id.String())
			}
			return nil, shared.ErrStockAlreadyReallocated.WithDetails(map[string]any{
				"sale_item_id": item.ID.String(),
				"product_id":   item.ProductID.String(),
				"requested":    plan.Requested,
				"restorable":   plan.Restorable,
				"blocked":      plan.Blocked,
				"lot_ids":      blockedOn,
			})
		}
		if err := repos.ConsumptionRepo().DeleteBySaleItem(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("drop consumptions: %w", err)
		}
		item.ClearConsumption()
		result.Outcome = OutcomeInconsistent
		result.Unreverted = plan.Requested
		return result, nil
	}

	for _, line := range plan.Lines {
		if err := repos.LotRepo().ApplyOutDelta(ctx, line.LotID, -line.Quantity); err != nil {
			return nil, fmt.Errorf("restore lot %s: %w", line.LotID, err)
		}
		result.Movements = append(result.Movements, LotMovement{LotID: line.LotID, Quantity: line.Quantity})
	}
	if err := repos.ConsumptionRepo().DeleteBySaleItem(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("drop consumptions: %w", err)
	}
	item.ClearConsumption()

	result.Outcome = OutcomeClean
	result.Applied = plan.Restorable
	return result, nil
}

func (e *FulfillmentEngine) planRelease(ctx context.Context, repos TransactionalRepositories, item *sales.SaleItem) (*stock.ReleasePlan, error) {
	if !item.HasAttributedConsumption() {
		lots, err := repos.LotRepo().FindByProductForUpdate(ctx, *item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load lots for product %s: %w", *item.ProductID, err)
		}
		claims, err := repos.ConsumptionRepo().SumByLots(ctx, lotIDs(lots))
		if err != nil {
			return nil, fmt.Errorf("load lot claims: %w", err)
		}
		return stock.PlanLegacyRelease(item.Quantity, lots, claims), nil
	}

	consumptions, err := repos.ConsumptionRepo().FindBySaleItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("load consumptions for item %s: %w", item.ID, err)
	}
	ids := make([]uuid.UUID, 0, len(consumptions))
	for _, c := range consumptions {
		ids = append(ids, c.LotID)
	}
	lots, err := repos.LotRepo().FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock consumed lots: %w", err)
	}
	claims, err := repos.ConsumptionRepo().SumByLots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load lot claims: %w", err)
	}
	return stock.PlanRelease(consumptions, stock.IndexLots(lots), claims), nil
}

func (e *FulfillmentEngine) log(ctx context.Context, r *TransitionResult) {
	l := logger.WithTraceContext(ctx, logger.FromContextOr(ctx, e.logger))
	fields := []zap.Field{
		zap.String("sale_item_id", r.SaleItemID.String()),
		zap.String("transition", string(r.Transition)),
		zap.String("outcome", string(r.Outcome)),
		zap.Int("requested", r.Requested),
		zap.Int("applied", r.Applied),
		zap.Bool("forced", r.Forced),
	}
	if r.ProductID != nil {
		fields = append(fields, zap.String("product_id", r.ProductID.String()))
	}
	if r.NeedsAttention() {
		l.Warn("fulfillment transition applied with stock discrepancy",
			append(fields, zap.Int("shortage", r.Shortage), zap.Int("unreverted", r.Unreverted))...)
		return
	}
	l.Info("fulfillment transition applied", fields...)
}

func lotIDs(lots []*stock.Lot) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lots))
	for _, l := range lots {
		ids = append(ids, l.ID)
	}
	return ids
}
