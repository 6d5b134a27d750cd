package sales

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// SaleService handles sales and routes delivery changes through the
// fulfillment engine.
type SaleService struct {
	scope    appstock.TransactionScope
	saleRepo sales.SaleRepository
	itemRepo sales.SaleItemRepository
	engine   *appstock.FulfillmentEngine
	locker   appstock.ProductLocker
	logger   *zap.Logger
}

// NewSaleService creates a new SaleService
func NewSaleService(
	scope appstock.TransactionScope,
	saleRepo sales.SaleRepository,
	itemRepo sales.SaleItemRepository,
	engine *appstock.FulfillmentEngine,
	locker appstock.ProductLocker,
	log *zap.Logger,
) *SaleService {
	if locker == nil {
		locker = appstock.NoopLocker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SaleService{
		scope:    scope,
		saleRepo: saleRepo,
		itemRepo: itemRepo,
		engine:   engine,
		locker:   locker,
		logger:   log,
	}
}

// CreateSale creates a sale. Items requested as delivered go through the
// engine in the same transaction, so a rejected delivery aborts the sale.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleMutationResponse, error) {
	inputs := make([]sales.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, sales.ItemInput{
			ProductID:  it.ProductID,
			ManualName: it.ManualName,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Paid:       it.Paid,
		})
	}
	sale, err := sales.NewSale(sales.SaleHeader{
		CustomerName: req.CustomerName,
		Seller:       req.Seller,
		Notes:        req.Notes,
		Installments: req.Installments,
	}, inputs)
	if err != nil {
		return nil, err
	}

	products := make([]uuid.UUID, 0)
	for i, it := range req.Items {
		if it.Delivered && sale.Items[i].ConsumesStock() {
			products = append(products, *sale.Items[i].ProductID)
		}
	}
	unlock, err := s.locker.Lock(ctx, appstock.ProductLockKeys(products...)...)
	if err != nil {
		return nil, fmt.Errorf("acquire product locks: %w", err)
	}
	defer unlock()

	resp := &SaleMutationResponse{Transitions: make([]*appstock.TransitionResult, 0)}
	err = s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		if err := repos.SaleRepo().Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		for i, it := range req.Items {
			if !it.Delivered {
				continue
			}
			result, err := s.engine.Transition(ctx, repos, &sale.Items[i], true, req.Force)
			if err != nil {
				return err
			}
			resp.Transitions = append(resp.Transitions, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOr(ctx, s.logger).Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.Int("items", len(sale.Items)),
		zap.Int("delivered", len(resp.Transitions)),
	)
	saleResp := ToSaleResponse(sale)
	resp.Sale = &saleResp
	return resp, nil
}

// UpdateSaleItems applies delivered/paid changes to items of a sale. The
// whole call is one transaction: any rejected transition rolls back every
// change and is returned as the error.
func (s *SaleService) UpdateSaleItems(ctx context.Context, saleID uuid.UUID, updates []ItemUpdate, force bool) (*SaleMutationResponse, error) {
	if len(updates) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "No item updates given")
	}

	current, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	products := make([]uuid.UUID, 0)
	for _, u := range updates {
		item, err := current.Item(u.ID)
		if err != nil {
			return nil, err
		}
		if u.Delivered != nil && item.ConsumesStock() && item.PlanDelivery(*u.Delivered) != sales.TransitionNone {
			products = append(products, *item.ProductID)
		}
	}
	unlock, err := s.locker.Lock(ctx, appstock.ProductLockKeys(products...)...)
	if err != nil {
		return nil, fmt.Errorf("acquire product locks: %w", err)
	}
	defer unlock()

	resp := &SaleMutationResponse{Transitions: make([]*appstock.TransitionResult, 0)}
	var sale *sales.Sale
	err = s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		var err error
		sale, err = repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		for _, u := range updates {
			item, err := sale.Item(u.ID)
			if err != nil {
				return err
			}
			paidChanged := u.Paid != nil && *u.Paid != item.Paid
			if paidChanged {
				item.SetPaid(*u.Paid)
			}

			transitioned := false
			if u.Delivered != nil && item.PlanDelivery(*u.Delivered) != sales.TransitionNone {
				result, err := s.engine.Transition(ctx, repos, item, *u.Delivered, force)
				if err != nil {
					if de, ok := shared.AsDomainError(err); ok {
						return de.WithDetails(map[string]any{"sale_item_id": item.ID.String()})
					}
					return err
				}
				resp.Transitions = append(resp.Transitions, result)
				transitioned = true
			}

			if paidChanged && !transitioned {
				if err := repos.SaleItemRepo().Save(ctx, item); err != nil {
					return fmt.Errorf("save sale item %s: %w", item.ID, err)
				}
			}
		}
		sale.IncrementVersion()
		return repos.SaleRepo().UpdateHeader(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	saleResp := ToSaleResponse(sale)
	resp.Sale = &saleResp
	return resp, nil
}

// UpdateSaleHeader edits customer, seller, notes and installments
func (s *SaleService) UpdateSaleHeader(ctx context.Context, saleID uuid.UUID, header sales.SaleHeader) (*SaleResponse, error) {
	var sale *sales.Sale
	err := s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		var err error
		sale, err = repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := sale.UpdateHeader(header); err != nil {
			return err
		}
		sale.IncrementVersion()
		return repos.SaleRepo().UpdateHeader(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale)
	return &resp, nil
}

// DeleteSale releases stock held by delivered items, then removes the sale
func (s *SaleService) DeleteSale(ctx context.Context, saleID uuid.UUID, force bool) (*SaleMutationResponse, error) {
	current, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, appstock.ProductLockKeys(deliveredProducts(current.Items)...)...)
	if err != nil {
		return nil, fmt.Errorf("acquire product locks: %w", err)
	}
	defer unlock()

	resp := &SaleMutationResponse{Transitions: make([]*appstock.TransitionResult, 0)}
	err = s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		for i := range sale.Items {
			item := &sale.Items[i]
			if !item.IsDelivered() {
				continue
			}
			result, err := s.engine.Transition(ctx, repos, item, false, force)
			if err != nil {
				return err
			}
			resp.Transitions = append(resp.Transitions, result)
		}
		return repos.SaleRepo().Delete(ctx, saleID)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOr(ctx, s.logger).Info("sale deleted",
		zap.String("sale_id", saleID.String()),
		zap.Int("released_items", len(resp.Transitions)),
	)
	return resp, nil
}

// DeleteSaleItem releases stock held by the item if delivered, then removes it
func (s *SaleService) DeleteSaleItem(ctx context.Context, itemID uuid.UUID, force bool) (*SaleMutationResponse, error) {
	current, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, appstock.ProductLockKeys(deliveredProducts([]sales.SaleItem{*current})...)...)
	if err != nil {
		return nil, fmt.Errorf("acquire product locks: %w", err)
	}
	defer unlock()

	resp := &SaleMutationResponse{Transitions: make([]*appstock.TransitionResult, 0)}
	err = s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, current.SaleID)
		if err != nil {
			return err
		}
		item, err := sale.Item(itemID)
		if err != nil {
			return err
		}
		if item.IsDelivered() {
			result, err := s.engine.Transition(ctx, repos, item, false, force)
			if err != nil {
				return err
			}
			resp.Transitions = append(resp.Transitions, result)
		}
		if err := repos.SaleItemRepo().Delete(ctx, itemID); err != nil {
			return err
		}
		sale.RemoveItem(itemID)
		sale.IncrementVersion()
		if err := repos.SaleRepo().UpdateHeader(ctx, sale); err != nil {
			return err
		}
		saleResp := ToSaleResponse(sale)
		resp.Sale = &saleResp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSale returns a sale with derived amounts
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale)
	return &resp, nil
}

// ListSales returns a page of sales
func (s *SaleService) ListSales(ctx context.Context, filter shared.Filter) (shared.Paginated[SaleResponse], error) {
	filter = filter.Normalize()
	list, total, err := s.saleRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[SaleResponse]{}, err
	}
	items := make([]SaleResponse, 0, len(list))
	for _, sale := range list {
		items = append(items, ToSaleResponse(sale))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func deliveredProducts(items []sales.SaleItem) []uuid.UUID {
	out := make([]uuid.UUID, 0)
	for i := range items {
		if items[i].IsDelivered() && items[i].ConsumesStock() {
			out = append(out, *items[i].ProductID)
		}
	}
	return out
}
