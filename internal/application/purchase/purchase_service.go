package purchase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/domain/stock"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// PurchaseService handles purchases, their lots and payments
type PurchaseService struct {
	scope        appstock.TransactionScope
	purchaseRepo stock.PurchaseRepository
	lotRepo      stock.LotRepository
	catalog      stock.ProductCatalog
	logger       *zap.Logger
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	scope appstock.TransactionScope,
	purchaseRepo stock.PurchaseRepository,
	lotRepo stock.LotRepository,
	catalog stock.ProductCatalog,
	log *zap.Logger,
) *PurchaseService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchaseService{
		scope:        scope,
		purchaseRepo: purchaseRepo,
		lotRepo:      lotRepo,
		catalog:      catalog,
		logger:       log,
	}
}

// CreatePurchase registers a purchase with its lots. Lots submitted
// without a product are matched against the catalog by code.
func (s *PurchaseService) CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*PurchaseResponse, error) {
	if len(req.Lots) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Purchase must have at least one lot")
	}
	p, err := stock.NewPurchase(req.Supplier, req.PurchaseDate, req.Notes)
	if err != nil {
		return nil, err
	}

	matched := 0
	for i, lr := range req.Lots {
		productID := lr.ProductID
		if productID == nil {
			productID, err = s.matchProduct(ctx, lr.Code, lr.Description)
			if err != nil {
				return nil, err
			}
			if productID != nil {
				matched++
			}
		} else if err := s.ensureProduct(ctx, *productID); err != nil {
			return nil, err
		}
		if _, err := p.AddLot(stock.LotInput{
			ProductID:   productID,
			Description: lr.Description,
			Code:        lr.Code,
			UnitPrice:   lr.UnitPrice,
			Quantity:    lr.Quantity,
		}); err != nil {
			if de, ok := shared.AsDomainError(err); ok {
				return nil, de.WithDetails(map[string]any{"lot_index": i})
			}
			return nil, err
		}
	}

	if err := s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		return repos.PurchaseRepo().Create(ctx, p)
	}); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	logger.FromContextOr(ctx, s.logger).Info("purchase created",
		zap.String("purchase_id", p.ID.String()),
		zap.String("supplier", p.Supplier),
		zap.Int("lots", len(p.Lots)),
		zap.Int("matched_by_code", matched),
	)
	resp := ToPurchaseResponse(p)
	return &resp, nil
}

// GetPurchase returns a purchase with lots, payments and derived amounts
func (s *PurchaseService) GetPurchase(ctx context.Context, id uuid.UUID) (*PurchaseResponse, error) {
	p, err := s.purchaseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseResponse(p)
	return &resp, nil
}

// ListPurchases returns a page of purchases
func (s *PurchaseService) ListPurchases(ctx context.Context, filter shared.Filter) (shared.Paginated[PurchaseResponse], error) {
	filter = filter.Normalize()
	purchases, total, err := s.purchaseRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[PurchaseResponse]{}, err
	}
	items := make([]PurchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		items = append(items, ToPurchaseResponse(p))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ListLots lists lots by product or by purchase
func (s *PurchaseService) ListLots(ctx context.Context, productID, purchaseID *uuid.UUID) ([]LotResponse, error) {
	var (
		lots []*stock.Lot
		err  error
	)
	switch {
	case productID != nil:
		lots, err = s.lotRepo.FindByProduct(ctx, *productID)
	case purchaseID != nil:
		lots, err = s.lotRepo.FindByPurchase(ctx, *purchaseID)
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "product_id or purchase_id is required")
	}
	if err != nil {
		return nil, err
	}
	out := make([]LotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, ToLotResponse(l))
	}
	return out, nil
}

// AddPayment records a payment against a purchase
func (s *PurchaseService) AddPayment(ctx context.Context, purchaseID uuid.UUID, req AddPaymentRequest) (*PurchaseResponse, error) {
	var p *stock.Purchase
	err := s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		var err error
		p, err = repos.PurchaseRepo().FindByID(ctx, purchaseID)
		if err != nil {
			return err
		}
		payment, err := p.AddPayment(req.Payer, req.Amount, req.Method, req.PaidAt)
		if err != nil {
			return err
		}
		return repos.PaymentRepo().Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseResponse(p)
	return &resp, nil
}

// DeletePayment removes a payment. Stock is never touched.
func (s *PurchaseService) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		if _, err := repos.PaymentRepo().FindByID(ctx, paymentID); err != nil {
			return err
		}
		return repos.PaymentRepo().Delete(ctx, paymentID)
	})
}

// AssociateLot links a lot to a product, or unlinks it when productID is
// nil. Only the product reference changes; out_quantity is kept.
func (s *PurchaseService) AssociateLot(ctx context.Context, lotID uuid.UUID, productID *uuid.UUID) (*LotResponse, error) {
	if productID != nil {
		if err := s.ensureProduct(ctx, *productID); err != nil {
			return nil, err
		}
	}

	var lot *stock.Lot
	err := s.scope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		var err error
		lot, err = repos.LotRepo().FindByIDForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		lot.LinkProduct(productID)
		return repos.LotRepo().UpdateProductLink(ctx, lot.ID, productID)
	})
	if err != nil {
		return nil, err
	}
	resp := ToLotResponse(lot)
	return &resp, nil
}

func (s *PurchaseService) matchProduct(ctx context.Context, code, description string) (*uuid.UUID, error) {
	if s.catalog == nil {
		return nil, nil
	}
	derived := stock.DeriveProductCode(code, description)
	if derived == "" {
		return nil, nil
	}
	id, err := s.catalog.FindIDByCode(ctx, derived)
	if err != nil {
		return nil, fmt.Errorf("match product code %q: %w", derived, err)
	}
	return id, nil
}

func (s *PurchaseService) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	if s.catalog == nil {
		return nil
	}
	ok, err := s.catalog.Exists(ctx, productID)
	if err != nil {
		return fmt.Errorf("check product %s: %w", productID, err)
	}
	if !ok {
		return shared.ErrNotFound.WithDetails(map[string]any{"product_id": productID.String()})
	}
	return nil
}
