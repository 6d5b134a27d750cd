package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	purchaseapp "github.com/reseller/backend/internal/application/purchase"
	"github.com/reseller/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PurchaseHandler handles purchases, lots and payments
type PurchaseHandler struct {
	BaseHandler
	purchaseService *purchaseapp.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(purchaseService *purchaseapp.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// CreatePurchaseRequest is the body of POST /admin/purchases
type CreatePurchaseRequest struct {
	Supplier     string       `json:"supplier" binding:"required,notblank,max=200"`
	PurchaseDate string       `json:"purchase_date" binding:"required,datetime=2006-01-02"`
	Notes        string       `json:"notes" binding:"max=2000"`
	Lots         []LotRequest `json:"lots" binding:"required,min=1,dive"`
}

// LotRequest is one lot of a new purchase. Without product_id the lot is
// matched against the catalog by its code.
type LotRequest struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	Description string          `json:"description" binding:"max=500"`
	Code        string          `json:"code" binding:"max=64"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity" binding:"gt=0"`
}

// AddPaymentRequest is the body of POST /admin/purchases/:id/payments
type AddPaymentRequest struct {
	Payer  string          `json:"payer" binding:"required,notblank,max=100"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" binding:"required,notblank,max=50"`
	PaidAt *time.Time      `json:"paid_at"`
}

// AssociateLotRequest is the body of PUT /admin/lots/:id/product. A null
// product_id unlinks the lot.
type AssociateLotRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
}

// ListLotsQuery filters GET /admin/lots
type ListLotsQuery struct {
	ProductID  string `form:"product_id" binding:"omitempty,uuid"`
	PurchaseID string `form:"purchase_id" binding:"omitempty,uuid"`
}

// Create registers a purchase with its lots
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req CreatePurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := time.Parse(dateLayout, req.PurchaseDate)
	if err != nil {
		h.BadRequest(c, "Invalid purchase_date")
		return
	}

	in := purchaseapp.CreatePurchaseRequest{
		Supplier:     req.Supplier,
		PurchaseDate: date,
		Notes:        req.Notes,
		Lots:         make([]purchaseapp.LotRequest, len(req.Lots)),
	}
	for i, l := range req.Lots {
		in.Lots[i] = purchaseapp.LotRequest{
			ProductID:   l.ProductID,
			Description: l.Description,
			Code:        l.Code,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
		}
	}

	resp, err := h.purchaseService.CreatePurchase(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns a purchase with lots and payments
func (h *PurchaseHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	resp, err := h.purchaseService.GetPurchase(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List pages through purchases
func (h *PurchaseHandler) List(c *gin.Context) {
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	page, err := h.purchaseService.ListPurchases(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// AddPayment records a payment against a purchase
func (h *PurchaseHandler) AddPayment(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req AddPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	resp, err := h.purchaseService.AddPayment(c.Request.Context(), id, purchaseapp.AddPaymentRequest{
		Payer:  req.Payer,
		Amount: req.Amount,
		Method: req.Method,
		PaidAt: paidAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// DeletePayment removes a payment
func (h *PurchaseHandler) DeletePayment(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.purchaseService.DeletePayment(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListLots lists lots by product or purchase
func (h *PurchaseHandler) ListLots(c *gin.Context) {
	var q ListLotsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	lots, err := h.purchaseService.ListLots(c.Request.Context(), optionalID(q.ProductID), optionalID(q.PurchaseID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lots)
}

// AssociateLot links a lot to a product, or unlinks it
func (h *PurchaseHandler) AssociateLot(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req AssociateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lot, err := h.purchaseService.AssociateLot(c.Request.Context(), id, req.ProductID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lot)
}

// optionalID parses an already validated UUID query value
func optionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}
