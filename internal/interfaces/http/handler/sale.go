package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	salesapp "github.com/reseller/backend/internal/application/sales"
	"github.com/reseller/backend/internal/domain/sales"
	"github.com/reseller/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// SaleHandler handles sales and the delivery flags of their items
type SaleHandler struct {
	BaseHandler
	saleService *salesapp.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService *salesapp.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// CreateSaleRequest is the body of POST /admin/sales
type CreateSaleRequest struct {
	CustomerName string              `json:"customer_name" binding:"required,notblank,max=200"`
	Seller       string              `json:"seller" binding:"max=100"`
	Notes        string              `json:"notes" binding:"max=2000"`
	Installments *int                `json:"installments" binding:"omitempty,gte=1"`
	Items        []CreateItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateItemRequest is one line of a new sale: either a catalog product or
// a manual line with a free-text name.
type CreateItemRequest struct {
	ProductID  *uuid.UUID      `json:"product_id" binding:"required_without=ManualName"`
	ManualName string          `json:"manual_name" binding:"max=255"`
	Quantity   int             `json:"quantity" binding:"gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Delivered  bool            `json:"delivered"`
	Paid       bool            `json:"paid"`
}

// UpdateItemsRequest is the body of PUT /admin/sales/:id/items
type UpdateItemsRequest struct {
	Items []ItemUpdateRequest `json:"items" binding:"required,min=1,dive"`
}

// ItemUpdateRequest carries the desired flags of one item. Omitted flags
// are left unchanged.
type ItemUpdateRequest struct {
	ID        string `json:"id" binding:"required,uuid"`
	Delivered *bool  `json:"delivered"`
	Paid      *bool  `json:"paid"`
}

// UpdateSaleRequest is the body of PUT /admin/sales/:id
type UpdateSaleRequest struct {
	CustomerName string `json:"customer_name" binding:"required,notblank,max=200"`
	Seller       string `json:"seller" binding:"max=100"`
	Notes        string `json:"notes" binding:"max=2000"`
	Installments *int   `json:"installments" binding:"omitempty,gte=1"`
}

// Create creates a sale, delivering the items flagged as delivered
func (h *SaleHandler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var q dto.ForceQuery
	if !h.BindQuery(c, &q) {
		return
	}

	in := salesapp.CreateSaleRequest{
		CustomerName: req.CustomerName,
		Seller:       req.Seller,
		Notes:        req.Notes,
		Installments: req.Installments,
		Items:        make([]salesapp.CreateItemRequest, len(req.Items)),
		Force:        q.Force,
	}
	for i, it := range req.Items {
		in.Items[i] = salesapp.CreateItemRequest{
			ProductID:  it.ProductID,
			ManualName: it.ManualName,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Delivered:  it.Delivered,
			Paid:       it.Paid,
		}
	}

	resp, err := h.saleService.CreateSale(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns a sale with derived amounts
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	resp, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List pages through sales, searching customer and seller
func (h *SaleHandler) List(c *gin.Context) {
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	page, err := h.saleService.ListSales(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// UpdateItems changes delivered and paid flags. Without force, a delivery
// that lots cannot cover fails with 409 and nothing is applied.
func (h *SaleHandler) UpdateItems(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req UpdateItemsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var q dto.ForceQuery
	if !h.BindQuery(c, &q) {
		return
	}

	updates := make([]salesapp.ItemUpdate, len(req.Items))
	for i, it := range req.Items {
		updates[i] = salesapp.ItemUpdate{
			ID:        uuid.MustParse(it.ID),
			Delivered: it.Delivered,
			Paid:      it.Paid,
		}
	}
	resp, err := h.saleService.UpdateSaleItems(c.Request.Context(), id, updates, q.Force)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateHeader edits the customer-facing fields of a sale
func (h *SaleHandler) UpdateHeader(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req UpdateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.saleService.UpdateSaleHeader(c.Request.Context(), id, sales.SaleHeader{
		CustomerName: req.CustomerName,
		Seller:       req.Seller,
		Notes:        req.Notes,
		Installments: req.Installments,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete releases the stock of delivered items and removes the sale
func (h *SaleHandler) Delete(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var q dto.ForceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	resp, err := h.saleService.DeleteSale(c.Request.Context(), id, q.Force)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DeleteItem releases the stock of one item and removes it
func (h *SaleHandler) DeleteItem(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	var q dto.ForceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	resp, err := h.saleService.DeleteSaleItem(c.Request.Context(), id, q.Force)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
