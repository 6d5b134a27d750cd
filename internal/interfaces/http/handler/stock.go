package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appstock "github.com/reseller/backend/internal/application/stock"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StockHandler serves availability queries and reconciliation
type StockHandler struct {
	BaseHandler
	positions      *appstock.PositionService
	reconciliation *appstock.ReconciliationService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(positions *appstock.PositionService, reconciliation *appstock.ReconciliationService) *StockHandler {
	return &StockHandler{positions: positions, reconciliation: reconciliation}
}

// ProductIDsRequest is the body of the position endpoints
type ProductIDsRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" binding:"required,min=1,max=500"`
}

// SaleIDsRequest is the body of POST /admin/stock/sale-flags
type SaleIDsRequest struct {
	SaleIDs []uuid.UUID `json:"sale_ids" binding:"required,min=1,max=500"`
}

// CheckQuery is the query of GET /admin/stock/check
type CheckQuery struct {
	ProductID string `form:"product_id" binding:"required,uuid"`
	Quantity  int    `form:"quantity" binding:"required,gt=0"`
}

// Positions returns available, reserved and net available per product
func (h *StockHandler) Positions(c *gin.Context) {
	var req ProductIDsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	positions, err := h.positions.GetStockPosition(c.Request.Context(), req.ProductIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, positions)
}

// ExportPositions streams the positions as an xlsx workbook
func (h *StockHandler) ExportPositions(c *gin.Context) {
	var req ProductIDsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var buf bytes.Buffer
	if err := h.positions.ExportPositionsXLSX(c.Request.Context(), req.ProductIDs, &buf); err != nil {
		h.HandleError(c, err)
		return
	}
	name := fmt.Sprintf("stock-positions-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// SaleFlags marks the sales whose pending lines exceed stock
func (h *StockHandler) SaleFlags(c *gin.Context) {
	var req SaleIDsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	flags, err := h.positions.FlagSales(c.Request.Context(), req.SaleIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flags)
}

// Check warns when adding quantity units of a product would overcommit it
func (h *StockHandler) Check(c *gin.Context) {
	var q CheckQuery
	if !h.BindQuery(c, &q) {
		return
	}
	check, err := h.positions.CheckAddToSale(c.Request.Context(), uuid.MustParse(q.ProductID), q.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// Reconcile rebuilds every lot's out_quantity from delivered sale items
func (h *StockHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciliation.ReconcileDeliveredStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
