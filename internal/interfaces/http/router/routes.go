package router

import (
	"github.com/gin-gonic/gin"
	"github.com/reseller/backend/internal/interfaces/http/handler"
)

// Handlers bundles the handlers mounted by Mount
type Handlers struct {
	System   *handler.SystemHandler
	Purchase *handler.PurchaseHandler
	Sale     *handler.SaleHandler
	Stock    *handler.StockHandler
}

// AdminRoutes declares the ledger API under /admin, guarded by adminAuth
func AdminRoutes(h Handlers, adminAuth gin.HandlerFunc) *Group {
	admin := NewGroup("/admin").Use(adminAuth)

	admin.Nest("/purchases").
		POST("", h.Purchase.Create).
		GET("", h.Purchase.List).
		GET("/:id", h.Purchase.Get).
		POST("/:id/payments", h.Purchase.AddPayment)
	admin.Nest("/payments").
		DELETE("/:id", h.Purchase.DeletePayment)
	admin.Nest("/lots").
		GET("", h.Purchase.ListLots).
		PUT("/:id/product", h.Purchase.AssociateLot)

	admin.Nest("/sales").
		POST("", h.Sale.Create).
		GET("", h.Sale.List).
		GET("/:id", h.Sale.Get).
		PUT("/:id", h.Sale.UpdateHeader).
		PUT("/:id/items", h.Sale.UpdateItems).
		DELETE("/:id", h.Sale.Delete)
	admin.Nest("/sale-items").
		DELETE("/:id", h.Sale.DeleteItem)

	admin.Nest("/stock").
		POST("/positions", h.Stock.Positions).
		POST("/positions/export", h.Stock.ExportPositions).
		POST("/sale-flags", h.Stock.SaleFlags).
		GET("/check", h.Stock.Check).
		POST("/reconcile", h.Stock.Reconcile)

	return admin
}

// Mount registers health at the root and the versioned API
func Mount(engine *gin.Engine, h Handlers, adminAuth gin.HandlerFunc) {
	engine.GET("/health", h.System.Health)

	api := engine.Group(APIPrefix)
	api.GET("/ping", h.System.Ping)
	AdminRoutes(h, adminAuth).Attach(api)
}
