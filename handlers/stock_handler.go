package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func listStocks(c *gin.Context) {
	var filter models.StockFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		Fail(c, utils.NewValidationError("invalid query: %s", err.Error()))
		return
	}
	stocks, err := models.GetStocks(c.Request.Context(), filter)
	respond(c, stocks, err)
}

func listStockHistories(c *gin.Context) {
	var filter models.StockFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		Fail(c, utils.NewValidationError("invalid query: %s", err.Error()))
		return
	}
	histories, err := models.GetStockHistories(c.Request.Context(), filter)
	respond(c, histories, err)
}

func registerStockRoutes(r gin.IRouter) {
	r.GET("/stocks", listStocks)
	r.GET("/stocks/histories", listStockHistories)

	purchase := r.Group("/purchase/stocks")
	purchase.POST("", withBody(models.CreatePurchaseStockIn))
	purchase.GET("/:id", byId(models.GetPurchaseStockIn))
	purchase.POST("/:id/audit", byId(models.AuditPurchaseStockIn))
	purchase.POST("/:id/cancel", byId(models.CancelPurchaseStockIn))

	sale := r.Group("/sale/stocks")
	sale.POST("", withBody(models.CreateSaleStockOut))
	sale.GET("/:id", byId(models.GetSaleStockOut))
	sale.POST("/:id/audit", byId(models.AuditSaleStockOut))
	sale.POST("/:id/cancel", byId(models.CancelSaleStockOut))

	transfers := r.Group("/stock/transfers")
	transfers.POST("", withBody(models.CreateStockTransfer))
	transfers.GET("/:id", byId(models.GetStockTransfer))
	transfers.POST("/:id/audit", byId(models.AuditStockTransfer))
	transfers.POST("/:id/cancel", byId(models.CancelStockTransfer))

	takes := r.Group("/stock/takes")
	takes.POST("", withBody(models.CreateStockTake))
	takes.GET("/:id", byId(models.GetStockTake))
	takes.POST("/:id/audit", byId(models.AuditStockTake))
	takes.POST("/:id/cancel", byId(models.CancelStockTake))
}
