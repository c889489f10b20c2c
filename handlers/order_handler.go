package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/models"
)

func registerOrderRoutes(r gin.IRouter) {
	purchase := r.Group("/purchase/orders")
	purchase.POST("", withBody(models.CreatePurchaseOrder))
	purchase.GET("/:id", byId(models.GetPurchaseOrder))
	purchase.PUT("/:id", byIdWithBody(models.UpdatePurchaseOrder))
	purchase.DELETE("/:id", byId(models.DeletePurchaseOrder))
	purchase.POST("/:id/audit", byId(models.AuditPurchaseOrder))
	purchase.POST("/:id/cancel", byId(models.CancelPurchaseOrder))
	purchase.POST("/:id/complete", byId(models.CompletePurchaseOrder))

	sale := r.Group("/sale/orders")
	sale.POST("", withBody(models.CreateSalesOrder))
	sale.GET("/:id", byId(models.GetSalesOrder))
	sale.PUT("/:id", byIdWithBody(models.UpdateSalesOrder))
	sale.DELETE("/:id", byId(models.DeleteSalesOrder))
	sale.POST("/:id/audit", byId(models.AuditSalesOrder))
	sale.POST("/:id/cancel", byId(models.CancelSalesOrder))
}
