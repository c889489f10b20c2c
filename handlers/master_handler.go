package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/models"
)

func registerMasterDataRoutes(r gin.IRouter) {
	r.POST("/warehouses", withBody(models.CreateWarehouse))

	r.POST("/customers", withBody(models.CreateCustomer))
	r.GET("/customers/:id", byId(models.FindCustomer))

	r.POST("/suppliers", withBody(models.CreateSupplier))
	r.GET("/suppliers/:id", byId(models.FindSupplier))

	r.POST("/products", withBody(models.CreateProduct))
	r.GET("/skus/:id", byId(models.GetSku))
	r.PUT("/skus/:id/price", byIdWithBody(models.UpdateSkuPrice))
}
