package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

// createReturnStock takes an optional body; without one the whole
// unprocessed remainder goes into the document.
func createReturnStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input *models.NewReturnStock
	var body models.NewReturnStock
	if err := c.ShouldBindJSON(&body); err == nil {
		input = &body
	} else if !errors.Is(err, io.EOF) {
		Fail(c, utils.NewValidationError("invalid request body: %s", err.Error()))
		return
	}
	doc, err := models.CreateReturnStock(c.Request.Context(), id, input)
	respond(c, doc, err)
}

func registerReturnRoutes(r gin.IRouter) {
	returns := r.Group("/returns")
	returns.POST("", withBody(models.CreateReturn))
	returns.GET("/:id", byId(models.GetReturn))
	returns.PUT("/:id", byIdWithBody(models.UpdateReturn))
	returns.POST("/:id/audit", byId(models.AuditReturn))
	returns.POST("/:id/create_stock", createReturnStock)
	returns.POST("/:id/refund", byIdWithBody(models.Refund))
	returns.POST("/:id/complete", byId(models.CompleteReturn))
	returns.POST("/:id/cancel", byId(models.CancelReturn))

	stocks := returns.Group("/stocks")
	stocks.GET("/:id", byId(models.GetReturnStock))
	stocks.POST("/:id/audit", byId(models.AuditReturnStock))
	stocks.POST("/:id/cancel", byId(models.CancelReturnStock))
}
