package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/models"
)

const IdempotencyHeader = "Idempotency-Key"

func batchSettle(c *gin.Context) {
	var input models.NewBatchSettlement
	if !bindJSON(c, &input) {
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	settlements, err := models.BatchSettle(c.Request.Context(), key, &input)
	respond(c, settlements, err)
}

func registerAccountRoutes(r gin.IRouter) {
	account := r.Group("/account")
	account.POST("/settlement", withBody(models.CreateSettlement))
	account.POST("/settlement/batch", batchSettle)
	account.POST("/settlement/cancel/:id", byId(models.CancelSettlement))
	account.GET("/settlement/:id", byId(models.GetSettlement))

	account.GET("/records/:id", byId(models.GetAccountRecord))
	account.POST("/records/:id/pay", byIdWithBody(models.PayAccountRecord))

	account.POST("/financial_records", withBody(models.CreateFinancialRecord))
	account.GET("/financial_records/:id", byId(models.GetFinancialRecord))
}
