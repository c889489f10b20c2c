package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/middlewares"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/mmdatafocus/warehouse_backend/workflow"
)

const PermissionRunReconciliation = "reconcile.run"

// reconcile runs the invariant checks on demand.
// ?persist=true stores the findings; ?format=xlsx downloads them.
func reconcile(c *gin.Context) {
	ctx := c.Request.Context()
	if err := utils.RequirePermission(ctx, PermissionRunReconciliation); err != nil {
		Fail(c, err)
		return
	}
	persist := strings.EqualFold(c.Query("persist"), "true")
	summary, err := workflow.RunReconciliationChecks(ctx, config.GetLogger(), persist)
	if err != nil {
		Fail(c, err)
		return
	}
	if c.Query("format") != "xlsx" {
		Success(c, summary)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=reconcile-%s.xlsx", summary.CorrelationId))
	if err := workflow.WriteReconciliationWorkbook(c.Writer, summary); err != nil {
		config.LogError(config.GetLogger(), "handlers", "reconcile", "write workbook", summary.CorrelationId, err)
	}
}

func logout(c *gin.Context) {
	token, _ := utils.GetTokenFromContext(c.Request.Context())
	if err := middlewares.RevokeToken(token); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

func registerInternalRoutes(r gin.IRouter) {
	r.GET("/internal/reconcile", reconcile)
	r.POST("/auth/logout", logout)
}
