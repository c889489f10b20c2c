// Package handlers is the REST surface over the models package. Every
// response is a {code, msg, data} envelope.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/middlewares"
)

// RegisterRoutes mounts every business endpoint under r behind token auth.
func RegisterRoutes(r gin.IRouter) {
	api := r.Group("", middlewares.AuthMiddleware(), middlewares.SessionMiddleware())

	registerMasterDataRoutes(api)
	registerOrderRoutes(api)
	registerStockRoutes(api)
	registerReturnRoutes(api)
	registerAccountRoutes(api)
	registerInternalRoutes(api)
}

func NotFound(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Code: CodeNotFound, Msg: "route not found"})
}
