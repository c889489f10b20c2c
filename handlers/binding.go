package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		Fail(c, utils.NewValidationError("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		if errors.Is(err, io.EOF) {
			Fail(c, utils.NewValidationError("request body is required"))
		} else {
			Fail(c, utils.NewValidationError("invalid request body: %s", err.Error()))
		}
		return false
	}
	return true
}

// byId serves operations addressed only by the path id, e.g. audit and cancel.
func byId[T any](fn func(context.Context, int) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		result, err := fn(c.Request.Context(), id)
		respond(c, result, err)
	}
}

// withBody serves create operations taking a JSON body.
func withBody[In any, Out any](fn func(context.Context, *In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input In
		if !bindJSON(c, &input) {
			return
		}
		result, err := fn(c.Request.Context(), &input)
		respond(c, result, err)
	}
}

// byIdWithBody serves updates and actions that take both a path id and a body.
func byIdWithBody[In any, Out any](fn func(context.Context, int, *In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input In
		if !bindJSON(c, &input) {
			return
		}
		result, err := fn(c.Request.Context(), id, &input)
		respond(c, result, err)
	}
}
