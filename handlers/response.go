package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

const (
	CodeOK               = 200
	CodeValidation       = 400
	CodeUnauthorized     = 401
	CodePermissionDenied = 403
	CodeNotFound         = 404
	CodeStateConflict    = 409
	CodeBusinessRule     = 422
	CodeInternal         = 500
)

// Response is the envelope every endpoint answers with. The HTTP status is
// always 200; Code carries the outcome.
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

func CodeFor(kind utils.ErrorKind) int {
	switch kind {
	case "":
		return CodeOK
	case utils.KindValidation:
		return CodeValidation
	case utils.KindPermissionDenied:
		return CodePermissionDenied
	case utils.KindNotFound:
		return CodeNotFound
	case utils.KindStateConflict:
		return CodeStateConflict
	case utils.KindInsufficientStock, utils.KindExceedsBalance, utils.KindExceedsRefundable,
		utils.KindTypeMismatch, utils.KindNothingPending:
		return CodeBusinessRule
	default:
		return CodeInternal
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Msg: "success", Data: data})
}

// Fail writes err as an envelope. Unexpected errors are logged with the
// correlation id and answered with a generic message.
func Fail(c *gin.Context, err error) {
	kind := utils.KindOf(err)
	code := CodeFor(kind)
	if code == CodeInternal {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "handlers", c.FullPath(), "request failed", gin.H{"correlation_id": cid}, err)
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, Response{Code: code, Msg: utils.PublicMessage(err), Data: nil})
}

func respond(c *gin.Context, data interface{}, err error) {
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, data)
}
