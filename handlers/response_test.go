package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func TestCodeFor(t *testing.T) {
	cases := []struct {
		kind utils.ErrorKind
		want int
	}{
		{"", CodeOK},
		{utils.KindValidation, CodeValidation},
		{utils.KindPermissionDenied, CodePermissionDenied},
		{utils.KindNotFound, CodeNotFound},
		{utils.KindStateConflict, CodeStateConflict},
		{utils.KindInsufficientStock, CodeBusinessRule},
		{utils.KindExceedsBalance, CodeBusinessRule},
		{utils.KindExceedsRefundable, CodeBusinessRule},
		{utils.KindTypeMismatch, CodeBusinessRule},
		{utils.KindNothingPending, CodeBusinessRule},
		{utils.KindUnrecoverable, CodeInternal},
	}
	for _, tc := range cases {
		if got := CodeFor(tc.kind); got != tc.want {
			t.Fatalf("CodeFor(%q) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestFailHidesUnexpectedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) { Fail(c, errors.New("dial tcp 10.0.0.1:3306: connection refused")) })
	r.GET("/short", func(c *gin.Context) {
		Fail(c, utils.NewAppError(utils.KindInsufficientStock, "only 2 left"))
	})

	decode := func(path string) Response {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: http status %d", path, w.Code)
		}
		var resp Response
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		return resp
	}

	resp := decode("/boom")
	if resp.Code != CodeInternal || resp.Msg != "internal error" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	resp = decode("/short")
	if resp.Code != CodeBusinessRule || resp.Msg != "only 2 left" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
}
