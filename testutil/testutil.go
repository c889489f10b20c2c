// Package testutil holds the in-memory database and HTTP helpers shared by
// package tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/warehouse_backend/appctx"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB installs a fresh in-memory database as the global handle and
// restores the previous one when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the in-memory database alive and serialises transactions
	sqlDB.SetMaxOpenConns(1)
	if err := config.InstallPlugins(db); err != nil {
		t.Fatalf("install plugins: %v", err)
	}
	if err := db.AutoMigrate(models.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(previous)
		_ = sqlDB.Close()
	})
	return db
}

// DefaultActor is a non-admin user without extra permissions.
func DefaultActor() appctx.Actor {
	return appctx.Actor{UserId: 1, UserName: "tester"}
}

func ActorContext(isAdmin bool, permissions ...string) context.Context {
	actor := DefaultActor()
	actor.IsAdmin = isAdmin
	actor.Permissions = permissions
	return utils.SetActorInContext(context.Background(), actor)
}

// TestToken signs a token for actor with the process secret.
func TestToken(t *testing.T, actor appctx.Actor) string {
	t.Helper()
	token, err := utils.JwtGenerate(actor)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// DoRequest executes an HTTP request against the router.
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	return DoRequestWithHeaders(r, method, path, body, token, nil)
}

// Envelope is the decoded {code, msg, data} response.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func ParseResponse(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return env
}

// DecodeData unmarshals the envelope's data into out.
func DecodeData(t *testing.T, env Envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

// DoRequestWithHeaders is DoRequest with extra request headers.
func DoRequestWithHeaders(r http.Handler, method, path string, body interface{}, token string, headers map[string]string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
