package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/appctx"
	"github.com/mmdatafocus/warehouse_backend/handlers"
	"github.com/mmdatafocus/warehouse_backend/testutil"
)

type apiEnv struct {
	router *gin.Engine
	token  string
	admin  string
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	testutil.SetupTestDB(t)

	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router)
	router.NoRoute(handlers.NotFound)

	return &apiEnv{
		router: router,
		token:  testutil.TestToken(t, testutil.DefaultActor()),
		admin:  testutil.TestToken(t, appctx.Actor{UserId: 2, UserName: "admin", IsAdmin: true}),
	}
}

// call performs a request and decodes the envelope; the HTTP status is always 200.
func (e *apiEnv) call(t *testing.T, method, path string, body interface{}, token string) testutil.Envelope {
	t.Helper()
	w := testutil.DoRequest(e.router, method, path, body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s: http status %d: %s", method, path, w.Code, w.Body.String())
	}
	return testutil.ParseResponse(t, w)
}

// ok performs a request that must succeed and decodes its data into out.
func (e *apiEnv) ok(t *testing.T, method, path string, body interface{}, out interface{}) {
	t.Helper()
	env := e.call(t, method, path, body, e.token)
	if env.Code != handlers.CodeOK {
		t.Fatalf("%s %s: code %d: %s", method, path, env.Code, env.Msg)
	}
	if out != nil {
		testutil.DecodeData(t, env, out)
	}
}

func (e *apiEnv) expectCode(t *testing.T, method, path string, body interface{}, want int) testutil.Envelope {
	t.Helper()
	env := e.call(t, method, path, body, e.token)
	if env.Code != want {
		t.Fatalf("%s %s: code %d (%s), want %d", method, path, env.Code, env.Msg, want)
	}
	return env
}

type idOnly struct {
	ID int `json:"id"`
}

type catalog struct {
	warehouseId int
	customerId  int
	supplierId  int
	skuId       int
}

func (e *apiEnv) seedCatalog(t *testing.T) catalog {
	t.Helper()
	var warehouse, customer, supplier idOnly
	e.ok(t, "POST", "/warehouses", gin.H{"name": "Main"}, &warehouse)
	e.ok(t, "POST", "/customers", gin.H{"name": "Alice"}, &customer)
	e.ok(t, "POST", "/suppliers", gin.H{"name": "Acme"}, &supplier)

	var product struct {
		Skus []idOnly `json:"skus"`
	}
	e.ok(t, "POST", "/products", gin.H{
		"name": "Shirt",
		"code": "sh",
		"skus": []gin.H{{"spec": gin.H{"color": "red"}, "purchase_price": "40", "sale_price": "100"}},
	}, &product)
	if len(product.Skus) != 1 {
		t.Fatalf("expected one sku, got %d", len(product.Skus))
	}
	return catalog{warehouseId: warehouse.ID, customerId: customer.ID, supplierId: supplier.ID, skuId: product.Skus[0].ID}
}

// receive buys qty units at 40 and stocks them in through the purchase flow.
func (e *apiEnv) receive(t *testing.T, cat catalog, qty int) {
	t.Helper()
	var order idOnly
	e.ok(t, "POST", "/purchase/orders", gin.H{
		"supplier_id":  cat.supplierId,
		"warehouse_id": cat.warehouseId,
		"items":        []gin.H{{"sku_id": cat.skuId, "quantity": qty, "price": "40"}},
	}, &order)
	e.ok(t, "POST", fmt.Sprintf("/purchase/orders/%d/audit", order.ID), nil, nil)

	var doc idOnly
	e.ok(t, "POST", "/purchase/stocks", gin.H{"purchase_order_id": order.ID}, &doc)
	e.ok(t, "POST", fmt.Sprintf("/purchase/stocks/%d/audit", doc.ID), nil, nil)
}
