package utils

import (
	"context"
	"testing"

	"github.com/mmdatafocus/warehouse_backend/appctx"
)

func TestJwtRoundTripCarriesActor(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	actor := appctx.Actor{UserId: 7, UserName: "cashier", Permissions: []string{"settlement.cancel"}}

	token, err := JwtGenerate(actor)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claims, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	got := claims.Actor()
	if got.UserId != 7 || got.UserName != "cashier" || got.IsAdmin || !got.Can("settlement.cancel") {
		t.Fatalf("unexpected actor %+v", got)
	}

	t.Setenv("API_SECRET", "other-secret")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("token signed with another secret must not validate")
	}
}

func TestRequirePermission(t *testing.T) {
	ctx := SetActorInContext(context.Background(), appctx.Actor{UserId: 1, Permissions: []string{"reconcile.run"}})
	if err := RequirePermission(ctx, "reconcile.run"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if KindOf(RequirePermission(ctx, "settlement.cancel")) != KindPermissionDenied {
		t.Fatalf("expected PermissionDenied")
	}

	admin := SetActorInContext(context.Background(), appctx.Actor{UserId: 2, IsAdmin: true})
	if err := RequirePermission(admin, "settlement.cancel"); err != nil {
		t.Fatalf("admin should hold every permission: %v", err)
	}
	if GetUserIdFromContext(context.Background()) != 0 {
		t.Fatalf("no actor means user id 0")
	}
}
