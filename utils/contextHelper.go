package utils

import (
	"context"

	"github.com/mmdatafocus/warehouse_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyActor         = appctx.ContextKeyActor
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func GetActorFromContext(ctx context.Context) (appctx.Actor, bool) {
	return appctx.GetActor(ctx)
}

func SetActorInContext(ctx context.Context, actor appctx.Actor) context.Context {
	return appctx.Set(ctx, ContextKeyActor, actor)
}

// GetUserIdFromContext returns 0 when no actor is attached.
func GetUserIdFromContext(ctx context.Context) int {
	actor, _ := GetActorFromContext(ctx)
	return actor.UserId
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// RequirePermission fails with PermissionDenied unless the actor holds permission.
func RequirePermission(ctx context.Context, permission string) error {
	actor, ok := GetActorFromContext(ctx)
	if !ok || !actor.Can(permission) {
		return NewAppError(KindPermissionDenied, "permission %q required", permission)
	}
	return nil
}
