package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

const bearerPrefix = "Bearer "

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusOK, gin.H{"code": http.StatusUnauthorized, "msg": msg, "data": nil})
}

// AuthMiddleware resolves the bearer token into the request actor.
// Every route behind it needs a valid token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(auth, bearerPrefix) {
			unauthorized(c, "unauthorized")
			return
		}
		token := strings.TrimSpace(auth[len(bearerPrefix):])

		claims, err := utils.JwtValidate(token)
		if err != nil {
			unauthorized(c, "unauthorized")
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetActorInContext(ctx, claims.Actor())
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.ID)
		c.Next()
	}
}
