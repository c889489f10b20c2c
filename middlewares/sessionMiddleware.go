package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

const revokedTokenPrefix = "RevokedToken:"

// SessionMiddleware rejects tokens revoked by RevokeToken. Must run after
// AuthMiddleware. Without redis nothing is ever revoked.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.Next()
			return
		}
		_, revoked, err := config.GetRedisValue(revokedTokenPrefix + token)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "revocation lookup", nil, err)
		}
		if revoked {
			unauthorized(c, "session revoked")
			return
		}
		c.Next()
	}
}

// RevokeToken marks token revoked until it would have expired anyway.
func RevokeToken(token string) error {
	claims, err := utils.JwtValidate(token)
	if err != nil {
		return err
	}
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return config.SetRedisValue(revokedTokenPrefix+token, "1", ttl)
}
