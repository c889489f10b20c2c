package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mmdatafocus/warehouse_backend/appctx"
)

type JwtCustomClaim struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

func (c *JwtCustomClaim) Actor() appctx.Actor {
	return appctx.Actor{
		UserId:      c.ID,
		UserName:    c.Name,
		IsAdmin:     c.IsAdmin,
		Permissions: c.Permissions,
	}
}

func jwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("Warehouse-Secret")
	}
	return []byte(secret)
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func JwtGenerate(actor appctx.Actor) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:          actor.UserId,
		Name:        actor.UserName,
		IsAdmin:     actor.IsAdmin,
		Permissions: actor.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifespan())),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return t.SignedString(jwtSecret())
}

func JwtValidate(token string) (*JwtCustomClaim, error) {
	claims := &JwtCustomClaim{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
