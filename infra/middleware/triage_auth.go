package middleware

import (
	"crypto/subtle"
	"strings"

	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AdminAuthConfig configures the admin authentication middleware.
type AdminAuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret string

	// APIKey, when set, is accepted via the X-API-Key header as an
	// alternative to a bearer token.
	APIKey string
}

// AdminAuth protects the admin endpoints. A request passes with either
// a valid HS256 bearer token or the configured API key. With neither
// credential configured, the middleware rejects everything; admin
// routes never fall open by omission.
func AdminAuth(cfg AdminAuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.APIKey != "" {
			if key := c.Get("X-API-Key"); key != "" {
				if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1 {
					return c.Next()
				}
				return apperr.Unauthorized("invalid API key")
			}
		}

		if cfg.JWTSecret == "" {
			return apperr.Unauthorized("admin access is not configured")
		}

		header := c.Get("Authorization")
		if header == "" {
			return apperr.Unauthorized("missing authorization header")
		}

		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return apperr.Unauthorized("invalid authorization header")
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperr.InvalidToken("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return apperr.InvalidToken("invalid or expired token")
		}

		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Locals("admin_subject", sub)
		}

		return c.Next()
	}
}
