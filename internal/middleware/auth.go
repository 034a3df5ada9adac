package middleware

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ParseSessionKey parses the identity provider's instance public key (PEM).
// Returns nil when no key is configured; the gate then rejects everything.
func ParseSessionKey(pemKey string) (*rsa.PublicKey, error) {
	if pemKey == "" {
		return nil, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("parse session public key: %w", err)
	}
	return key, nil
}

// SessionAuth verifies the identity provider's session JWT (RS256, signed
// with the instance key) and stores the subject in the request context.
// It resolves identity only - role checks happen at each admin call site.
func SessionAuth(key *rsa.PublicKey) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == nil {
			return unauthorized(c)
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c)
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			return unauthorized(c)
		}

		c.Locals("userID", claims.Subject)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized",
	})
}

// CurrentUserID returns the session subject stored by SessionAuth.
func CurrentUserID(c *fiber.Ctx) string {
	id, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return id
}
