package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

const callerKey = "caller"

// Claims are the upstream-issued bearer token claims.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. Tokens are issued by the
// identity service; this side only verifies.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Parse validates a token and maps it to a Caller.
func (a *Authenticator) Parse(token string) (domain.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return domain.Caller{}, errors.New("invalid token")
	}
	role := claims.Role
	if role != domain.RoleAdmin {
		role = domain.RoleCustomer
	}
	return domain.Caller{UserID: claims.Subject, Role: role}, nil
}

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearer(c)
		if token == "" {
			return errUnauthorized(c, "missing bearer token")
		}
		caller, err := a.Parse(token)
		if err != nil {
			return errUnauthorized(c, "invalid bearer token")
		}
		c.Locals(callerKey, caller)
		return c.Next()
	}
}

// Optional attaches the caller when a valid token is present and lets
// anonymous requests through.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearer(c); token != "" {
			if caller, err := a.Parse(token); err == nil {
				c.Locals(callerKey, caller)
			}
		}
		return c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !callerFrom(c).IsAdmin() {
			return newError(c, fiber.StatusForbidden, "forbidden", "administrator role required")
		}
		return c.Next()
	}
}

func callerFrom(c *fiber.Ctx) domain.Caller {
	caller, _ := c.Locals(callerKey).(domain.Caller)
	return caller
}
