package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AdminRole is the role claim that unlocks admin routes.
const AdminRole = "admin"

var (
	errUnauthenticated = errors.New("unauthenticated")
	errForbidden       = errors.New("forbidden")
)

// Authorizer decides whether the caller may use admin routes.
type Authorizer interface {
	Authorize(c echo.Context) error
}

// AllowAll admits every caller.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(echo.Context) error { return nil }

// JWTAuthorizer admits bearer tokens signed with HS256 that carry the admin
// role claim.
type JWTAuthorizer struct {
	secret []byte
}

// NewJWTAuthorizer returns an authorizer verifying tokens with secret.
func NewJWTAuthorizer(secret string) *JWTAuthorizer {
	return &JWTAuthorizer{secret: []byte(secret)}
}

// Authorize implements Authorizer.
func (a *JWTAuthorizer) Authorize(c echo.Context) error {
	raw := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return errUnauthenticated
	}
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return errUnauthenticated
	}
	if role, _ := claims["role"].(string); role != AdminRole {
		return errForbidden
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		c.Set("admin", sub)
	}
	return nil
}

// IssueAdminToken signs a token carrying the admin role for subject.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": AdminRole,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// RequireAdmin rejects requests the authorizer refuses.
func RequireAdmin(a Authorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch err := a.Authorize(c); {
			case err == nil:
				return next(c)
			case errors.Is(err, errForbidden):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			default:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
		}
	}
}
