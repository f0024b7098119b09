package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxCaller    = "caller"
	CtxRole      = "role"
	CtxRequestID = "requestID"
)

// TokenParser is the part of service.AuthService the middleware needs.
type TokenParser interface {
	ParseAccessToken(token string) (*service.AppClaims, error)
}

func abortAuth(c *gin.Context, status int, err *domain.Error) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   err.Msg,
		"code":    err.Code,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores the caller address (common.Address) and role (string)
// in the gin context.
func JWTMiddleware(auth TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abortAuth(c, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		claims, err := auth.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				abortAuth(c, http.StatusUnauthorized, domain.ErrTokenExpired)
				return
			}
			abortAuth(c, http.StatusUnauthorized, domain.ErrTokenInvalid)
			return
		}

		caller, err := claims.Address()
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, domain.ErrTokenInvalid)
			return
		}

		c.Set(CtxCaller, caller)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoleMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// RoleMiddleware ensures the authenticated caller has one of the allowed
// roles. Must be placed after JWTMiddleware in the chain.
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			abortAuth(c, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

// AdminMiddleware allows only admins to access the route.
// Must be placed after JWTMiddleware in the chain.
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(service.RoleAdmin)
}

// ──────────────────────────────────────────────────────────────────────────────
// Context helpers (for use in handlers)
// ──────────────────────────────────────────────────────────────────────────────

// GetCaller retrieves the authenticated caller address from the gin context.
// Returns the zero address if the middleware was not applied.
func GetCaller(c *gin.Context) common.Address {
	v, exists := c.Get(CtxCaller)
	if !exists {
		return common.Address{}
	}
	addr, _ := v.(common.Address)
	return addr
}

// GetRole retrieves the authenticated caller's role from the gin context.
func GetRole(c *gin.Context) string {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return r
}
