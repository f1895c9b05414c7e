package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/server/http/dto"
)

// PrincipalContextKey is a gin context key for the authenticated caller.
const PrincipalContextKey = "principal"

// TokenParser resolves bearer tokens into principals.
type TokenParser interface {
	ParseToken(token string) (pkgAuth.Principal, error)
}

// AuthRequired ensures the caller presents a valid bearer token.
func AuthRequired(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal, err := parser.ParseToken(token)
		if err != nil {
			if errors.Is(err, pkgAuth.ErrInvalidToken) {
				abort(c, http.StatusUnauthorized, "invalid_token")
				return
			}
			abort(c, http.StatusInternalServerError, "internal")
			return
		}

		c.Set(PrincipalContextKey, principal)
		c.Next()
	}
}

// RequireRole rejects principals whose role is not listed.
func RequireRole(roles ...pkgAuth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := Principal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden")
	}
}

// Principal returns the caller stored by AuthRequired.
func Principal(c *gin.Context) (pkgAuth.Principal, bool) {
	val, ok := c.Get(PrincipalContextKey)
	if !ok {
		return pkgAuth.Principal{}, false
	}
	p, ok := val.(pkgAuth.Principal)
	return p, ok
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

func abort(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: code})
}
