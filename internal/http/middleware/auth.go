// README: Session auth middleware; resolves the bearer token or session cookie to a user.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/identity"
	"staybook/internal/types"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "staybook_session"

	ctxUser  = "auth.user"
	ctxToken = "auth.token"
)

// SessionResolver maps a session token to its user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*identity.User, error)
}

// Auth rejects requests without a valid session. The approval gate is not applied here.
func Auth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "missing session token")
			return
		}
		u, err := resolver.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, types.ErrUnauthorized) {
				abort(c, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.Set(ctxUser, u)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}

// CallerUser returns the authenticated user, or nil outside Auth.
func CallerUser(c *gin.Context) *identity.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*identity.User)
	return u
}

// CallerToken returns the session token the request was authenticated with.
func CallerToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}

// RequireApproved lets through only approved accounts.
func RequireApproved() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CallerUser(c)
		if u == nil {
			abort(c, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if err := identity.CheckApproved(u); err != nil {
			abort(c, http.StatusForbidden, err.Error())
			return
		}
		c.Next()
	}
}

// RequireRoles lets through only callers holding one of roles.
func RequireRoles(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CallerUser(c)
		if u == nil {
			abort(c, http.StatusUnauthorized, "unauthenticated")
			return
		}
		for _, r := range roles {
			if u.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "role not permitted")
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
