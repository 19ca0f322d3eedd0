// README: Tests for session auth, approval and role gates.
package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"staybook/internal/http/middleware"
	"staybook/internal/modules/identity"
	"staybook/internal/types"
)

// stubResolver is a test double for middleware.SessionResolver.
type stubResolver struct {
	users map[string]*identity.User
	err   error
}

func (s *stubResolver) ResolveSession(_ context.Context, token string) (*identity.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[token]
	if !ok {
		return nil, fmt.Errorf("%w: invalid or expired session", types.ErrUnauthorized)
	}
	return u, nil
}

func newResolver() *stubResolver {
	return &stubResolver{users: map[string]*identity.User{
		"client-token":  {ID: "u1", Role: identity.RoleClient, Status: identity.StatusApproved},
		"pending-token": {ID: "u2", Role: identity.RolePropertyOwner, Status: identity.StatusPending},
		"admin-token":   {ID: "u3", Role: identity.RoleAdmin, Status: identity.StatusApproved},
	}}
}

func newTestRouter(resolver middleware.SessionResolver, gates ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(resolver))
	r.Use(gates...)
	r.GET("/test", func(c *gin.Context) {
		u := middleware.CallerUser(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID, "role": u.Role, "token": middleware.CallerToken(c)})
	})
	return r
}

func get(r *gin.Engine, header string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingToken(t *testing.T) {
	w := get(newTestRouter(newResolver()), "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	w := get(newTestRouter(newResolver()), "Token client-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_UnknownToken(t *testing.T) {
	w := get(newTestRouter(newResolver()), "Bearer nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ResolverFailureIs500(t *testing.T) {
	w := get(newTestRouter(&stubResolver{err: errors.New("redis down")}), "Bearer client-token", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestAuth_BearerToken(t *testing.T) {
	w := get(newTestRouter(newResolver()), "Bearer client-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := `{"id":"u1","role":"client","token":"client-token"}`
	if w.Body.String() != want {
		t.Errorf("expected %s, got %s", want, w.Body.String())
	}
}

func TestAuth_Cookie(t *testing.T) {
	w := get(newTestRouter(newResolver()), "", &http.Cookie{Name: middleware.SessionCookie, Value: "admin-token"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRequireApproved_PendingIsForbidden(t *testing.T) {
	r := newTestRouter(newResolver(), middleware.RequireApproved())
	if w := get(r, "Bearer pending-token", nil); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if w := get(r, "Bearer client-token", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	r := newTestRouter(newResolver(), middleware.RequireRoles(identity.RoleAdmin, identity.RoleBilling))
	if w := get(r, "Bearer client-token", nil); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if w := get(r, "Bearer admin-token", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
