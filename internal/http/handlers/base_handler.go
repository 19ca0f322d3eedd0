// README: Base handler utilities (JSON helpers, binding, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"staybook/internal/http/middleware"
	"staybook/internal/modules/identity"
	"staybook/internal/types"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps the domain error taxonomy onto status codes. Anything outside it is
// attached to the context for the request log and answered with a bare 500.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, types.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrConflict), errors.Is(err, types.ErrInvalidState):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrExternalService):
		_ = c.Error(err)
		writeError(c, http.StatusBadGateway, "payment provider unavailable")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// bindJSON decodes the body into req; unknown fields and failed binding tags are 400s.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted entirely.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, req)
}

func caller(c *gin.Context) *identity.User {
	return middleware.CallerUser(c)
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" || len(v) > 64 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

func parseDate(v string) (time.Time, error) {
	return time.Parse(dateLayout, v)
}

func optionalID(v *string) *types.ID {
	if v == nil || *v == "" {
		return nil
	}
	id := types.ID(*v)
	return &id
}

// list keeps empty collections as [] on the wire.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
