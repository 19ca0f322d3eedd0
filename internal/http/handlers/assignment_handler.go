// README: Job assignment handlers for coordinators and providers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/assignment"
	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/types"
)

type AssignmentService interface {
	Assign(ctx context.Context, actor *identity.User, serviceBookingID, providerID types.ID) (*assignment.Assignment, error)
	Accept(ctx context.Context, actor *identity.User, id types.ID) (*assignment.Assignment, error)
	Reject(ctx context.Context, actor *identity.User, id types.ID, reason string) (*assignment.Assignment, error)
	CoordinatorCancel(ctx context.Context, actor *identity.User, id types.ID) (*assignment.Assignment, error)
	Reassign(ctx context.Context, actor *identity.User, id, providerID types.ID) (*assignment.Assignment, error)
	Candidates(ctx context.Context, actor *identity.User, serviceBookingID types.ID) ([]*catalog.Provider, error)
	Get(ctx context.Context, actor *identity.User, id types.ID) (*assignment.Assignment, error)
	ListForProvider(ctx context.Context, actor *identity.User) ([]*assignment.Assignment, error)
	ListForServiceBooking(ctx context.Context, actor *identity.User, serviceBookingID types.ID) ([]*assignment.Assignment, error)
}

type AssignmentHandler struct {
	assignment AssignmentService
}

func NewAssignmentHandler(svc AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignment: svc}
}

type assignReq struct {
	ServiceBookingID string `json:"service_booking_id" binding:"required"`
	ProviderID       string `json:"service_provider_id" binding:"required"`
}

type reassignReq struct {
	ProviderID string `json:"service_provider_id" binding:"required"`
}

func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req assignReq
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assignment.Assign(c.Request.Context(), caller(c), types.ID(req.ServiceBookingID), types.ID(req.ProviderID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, a)
}

func (h *AssignmentHandler) Accept(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.assignment.Accept(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	a, err := h.assignment.Reject(c.Request.Context(), caller(c), id, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.assignment.CoordinatorCancel(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) Reassign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reassignReq
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assignment.Reassign(c.Request.Context(), caller(c), id, types.ID(req.ProviderID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, a)
}

func (h *AssignmentHandler) Candidates(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ps, err := h.assignment.Candidates(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(ps))
}

func (h *AssignmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.assignment.Get(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) ListMine(c *gin.Context) {
	as, err := h.assignment.ListForProvider(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(as))
}

func (h *AssignmentHandler) ListForServiceBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	as, err := h.assignment.ListForServiceBooking(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(as))
}
