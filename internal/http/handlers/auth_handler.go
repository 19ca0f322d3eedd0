// README: Identity handlers: registration, sessions, account approval and role administration.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staybook/internal/http/middleware"
	"staybook/internal/modules/identity"
	"staybook/internal/types"
)

type IdentityService interface {
	Register(ctx context.Context, cmd identity.RegisterCommand) (*identity.User, error)
	CreateStaff(ctx context.Context, actorID types.ID, cmd identity.RegisterCommand) (*identity.User, error)
	Authenticate(ctx context.Context, email, password string) (string, *identity.User, error)
	Logout(ctx context.Context, token string) error
	ListUsers(ctx context.Context, actorID types.ID, f identity.ListFilter) ([]*identity.User, error)
	AssignRole(ctx context.Context, actorID, targetID types.ID, role identity.Role) (*identity.User, error)
	DecideUser(ctx context.Context, actorID, targetID types.ID, approve bool) (*identity.User, error)
	SubmitRoleChange(ctx context.Context, userID types.ID, role identity.Role, reason string) (*identity.RoleChangeRequest, error)
	ListRoleRequests(ctx context.Context, actorID types.ID, status identity.Status) ([]*identity.RoleChangeRequest, error)
	DecideRoleChange(ctx context.Context, actorID, requestID types.ID, approve bool, reason string) (*identity.RoleChangeRequest, error)
}

type AuthHandler struct {
	identity   IdentityService
	sessionTTL time.Duration
	secure     bool
}

func NewAuthHandler(svc IdentityService, sessionTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{identity: svc, sessionTTL: sessionTTL, secure: secureCookie}
}

type registerReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (r registerReq) command() identity.RegisterCommand {
	return identity.RegisterCommand{Email: r.Email, Password: r.Password, Name: r.Name, Role: identity.Role(r.Role)}
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResp struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

type decisionReq struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Reason   string `json:"reason"`
}

func (r decisionReq) approve() bool { return r.Decision == "approve" }

type assignRoleReq struct {
	Role string `json:"role" binding:"required"`
}

type roleChangeReq struct {
	Role   string `json:"role" binding:"required"`
	Reason string `json:"reason"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.identity.Register(c.Request.Context(), req.command())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if !bindJSON(c, &req) {
		return
	}
	token, u, err := h.identity.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", h.secure, true)
	writeJSON(c, http.StatusOK, loginResp{Token: token, User: u})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.identity.Logout(c.Request.Context(), middleware.CallerToken(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secure, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	writeJSON(c, http.StatusOK, caller(c))
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	f := identity.ListFilter{
		Role:   identity.Role(c.Query("role")),
		Status: identity.Status(c.Query("status")),
	}
	users, err := h.identity.ListUsers(c.Request.Context(), caller(c).ID, f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(users))
}

func (h *AuthHandler) CreateStaff(c *gin.Context) {
	var req registerReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.identity.CreateStaff(c.Request.Context(), caller(c).ID, req.command())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

func (h *AuthHandler) AssignRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignRoleReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.identity.AssignRole(c.Request.Context(), caller(c).ID, id, identity.Role(req.Role))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *AuthHandler) DecideUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req decisionReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.identity.DecideUser(c.Request.Context(), caller(c).ID, id, req.approve())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *AuthHandler) SubmitRoleChange(c *gin.Context) {
	var req roleChangeReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.identity.SubmitRoleChange(c.Request.Context(), caller(c).ID, identity.Role(req.Role), req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *AuthHandler) ListRoleRequests(c *gin.Context) {
	status := identity.Status(c.DefaultQuery("status", string(identity.StatusPending)))
	reqs, err := h.identity.ListRoleRequests(c.Request.Context(), caller(c).ID, status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(reqs))
}

func (h *AuthHandler) DecideRoleChange(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req decisionReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.identity.DecideRoleChange(c.Request.Context(), caller(c).ID, id, req.approve(), req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
