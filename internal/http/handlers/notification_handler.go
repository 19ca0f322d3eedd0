// README: Notification inbox handlers for the calling user.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

type NotificationService interface {
	List(ctx context.Context, userID types.ID) ([]*notification.Notification, error)
	UnreadCount(ctx context.Context, userID types.ID) (int, error)
	MarkRead(ctx context.Context, userID, id types.ID) error
	MarkAllRead(ctx context.Context, userID types.ID) (int64, error)
}

type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: svc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	ns, err := h.notifications.List(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(ns))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), caller(c).ID, id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"updated": n})
}
