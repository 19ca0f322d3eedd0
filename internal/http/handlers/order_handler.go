// README: Service order handlers covering the full order lifecycle.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/modules/order"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

type OrderService interface {
	Create(ctx context.Context, cmd order.CreateCommand) (*order.Order, error)
	CreatePaymentIntent(ctx context.Context, actor *identity.User, orderID types.ID) (*payment.Intent, error)
	ConfirmPayment(ctx context.Context, cmd order.ConfirmPaymentCommand) (*order.Order, error)
	Accept(ctx context.Context, cmd order.AcceptCommand) (*order.Order, error)
	Reject(ctx context.Context, cmd order.RejectCommand) (*order.Order, error)
	Cancel(ctx context.Context, cmd order.CancelCommand) (*order.Order, error)
	Start(ctx context.Context, cmd order.StartCommand) (*order.Order, error)
	Complete(ctx context.Context, cmd order.CompleteCommand) (*order.Order, error)
	Override(ctx context.Context, cmd order.OverrideCommand) (*order.Order, error)
	Get(ctx context.Context, actor *identity.User, id types.ID) (*order.Order, error)
	ListForClient(ctx context.Context, actor *identity.User) ([]*order.Order, error)
	ListForProvider(ctx context.Context, actor *identity.User) ([]*order.Order, error)
}

type OrderHandler struct {
	order OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{order: svc}
}

type orderItemReq struct {
	Type     string `json:"item_type" binding:"required,oneof=menu_item task"`
	RefID    string `json:"ref_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type createOrderReq struct {
	ProviderID  string         `json:"service_provider_id" binding:"required"`
	BookingID   *string        `json:"booking_id"`
	ServiceDate string         `json:"service_date" binding:"required,datetime=2006-01-02"`
	StartTime   string         `json:"start_time" binding:"required,datetime=15:04"`
	EndTime     string         `json:"end_time" binding:"required,datetime=15:04"`
	Items       []orderItemReq `json:"items" binding:"omitempty,dive"`
	Notes       string         `json:"notes"`
}

type completeOrderReq struct {
	Notes string `json:"notes"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	day, _ := parseDate(req.ServiceDate)
	items := make([]order.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.ItemInput{
			Type:     catalog.ItemKind(it.Type),
			RefID:    types.ID(it.RefID),
			Quantity: it.Quantity,
		})
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		Actor:       caller(c),
		ProviderID:  types.ID(req.ProviderID),
		BookingID:   optionalID(req.BookingID),
		ServiceDate: day,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Items:       items,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) CreatePaymentIntent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	intent, err := h.order.CreatePaymentIntent(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, intent)
}

func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req confirmPaymentReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.order.ConfirmPayment(c.Request.Context(), order.ConfirmPaymentCommand{
		OrderID:  id,
		Actor:    caller(c),
		IntentID: req.PaymentIntentID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Accept(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Accept(ctx, order.AcceptCommand{OrderID: id, Actor: caller(c)})
	})
}

func (h *OrderHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Reject(ctx, order.RejectCommand{OrderID: id, Actor: caller(c), Reason: req.Reason})
	})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Cancel(ctx, order.CancelCommand{OrderID: id, Actor: caller(c), Reason: req.Reason})
	})
}

func (h *OrderHandler) Start(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Start(ctx, order.StartCommand{OrderID: id, Actor: caller(c)})
	})
}

func (h *OrderHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req completeOrderReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Complete(ctx, order.CompleteCommand{OrderID: id, Actor: caller(c), Notes: req.Notes})
	})
}

func (h *OrderHandler) Override(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req overrideReq
	if !bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Override(ctx, order.OverrideCommand{
			OrderID: id,
			Actor:   caller(c),
			Status:  order.Status(req.Status),
			Reason:  req.Reason,
		})
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*order.Order, error) {
		return h.order.Get(ctx, caller(c), id)
	})
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	orders, err := h.order.ListForClient(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(orders))
}

func (h *OrderHandler) ListForProvider(c *gin.Context) {
	orders, err := h.order.ListForProvider(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(orders))
}

func (h *OrderHandler) respond(c *gin.Context, fn func(ctx context.Context) (*order.Order, error)) {
	o, err := fn(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
