// README: Booking handlers: create, pay, cancel, complete, override and the add-on queues.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/booking"
	"staybook/internal/modules/identity"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

type BookingService interface {
	Create(ctx context.Context, cmd booking.CreateCommand) (*booking.Booking, error)
	CreatePaymentIntent(ctx context.Context, actor *identity.User, bookingID types.ID) (*payment.Intent, error)
	ConfirmPayment(ctx context.Context, cmd booking.ConfirmPaymentCommand) (*booking.Booking, error)
	Cancel(ctx context.Context, cmd booking.CancelCommand) (*booking.Booking, error)
	Complete(ctx context.Context, cmd booking.CompleteCommand) (*booking.Booking, error)
	Override(ctx context.Context, cmd booking.OverrideCommand) (*booking.Booking, error)
	Get(ctx context.Context, actor *identity.User, id types.ID) (*booking.Booking, error)
	ListForClient(ctx context.Context, actor *identity.User) ([]*booking.Booking, error)
	ListForOwner(ctx context.Context, actor *identity.User) ([]*booking.Booking, error)
	ListServiceBookings(ctx context.Context, actor *identity.User, bookingID types.ID) ([]booking.ServiceBooking, error)
	ListAwaitingAssignment(ctx context.Context, actor *identity.User) ([]booking.ServiceBooking, error)
}

type BookingHandler struct {
	booking BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{booking: svc}
}

type bookingServiceReq struct {
	CategoryID  string  `json:"category_id" binding:"required"`
	ProviderID  *string `json:"service_provider_id"`
	ServiceDate string  `json:"service_date" binding:"required,datetime=2006-01-02"`
	Hours       int     `json:"hours" binding:"required,gt=0"`
}

type createBookingReq struct {
	PropertyID string              `json:"property_id" binding:"required"`
	CheckIn    string              `json:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut   string              `json:"check_out" binding:"required,datetime=2006-01-02"`
	Guests     int                 `json:"guests" binding:"required,gt=0"`
	Services   []bookingServiceReq `json:"services" binding:"omitempty,dive"`
}

type confirmPaymentReq struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type overrideReq struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if !bindJSON(c, &req) {
		return
	}
	// Layouts were checked by the binding tags.
	checkIn, _ := parseDate(req.CheckIn)
	checkOut, _ := parseDate(req.CheckOut)
	services := make([]booking.ServiceInput, 0, len(req.Services))
	for _, s := range req.Services {
		day, _ := parseDate(s.ServiceDate)
		services = append(services, booking.ServiceInput{
			CategoryID:  s.CategoryID,
			ProviderID:  optionalID(s.ProviderID),
			ServiceDate: day,
			Hours:       s.Hours,
		})
	}
	b, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		Actor:      caller(c),
		PropertyID: types.ID(req.PropertyID),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     req.Guests,
		Services:   services,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BookingHandler) CreatePaymentIntent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	intent, err := h.booking.CreatePaymentIntent(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, intent)
}

func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req confirmPaymentReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.booking.ConfirmPayment(c.Request.Context(), booking.ConfirmPaymentCommand{
		BookingID: id,
		Actor:     caller(c),
		IntentID:  req.PaymentIntentID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	b, err := h.booking.Cancel(c.Request.Context(), booking.CancelCommand{BookingID: id, Actor: caller(c), Reason: req.Reason})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.booking.Complete(c.Request.Context(), booking.CompleteCommand{BookingID: id, Actor: caller(c)})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Override(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req overrideReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.booking.Override(c.Request.Context(), booking.OverrideCommand{
		BookingID: id,
		Actor:     caller(c),
		Status:    booking.Status(req.Status),
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.booking.Get(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) ListMine(c *gin.Context) {
	bs, err := h.booking.ListForClient(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(bs))
}

func (h *BookingHandler) ListForOwner(c *gin.Context) {
	bs, err := h.booking.ListForOwner(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(bs))
}

func (h *BookingHandler) ListServices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ss, err := h.booking.ListServiceBookings(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(ss))
}

func (h *BookingHandler) AwaitingAssignment(c *gin.Context) {
	ss, err := h.booking.ListAwaitingAssignment(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(ss))
}
