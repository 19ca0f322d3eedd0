// README: HTTP route registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"staybook/internal/http/handlers"
	"staybook/internal/http/middleware"
	"staybook/internal/modules/identity"
)

func registerRoutes(r *gin.Engine, d ServerDeps) {
	authH := handlers.NewAuthHandler(d.Identity, d.SessionTTL, d.SecureCookie)
	catalogH := handlers.NewCatalogHandler(d.Catalog)
	bookingH := handlers.NewBookingHandler(d.Booking)
	orderH := handlers.NewOrderHandler(d.Order)
	assignmentH := handlers.NewAssignmentHandler(d.Assignment)
	notificationH := handlers.NewNotificationHandler(d.Notifications)
	billingH := handlers.NewBillingHandler(d.Settings, d.Ledger)
	paymentH := handlers.NewPaymentHandler(d.Webhooks)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	api := r.Group("/api")
	credentials := api.Group("/auth", middleware.RateLimit(d.LoginRPS, d.LoginBurst))
	credentials.POST("/register", authH.Register)
	credentials.POST("/login", authH.Login)

	api.GET("/categories", catalogH.ListCategories)
	api.POST("/webhooks/stripe", paymentH.Webhook)

	// Authenticated; pending accounts reach these.
	authed := api.Group("", middleware.Auth(d.Sessions))
	authed.POST("/auth/logout", authH.Logout)
	authed.GET("/me", authH.Me)
	authed.POST("/providers", catalogH.Apply)
	authed.GET("/providers/me", catalogH.MyProvider)
	authed.GET("/notifications", notificationH.List)
	authed.GET("/notifications/unread-count", notificationH.UnreadCount)
	authed.POST("/notifications/:id/read", notificationH.MarkRead)
	authed.POST("/notifications/read-all", notificationH.MarkAllRead)

	approved := authed.Group("", middleware.RequireApproved())

	approved.GET("/users", authH.ListUsers)
	approved.POST("/users/staff", authH.CreateStaff)
	approved.POST("/users/:id/role", authH.AssignRole)
	approved.POST("/users/:id/decision", authH.DecideUser)
	approved.POST("/role-requests", authH.SubmitRoleChange)
	approved.GET("/role-requests", authH.ListRoleRequests)
	approved.POST("/role-requests/:id/decision", authH.DecideRoleChange)

	approved.GET("/providers", catalogH.ListProviders)
	approved.GET("/providers/:id", catalogH.GetProvider)
	approved.POST("/providers/:id/decision", catalogH.DecideProvider)
	approved.DELETE("/providers/:id", catalogH.DeleteProvider)
	approved.GET("/providers/:id/menu", catalogH.ListMenu())
	approved.GET("/providers/:id/tasks", catalogH.ListTasks())
	approved.POST("/providers/me/menu", catalogH.AddMenuItem())
	approved.POST("/providers/me/tasks", catalogH.AddTask())

	approved.POST("/properties", catalogH.CreateProperty)
	approved.GET("/properties/mine", catalogH.MyProperties)
	approved.GET("/properties/:id", catalogH.GetProperty)
	approved.POST("/properties/:id/active", catalogH.SetPropertyActive)

	approved.POST("/bookings", bookingH.Create)
	approved.GET("/bookings", bookingH.ListMine)
	approved.GET("/bookings/owner", bookingH.ListForOwner)
	approved.GET("/bookings/services/awaiting", bookingH.AwaitingAssignment)
	approved.GET("/bookings/:id", bookingH.Get)
	approved.GET("/bookings/:id/services", bookingH.ListServices)
	approved.POST("/bookings/:id/payment-intent", bookingH.CreatePaymentIntent)
	approved.POST("/bookings/:id/confirm-payment", bookingH.ConfirmPayment)
	approved.POST("/bookings/:id/cancel", bookingH.Cancel)
	approved.POST("/bookings/:id/complete", bookingH.Complete)
	approved.POST("/bookings/:id/override", bookingH.Override)

	approved.POST("/orders", orderH.Create)
	approved.GET("/orders", orderH.ListMine)
	approved.GET("/orders/provider", orderH.ListForProvider)
	approved.GET("/orders/:id", orderH.Get)
	approved.POST("/orders/:id/payment-intent", orderH.CreatePaymentIntent)
	approved.POST("/orders/:id/confirm-payment", orderH.ConfirmPayment)
	approved.POST("/orders/:id/accept", orderH.Accept)
	approved.POST("/orders/:id/reject", orderH.Reject)
	approved.POST("/orders/:id/cancel", orderH.Cancel)
	approved.POST("/orders/:id/start", orderH.Start)
	approved.POST("/orders/:id/complete", orderH.Complete)
	approved.POST("/orders/:id/override", orderH.Override)

	approved.POST("/assignments", assignmentH.Assign)
	approved.GET("/assignments", assignmentH.ListMine)
	approved.GET("/assignments/:id", assignmentH.Get)
	approved.POST("/assignments/:id/accept", assignmentH.Accept)
	approved.POST("/assignments/:id/reject", assignmentH.Reject)
	approved.POST("/assignments/:id/cancel", assignmentH.Cancel)
	approved.POST("/assignments/:id/reassign", assignmentH.Reassign)
	approved.GET("/service-bookings/:id/assignments", assignmentH.ListForServiceBooking)
	approved.GET("/service-bookings/:id/candidates", assignmentH.Candidates)

	billing := approved.Group("", middleware.RequireRoles(identity.RoleAdmin, identity.RoleBilling))
	billing.GET("/settings", billingH.ListSettings)
	billing.GET("/settings/commission-rate", billingH.CommissionRate)
	billing.PUT("/settings/commission-rate", billingH.SetCommissionRate)
	billing.GET("/ledger", billingH.Ledger)
	billing.GET("/ledger/export", billingH.ExportLedger)
}
