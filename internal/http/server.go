// README: API gateway; builds the gin engine from module services and owns the http.Server.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"

	"staybook/internal/http/handlers"
	"staybook/internal/http/middleware"
)

type ServerDeps struct {
	Identity      handlers.IdentityService
	Sessions      middleware.SessionResolver
	Catalog       handlers.CatalogService
	Booking       handlers.BookingService
	Order         handlers.OrderService
	Assignment    handlers.AssignmentService
	Notifications handlers.NotificationService
	Settings      handlers.SettingsService
	Ledger        handlers.LedgerService
	Webhooks      handlers.WebhookDispatcher

	// Metrics is served at /metrics when set.
	Metrics http.Handler
	Log     zerolog.Logger

	SessionTTL   time.Duration
	SecureCookie bool
	LoginRPS     float64
	LoginBurst   int
}

type Server struct {
	deps ServerDeps
	log  zerolog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps, log: deps.Log.With().Str("module", "http").Logger()}
}

// Handler builds the routed gin engine.
func (s *Server) Handler() *gin.Engine {
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log), middleware.Metrics())
	registerRoutes(r, s.deps)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains for up to 10s.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
