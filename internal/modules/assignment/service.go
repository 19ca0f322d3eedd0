// README: Assignment service runs the coordinator/provider job protocol over add-on service bookings.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/metrics"
	"staybook/internal/modules/booking"
	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

const entityKind = "job_assignment"

type Repository interface {
	Create(ctx context.Context, a *Assignment) error
	Get(ctx context.Context, id types.ID) (*Assignment, error)
	Transition(ctx context.Context, t Transition) (bool, error)
	Reassign(ctx context.Context, previous Transition, cancelPrevious bool, next *Assignment) (bool, error)
	ListByProvider(ctx context.Context, providerID types.ID) ([]*Assignment, error)
	ListByServiceBooking(ctx context.Context, serviceBookingID types.ID) ([]*Assignment, error)
}

// ServiceBookings reads the add-on lines being assigned.
type ServiceBookings interface {
	GetService(ctx context.Context, id types.ID) (*booking.ServiceBooking, error)
}

type Catalog interface {
	GetProvider(ctx context.Context, id types.ID) (*catalog.Provider, error)
	GetProviderByUser(ctx context.Context, userID types.ID) (*catalog.Provider, error)
	ListProviders(ctx context.Context, status catalog.ApprovalStatus) ([]*catalog.Provider, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notification.Message)
}

type Service struct {
	store    Repository
	services ServiceBookings
	catalog  Catalog
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Repository, services ServiceBookings, cat Catalog, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		services: services,
		catalog:  cat,
		notifier: notifier,
		log:      log.With().Str("module", "assignment").Logger(),
		now:      time.Now,
	}
}

var (
	errNotCoordinator = fmt.Errorf("%w: job assignment is a coordinator action", types.ErrForbidden)
	errNotAssignee    = fmt.Errorf("%w: assignment belongs to another provider", types.ErrForbidden)
)

func requireCoordinator(actor *identity.User) error {
	if actor == nil {
		return types.ErrUnauthorized
	}
	if err := identity.CheckApproved(actor); err != nil {
		return err
	}
	if !actor.Role.IsCoordinator() && actor.Role != identity.RoleAdmin {
		return errNotCoordinator
	}
	return nil
}

// providerFor resolves the caller's provider profile; callers without one are not assignees.
func (s *Service) providerFor(ctx context.Context, actor *identity.User) (*catalog.Provider, error) {
	if actor == nil {
		return nil, types.ErrUnauthorized
	}
	if err := identity.CheckApproved(actor); err != nil {
		return nil, err
	}
	p, err := s.catalog.GetProviderByUser(ctx, actor.ID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, errNotAssignee
	}
	return p, err
}

func invalidState(a *Assignment, to Status) error {
	return fmt.Errorf("%w: cannot move assignment from %s to %s", types.ErrInvalidState, a.Status, to)
}

// candidate loads the provider being offered the job and checks it can take it.
func (s *Service) candidate(ctx context.Context, sb *booking.ServiceBooking, providerID types.ID) (*catalog.Provider, error) {
	p, err := s.catalog.GetProvider(ctx, providerID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown service provider", types.ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	if !p.Bookable() {
		return nil, fmt.Errorf("%w: provider is not approved and active", types.ErrValidation)
	}
	if p.CategoryID != sb.CategoryID {
		return nil, fmt.Errorf("%w: provider does not offer %s", types.ErrValidation, sb.CategoryID)
	}
	return p, nil
}

func (s *Service) offer(ctx context.Context, a *Assignment, sb *booking.ServiceBooking, p *catalog.Provider) {
	metrics.IncTransition(entityKind, string(a.Status))
	s.log.Info().Str("assignment_id", string(a.ID)).Str("service_booking_id", string(sb.ID)).Str("provider_id", string(p.ID)).Msg("job offered")
	s.notifier.Send(ctx, notification.Message{
		UserID: p.UserID, Type: notification.TypeJobAssigned, RelatedID: a.ID,
		Title: "New job offer", Body: fmt.Sprintf("You were offered %s on %s (%dh).", sb.ServiceName, sb.ServiceDate.Format("2006-01-02"), sb.Hours),
	})
}

// Assign offers a service booking to a provider.
func (s *Service) Assign(ctx context.Context, actor *identity.User, serviceBookingID, providerID types.ID) (*Assignment, error) {
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	sb, err := s.services.GetService(ctx, serviceBookingID)
	if err != nil {
		return nil, err
	}
	p, err := s.candidate(ctx, sb, providerID)
	if err != nil {
		return nil, err
	}
	a := &Assignment{
		ID:               types.NewID(),
		ServiceBookingID: sb.ID,
		AssignedBy:       actor.ID,
		ProviderID:       p.ID,
		Status:           StatusPending,
		CreatedAt:        s.now(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.offer(ctx, a, sb, p)
	return a, nil
}

func (s *Service) respond(ctx context.Context, actor *identity.User, id types.ID, to Status, reason *string) (*Assignment, error) {
	p, err := s.providerFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ProviderID != p.ID {
		return nil, errNotAssignee
	}
	if !CanTransition(a.Status, to) {
		return nil, invalidState(a, to)
	}
	ok, err := s.store.Transition(ctx, Transition{ID: a.ID, From: a.Status, To: to, ProviderID: &p.ID, Reason: reason, At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, invalidState(cur, to)
	}
	metrics.IncTransition(entityKind, string(to))
	s.log.Info().Str("assignment_id", string(a.ID)).Str("provider_id", string(p.ID)).Str("to", string(to)).Msg("job offer answered")
	return s.store.Get(ctx, id)
}

// Accept is final: the service booking is confirmed with this provider.
func (s *Service) Accept(ctx context.Context, actor *identity.User, id types.ID) (*Assignment, error) {
	a, err := s.respond(ctx, actor, id, StatusAccepted, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: a.AssignedBy, Type: notification.TypeJobAccepted, RelatedID: a.ID,
		Title: "Job accepted", Body: "The provider accepted the job offer.",
	})
	return a, nil
}

// Reject frees the service booking for another offer.
func (s *Service) Reject(ctx context.Context, actor *identity.User, id types.ID, reason string) (*Assignment, error) {
	reason = strings.TrimSpace(reason)
	a, err := s.respond(ctx, actor, id, StatusRejected, &reason)
	if err != nil {
		return nil, err
	}
	body := "The provider declined the job offer."
	if reason != "" {
		body += " Reason: " + reason + "."
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: a.AssignedBy, Type: notification.TypeJobRejected, RelatedID: a.ID,
		Title: "Job declined", Body: body,
	})
	return a, nil
}

func (s *Service) withdrawn(ctx context.Context, a *Assignment) {
	p, err := s.catalog.GetProvider(ctx, a.ProviderID)
	if err != nil {
		s.log.Warn().Err(err).Str("assignment_id", string(a.ID)).Msg("withdrawn offer: provider lookup failed")
		return
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: p.UserID, Type: notification.TypeJobCancelled, RelatedID: a.ID,
		Title: "Job offer withdrawn", Body: "The coordinator withdrew this job offer.",
	})
}

// CoordinatorCancel withdraws a pending offer. Accepted jobs cannot be cancelled here.
func (s *Service) CoordinatorCancel(ctx context.Context, actor *identity.User, id types.ID) (*Assignment, error) {
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, StatusCancelled) {
		return nil, invalidState(a, StatusCancelled)
	}
	ok, err := s.store.Transition(ctx, Transition{ID: a.ID, From: a.Status, To: StatusCancelled, At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, invalidState(cur, StatusCancelled)
	}
	metrics.IncTransition(entityKind, string(StatusCancelled))
	s.log.Info().Str("assignment_id", string(a.ID)).Str("actor_id", string(actor.ID)).Msg("job offer withdrawn")
	s.withdrawn(ctx, a)
	return s.store.Get(ctx, id)
}

// Reassign moves a service booking from the provider on assignment id to providerID.
// A pending offer is withdrawn and the new one created in the same transaction; a
// rejected or withdrawn one is simply replaced.
func (s *Service) Reassign(ctx context.Context, actor *identity.User, id, providerID types.ID) (*Assignment, error) {
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	prev, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev.Status == StatusAccepted {
		return nil, fmt.Errorf("%w: accepted jobs cannot be reassigned", types.ErrInvalidState)
	}
	if prev.Status == StatusPending && prev.ProviderID == providerID {
		return nil, fmt.Errorf("%w: provider already holds this offer", types.ErrValidation)
	}
	sb, err := s.services.GetService(ctx, prev.ServiceBookingID)
	if err != nil {
		return nil, err
	}
	p, err := s.candidate(ctx, sb, providerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := &Assignment{
		ID:               types.NewID(),
		ServiceBookingID: sb.ID,
		AssignedBy:       actor.ID,
		ProviderID:       p.ID,
		Status:           StatusPending,
		CreatedAt:        now,
	}
	cancelPrevious := prev.Status == StatusPending
	ok, err := s.store.Reassign(ctx, Transition{ID: prev.ID, From: StatusPending, To: StatusCancelled, At: now}, cancelPrevious, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: assignment moved to %s, reload and retry", types.ErrConflict, cur.Status)
	}
	if cancelPrevious {
		metrics.IncTransition(entityKind, string(StatusCancelled))
		s.withdrawn(ctx, prev)
	}
	s.offer(ctx, next, sb, p)
	return next, nil
}

// Candidates lists approved, active providers of the right category that have not
// already declined this service booking.
func (s *Service) Candidates(ctx context.Context, actor *identity.User, serviceBookingID types.ID) ([]*catalog.Provider, error) {
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	sb, err := s.services.GetService(ctx, serviceBookingID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListByServiceBooking(ctx, sb.ID)
	if err != nil {
		return nil, err
	}
	declined := map[types.ID]bool{}
	for _, a := range history {
		if a.Status == StatusRejected {
			declined[a.ProviderID] = true
		}
	}
	all, err := s.catalog.ListProviders(ctx, catalog.ApprovalApproved)
	if err != nil {
		return nil, err
	}
	out := []*catalog.Provider{}
	for _, p := range all {
		if p.Bookable() && p.CategoryID == sb.CategoryID && !declined[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns an assignment to coordinators or to the provider it was offered to.
func (s *Service) Get(ctx context.Context, actor *identity.User, id types.ID) (*Assignment, error) {
	if requireCoordinator(actor) == nil {
		return s.store.Get(ctx, id)
	}
	p, err := s.providerFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ProviderID != p.ID {
		return nil, errNotAssignee
	}
	return a, nil
}

func (s *Service) ListForProvider(ctx context.Context, actor *identity.User) ([]*Assignment, error) {
	p, err := s.providerFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListByProvider(ctx, p.ID)
}

func (s *Service) ListForServiceBooking(ctx context.Context, actor *identity.User, serviceBookingID types.ID) ([]*Assignment, error) {
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	return s.store.ListByServiceBooking(ctx, serviceBookingID)
}
