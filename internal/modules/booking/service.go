// README: Booking service: property stays with priced add-on services, payment, refunds and coordinator queues.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/metrics"
	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/modules/notification"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

const dateLayout = "2006-01-02"

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*Booking, error)
	ListByClient(ctx context.Context, clientID types.ID) ([]*Booking, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*Booking, error)
	ListServices(ctx context.Context, bookingID types.ID) ([]ServiceBooking, error)
	ListServicesByStatus(ctx context.Context, status ServiceStatus) ([]ServiceBooking, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	MarkPaid(ctx context.Context, id types.ID, intentID string, at time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, id types.ID) (bool, error)
	RequestRefund(ctx context.Context, id types.ID) error
	ClaimLateCapture(ctx context.Context, id types.ID, intentID string) (bool, error)
	RecordRefund(ctx context.Context, id types.ID, outcome payment.RefundStatus, refundID string) error
	MarkRefunded(ctx context.Context, id types.ID, refundID string) (bool, error)
	PendingOffers(ctx context.Context, bookingID types.ID) ([]Offer, error)
}

type Catalog interface {
	GetProperty(ctx context.Context, id types.ID) (*catalog.Property, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	GetProvider(ctx context.Context, id types.ID) (*catalog.Provider, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notification.Message)
}

type Service struct {
	store    Repository
	catalog  Catalog
	gateway  payment.Gateway
	notifier Notifier
	currency string
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Repository, cat Catalog, gateway payment.Gateway, notifier Notifier, currency string, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		catalog:  cat,
		gateway:  gateway,
		notifier: notifier,
		currency: currency,
		log:      log.With().Str("module", "booking").Logger(),
		now:      time.Now,
	}
}

var (
	errNotOwner   = fmt.Errorf("%w: not the booking client", types.ErrForbidden)
	errConcurrent = fmt.Errorf("%w: booking changed concurrently, retry", types.ErrConflict)
)

// ServiceInput requests one add-on. ProviderID books a specific provider; without it the
// line waits in the coordinators' queue and is priced at the category base rate.
type ServiceInput struct {
	CategoryID  string
	ProviderID  *types.ID
	ServiceDate time.Time
	Hours       int
}

type CreateCommand struct {
	Actor      *identity.User
	PropertyID types.ID
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	Services   []ServiceInput
}

type CancelCommand struct {
	BookingID types.ID
	Actor     *identity.User
	Reason    string
}

type CompleteCommand struct {
	BookingID types.ID
	Actor     *identity.User
}

type OverrideCommand struct {
	BookingID types.ID
	Actor     *identity.User
	Status    Status
	Reason    string
}

type ConfirmPaymentCommand struct {
	BookingID types.ID
	Actor     *identity.User
	IntentID  string
}

func requireApproved(actor *identity.User) error {
	if actor == nil {
		return types.ErrUnauthorized
	}
	return identity.CheckApproved(actor)
}

func isStaff(r identity.Role) bool {
	switch r {
	case identity.RoleAdmin, identity.RoleOperation, identity.RoleBilling, identity.RoleOperationSupport,
		identity.RoleCountryManager, identity.RoleCityManager:
		return true
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) priceService(ctx context.Context, in ServiceInput, checkIn, checkOut time.Time) (ServiceBooking, error) {
	if in.Hours <= 0 {
		return ServiceBooking{}, fmt.Errorf("%w: service hours must be positive", types.ErrValidation)
	}
	day := dateOnly(in.ServiceDate)
	if day.Before(checkIn) || day.After(checkOut) {
		return ServiceBooking{}, fmt.Errorf("%w: service date %s is outside the stay", types.ErrValidation, day.Format(dateLayout))
	}

	categoryID := strings.TrimSpace(in.CategoryID)
	sb := ServiceBooking{
		ID:          types.NewID(),
		ServiceDate: day,
		Hours:       in.Hours,
	}
	if in.ProviderID != nil {
		p, err := s.catalog.GetProvider(ctx, *in.ProviderID)
		if err != nil {
			return ServiceBooking{}, err
		}
		if !p.Bookable() {
			return ServiceBooking{}, fmt.Errorf("%w: provider is not accepting bookings", types.ErrValidation)
		}
		if categoryID != "" && categoryID != p.CategoryID {
			return ServiceBooking{}, fmt.Errorf("%w: provider does not offer category %q", types.ErrValidation, categoryID)
		}
		categoryID = p.CategoryID
		pid := p.ID
		sb.ProviderID = &pid
		sb.Rate = p.HourlyRate
		sb.Status = ServicePending
	}
	if categoryID == "" {
		return ServiceBooking{}, fmt.Errorf("%w: service category is required", types.ErrValidation)
	}
	cat, err := s.catalog.GetCategory(ctx, categoryID)
	if errors.Is(err, types.ErrNotFound) {
		return ServiceBooking{}, fmt.Errorf("%w: unknown service category %q", types.ErrValidation, categoryID)
	}
	if err != nil {
		return ServiceBooking{}, err
	}
	sb.CategoryID = cat.ID
	sb.ServiceName = cat.Name
	if sb.ProviderID == nil {
		sb.Rate = cat.BaseRate
		sb.Status = ServiceAwaitingAssignment
	}
	sb.Total = sb.Rate.Times(sb.Hours)
	return sb, nil
}

// Create books a stay. Totals and the bundle discount are fixed here and never recomputed.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if err := requireApproved(cmd.Actor); err != nil {
		return nil, err
	}
	if cmd.Actor.Role != identity.RoleClient {
		return nil, fmt.Errorf("%w: only clients book stays", types.ErrForbidden)
	}
	checkIn, checkOut := dateOnly(cmd.CheckIn), dateOnly(cmd.CheckOut)
	n := nights(checkIn, checkOut)
	if n < 1 {
		return nil, fmt.Errorf("%w: stay must be at least one night", types.ErrValidation)
	}
	if cmd.Guests < 1 {
		return nil, fmt.Errorf("%w: at least one guest is required", types.ErrValidation)
	}

	prop, err := s.catalog.GetProperty(ctx, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if !prop.IsActive {
		return nil, fmt.Errorf("%w: property is not available for booking", types.ErrValidation)
	}
	if cmd.Guests > prop.MaxGuests {
		return nil, fmt.Errorf("%w: property sleeps at most %d guests", types.ErrValidation, prop.MaxGuests)
	}

	now := s.now()
	b := &Booking{
		ID:            types.NewID(),
		BookingCode:   types.NewCode("BK"),
		ClientID:      cmd.Actor.ID,
		PropertyID:    prop.ID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Guests:        cmd.Guests,
		PropertyTotal: prop.PricePerNight.Times(n),
		Status:        StatusPendingPayment,
		PaymentStatus: payment.StatusPending,
		RefundStatus:  payment.RefundNone,
		CreatedAt:     now,
		UpdatedAt:     now,
		Services:      make([]ServiceBooking, 0, len(cmd.Services)),
	}
	for _, in := range cmd.Services {
		sb, err := s.priceService(ctx, in, checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		sb.BookingID = b.ID
		sb.CreatedAt, sb.UpdatedAt = now, now
		b.Services = append(b.Services, sb)
		b.ServicesTotal += sb.Total
	}
	gross := b.PropertyTotal + b.ServicesTotal
	b.DiscountAmount = gross.Percent(DiscountPercent(len(b.Services)))
	b.TotalAmount = gross - b.DiscountAmount

	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	metrics.IncTransition(entityKind, string(b.Status))
	s.log.Info().Str("booking_id", string(b.ID)).Str("total", b.TotalAmount.String()).Int("services", len(b.Services)).Msg("booking created")

	s.notifier.Send(ctx, notification.Message{
		UserID: b.ClientID, Type: notification.TypeBookingCreated, RelatedID: b.ID,
		Title: "Booking created", Body: fmt.Sprintf("Booking %s awaits payment of %s.", b.BookingCode, b.TotalAmount),
	})
	s.notifier.Send(ctx, notification.Message{
		UserID: prop.OwnerID, Type: notification.TypeBookingCreated, RelatedID: b.ID,
		Title: "New booking", Body: fmt.Sprintf("%s was booked from %s to %s.", prop.Title, checkIn.Format(dateLayout), checkOut.Format(dateLayout)),
	})
	return b, nil
}

func (s *Service) loadForClient(ctx context.Context, id types.ID, actor *identity.User) (*Booking, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID != actor.ID {
		return nil, errNotOwner
	}
	return b, nil
}

func (s *Service) transition(ctx context.Context, b *Booking, to Status, actorType string, actor *identity.User, reason *string) (*Booking, error) {
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		BookingID: b.ID,
		From:      b.Status,
		To:        to,
		Version:   b.StatusVersion,
		Reason:    reason,
		ActorType: actorType,
		ActorID:   &actor.ID,
		At:        s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errConcurrent
	}
	metrics.IncTransition(entityKind, string(to))
	s.log.Info().Str("booking_id", string(b.ID)).Str("from", string(b.Status)).Str("to", string(to)).Str("actor_id", string(actor.ID)).Msg("booking transition")
	return s.store.Get(ctx, b.ID)
}

func invalidState(b *Booking, to Status) error {
	return fmt.Errorf("%w: cannot move booking from %s to %s", types.ErrInvalidState, b.Status, to)
}

func (s *Service) CreatePaymentIntent(ctx context.Context, actor *identity.User, bookingID types.ID) (*payment.Intent, error) {
	b, err := s.loadForClient(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPendingPayment || b.PaymentStatus == payment.StatusPaid {
		return nil, fmt.Errorf("%w: booking is not awaiting payment", types.ErrInvalidState)
	}
	return s.gateway.CreateIntent(ctx, b.TotalAmount, s.currency, map[string]string{
		payment.MetaBookingID: string(b.ID),
		"bookingCode":         b.BookingCode,
	})
}

func (s *Service) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Booking, error) {
	b, err := s.loadForClient(ctx, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == payment.StatusPaid {
		return b, nil
	}
	intent, err := s.gateway.RetrieveIntent(ctx, cmd.IntentID)
	if err != nil {
		return nil, err
	}
	if intent.Metadata[payment.MetaBookingID] != string(b.ID) {
		return nil, fmt.Errorf("%w: payment intent does not belong to this booking", types.ErrValidation)
	}
	if intent.Status != payment.IntentSucceeded {
		return nil, fmt.Errorf("%w: payment not completed (status %s)", types.ErrValidation, intent.Status)
	}
	return s.markPaid(ctx, b, intent.ID)
}

func (s *Service) markPaid(ctx context.Context, b *Booking, intentID string) (*Booking, error) {
	ok, err := s.store.MarkPaid(ctx, b.ID, intentID, s.now())
	if err != nil {
		return nil, err
	}
	cur, err := s.store.Get(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if cur.PaymentStatus == payment.StatusPaid {
			return cur, nil
		}
		return nil, invalidState(cur, StatusConfirmed)
	}
	metrics.IncTransition(entityKind, string(StatusConfirmed))
	s.log.Info().Str("booking_id", string(b.ID)).Str("payment_intent_id", intentID).Msg("booking paid")

	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeBookingConfirmed, RelatedID: cur.ID,
		Title: "Booking confirmed", Body: fmt.Sprintf("Payment received, booking %s is confirmed.", cur.BookingCode),
	})
	if prop, err := s.catalog.GetProperty(ctx, cur.PropertyID); err == nil {
		s.notifier.Send(ctx, notification.Message{
			UserID: prop.OwnerID, Type: notification.TypeBookingConfirmed, RelatedID: cur.ID,
			Title: "Booking confirmed", Body: fmt.Sprintf("Booking %s for %s is paid.", cur.BookingCode, prop.Title),
		})
	}
	return cur, nil
}

func (s *Service) bookingForIntent(ctx context.Context, intent payment.Intent) (*Booking, bool, error) {
	var (
		b   *Booking
		err error
	)
	if id := intent.Metadata[payment.MetaBookingID]; id != "" {
		b, err = s.store.Get(ctx, types.ID(id))
	} else if intent.ID != "" {
		b, err = s.store.FindByPaymentIntent(ctx, intent.ID)
	} else {
		return nil, false, nil
	}
	if errors.Is(err, types.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Service) ApplyPaymentSucceeded(ctx context.Context, intent payment.Intent) (bool, error) {
	if intent.Metadata[payment.MetaBookingID] == "" {
		return false, nil
	}
	b, found, err := s.bookingForIntent(ctx, intent)
	if err != nil || !found {
		return found, err
	}
	if intent.Status != payment.IntentSucceeded {
		return true, nil
	}
	_, err = s.markPaid(ctx, b, intent.ID)
	if errors.Is(err, types.ErrInvalidState) {
		return true, s.refundLateCapture(ctx, b.ID, intent.ID)
	}
	return true, err
}

// refundLateCapture returns money that settled after the booking stopped taking payment.
func (s *Service) refundLateCapture(ctx context.Context, id types.ID, intentID string) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != StatusCancelled {
		s.log.Error().Str("booking_id", string(id)).Str("status", string(b.Status)).Str("payment_intent_id", intentID).
			Msg("payment captured for booking outside pending_payment; manual reconciliation required")
		return nil
	}
	claimed, err := s.store.ClaimLateCapture(ctx, id, intentID)
	if err != nil || !claimed {
		return err
	}
	s.log.Warn().Str("booking_id", string(id)).Str("payment_intent_id", intentID).Msg("payment captured after cancellation; refunding")

	res := payment.TryRefund(ctx, s.gateway, entityKind, string(id), intentID, s.log)
	if err := s.store.RecordRefund(ctx, id, res.Status, res.RefundID); err != nil {
		s.log.Error().Err(err).Str("booking_id", string(id)).Str("refund_status", string(res.Status)).Msg("record refund outcome")
	}
	body := fmt.Sprintf("A payment for cancelled booking %s was received after the cancellation.", b.BookingCode)
	if res.Refunded() {
		body += " It has been refunded."
	} else {
		body += " The refund is pending and will be processed manually."
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: b.ClientID, Type: notification.TypePaymentRefunded, RelatedID: b.ID,
		Title: "Late payment refunded", Body: body,
	})
	return nil
}

func (s *Service) ApplyPaymentFailed(ctx context.Context, intent payment.Intent) (bool, error) {
	if intent.Metadata[payment.MetaBookingID] == "" {
		return false, nil
	}
	b, found, err := s.bookingForIntent(ctx, intent)
	if err != nil || !found {
		return found, err
	}
	changed, err := s.store.MarkPaymentFailed(ctx, b.ID)
	if err != nil {
		return true, err
	}
	if changed {
		s.notifier.Send(ctx, notification.Message{
			UserID: b.ClientID, Type: notification.TypePaymentFailed, RelatedID: b.ID,
			Title: "Payment failed", Body: fmt.Sprintf("Payment for booking %s failed. You can try again.", b.BookingCode),
		})
	}
	return true, nil
}

func (s *Service) ApplyRefunded(ctx context.Context, intent payment.Intent, refundID string) (bool, error) {
	b, found, err := s.bookingForIntent(ctx, intent)
	if err != nil || !found {
		return found, err
	}
	changed, err := s.store.MarkRefunded(ctx, b.ID, refundID)
	if err != nil {
		return true, err
	}
	if changed {
		metrics.IncRefund(entityKind, "refunded")
		s.notifier.Send(ctx, notification.Message{
			UserID: b.ClientID, Type: notification.TypePaymentRefunded, RelatedID: b.ID,
			Title: "Refund issued", Body: fmt.Sprintf("Your payment for booking %s was refunded.", b.BookingCode),
		})
	}
	return true, nil
}

func (s *Service) refundIfPaid(ctx context.Context, b *Booking) (*Booking, payment.RefundResult) {
	if b.PaymentStatus != payment.StatusPaid {
		return b, payment.RefundResult{Status: payment.RefundNone}
	}
	intentID := ""
	if b.PaymentIntentID != nil {
		intentID = *b.PaymentIntentID
	}
	if err := s.store.RequestRefund(ctx, b.ID); err != nil {
		s.log.Error().Err(err).Str("booking_id", string(b.ID)).Msg("flag refund request")
	}
	res := payment.TryRefund(ctx, s.gateway, entityKind, string(b.ID), intentID, s.log)
	if err := s.store.RecordRefund(ctx, b.ID, res.Status, res.RefundID); err != nil {
		s.log.Error().Err(err).Str("booking_id", string(b.ID)).Str("refund_status", string(res.Status)).Msg("record refund outcome")
		return b, res
	}
	cur, err := s.store.Get(ctx, b.ID)
	if err != nil {
		s.log.Error().Err(err).Str("booking_id", string(b.ID)).Msg("reload booking after refund")
		return b, res
	}
	return cur, res
}

// Cancel is client-initiated while the stay is unpaid or confirmed. Open add-ons are
// cancelled with the booking; a paid booking is refunded after the cancel commits.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	b, err := s.loadForClient(ctx, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return nil, invalidState(b, StatusCancelled)
	}
	offers, err := s.store.PendingOffers(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(cmd.Reason)
	cur, err := s.transition(ctx, b, StatusCancelled, "client", cmd.Actor, &reason)
	if err != nil {
		return nil, err
	}
	cur, res := s.refundIfPaid(ctx, cur)

	body := fmt.Sprintf("Booking %s was cancelled.", cur.BookingCode)
	switch res.Status {
	case payment.RefundRefunded:
		body += " Your payment has been refunded."
	case payment.RefundFailed:
		body += " Your refund is pending and will be processed manually."
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeBookingCancelled, RelatedID: cur.ID,
		Title: "Booking cancelled", Body: body,
	})
	if prop, err := s.catalog.GetProperty(ctx, cur.PropertyID); err == nil {
		s.notifier.Send(ctx, notification.Message{
			UserID: prop.OwnerID, Type: notification.TypeBookingCancelled, RelatedID: cur.ID,
			Title: "Booking cancelled", Body: fmt.Sprintf("The guest cancelled booking %s.", cur.BookingCode),
		})
	}
	notified := map[types.ID]bool{}
	for _, sb := range b.Services {
		if sb.ProviderID == nil || notified[*sb.ProviderID] {
			continue
		}
		notified[*sb.ProviderID] = true
		if p, err := s.catalog.GetProvider(ctx, *sb.ProviderID); err == nil {
			s.notifier.Send(ctx, notification.Message{
				UserID: p.UserID, Type: notification.TypeBookingCancelled, RelatedID: sb.ID,
				Title: "Service cancelled", Body: fmt.Sprintf("%s on %s was cancelled by the guest.", sb.ServiceName, sb.ServiceDate.Format(dateLayout)),
			})
		}
	}
	for _, o := range offers {
		if notified[o.ProviderID] {
			continue
		}
		notified[o.ProviderID] = true
		if p, err := s.catalog.GetProvider(ctx, o.ProviderID); err == nil {
			s.notifier.Send(ctx, notification.Message{
				UserID: p.UserID, Type: notification.TypeJobCancelled, RelatedID: o.ServiceBookingID,
				Title: "Job offer withdrawn", Body: fmt.Sprintf("The guest cancelled booking %s; your pending job offer was withdrawn.", cur.BookingCode),
			})
		}
	}
	return cur, nil
}

// Complete closes a confirmed stay. Only the property owner or an admin may do it.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Booking, error) {
	if err := requireApproved(cmd.Actor); err != nil {
		return nil, err
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if cmd.Actor.Role != identity.RoleAdmin {
		prop, err := s.catalog.GetProperty(ctx, b.PropertyID)
		if err != nil {
			return nil, err
		}
		if prop.OwnerID != cmd.Actor.ID {
			return nil, fmt.Errorf("%w: not the property owner", types.ErrForbidden)
		}
	}
	if !CanTransition(b.Status, StatusCompleted) {
		return nil, invalidState(b, StatusCompleted)
	}
	actorType := "owner"
	if cmd.Actor.Role == identity.RoleAdmin {
		actorType = "staff"
	}
	cur, err := s.transition(ctx, b, StatusCompleted, actorType, cmd.Actor, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeBookingCompleted, RelatedID: cur.ID,
		Title: "Stay completed", Body: fmt.Sprintf("Booking %s is complete. Tell us how it went by leaving a review.", cur.BookingCode),
	})
	return cur, nil
}

// Override forces any status; it skips AllowedTransitions and the refund step.
func (s *Service) Override(ctx context.Context, cmd OverrideCommand) (*Booking, error) {
	if err := requireApproved(cmd.Actor); err != nil {
		return nil, err
	}
	if cmd.Actor.Role != identity.RoleAdmin && cmd.Actor.Role != identity.RoleOperation {
		return nil, fmt.Errorf("%w: status override requires admin or operation", types.ErrForbidden)
	}
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", types.ErrValidation, cmd.Status)
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	var reason *string
	if r := strings.TrimSpace(cmd.Reason); r != "" {
		reason = &r
	}
	cur, err := s.transition(ctx, b, cmd.Status, "staff", cmd.Actor, reason)
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("booking_id", string(b.ID)).Str("from", string(b.Status)).Str("to", string(cmd.Status)).Str("actor_id", string(cmd.Actor.ID)).Msg("booking status overridden")
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeBookingStatusChanged, RelatedID: cur.ID,
		Title: "Booking updated", Body: fmt.Sprintf("Booking %s is now %s.", cur.BookingCode, cur.Status),
	})
	return cur, nil
}

// Get returns a booking to its client, the property owner or staff.
func (s *Service) Get(ctx context.Context, actor *identity.User, id types.ID) (*Booking, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID == actor.ID || isStaff(actor.Role) {
		return b, nil
	}
	if actor.Role == identity.RolePropertyOwner {
		if prop, err := s.catalog.GetProperty(ctx, b.PropertyID); err == nil && prop.OwnerID == actor.ID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: booking not visible to caller", types.ErrForbidden)
}

func (s *Service) ListForClient(ctx context.Context, actor *identity.User) ([]*Booking, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	return s.store.ListByClient(ctx, actor.ID)
}

func (s *Service) ListForOwner(ctx context.Context, actor *identity.User) ([]*Booking, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	if actor.Role != identity.RolePropertyOwner && actor.Role != identity.RoleAdmin {
		return nil, fmt.Errorf("%w: only property owners list stays on their properties", types.ErrForbidden)
	}
	return s.store.ListByOwner(ctx, actor.ID)
}

// ListServiceBookings lists the add-ons of one booking visible to actor.
func (s *Service) ListServiceBookings(ctx context.Context, actor *identity.User, bookingID types.ID) ([]ServiceBooking, error) {
	b, err := s.Get(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	return b.Services, nil
}

// ListAwaitingAssignment is the coordinators' queue of add-ons with no provider yet.
func (s *Service) ListAwaitingAssignment(ctx context.Context, actor *identity.User) ([]ServiceBooking, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsCoordinator() && actor.Role != identity.RoleAdmin && actor.Role != identity.RoleOperation {
		return nil, fmt.Errorf("%w: assignment queue is for coordinators", types.ErrForbidden)
	}
	return s.store.ListServicesByStatus(ctx, ServiceAwaitingAssignment)
}
