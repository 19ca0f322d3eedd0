// README: Order service implements the ServiceOrder lifecycle, payment reconciliation and refunds.
package order

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
	"staybook/internal/modules/ledger"
	"staybook/internal/modules/notification"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

const clockLayout = "15:04"

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*Order, error)
	ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error)
	ListByProvider(ctx context.Context, providerID types.ID) ([]*Order, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	MarkPaid(ctx context.Context, id types.ID, intentID string, at time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, id types.ID) (bool, error)
	RequestRefund(ctx context.Context, id types.ID) error
	ClaimLateCapture(ctx context.Context, id types.ID, intentID string) (bool, error)
	RecordRefund(ctx context.Context, id types.ID, outcome payment.RefundStatus, refundID string) error
	MarkRefunded(ctx context.Context, id types.ID, refundID string) (bool, error)
}

type Catalog interface {
	GetProvider(ctx context.Context, id types.ID) (*catalog.Provider, error)
	GetProviderByUser(ctx context.Context, userID types.ID) (*catalog.Provider, error)
	ItemsByID(ctx context.Context, providerID types.ID, kind catalog.ItemKind, ids []types.ID) (map[types.ID]*catalog.Item, error)
}

type Commission interface {
	ComputeCommission(ctx context.Context, total types.Money) (ledger.Split, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notification.Message)
}

type Service struct {
	store      Repository
	catalog    Catalog
	commission Commission
	gateway    payment.Gateway
	notifier   Notifier
	currency   string
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(store Repository, cat Catalog, commission Commission, gateway payment.Gateway, notifier Notifier, currency string, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		catalog:    cat,
		commission: commission,
		gateway:    gateway,
		notifier:   notifier,
		currency:   currency,
		log:        log.With().Str("module", "order").Logger(),
		now:        time.Now,
	}
}

var (
	errNotOwner    = fmt.Errorf("%w: not the ordering client", types.ErrForbidden)
	errNotProvider = fmt.Errorf("%w: not the assigned provider", types.ErrForbidden)
	errConcurrent  = fmt.Errorf("%w: order changed concurrently, retry", types.ErrConflict)
)

type ItemInput struct {
	Type     catalog.ItemKind
	RefID    types.ID
	Quantity int
}

type CreateCommand struct {
	Actor       *identity.User
	ProviderID  types.ID
	BookingID   *types.ID
	ServiceDate time.Time
	StartTime   string
	EndTime     string
	Items       []ItemInput
	Notes       string
}

type AcceptCommand struct {
	OrderID types.ID
	Actor   *identity.User
}

type RejectCommand struct {
	OrderID types.ID
	Actor   *identity.User
	Reason  string
}

type CancelCommand struct {
	OrderID types.ID
	Actor   *identity.User
	Reason  string
}

type StartCommand struct {
	OrderID types.ID
	Actor   *identity.User
}

type CompleteCommand struct {
	OrderID types.ID
	Actor   *identity.User
	Notes   string
}

type OverrideCommand struct {
	OrderID types.ID
	Actor   *identity.User
	Status  Status
	Reason  string
}

type ConfirmPaymentCommand struct {
	OrderID  types.ID
	Actor    *identity.User
	IntentID string
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

func parseClock(v string) (time.Time, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q must be HH:MM", types.ErrValidation, v)
	}
	return t, nil
}

// priceItems re-derives every line from the provider's catalog. Any unknown or
// unavailable reference fails the whole order.
func (s *Service) priceItems(ctx context.Context, providerID types.ID, in []ItemInput) ([]Item, types.Money, error) {
	byKind := map[catalog.ItemKind][]types.ID{}
	for _, it := range in {
		if !it.Type.Valid() {
			return nil, 0, fmt.Errorf("%w: unknown item type %q", types.ErrValidation, it.Type)
		}
		if it.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: quantity must be positive", types.ErrValidation)
		}
		byKind[it.Type] = append(byKind[it.Type], it.RefID)
	}
	found := map[catalog.ItemKind]map[types.ID]*catalog.Item{}
	for kind, ids := range byKind {
		items, err := s.catalog.ItemsByID(ctx, providerID, kind, ids)
		if err != nil {
			return nil, 0, err
		}
		found[kind] = items
	}

	var (
		out      = make([]Item, 0, len(in))
		subtotal types.Money
	)
	for _, it := range in {
		ref, ok := found[it.Type][it.RefID]
		if !ok || !ref.Available {
			return nil, 0, fmt.Errorf("%w: %s %s is not available from this provider", types.ErrValidation, it.Type, it.RefID)
		}
		line := ref.Price.Times(it.Quantity)
		out = append(out, Item{
			ID:        types.NewID(),
			Type:      it.Type,
			RefID:     ref.ID,
			Name:      ref.Name,
			UnitPrice: ref.Price,
			Quantity:  it.Quantity,
			LineTotal: line,
		})
		subtotal += line
	}
	return out, subtotal, nil
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if err := requireApproved(cmd.Actor); err != nil {
		return nil, err
	}
	if cmd.Actor.Role != identity.RoleClient {
		return nil, fmt.Errorf("%w: only clients place service orders", types.ErrForbidden)
	}
	if cmd.ProviderID == "" || cmd.ServiceDate.IsZero() {
		return nil, fmt.Errorf("%w: provider and service date are required", types.ErrValidation)
	}
	start, err := parseClock(cmd.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(cmd.EndTime)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", types.ErrValidation)
	}

	provider, err := s.catalog.GetProvider(ctx, cmd.ProviderID)
	if err != nil {
		return nil, err
	}
	if !provider.Bookable() {
		return nil, fmt.Errorf("%w: provider is not accepting orders", types.ErrValidation)
	}

	items, subtotal, err := s.priceItems(ctx, provider.ID, cmd.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		minutes := int64(end.Sub(start) / time.Minute)
		subtotal = provider.HourlyRate.Scale(minutes, 60)
	}
	tax := subtotal.Percent(TaxPercent)
	total := subtotal + tax
	split, err := s.commission.ComputeCommission(ctx, total)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:                    types.NewID(),
		OrderCode:             types.NewCode("SO"),
		ClientID:              cmd.Actor.ID,
		ProviderID:            provider.ID,
		BookingID:             cmd.BookingID,
		ServiceDate:           cmd.ServiceDate,
		StartTime:             start.Format(clockLayout),
		EndTime:               end.Format(clockLayout),
		Subtotal:              subtotal,
		TaxAmount:             tax,
		TotalAmount:           total,
		PlatformFeePercentage: split.Rate,
		PlatformFeeAmount:     split.PlatformFee,
		ProviderAmount:        split.ProviderAmount,
		Status:                StatusPendingPayment,
		PaymentStatus:         payment.StatusPending,
		RefundStatus:          payment.RefundNone,
		Notes:                 strings.TrimSpace(cmd.Notes),
		CreatedAt:             now,
		UpdatedAt:             now,
		Items:                 items,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	metrics.IncTransition(entityKind, string(o.Status))
	s.log.Info().Str("order_id", string(o.ID)).Str("total", o.TotalAmount.String()).Str("rate", o.PlatformFeePercentage.String()).Msg("service order created")

	s.notifier.Send(ctx, notification.Message{
		UserID: o.ClientID, Type: notification.TypeOrderCreated, RelatedID: o.ID,
		Title: "Order placed", Body: fmt.Sprintf("Order %s awaits payment of %s.", o.OrderCode, o.TotalAmount),
	})
	s.notifier.Send(ctx, notification.Message{
		UserID: provider.UserID, Type: notification.TypeOrderCreated, RelatedID: o.ID,
		Title: "New order", Body: fmt.Sprintf("Order %s was placed for %s.", o.OrderCode, o.ServiceDate.Format("2006-01-02")),
	})
	return o, nil
}

func (s *Service) providerOf(ctx context.Context, actor *identity.User) (*catalog.Provider, error) {
	p, err := s.catalog.GetProviderByUser(ctx, actor.ID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, errNotProvider
	}
	return p, err
}

// loadForProvider loads the order and verifies the actor owns its provider profile.
func (s *Service) loadForProvider(ctx context.Context, id types.ID, actor *identity.User) (*Order, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.providerOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if p.ID != o.ProviderID {
		return nil, errNotProvider
	}
	return o, nil
}

func (s *Service) loadForClient(ctx context.Context, id types.ID, actor *identity.User) (*Order, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ClientID != actor.ID {
		return nil, errNotOwner
	}
	return o, nil
}

func (s *Service) transition(ctx context.Context, o *Order, to Status, actorType string, actor *identity.User, mutate func(*StatusUpdate)) (*Order, error) {
	u := StatusUpdate{
		OrderID:   o.ID,
		From:      o.Status,
		To:        to,
		Version:   o.StatusVersion,
		ActorType: actorType,
		ActorID:   &actor.ID,
		At:        s.now(),
	}
	if mutate != nil {
		mutate(&u)
	}
	ok, err := s.store.UpdateStatus(ctx, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errConcurrent
	}
	metrics.IncTransition(entityKind, string(to))
	s.log.Info().Str("order_id", string(o.ID)).Str("from", string(o.Status)).Str("to", string(to)).Str("actor_id", string(actor.ID)).Msg("service order transition")
	return s.store.Get(ctx, o.ID)
}

func invalidState(o *Order, to Status) error {
	return fmt.Errorf("%w: cannot move order from %s to %s", types.ErrInvalidState, o.Status, to)
}

func (s *Service) CreatePaymentIntent(ctx context.Context, actor *identity.User, orderID types.ID) (*payment.Intent, error) {
	o, err := s.loadForClient(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingPayment || o.PaymentStatus == payment.StatusPaid {
		return nil, fmt.Errorf("%w: order is not awaiting payment", types.ErrInvalidState)
	}
	return s.gateway.CreateIntent(ctx, o.TotalAmount, s.currency, map[string]string{
		payment.MetaOrderID: string(o.ID),
		"orderCode":         o.OrderCode,
	})
}

// ConfirmPayment is the client-side confirmation. It converges with the webhook path on
// the same conditional paid transition, so repeated calls are no-ops.
func (s *Service) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Order, error) {
	o, err := s.loadForClient(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == payment.StatusPaid {
		return o, nil
	}
	intent, err := s.gateway.RetrieveIntent(ctx, cmd.IntentID)
	if err != nil {
		return nil, err
	}
	if intent.Metadata[payment.MetaOrderID] != string(o.ID) {
		return nil, fmt.Errorf("%w: payment intent does not belong to this order", types.ErrValidation)
	}
	if intent.Status != payment.IntentSucceeded {
		return nil, fmt.Errorf("%w: payment not completed (status %s)", types.ErrValidation, intent.Status)
	}
	return s.markPaid(ctx, o, intent.ID)
}

func (s *Service) markPaid(ctx context.Context, o *Order, intentID string) (*Order, error) {
	ok, err := s.store.MarkPaid(ctx, o.ID, intentID, s.now())
	if err != nil {
		return nil, err
	}
	cur, err := s.store.Get(ctx, o.ID)
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
	s.log.Info().Str("order_id", string(o.ID)).Str("payment_intent_id", intentID).Msg("service order paid")

	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeOrderConfirmed, RelatedID: cur.ID,
		Title: "Payment received", Body: fmt.Sprintf("Order %s is confirmed.", cur.OrderCode),
	})
	if p, err := s.catalog.GetProvider(ctx, cur.ProviderID); err == nil {
		s.notifier.Send(ctx, notification.Message{
			UserID: p.UserID, Type: notification.TypeOrderConfirmed, RelatedID: cur.ID,
			Title: "Order paid", Body: fmt.Sprintf("Order %s is paid and awaits your response.", cur.OrderCode),
		})
	}
	return cur, nil
}

func (s *Service) orderForIntent(ctx context.Context, intent payment.Intent) (*Order, bool, error) {
	var (
		o   *Order
		err error
	)
	if id := intent.Metadata[payment.MetaOrderID]; id != "" {
		o, err = s.store.Get(ctx, types.ID(id))
	} else if intent.ID != "" {
		o, err = s.store.FindByPaymentIntent(ctx, intent.ID)
	} else {
		return nil, false, nil
	}
	if errors.Is(err, types.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// ApplyPaymentSucceeded handles payment_intent.succeeded.
func (s *Service) ApplyPaymentSucceeded(ctx context.Context, intent payment.Intent) (bool, error) {
	if intent.Metadata[payment.MetaOrderID] == "" {
		return false, nil
	}
	o, found, err := s.orderForIntent(ctx, intent)
	if err != nil || !found {
		return found, err
	}
	if intent.Status != payment.IntentSucceeded {
		return true, nil
	}
	_, err = s.markPaid(ctx, o, intent.ID)
	if errors.Is(err, types.ErrInvalidState) {
		return true, s.refundLateCapture(ctx, o.ID, intent.ID)
	}
	return true, err
}

// refundLateCapture handles a capture that lands after the client cancelled or the
// provider declined an unpaid order.
func (s *Service) refundLateCapture(ctx context.Context, id types.ID, intentID string) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != StatusCancelled && o.Status != StatusRejected {
		s.log.Error().Str("order_id", string(id)).Str("status", string(o.Status)).Str("payment_intent_id", intentID).
			Msg("payment captured for order outside pending_payment; manual reconciliation required")
		return nil
	}
	claimed, err := s.store.ClaimLateCapture(ctx, id, intentID)
	if err != nil || !claimed {
		return err
	}
	s.log.Warn().Str("order_id", string(id)).Str("status", string(o.Status)).Str("payment_intent_id", intentID).
		Msg("payment captured after order closed; refunding")

	res := payment.TryRefund(ctx, s.gateway, entityKind, string(id), intentID, s.log)
	if err := s.store.RecordRefund(ctx, id, res.Status, res.RefundID); err != nil {
		s.log.Error().Err(err).Str("order_id", string(id)).Str("refund_status", string(res.Status)).Msg("record refund outcome")
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: o.ClientID, Type: notification.TypePaymentRefunded, RelatedID: o.ID,
		Title: "Late payment refunded",
		Body:  fmt.Sprintf("A payment for order %s arrived after it was closed.", o.OrderCode) + refundSentence(res),
	})
	return nil
}

// ApplyPaymentFailed handles payment_intent.payment_failed; the order stays payable.
func (s *Service) ApplyPaymentFailed(ctx context.Context, intent payment.Intent) (bool, error) {
	if intent.Metadata[payment.MetaOrderID] == "" {
		return false, nil
	}
	o, found, err := s.orderForIntent(ctx, intent)
	if err != nil || !found {
		return found, err
	}
	changed, err := s.store.MarkPaymentFailed(ctx, o.ID)
	if err != nil {
		return true, err
	}
	if changed {
		s.notifier.Send(ctx, notification.Message{
			UserID: o.ClientID, Type: notification.TypePaymentFailed, RelatedID: o.ID,
			Title: "Payment failed", Body: fmt.Sprintf("Payment for order %s failed. You can try again.", o.OrderCode),
		})
	}
	return true, nil
}

// ApplyRefunded handles charge.refunded, including refunds issued outside this service.
func (s *Service) ApplyRefunded(ctx context.Context, intent payment.Intent, refundID string) (bool, error) {
	o, found, err := s.orderForIntent(ctx, intent)
	if err != nil || !found {
		return found, err
	}
	changed, err := s.store.MarkRefunded(ctx, o.ID, refundID)
	if err != nil {
		return true, err
	}
	if changed {
		metrics.IncRefund(entityKind, "refunded")
		s.notifier.Send(ctx, notification.Message{
			UserID: o.ClientID, Type: notification.TypePaymentRefunded, RelatedID: o.ID,
			Title: "Refund issued", Body: fmt.Sprintf("Your payment for order %s was refunded.", o.OrderCode),
		})
	}
	return true, nil
}

func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Order, error) {
	o, err := s.loadForProvider(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusAccepted) {
		return nil, invalidState(o, StatusAccepted)
	}
	cur, err := s.transition(ctx, o, StatusAccepted, "provider", cmd.Actor, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeOrderAccepted, RelatedID: cur.ID,
		Title: "Order accepted", Body: fmt.Sprintf("Your provider accepted order %s.", cur.OrderCode),
	})
	return cur, nil
}

// refundIfPaid runs after a reject or cancel has committed. The outcome is persisted
// either way; a failed refund leaves the order paid with refund_status=failed.
func (s *Service) refundIfPaid(ctx context.Context, o *Order) (*Order, payment.RefundResult) {
	if o.PaymentStatus != payment.StatusPaid {
		return o, payment.RefundResult{Status: payment.RefundNone}
	}
	intentID := ""
	if o.PaymentIntentID != nil {
		intentID = *o.PaymentIntentID
	}
	if err := s.store.RequestRefund(ctx, o.ID); err != nil {
		s.log.Error().Err(err).Str("order_id", string(o.ID)).Msg("flag refund request")
	}
	res := payment.TryRefund(ctx, s.gateway, entityKind, string(o.ID), intentID, s.log)
	if err := s.store.RecordRefund(ctx, o.ID, res.Status, res.RefundID); err != nil {
		s.log.Error().Err(err).Str("order_id", string(o.ID)).Str("refund_status", string(res.Status)).Msg("record refund outcome")
		return o, res
	}
	cur, err := s.store.Get(ctx, o.ID)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", string(o.ID)).Msg("reload order after refund")
		return o, res
	}
	return cur, res
}

func refundSentence(res payment.RefundResult) string {
	switch res.Status {
	case payment.RefundRefunded:
		return " Your payment has been refunded."
	case payment.RefundFailed:
		return " Your refund is pending and will be processed manually."
	}
	return ""
}

func (s *Service) Reject(ctx context.Context, cmd RejectCommand) (*Order, error) {
	o, err := s.loadForProvider(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusRejected) {
		return nil, invalidState(o, StatusRejected)
	}
	reason := strings.TrimSpace(cmd.Reason)
	cur, err := s.transition(ctx, o, StatusRejected, "provider", cmd.Actor, func(u *StatusUpdate) {
		u.Reason = &reason
	})
	if err != nil {
		return nil, err
	}
	cur, res := s.refundIfPaid(ctx, cur)

	body := fmt.Sprintf("Order %s was declined by the provider.", cur.OrderCode)
	if reason != "" {
		body += " Reason: " + reason + "."
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeOrderRejected, RelatedID: cur.ID,
		Title: "Order declined", Body: body + refundSentence(res),
	})
	return cur, nil
}

// Cancel is client-initiated and only allowed before the provider accepted the job.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.loadForClient(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) || o.AcceptedAt != nil {
		return nil, invalidState(o, StatusCancelled)
	}
	reason := strings.TrimSpace(cmd.Reason)
	cur, err := s.transition(ctx, o, StatusCancelled, "client", cmd.Actor, func(u *StatusUpdate) {
		u.Reason = &reason
		u.RequireUnaccepted = true
	})
	if err != nil {
		return nil, err
	}
	cur, _ = s.refundIfPaid(ctx, cur)

	if p, err := s.catalog.GetProvider(ctx, cur.ProviderID); err == nil {
		s.notifier.Send(ctx, notification.Message{
			UserID: p.UserID, Type: notification.TypeOrderCancelled, RelatedID: cur.ID,
			Title: "Order cancelled", Body: fmt.Sprintf("The client cancelled order %s.", cur.OrderCode),
		})
	}
	return cur, nil
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Order, error) {
	o, err := s.loadForProvider(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusInProgress) {
		return nil, invalidState(o, StatusInProgress)
	}
	cur, err := s.transition(ctx, o, StatusInProgress, "provider", cmd.Actor, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeOrderStarted, RelatedID: cur.ID,
		Title: "Service started", Body: fmt.Sprintf("Work on order %s has started.", cur.OrderCode),
	})
	return cur, nil
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Order, error) {
	o, err := s.loadForProvider(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCompleted) {
		return nil, invalidState(o, StatusCompleted)
	}
	cur, err := s.transition(ctx, o, StatusCompleted, "provider", cmd.Actor, func(u *StatusUpdate) {
		if notes := strings.TrimSpace(cmd.Notes); notes != "" {
			u.Notes = &notes
		}
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeOrderCompleted, RelatedID: cur.ID,
		Title: "Order completed", Body: fmt.Sprintf("Order %s is complete. Tell us how it went by leaving a review.", cur.OrderCode),
	})
	return cur, nil
}

// Override forces any status for support cases. It deliberately skips AllowedTransitions.
func (s *Service) Override(ctx context.Context, cmd OverrideCommand) (*Order, error) {
	if err := requireApproved(cmd.Actor); err != nil {
		return nil, err
	}
	if cmd.Actor.Role != identity.RoleAdmin && cmd.Actor.Role != identity.RoleOperation {
		return nil, fmt.Errorf("%w: status override requires admin or operation", types.ErrForbidden)
	}
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", types.ErrValidation, cmd.Status)
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(cmd.Reason)
	cur, err := s.transition(ctx, o, cmd.Status, "staff", cmd.Actor, func(u *StatusUpdate) {
		if reason != "" {
			u.Reason = &reason
		}
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("order_id", string(o.ID)).Str("from", string(o.Status)).Str("to", string(cmd.Status)).Str("actor_id", string(cmd.Actor.ID)).Msg("service order status overridden")
	s.notifier.Send(ctx, notification.Message{
		UserID: cur.ClientID, Type: notification.TypeOrderStatusChanged, RelatedID: cur.ID,
		Title: "Order updated", Body: fmt.Sprintf("Order %s is now %s.", cur.OrderCode, cur.Status),
	})
	return cur, nil
}

// Get returns an order to its client, its provider or staff.
func (s *Service) Get(ctx context.Context, actor *identity.User, id types.ID) (*Order, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ClientID == actor.ID || isStaff(actor.Role) {
		return o, nil
	}
	if actor.Role == identity.RoleServiceProvider {
		if p, err := s.providerOf(ctx, actor); err == nil && p.ID == o.ProviderID {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: order not visible to caller", types.ErrForbidden)
}

func (s *Service) ListForClient(ctx context.Context, actor *identity.User) ([]*Order, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	return s.store.ListByClient(ctx, actor.ID)
}

func (s *Service) ListForProvider(ctx context.Context, actor *identity.User) ([]*Order, error) {
	if err := requireApproved(actor); err != nil {
		return nil, err
	}
	p, err := s.providerOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListByProvider(ctx, p.ID)
}
