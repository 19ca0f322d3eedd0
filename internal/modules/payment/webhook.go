// README: Webhook dispatcher; routes verified gateway events to the order and booking engines.
package payment

import (
	"context"

	"github.com/rs/zerolog"
)

// Reconciler applies gateway events to one kind of local entity. Each method reports
// whether the event belonged to that kind.
type Reconciler interface {
	ApplyPaymentSucceeded(ctx context.Context, intent Intent) (bool, error)
	ApplyPaymentFailed(ctx context.Context, intent Intent) (bool, error)
	ApplyRefunded(ctx context.Context, intent Intent, refundID string) (bool, error)
}

type Dispatcher struct {
	gateway     Gateway
	reconcilers []Reconciler
	log         zerolog.Logger
}

func NewDispatcher(gateway Gateway, log zerolog.Logger, reconcilers ...Reconciler) *Dispatcher {
	return &Dispatcher{gateway: gateway, reconcilers: reconcilers, log: log.With().Str("module", "payment").Logger()}
}

// Handle verifies and applies one webhook delivery. Unknown event types and events
// matching no local row are acknowledged so the gateway stops retrying.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, signature string) error {
	ev, err := d.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	logger := d.log.With().Str("event_id", ev.ID).Str("type", string(ev.Type)).Str("payment_intent_id", ev.Intent.ID).Logger()

	for _, r := range d.reconcilers {
		var handled bool
		switch ev.Type {
		case EventPaymentSucceeded:
			handled, err = r.ApplyPaymentSucceeded(ctx, ev.Intent)
		case EventPaymentFailed:
			handled, err = r.ApplyPaymentFailed(ctx, ev.Intent)
		case EventChargeRefunded:
			handled, err = r.ApplyRefunded(ctx, ev.Intent, ev.RefundID)
		default:
			logger.Debug().Msg("ignoring webhook event")
			return nil
		}
		if err != nil {
			logger.Error().Err(err).Msg("apply webhook event")
			return err
		}
		if handled {
			logger.Info().Msg("webhook event applied")
			return nil
		}
	}
	logger.Warn().Msg("webhook event matched no local entity")
	return nil
}
