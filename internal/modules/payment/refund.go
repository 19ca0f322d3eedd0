// README: Best-effort refund used by reject/cancel paths; never blocks the transition.
package payment

import (
	"context"

	"github.com/rs/zerolog"

	"staybook/internal/metrics"
)

type RefundResult struct {
	Status   RefundStatus
	RefundID string
	Err      error
}

// Refunded reports whether money actually went back to the client.
func (r RefundResult) Refunded() bool { return r.Status == RefundRefunded }

// TryRefund refunds a paid intent. A gateway failure is logged and reported in the
// result with RefundFailed; the caller proceeds with its state change regardless.
func TryRefund(ctx context.Context, gw Gateway, entity, entityID, intentID string, log zerolog.Logger) RefundResult {
	if intentID == "" {
		metrics.IncRefund(entity, "failed")
		log.Error().Str("entity", entity).Str("id", entityID).Msg("refund skipped: paid entity has no payment intent")
		return RefundResult{Status: RefundFailed}
	}
	id, err := gw.Refund(ctx, intentID)
	if err != nil {
		metrics.IncRefund(entity, "failed")
		log.Error().Err(err).Str("entity", entity).Str("id", entityID).Str("payment_intent_id", intentID).
			Msg("refund failed; manual reconciliation required")
		return RefundResult{Status: RefundFailed, Err: err}
	}
	metrics.IncRefund(entity, "refunded")
	log.Info().Str("entity", entity).Str("id", entityID).Str("refund_id", id).Msg("refund issued")
	return RefundResult{Status: RefundRefunded, RefundID: id}
}
