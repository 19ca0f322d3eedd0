// README: Order store backed by PostgreSQL; every status write is a conditional update.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/infra"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

const entityKind = "service_order"

var errOrderNotFound = fmt.Errorf("%w: service order", types.ErrNotFound)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// StatusUpdate is one guarded transition. The write only lands when the row still
// carries Version (and, with RequireUnaccepted, has no accepted_at).
type StatusUpdate struct {
	OrderID           types.ID
	From              Status
	To                Status
	Version           int
	RequireUnaccepted bool
	Reason            *string
	Notes             *string
	ActorType         string
	ActorID           *types.ID
	At                time.Time
}

const orderColumns = `id, order_code, client_id, service_provider_id, booking_id, service_date, start_time, end_time,
    subtotal, tax_amount, total_amount, platform_fee_percentage, platform_fee_amount, provider_amount,
    status, status_version, payment_status, refund_status, payment_intent_id, stripe_refund_id,
    rejection_reason, cancellation_reason, provider_notes, notes,
    accepted_at, started_at, completed_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderCode, &o.ClientID, &o.ProviderID, &o.BookingID, &o.ServiceDate, &o.StartTime, &o.EndTime,
		&o.Subtotal, &o.TaxAmount, &o.TotalAmount, &o.PlatformFeePercentage, &o.PlatformFeeAmount, &o.ProviderAmount,
		&o.Status, &o.StatusVersion, &o.PaymentStatus, &o.RefundStatus, &o.PaymentIntentID, &o.StripeRefundID,
		&o.RejectionReason, &o.CancellationReason, &o.ProviderNotes, &o.Notes,
		&o.AcceptedAt, &o.StartedAt, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func actorString(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

// Create inserts the order, its items and the initial audit event in one transaction.
func (s *Store) Create(ctx context.Context, o *Order) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO service_orders (
                id, order_code, client_id, service_provider_id, booking_id, service_date, start_time, end_time,
                subtotal, tax_amount, total_amount, platform_fee_percentage, platform_fee_amount, provider_amount,
                status, status_version, payment_status, refund_status, notes, created_at, updated_at
            ) VALUES (
                $1, $2, $3, $4, $5, $6, $7, $8,
                $9, $10, $11, $12, $13, $14,
                $15, $16, $17, $18, $19, $20, $20
            )`,
			string(o.ID), o.OrderCode, string(o.ClientID), string(o.ProviderID), actorString(o.BookingID),
			o.ServiceDate, o.StartTime, o.EndTime,
			int64(o.Subtotal), int64(o.TaxAmount), int64(o.TotalAmount),
			int64(o.PlatformFeePercentage), int64(o.PlatformFeeAmount), int64(o.ProviderAmount),
			string(o.Status), o.StatusVersion, string(o.PaymentStatus), string(o.RefundStatus), o.Notes, o.CreatedAt,
		)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
                INSERT INTO service_order_items (id, order_id, item_type, ref_id, name, unit_price, quantity, line_total)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				string(it.ID), string(o.ID), string(it.Type), string(it.RefID), it.Name,
				int64(it.UnitPrice), it.Quantity, int64(it.LineTotal),
			); err != nil {
				return err
			}
		}
		return infra.AppendStateEvent(ctx, tx, infra.StateEvent{
			EntityKind: entityKind,
			EntityID:   string(o.ID),
			FromStatus: string(StatusNone),
			ToStatus:   string(o.Status),
			ActorType:  "client",
			ActorID:    actorString(&o.ClientID),
			CreatedAt:  o.CreatedAt,
		})
	})
	if infra.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: referenced booking does not exist", types.ErrValidation)
	}
	return err
}

func (s *Store) loadItems(ctx context.Context, o *Order) error {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, item_type, ref_id, name, unit_price, quantity, line_total
        FROM service_order_items WHERE order_id = $1 ORDER BY name, id`, string(o.ID))
	if err != nil {
		return err
	}
	defer rows.Close()
	o.Items = []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Type, &it.RefID, &it.Name, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1`, string(id)))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) FindByPaymentIntent(ctx context.Context, intentID string) (*Order, error) {
	return scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE payment_intent_id = $1`, intentID))
}

func (s *Store) list(ctx context.Context, column string, id types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE `+column+` = $1 ORDER BY created_at DESC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error) {
	return s.list(ctx, "client_id", clientID)
}

func (s *Store) ListByProvider(ctx context.Context, providerID types.ID) ([]*Order, error) {
	return s.list(ctx, "service_provider_id", providerID)
}

// UpdateStatus applies one transition and its audit event atomically. false means the
// row moved underneath the caller.
func (s *Store) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE service_orders
            SET status = $1,
                status_version = status_version + 1,
                updated_at = $2,
                accepted_at = CASE WHEN $1 = 'accepted' THEN $2 ELSE accepted_at END,
                started_at = CASE WHEN $1 = 'in_progress' THEN $2 ELSE started_at END,
                completed_at = CASE WHEN $1 = 'completed' THEN $2 ELSE completed_at END,
                cancelled_at = CASE WHEN $1 = 'cancelled' THEN $2 ELSE cancelled_at END,
                rejection_reason = CASE WHEN $1 = 'rejected' THEN $3 ELSE rejection_reason END,
                cancellation_reason = CASE WHEN $1 = 'cancelled' THEN $3 ELSE cancellation_reason END,
                provider_notes = COALESCE($4, provider_notes)
            WHERE id = $5 AND status_version = $6
              AND (NOT $7 OR accepted_at IS NULL)`,
			string(u.To), u.At, u.Reason, u.Notes, string(u.OrderID), u.Version, u.RequireUnaccepted,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		ok = true
		return infra.AppendStateEvent(ctx, tx, infra.StateEvent{
			EntityKind: entityKind,
			EntityID:   string(u.OrderID),
			FromStatus: string(u.From),
			ToStatus:   string(u.To),
			ActorType:  u.ActorType,
			ActorID:    actorString(u.ActorID),
			CreatedAt:  u.At,
		})
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// MarkPaid is the single idempotent paid transition shared by client confirmation and
// the webhook: only the caller that flips payment_status wins.
func (s *Store) MarkPaid(ctx context.Context, id types.ID, intentID string, at time.Time) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE service_orders
            SET payment_status = 'paid', status = 'confirmed', status_version = status_version + 1,
                payment_intent_id = $1, updated_at = $2
            WHERE id = $3 AND payment_status <> 'paid' AND status = 'pending_payment'`,
			intentID, at, string(id),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		ok = true
		return infra.AppendStateEvent(ctx, tx, infra.StateEvent{
			EntityKind: entityKind,
			EntityID:   string(id),
			FromStatus: string(StatusPendingPayment),
			ToStatus:   string(StatusConfirmed),
			ActorType:  "payment",
			CreatedAt:  at,
		})
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) MarkPaymentFailed(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE service_orders SET payment_status = 'failed', updated_at = NOW()
        WHERE id = $1 AND payment_status = 'pending'`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordRefund stores the outcome of a refund attempt made after a reject or cancel.
func (s *Store) RecordRefund(ctx context.Context, id types.ID, outcome payment.RefundStatus, refundID string) error {
	_, err := s.db.Exec(ctx, `
        UPDATE service_orders
        SET refund_status = $1,
            stripe_refund_id = COALESCE(NULLIF($2, ''), stripe_refund_id),
            payment_status = CASE WHEN $1 = 'refunded' THEN 'refunded' ELSE payment_status END,
            updated_at = NOW()
        WHERE id = $3 AND refund_status <> 'refunded'`,
		string(outcome), refundID, string(id),
	)
	return err
}

// RequestRefund flags a paid order before the gateway call.
func (s *Store) RequestRefund(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
        UPDATE service_orders SET refund_status = 'requested', updated_at = NOW()
        WHERE id = $1 AND refund_status = 'none'`, string(id))
	return err
}

// ClaimLateCapture records a payment that settled after the order was cancelled or
// rejected and flags it for refund; false when another delivery got there first.
func (s *Store) ClaimLateCapture(ctx context.Context, id types.ID, intentID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE service_orders
        SET payment_status = 'paid', payment_intent_id = $1, refund_status = 'requested', updated_at = NOW()
        WHERE id = $2 AND status IN ('cancelled', 'rejected')
          AND payment_status NOT IN ('paid', 'refunded') AND refund_status = 'none'`,
		intentID, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded applies a gateway-side refund notice. True means the refund was started
// outside this service and the client still has to hear about it.
func (s *Store) MarkRefunded(ctx context.Context, id types.ID, refundID string) (bool, error) {
	var external bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var prev string
		err := tx.QueryRow(ctx, `
            SELECT refund_status FROM service_orders
            WHERE id = $1 AND payment_status = 'paid' AND refund_status <> 'refunded'
            FOR UPDATE`, string(id)).Scan(&prev)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
            UPDATE service_orders
            SET payment_status = 'refunded', refund_status = 'refunded',
                stripe_refund_id = COALESCE(stripe_refund_id, NULLIF($1, '')), updated_at = NOW()
            WHERE id = $2`,
			refundID, string(id),
		); err != nil {
			return err
		}
		external = prev == string(payment.RefundNone)
		return nil
	})
	if err != nil {
		return false, err
	}
	return external, nil
}
