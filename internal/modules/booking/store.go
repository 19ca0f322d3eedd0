// README: Booking store backed by PostgreSQL; booking and add-on rows change together in one transaction.
package booking

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

const entityKind = "booking"

var (
	errBookingNotFound = fmt.Errorf("%w: booking", types.ErrNotFound)
	errServiceNotFound = fmt.Errorf("%w: service booking", types.ErrNotFound)
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// StatusUpdate is one guarded booking transition keyed on StatusVersion.
type StatusUpdate struct {
	BookingID types.ID
	From      Status
	To        Status
	Version   int
	Reason    *string
	ActorType string
	ActorID   *types.ID
	At        time.Time
}

const bookingColumns = `b.id, b.booking_code, b.client_id, b.property_id, b.check_in, b.check_out, b.guests,
    b.property_total, b.services_total, b.discount_amount, b.total_amount,
    b.status, b.status_version, b.payment_status, b.refund_status, b.payment_intent_id, b.refund_id,
    b.cancellation_reason, b.confirmed_at, b.completed_at, b.cancelled_at, b.created_at, b.updated_at`

const serviceColumns = `id, booking_id, category_id, service_provider_id, service_name, service_date, hours,
    rate, total, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.BookingCode, &b.ClientID, &b.PropertyID, &b.CheckIn, &b.CheckOut, &b.Guests,
		&b.PropertyTotal, &b.ServicesTotal, &b.DiscountAmount, &b.TotalAmount,
		&b.Status, &b.StatusVersion, &b.PaymentStatus, &b.RefundStatus, &b.PaymentIntentID, &b.RefundID,
		&b.CancellationReason, &b.ConfirmedAt, &b.CompletedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanService(row pgx.Row) (*ServiceBooking, error) {
	var sb ServiceBooking
	err := row.Scan(
		&sb.ID, &sb.BookingID, &sb.CategoryID, &sb.ProviderID, &sb.ServiceName, &sb.ServiceDate, &sb.Hours,
		&sb.Rate, &sb.Total, &sb.Status, &sb.CreatedAt, &sb.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sb, nil
}

func idString(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

// Create inserts the booking, every add-on and the initial audit event atomically.
func (s *Store) Create(ctx context.Context, b *Booking) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO bookings (
                id, booking_code, client_id, property_id, check_in, check_out, guests,
                property_total, services_total, discount_amount, total_amount,
                status, status_version, payment_status, refund_status, created_at, updated_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`,
			string(b.ID), b.BookingCode, string(b.ClientID), string(b.PropertyID), b.CheckIn, b.CheckOut, b.Guests,
			int64(b.PropertyTotal), int64(b.ServicesTotal), int64(b.DiscountAmount), int64(b.TotalAmount),
			string(b.Status), b.StatusVersion, string(b.PaymentStatus), string(b.RefundStatus), b.CreatedAt,
		)
		if err != nil {
			return err
		}
		for _, sb := range b.Services {
			if _, err := tx.Exec(ctx, `
                INSERT INTO service_bookings (
                    id, booking_id, category_id, service_provider_id, service_name, service_date, hours,
                    rate, total, status, created_at, updated_at
                ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
				string(sb.ID), string(b.ID), sb.CategoryID, idString(sb.ProviderID), sb.ServiceName, sb.ServiceDate, sb.Hours,
				int64(sb.Rate), int64(sb.Total), string(sb.Status), sb.CreatedAt,
			); err != nil {
				return err
			}
		}
		return infra.AppendStateEvent(ctx, tx, infra.StateEvent{
			EntityKind: entityKind,
			EntityID:   string(b.ID),
			FromStatus: string(StatusNone),
			ToStatus:   string(b.Status),
			ActorType:  "client",
			ActorID:    idString(&b.ClientID),
			CreatedAt:  b.CreatedAt,
		})
	})
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, string(id)))
	if err != nil {
		return nil, err
	}
	if b.Services, err = s.ListServices(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) FindByPaymentIntent(ctx context.Context, intentID string) (*Booking, error) {
	return scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.payment_intent_id = $1`, intentID))
}

func (s *Store) listBookings(ctx context.Context, query string, arg string) ([]*Booking, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListByClient(ctx context.Context, clientID types.ID) ([]*Booking, error) {
	return s.listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings b
        WHERE b.client_id = $1 ORDER BY b.created_at DESC`, string(clientID))
}

// ListByOwner returns bookings on any property the owner lists.
func (s *Store) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Booking, error) {
	return s.listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings b
        JOIN properties p ON p.id = b.property_id
        WHERE p.owner_id = $1 ORDER BY b.check_in, b.created_at`, string(ownerID))
}

func (s *Store) listServices(ctx context.Context, query string, arg string) ([]ServiceBooking, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ServiceBooking{}
	for rows.Next() {
		sb, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sb)
	}
	return out, rows.Err()
}

func (s *Store) ListServices(ctx context.Context, bookingID types.ID) ([]ServiceBooking, error) {
	return s.listServices(ctx, `SELECT `+serviceColumns+` FROM service_bookings
        WHERE booking_id = $1 ORDER BY service_date, created_at`, string(bookingID))
}

// ListServicesByStatus feeds the coordinators' assignment queue.
func (s *Store) ListServicesByStatus(ctx context.Context, status ServiceStatus) ([]ServiceBooking, error) {
	return s.listServices(ctx, `SELECT `+serviceColumns+` FROM service_bookings
        WHERE status = $1 ORDER BY service_date, created_at`, string(status))
}

func (s *Store) GetService(ctx context.Context, id types.ID) (*ServiceBooking, error) {
	return scanService(s.db.QueryRow(ctx, `SELECT `+serviceColumns+` FROM service_bookings WHERE id = $1`, string(id)))
}

// UpdateStatus applies one booking transition. Cancelling also cancels every open add-on
// and withdraws pending job offers for them; completing closes confirmed add-ons.
func (s *Store) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE bookings
            SET status = $1,
                status_version = status_version + 1,
                updated_at = $2,
                completed_at = CASE WHEN $1 = 'completed' THEN $2 ELSE completed_at END,
                cancelled_at = CASE WHEN $1 = 'cancelled' THEN $2 ELSE cancelled_at END,
                cancellation_reason = CASE WHEN $1 = 'cancelled' THEN $3 ELSE cancellation_reason END
            WHERE id = $4 AND status_version = $5`,
			string(u.To), u.At, u.Reason, string(u.BookingID), u.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		ok = true

		switch u.To {
		case StatusCancelled:
			if _, err := tx.Exec(ctx, `
                UPDATE job_assignments SET status = 'cancelled', responded_at = $1
                WHERE status = 'pending' AND service_booking_id IN (
                    SELECT id FROM service_bookings WHERE booking_id = $2)`,
				u.At, string(u.BookingID),
			); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
                UPDATE service_bookings SET status = 'cancelled', updated_at = $1
                WHERE booking_id = $2 AND status NOT IN ('completed', 'cancelled')`,
				u.At, string(u.BookingID),
			); err != nil {
				return err
			}
		case StatusCompleted:
			if _, err := tx.Exec(ctx, `
                UPDATE service_bookings SET status = 'completed', updated_at = $1
                WHERE booking_id = $2 AND status = 'confirmed'`,
				u.At, string(u.BookingID),
			); err != nil {
				return err
			}
		}

		return infra.AppendStateEvent(ctx, tx, infra.StateEvent{
			EntityKind: entityKind,
			EntityID:   string(u.BookingID),
			FromStatus: string(u.From),
			ToStatus:   string(u.To),
			ActorType:  u.ActorType,
			ActorID:    idString(u.ActorID),
			CreatedAt:  u.At,
		})
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// MarkPaid is the idempotent paid transition shared by client confirmation and the webhook.
func (s *Store) MarkPaid(ctx context.Context, id types.ID, intentID string, at time.Time) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE bookings
            SET payment_status = 'paid', status = 'confirmed', status_version = status_version + 1,
                payment_intent_id = $1, confirmed_at = $2, updated_at = $2
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
        UPDATE bookings SET payment_status = 'failed', updated_at = NOW()
        WHERE id = $1 AND payment_status = 'pending'`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RequestRefund flags a paid booking before the gateway is asked for the money back.
func (s *Store) RequestRefund(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
        UPDATE bookings SET refund_status = 'requested', updated_at = NOW()
        WHERE id = $1 AND refund_status = 'none'`, string(id))
	return err
}

// ClaimLateCapture records a payment that settled after the booking was cancelled and
// flags it for refund. Only the first delivery claims it.
func (s *Store) ClaimLateCapture(ctx context.Context, id types.ID, intentID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET payment_status = 'paid', payment_intent_id = $1, refund_status = 'requested', updated_at = NOW()
        WHERE id = $2 AND status = 'cancelled'
          AND payment_status NOT IN ('paid', 'refunded') AND refund_status = 'none'`,
		intentID, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordRefund stores the outcome of a refund this service issued. A refund already
// confirmed by the gateway is left alone.
func (s *Store) RecordRefund(ctx context.Context, id types.ID, outcome payment.RefundStatus, refundID string) error {
	_, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET refund_status = $1,
            refund_id = COALESCE(NULLIF($2, ''), refund_id),
            payment_status = CASE WHEN $1 = 'refunded' THEN 'refunded' ELSE payment_status END,
            updated_at = NOW()
        WHERE id = $3 AND refund_status <> 'refunded'`,
		string(outcome), refundID, string(id),
	)
	return err
}

// MarkRefunded applies a gateway refund notice. It reports true only for refunds this
// service did not start, which nobody has told the client about yet.
func (s *Store) MarkRefunded(ctx context.Context, id types.ID, refundID string) (bool, error) {
	var external bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var prev string
		err := tx.QueryRow(ctx, `
            SELECT refund_status FROM bookings
            WHERE id = $1 AND payment_status = 'paid' AND refund_status <> 'refunded'
            FOR UPDATE`, string(id)).Scan(&prev)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
            UPDATE bookings
            SET payment_status = 'refunded', refund_status = 'refunded',
                refund_id = COALESCE(refund_id, NULLIF($1, '')), updated_at = NOW()
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

// PendingOffers lists the providers holding an unanswered job offer on the booking's add-ons.
func (s *Store) PendingOffers(ctx context.Context, bookingID types.ID) ([]Offer, error) {
	rows, err := s.db.Query(ctx, `
        SELECT ja.service_booking_id, ja.service_provider_id
        FROM job_assignments ja
        JOIN service_bookings sb ON sb.id = ja.service_booking_id
        WHERE sb.booking_id = $1 AND ja.status = 'pending'`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Offer{}
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ServiceBookingID, &o.ProviderID); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
