// README: Assignment store backed by PostgreSQL; assignment rows and their service booking change in one transaction.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/infra"
	"staybook/internal/types"
)

const activeConstraint = "job_assignments_one_active"

var (
	errAssignmentNotFound = fmt.Errorf("%w: job assignment", types.ErrNotFound)
	errServiceNotFound    = fmt.Errorf("%w: service booking", types.ErrNotFound)
	errActiveAssignment   = fmt.Errorf("%w: service booking already has an active assignment", types.ErrConflict)
	errNotAssignable      = fmt.Errorf("%w: service booking is not open for assignment", types.ErrInvalidState)
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Transition moves one assignment out of From. ProviderID, when set, must own the row.
type Transition struct {
	ID         types.ID
	From       Status
	To         Status
	ProviderID *types.ID
	Reason     *string
	At         time.Time
}

const assignmentColumns = `id, service_booking_id, assigned_by, service_provider_id, status,
    rejection_reason, responded_at, created_at`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.ServiceBookingID, &a.AssignedBy, &a.ProviderID, &a.Status,
		&a.RejectionReason, &a.RespondedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func activeErr(err error) error {
	if infra.IsUniqueViolation(err, activeConstraint) {
		return errActiveAssignment
	}
	return err
}

// Create inserts a pending assignment. The service booking row is locked and the
// active-assignment check repeated inside the transaction; the partial unique index
// backs it up.
func (s *Store) Create(ctx context.Context, a *Assignment) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return insertTx(ctx, tx, a)
	})
	return activeErr(err)
}

func insertTx(ctx context.Context, tx pgx.Tx, a *Assignment) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM service_bookings WHERE id = $1 FOR UPDATE`, string(a.ServiceBookingID)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return errServiceNotFound
	}
	if err != nil {
		return err
	}
	switch status {
	case "awaiting_assignment", "pending":
	case "assigned":
		return errActiveAssignment
	default:
		return errNotAssignable
	}

	var active bool
	if err := tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM job_assignments
            WHERE service_booking_id = $1 AND status IN ('pending', 'accepted'))`,
		string(a.ServiceBookingID)).Scan(&active); err != nil {
		return err
	}
	if active {
		return errActiveAssignment
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO job_assignments (id, service_booking_id, assigned_by, service_provider_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(a.ID), string(a.ServiceBookingID), string(a.AssignedBy), string(a.ProviderID), string(a.Status), a.CreatedAt,
	); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
        UPDATE service_bookings SET status = 'assigned', updated_at = $1 WHERE id = $2`,
		a.CreatedAt, string(a.ServiceBookingID))
	return err
}

func transitionTx(ctx context.Context, tx pgx.Tx, t Transition) (bool, error) {
	var provider *string
	if t.ProviderID != nil {
		p := string(*t.ProviderID)
		provider = &p
	}
	tag, err := tx.Exec(ctx, `
        UPDATE job_assignments
        SET status = $1, rejection_reason = COALESCE($2, rejection_reason), responded_at = $3
        WHERE id = $4 AND status = $5 AND ($6::text IS NULL OR service_provider_id = $6)`,
		string(t.To), t.Reason, t.At, string(t.ID), string(t.From), provider,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	switch t.To {
	case StatusAccepted:
		_, err = tx.Exec(ctx, `
            UPDATE service_bookings sb
            SET status = 'confirmed', service_provider_id = ja.service_provider_id, updated_at = $1
            FROM job_assignments ja
            WHERE ja.id = $2 AND sb.id = ja.service_booking_id`,
			t.At, string(t.ID))
	case StatusRejected, StatusCancelled:
		// a cancelled stay keeps its cancelled add-on
		_, err = tx.Exec(ctx, `
            UPDATE service_bookings sb
            SET status = 'awaiting_assignment', service_provider_id = NULL, updated_at = $1
            FROM job_assignments ja
            WHERE ja.id = $2 AND sb.id = ja.service_booking_id AND sb.status = 'assigned'`,
			t.At, string(t.ID))
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Transition applies one provider or coordinator response. false means the row was no
// longer in t.From (or not owned by t.ProviderID).
func (s *Store) Transition(ctx context.Context, t Transition) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		ok, err = transitionTx(ctx, tx, t)
		return err
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Reassign withdraws a still-pending previous offer (when cancelPrevious is set) and
// creates next, all or nothing. false means the previous offer moved first.
func (s *Store) Reassign(ctx context.Context, previous Transition, cancelPrevious bool, next *Assignment) (bool, error) {
	ok := true
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if cancelPrevious {
			moved, err := transitionTx(ctx, tx, previous)
			if err != nil {
				return err
			}
			if !moved {
				ok = false
				return nil
			}
		}
		return insertTx(ctx, tx, next)
	})
	if err != nil {
		return false, activeErr(err)
	}
	return ok, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return scanAssignment(s.db.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM job_assignments WHERE id = $1`, string(id)))
}

func (s *Store) list(ctx context.Context, column string, id types.ID) ([]*Assignment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+assignmentColumns+` FROM job_assignments
        WHERE `+column+` = $1 ORDER BY created_at DESC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListByProvider(ctx context.Context, providerID types.ID) ([]*Assignment, error) {
	return s.list(ctx, "service_provider_id", providerID)
}

func (s *Store) ListByServiceBooking(ctx context.Context, serviceBookingID types.ID) ([]*Assignment, error) {
	return s.list(ctx, "service_booking_id", serviceBookingID)
}
