// README: Small pgx helpers shared by module stores (unique-violation mapping, audit events).
package infra

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
// constraint, when non-empty, must match the violated index/constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key violation,
// typically a delete of a row that is still referenced.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// StateEvent is one row of the order_state_events audit trail.
type StateEvent struct {
	EntityKind string
	EntityID   string
	FromStatus string
	ToStatus   string
	ActorType  string
	ActorID    *string
	CreatedAt  time.Time
}

func AppendStateEvent(ctx context.Context, db Execer, e StateEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := db.Exec(ctx, `
        INSERT INTO order_state_events (
            entity_kind, entity_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.EntityKind, e.EntityID, e.FromStatus, e.ToStatus, e.ActorType, e.ActorID, e.CreatedAt,
	)
	return err
}
