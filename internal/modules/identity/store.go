// README: Identity store backed by PostgreSQL; uniqueness rules live in indexes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/infra"
	"staybook/internal/types"
)

const (
	idxEmail            = "users_email_key"
	idxOperationSupport = "users_single_operation_support"
	idxOnePendingChange = "role_change_requests_one_pending"
)

var (
	errEmailTaken      = fmt.Errorf("%w: email already registered", types.ErrConflict)
	errSupportTaken    = fmt.Errorf("%w: another user already holds the operation_support role", types.ErrConflict)
	errUserNotFound    = fmt.Errorf("%w: user", types.ErrNotFound)
	errRequestNotFound = fmt.Errorf("%w: role change request", types.ErrNotFound)
	errPendingRequest  = fmt.Errorf("%w: a role change request is already pending", types.ErrConflict)
	errAlreadyDecided  = fmt.Errorf("%w: already decided", types.ErrInvalidState)
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const userColumns = `id, email, password_hash, name, role, status, approved_by, approved_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Status, &u.ApprovedBy, &u.ApprovedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapUserWriteErr(err error) error {
	switch {
	case infra.IsUniqueViolation(err, idxEmail):
		return errEmailTaken
	case infra.IsUniqueViolation(err, idxOperationSupport):
		return errSupportTaken
	}
	return err
}

func (s *Store) Create(ctx context.Context, u *User) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, name, role, status, approved_by, approved_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		string(u.ID), u.Email, u.PasswordHash, u.Name, string(u.Role), string(u.Status), u.ApprovedBy, u.ApprovedAt, u.CreatedAt,
	)
	return mapUserWriteErr(err)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id)))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*User, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateRole relies on users_single_operation_support to reject a second holder atomically.
func (s *Store) UpdateRole(ctx context.Context, id types.ID, role Role) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
        UPDATE users SET role = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING `+userColumns, string(role), string(id)))
	if err != nil {
		return nil, mapUserWriteErr(err)
	}
	return u, nil
}

// Decide moves a pending account to approved or rejected; false when it was not pending.
func (s *Store) Decide(ctx context.Context, id types.ID, status Status, by types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE users SET status = $1, approved_by = $2, approved_at = $3, updated_at = NOW()
        WHERE id = $4 AND status = 'pending'`,
		string(status), string(by), at, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const requestColumns = `id, user_id, requested_role, reason, status, decided_by, decided_at, decision_reason, created_at`

func scanRequest(row pgx.Row) (*RoleChangeRequest, error) {
	var r RoleChangeRequest
	err := row.Scan(&r.ID, &r.UserID, &r.RequestedRole, &r.Reason, &r.Status, &r.DecidedBy, &r.DecidedAt, &r.DecisionReason, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateRoleRequest(ctx context.Context, r *RoleChangeRequest) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO role_change_requests (id, user_id, requested_role, reason, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(r.ID), string(r.UserID), string(r.RequestedRole), r.Reason, string(r.Status), r.CreatedAt,
	)
	if infra.IsUniqueViolation(err, idxOnePendingChange) {
		return errPendingRequest
	}
	return err
}

func (s *Store) GetRoleRequest(ctx context.Context, id types.ID) (*RoleChangeRequest, error) {
	return scanRequest(s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM role_change_requests WHERE id = $1`, string(id)))
}

func (s *Store) ListRoleRequests(ctx context.Context, status Status) ([]*RoleChangeRequest, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+requestColumns+` FROM role_change_requests
        WHERE ($1 = '' OR status = $1)
        ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*RoleChangeRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DecideRoleRequest records the decision and, on approval, applies the role in the same transaction.
func (s *Store) DecideRoleRequest(ctx context.Context, id types.ID, status Status, by types.ID, at time.Time, reason string) (*RoleChangeRequest, *User, error) {
	var (
		req  *RoleChangeRequest
		user *User
	)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		req, err = scanRequest(tx.QueryRow(ctx, `
            UPDATE role_change_requests
            SET status = $1, decided_by = $2, decided_at = $3, decision_reason = NULLIF($4, '')
            WHERE id = $5 AND status = 'pending'
            RETURNING `+requestColumns,
			string(status), string(by), at, reason, string(id)))
		if errors.Is(err, errRequestNotFound) {
			var exists bool
			if qerr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_change_requests WHERE id = $1)`, string(id)).Scan(&exists); qerr != nil {
				return qerr
			}
			if exists {
				return errAlreadyDecided
			}
			return errRequestNotFound
		}
		if err != nil {
			return err
		}

		if status == StatusApproved {
			user, err = scanUser(tx.QueryRow(ctx, `
                UPDATE users SET role = $1, updated_at = NOW()
                WHERE id = $2
                RETURNING `+userColumns, string(req.RequestedRole), string(req.UserID)))
			if err != nil {
				return mapUserWriteErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, user, nil
}
