// README: Notification store backed by PostgreSQL.
package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, n *Notification) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, related_id, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		string(n.ID), string(n.UserID), string(n.Type), n.Title, n.Message, n.RelatedID, n.CreatedAt,
	)
	return err
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID, limit int) ([]*Notification, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, user_id, type, title, message, related_id, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, string(userID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, userID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, string(userID)).Scan(&n)
	return n, err
}

func (s *Store) MarkRead(ctx context.Context, userID, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, string(id), string(userID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID types.ID) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, string(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
