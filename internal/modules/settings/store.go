// README: Settings store backed by PostgreSQL.
package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNoSetting = errors.New("setting not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) (*Setting, error) {
	var st Setting
	err := s.db.QueryRow(ctx, `
        SELECT key, value, type, updated_by, updated_at
        FROM platform_settings WHERE key = $1`, key,
	).Scan(&st.Key, &st.Value, &st.Type, &st.UpdatedBy, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoSetting
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Put(ctx context.Context, st *Setting) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO platform_settings (key, value, type, updated_by, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (key) DO UPDATE
        SET value = EXCLUDED.value, type = EXCLUDED.type,
            updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		st.Key, st.Value, st.Type, st.UpdatedBy, st.UpdatedAt,
	)
	return err
}

func (s *Store) List(ctx context.Context) ([]*Setting, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value, type, updated_by, updated_at FROM platform_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Setting{}
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Type, &st.UpdatedBy, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}
