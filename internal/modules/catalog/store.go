// README: Catalog store backed by PostgreSQL.
package catalog

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

const idxProviderUser = "service_providers_user_id_key"

var (
	errProviderNotFound  = fmt.Errorf("%w: service provider", types.ErrNotFound)
	errPropertyNotFound  = fmt.Errorf("%w: property", types.ErrNotFound)
	errCategoryNotFound  = fmt.Errorf("%w: service category", types.ErrNotFound)
	errApplicationExists = fmt.Errorf("%w: a provider application already exists for this user", types.ErrConflict)
	errProviderDecided   = fmt.Errorf("%w: application already decided", types.ErrInvalidState)
	errProviderInUse     = fmt.Errorf("%w: provider has orders or bookings", types.ErrConflict)
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, base_rate FROM service_categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.BaseRate); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	var c Category
	err := s.db.QueryRow(ctx, `SELECT id, name, base_rate FROM service_categories WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.BaseRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const propertyColumns = `id, owner_id, title, city, country, price_per_night, max_guests, is_active, created_at`

func scanProperty(row pgx.Row) (*Property, error) {
	var p Property
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.City, &p.Country, &p.PricePerNight, &p.MaxGuests, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProperty(ctx context.Context, p *Property) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO properties (id, owner_id, title, city, country, price_per_night, max_guests, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(p.ID), string(p.OwnerID), p.Title, p.City, p.Country, int64(p.PricePerNight), p.MaxGuests, p.IsActive, p.CreatedAt,
	)
	return err
}

func (s *Store) GetProperty(ctx context.Context, id types.ID) (*Property, error) {
	return scanProperty(s.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, string(id)))
}

func (s *Store) SetPropertyActive(ctx context.Context, id types.ID, active bool) (*Property, error) {
	return scanProperty(s.db.QueryRow(ctx, `
        UPDATE properties SET is_active = $1 WHERE id = $2
        RETURNING `+propertyColumns, active, string(id)))
}

func (s *Store) ListPropertiesByOwner(ctx context.Context, ownerID types.ID) ([]*Property, error) {
	rows, err := s.db.Query(ctx, `SELECT `+propertyColumns+` FROM properties WHERE owner_id = $1 ORDER BY created_at`, string(ownerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const providerColumns = `id, user_id, category_id, business_name, description, city, country, hourly_rate,
    approval_status, is_active, rejection_reason, approved_by, approved_at, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.BusinessName, &p.Description, &p.City, &p.Country, &p.HourlyRate,
		&p.ApprovalStatus, &p.IsActive, &p.RejectionReason, &p.ApprovedBy, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProvider(ctx context.Context, p *Provider) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO service_providers (
            id, user_id, category_id, business_name, description, city, country, hourly_rate,
            approval_status, is_active, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		string(p.ID), string(p.UserID), p.CategoryID, p.BusinessName, p.Description, p.City, p.Country, int64(p.HourlyRate),
		string(p.ApprovalStatus), p.IsActive, p.CreatedAt,
	)
	if infra.IsUniqueViolation(err, idxProviderUser) {
		return errApplicationExists
	}
	return err
}

func (s *Store) GetProvider(ctx context.Context, id types.ID) (*Provider, error) {
	return scanProvider(s.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM service_providers WHERE id = $1`, string(id)))
}

func (s *Store) GetProviderByUser(ctx context.Context, userID types.ID) (*Provider, error) {
	return scanProvider(s.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM service_providers WHERE user_id = $1`, string(userID)))
}

func (s *Store) ListProviders(ctx context.Context, status ApprovalStatus) ([]*Provider, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+providerColumns+` FROM service_providers
        WHERE ($1 = '' OR approval_status = $1)
        ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecideProvider moves a pending application to approved or rejected. Approval also
// promotes the owning user to an approved service_provider inside the same transaction.
func (s *Store) DecideProvider(ctx context.Context, id types.ID, status ApprovalStatus, by types.ID, at time.Time, reason string) (*Provider, error) {
	var p *Provider
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		p, err = scanProvider(tx.QueryRow(ctx, `
            UPDATE service_providers
            SET approval_status = $1, approved_by = $2, approved_at = $3,
                rejection_reason = NULLIF($4, ''), updated_at = NOW()
            WHERE id = $5 AND approval_status = 'pending'
            RETURNING `+providerColumns,
			string(status), string(by), at, reason, string(id)))
		if errors.Is(err, errProviderNotFound) {
			var exists bool
			if qerr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_providers WHERE id = $1)`, string(id)).Scan(&exists); qerr != nil {
				return qerr
			}
			if exists {
				return errProviderDecided
			}
			return errProviderNotFound
		}
		if err != nil {
			return err
		}
		if status != ApprovalApproved {
			return nil
		}
		_, err = tx.Exec(ctx, `
            UPDATE users
            SET role = 'service_provider', status = 'approved',
                approved_by = COALESCE(approved_by, $1), approved_at = COALESCE(approved_at, $2),
                updated_at = NOW()
            WHERE id = $3`,
			string(by), at, string(p.UserID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) DeleteProvider(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM service_providers WHERE id = $1`, string(id))
	if infra.IsForeignKeyViolation(err) {
		return errProviderInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errProviderNotFound
	}
	return nil
}

// itemTable maps a kind to its table and availability column.
func itemTable(kind ItemKind) (table, availableCol string) {
	if kind == KindTask {
		return "provider_tasks", "is_active"
	}
	return "menu_items", "is_available"
}

func (s *Store) AddItem(ctx context.Context, it *Item) error {
	table, col := itemTable(it.Kind)
	_, err := s.db.Exec(ctx, `
        INSERT INTO `+table+` (id, provider_id, name, price, `+col+`, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(it.ID), string(it.ProviderID), it.Name, int64(it.Price), it.Available, it.CreatedAt,
	)
	return err
}

// Items lists a provider's items of one kind; ids, when non-empty, restricts the result.
func (s *Store) Items(ctx context.Context, providerID types.ID, kind ItemKind, ids []types.ID) ([]*Item, error) {
	table, col := itemTable(kind)
	query := `SELECT id, provider_id, name, price, ` + col + `, created_at FROM ` + table + ` WHERE provider_id = $1`
	args := []any{string(providerID)}
	if len(ids) > 0 {
		raw := make([]string, len(ids))
		for i, id := range ids {
			raw[i] = string(id)
		}
		query += ` AND id = ANY($2)`
		args = append(args, raw)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Item{}
	for rows.Next() {
		it := Item{Kind: kind}
		if err := rows.Scan(&it.ID, &it.ProviderID, &it.Name, &it.Price, &it.Available, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}
