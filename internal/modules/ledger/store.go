// README: Ledger store; reads frozen commission columns from service_orders.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("o.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("o.created_at < $%d", *f.To)
	}
	if f.ProviderID != "" {
		add("o.service_provider_id = $%d", string(f.ProviderID))
	}
	if f.Status != "" {
		add("o.status = $%d", f.Status)
	}
	if f.PaymentStatus != "" {
		add("o.payment_status = $%d", f.PaymentStatus)
	}

	query := `
        SELECT o.id, o.order_code, o.service_provider_id, p.business_name, o.status, o.payment_status,
               o.platform_fee_percentage, o.total_amount, o.platform_fee_amount, o.provider_amount, o.created_at
        FROM service_orders o
        JOIN service_providers p ON p.id = o.service_provider_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.created_at"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.OrderID, &e.OrderCode, &e.ProviderID, &e.ProviderName, &e.Status, &e.PaymentStatus,
			&e.Rate, &e.Total, &e.PlatformFee, &e.ProviderAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
