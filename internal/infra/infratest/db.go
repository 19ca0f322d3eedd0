// README: Postgres fixture for store tests; skipped unless STAYBOOK_TEST_DSN is set.
package infratest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"staybook/internal/infra"
)

const truncateAll = `TRUNCATE TABLE
    notifications, platform_settings, order_state_events, job_assignments,
    service_order_items, service_orders, service_bookings, bookings,
    provider_tasks, menu_items, service_providers, properties,
    role_change_requests, users
    CASCADE`

// DB connects to STAYBOOK_TEST_DSN, applies migrations and empties every table
// except the seeded service categories.
func DB(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("STAYBOOK_TEST_DSN")
	if dsn == "" {
		t.Skip("STAYBOOK_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := infra.Migrate(ctx, db, zerolog.Nop()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, truncateAll); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}
