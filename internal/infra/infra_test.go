package infra

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client, err := NewRedis(context.Background(), s.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedis_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	addr := s.Addr()
	s.Close()

	_, err = NewRedis(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "job_assignments_one_active"})
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "job_assignments_one_active"))
	assert.False(t, IsUniqueViolation(err, "users_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain"), ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503"})))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}
