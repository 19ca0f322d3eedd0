package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/types"
)

type memStore struct {
	rows   map[string]*Setting
	getErr error
}

func newMemStore() *memStore { return &memStore{rows: map[string]*Setting{}} }

func (m *memStore) Get(_ context.Context, key string) (*Setting, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	st, ok := m.rows[key]
	if !ok {
		return nil, errNoSetting
	}
	cp := *st
	return &cp, nil
}

func (m *memStore) Put(_ context.Context, st *Setting) error {
	cp := *st
	m.rows[st.Key] = &cp
	return nil
}

func (m *memStore) List(context.Context) ([]*Setting, error) {
	out := []*Setting{}
	for _, st := range m.rows {
		out = append(out, st)
	}
	return out, nil
}

func TestCommissionRate_DefaultWhenUnset(t *testing.T) {
	svc := NewService(newMemStore(), 1500, zerolog.Nop())
	rate, err := svc.CommissionRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Rate(1500), rate)
}

func TestCommissionRate_ReadsSetting(t *testing.T) {
	svc := NewService(newMemStore(), 1500, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.SetCommissionRate(ctx, "admin1", 1250)
	require.NoError(t, err)

	rate, err := svc.CommissionRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Rate(1250), rate)
}

func TestCommissionRate_GarbageFallsBack(t *testing.T) {
	store := newMemStore()
	store.rows[KeyCommissionRate] = &Setting{Key: KeyCommissionRate, Value: "lots"}
	svc := NewService(store, 1500, zerolog.Nop())

	rate, err := svc.CommissionRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Rate(1500), rate)
}

func TestCommissionRate_StoreError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("db down")
	svc := NewService(store, 1500, zerolog.Nop())

	_, err := svc.CommissionRate(context.Background())
	assert.Error(t, err)
}

func TestSetCommissionRate_Validates(t *testing.T) {
	svc := NewService(newMemStore(), 1500, zerolog.Nop())
	_, err := svc.SetCommissionRate(context.Background(), "admin1", 10001)
	assert.True(t, errors.Is(err, types.ErrValidation))
}
