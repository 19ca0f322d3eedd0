package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/infra/infratest"
	"staybook/internal/types"
)

func insertUser(t *testing.T, store *Store, email string, role Role) *User {
	t.Helper()
	u := &User{
		ID:           types.NewID(),
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		Status:       StatusApproved,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), u))
	return u
}

func TestStore_DuplicateEmail(t *testing.T) {
	store := NewStore(infratest.DB(t))
	insertUser(t, store, "dup@example.com", RoleClient)

	err := store.Create(context.Background(), &User{ID: types.NewID(), Email: "dup@example.com", PasswordHash: "x", Role: RoleClient, Status: StatusApproved, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestStore_OperationSupportRace(t *testing.T) {
	store := NewStore(infratest.DB(t))
	ctx := context.Background()

	const n = 10
	ids := make([]types.ID, n)
	for i := range ids {
		ids[i] = insertUser(t, store, fmt.Sprintf("os%d@example.com", i), RoleClient).ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			_, err := store.UpdateRole(ctx, id, RoleOperationSupport)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, types.ErrConflict)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, success)

	holders, err := store.List(ctx, ListFilter{Role: RoleOperationSupport})
	require.NoError(t, err)
	assert.Len(t, holders, 1)
}

func TestStore_DecideRoleRequest(t *testing.T) {
	store := NewStore(infratest.DB(t))
	ctx := context.Background()
	admin := insertUser(t, store, "admin@example.com", RoleAdmin)
	u := insertUser(t, store, "client@example.com", RoleClient)

	req := &RoleChangeRequest{ID: types.NewID(), UserID: u.ID, RequestedRole: RolePropertyOwner, Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, store.CreateRoleRequest(ctx, req))
	err := store.CreateRoleRequest(ctx, &RoleChangeRequest{ID: types.NewID(), UserID: u.ID, RequestedRole: RoleCityManager, Status: StatusPending, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, types.ErrConflict)

	got, user, err := store.DecideRoleRequest(ctx, req.ID, StatusApproved, admin.ID, time.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.NotNil(t, user)
	assert.Equal(t, RolePropertyOwner, user.Role)

	_, _, err = store.DecideRoleRequest(ctx, req.ID, StatusRejected, admin.ID, time.Now(), "")
	assert.ErrorIs(t, err, types.ErrInvalidState)
	_, _, err = store.DecideRoleRequest(ctx, "missing", StatusRejected, admin.ID, time.Now(), "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
