package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

type memStore struct {
	mu       sync.Mutex
	users    map[types.ID]*User
	requests map[types.ID]*RoleChangeRequest
}

func newMemStore() *memStore {
	return &memStore{users: map[types.ID]*User{}, requests: map[types.ID]*RoleChangeRequest{}}
}

func (m *memStore) supportTakenLocked(except types.ID) bool {
	for _, u := range m.users {
		if u.ID != except && u.Role == RoleOperationSupport {
			return true
		}
	}
	return false
}

func (m *memStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errEmailTaken
		}
	}
	if u.Role == RoleOperationSupport && m.supportTakenLocked(u.ID) {
		return errSupportTaken
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errUserNotFound
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*User{}
	for _, u := range m.users {
		if (f.Role == "" || u.Role == f.Role) && (f.Status == "" || u.Status == f.Status) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateRole(_ context.Context, id types.ID, role Role) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	if role == RoleOperationSupport && m.supportTakenLocked(id) {
		return nil, errSupportTaken
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (m *memStore) Decide(_ context.Context, id types.ID, status Status, by types.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Status != StatusPending {
		return false, nil
	}
	u.Status = status
	u.ApprovedBy = &by
	u.ApprovedAt = &at
	return true, nil
}

func (m *memStore) CreateRoleRequest(_ context.Context, r *RoleChangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.UserID == r.UserID && existing.Status == StatusPending {
			return errPendingRequest
		}
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memStore) GetRoleRequest(_ context.Context, id types.ID) (*RoleChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, errRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRoleRequests(_ context.Context, status Status) ([]*RoleChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*RoleChangeRequest{}
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) DecideRoleRequest(_ context.Context, id types.ID, status Status, by types.ID, at time.Time, reason string) (*RoleChangeRequest, *User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil, errRequestNotFound
	}
	if r.Status != StatusPending {
		return nil, nil, errAlreadyDecided
	}
	var user *User
	if status == StatusApproved {
		u := m.users[r.UserID]
		if r.RequestedRole == RoleOperationSupport && m.supportTakenLocked(u.ID) {
			return nil, nil, errSupportTaken
		}
		u.Role = r.RequestedRole
		cp := *u
		user = &cp
	}
	r.Status = status
	r.DecidedBy = &by
	r.DecidedAt = &at
	if reason != "" {
		r.DecisionReason = &reason
	}
	cp := *r
	return &cp, user, nil
}

type memSessions struct {
	mu     sync.Mutex
	tokens map[string]types.ID
	n      int
}

func (m *memSessions) Create(_ context.Context, userID types.ID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]types.ID{}
	}
	m.n++
	tok := fmt.Sprintf("tok-%d", m.n)
	m.tokens[tok] = userID
	return tok, nil
}

func (m *memSessions) Resolve(_ context.Context, token string) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[token]
	if !ok {
		return "", errInvalidSession
	}
	return id, nil
}

func (m *memSessions) Destroy(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (r *recorder) Send(_ context.Context, msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func newTestService() (*Service, *memStore, *recorder) {
	store := newMemStore()
	rec := &recorder{}
	svc := NewService(store, &memSessions{}, rec, zerolog.Nop())
	svc.cost = bcrypt.MinCost
	return svc, store, rec
}

func seedAdmin(t *testing.T, store *memStore) *User {
	t.Helper()
	admin := &User{ID: types.NewID(), Email: "admin@example.com", Role: RoleAdmin, Status: StatusApproved}
	require.NoError(t, store.Create(context.Background(), admin))
	return admin
}

func TestRegister_StatusBySelfServiceRole(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		role Role
		want Status
	}{
		{RoleClient, StatusApproved},
		{RoleServiceProvider, StatusPending},
		{RolePropertyOwner, StatusPending},
		{RoleCountryManager, StatusPending},
		{RoleCityManager, StatusPending},
	}
	for i, tc := range cases {
		u, err := svc.Register(ctx, RegisterCommand{
			Email:    fmt.Sprintf("u%d@example.com", i),
			Password: "longenough",
			Role:     tc.role,
		})
		require.NoError(t, err, tc.role)
		assert.Equal(t, tc.want, u.Status, tc.role)
		assert.NotEqual(t, "longenough", u.PasswordHash)
	}
}

func TestRegister_RejectsStaffRolesAndDuplicates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterCommand{Email: "a@example.com", Password: "longenough", Role: RoleAdmin})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Register(ctx, RegisterCommand{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Register(ctx, RegisterCommand{Email: "A@example.com ", Password: "longenough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterCommand{Email: "a@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterCommand{Email: "c@example.com", Password: "correct horse", Role: RoleClient})
	require.NoError(t, err)

	_, _, err = svc.Authenticate(ctx, "c@example.com", "wrong password")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, _, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	token, got, err := svc.Authenticate(ctx, "C@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	resolved, err := svc.ResolveSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.ResolveSession(ctx, token)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestRequireApprovedUser(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	pending, err := svc.Register(ctx, RegisterCommand{Email: "p@example.com", Password: "longenough", Role: RoleServiceProvider})
	require.NoError(t, err)

	_, err = svc.RequireApprovedUser(ctx, pending.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	store.users[pending.ID].Status = StatusRejected
	_, err = svc.RequireApprovedUser(ctx, pending.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = svc.RequireApprovedUser(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestAssignRole_OperationSupportSingleton(t *testing.T) {
	svc, store, rec := newTestService()
	ctx := context.Background()
	admin := seedAdmin(t, store)

	u1, err := svc.Register(ctx, RegisterCommand{Email: "u1@example.com", Password: "longenough"})
	require.NoError(t, err)
	u2, err := svc.Register(ctx, RegisterCommand{Email: "u2@example.com", Password: "longenough"})
	require.NoError(t, err)

	got, err := svc.AssignRole(ctx, admin.ID, u1.ID, RoleOperationSupport)
	require.NoError(t, err)
	assert.Equal(t, RoleOperationSupport, got.Role)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, notification.TypeRoleChanged, rec.msgs[0].Type)

	_, err = svc.AssignRole(ctx, admin.ID, u2.ID, RoleOperationSupport)
	assert.ErrorIs(t, err, types.ErrConflict)

	// re-granting to the current holder is not a second holder
	_, err = svc.AssignRole(ctx, admin.ID, u1.ID, RoleOperationSupport)
	assert.NoError(t, err)
}

func TestAssignRole_ConcurrentSingleton(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	admin := seedAdmin(t, store)

	const n = 8
	ids := make([]types.ID, n)
	for i := range ids {
		u, err := svc.Register(ctx, RegisterCommand{Email: fmt.Sprintf("c%d@example.com", i), Password: "longenough"})
		require.NoError(t, err)
		ids[i] = u.ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			_, err := svc.AssignRole(ctx, admin.ID, id, RoleOperationSupport)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if !errors.Is(err, types.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestAssignRole_RequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterCommand{Email: "x@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.AssignRole(ctx, u.ID, u.ID, RoleAdmin)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestCreateStaff(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	admin := seedAdmin(t, store)

	staff, err := svc.CreateStaff(ctx, admin.ID, RegisterCommand{Email: "b@example.com", Password: "longenough", Role: RoleBilling})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, staff.Status)
	require.NotNil(t, staff.ApprovedBy)
	assert.Equal(t, admin.ID, *staff.ApprovedBy)
}

func TestDecideUser(t *testing.T) {
	svc, store, rec := newTestService()
	ctx := context.Background()
	admin := seedAdmin(t, store)
	owner, err := svc.Register(ctx, RegisterCommand{Email: "o@example.com", Password: "longenough", Role: RolePropertyOwner})
	require.NoError(t, err)

	got, err := svc.DecideUser(ctx, admin.ID, owner.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, notification.TypeAccountApproved, rec.msgs[0].Type)

	_, err = svc.DecideUser(ctx, admin.ID, owner.ID, false)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	_, err = svc.DecideUser(ctx, admin.ID, "missing", true)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRoleChangeRequestFlow(t *testing.T) {
	svc, store, rec := newTestService()
	ctx := context.Background()
	admin := seedAdmin(t, store)
	u, err := svc.Register(ctx, RegisterCommand{Email: "r@example.com", Password: "longenough"})
	require.NoError(t, err)

	req, err := svc.SubmitRoleChange(ctx, u.ID, RolePropertyOwner, "I rent out a flat")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)

	_, err = svc.SubmitRoleChange(ctx, u.ID, RoleServiceProvider, "")
	assert.ErrorIs(t, err, types.ErrConflict)

	decided, err := svc.DecideRoleChange(ctx, admin.ID, req.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	assert.Equal(t, RolePropertyOwner, store.users[u.ID].Role)
	require.Len(t, rec.msgs, 1)

	_, err = svc.DecideRoleChange(ctx, admin.ID, req.ID, false, "")
	assert.ErrorIs(t, err, types.ErrInvalidState)

	_, err = svc.DecideRoleChange(ctx, u.ID, req.ID, true, "")
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestListUsers_RoleGate(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	admin := seedAdmin(t, store)
	client, err := svc.Register(ctx, RegisterCommand{Email: "l@example.com", Password: "longenough"})
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx, admin.ID, ListFilter{Role: RoleClient})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = svc.ListUsers(ctx, client.ID, ListFilter{})
	assert.ErrorIs(t, err, types.ErrForbidden)
}
