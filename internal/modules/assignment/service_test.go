package assignment

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

	"staybook/internal/modules/booking"
	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusAccepted))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	for _, terminal := range []Status{StatusAccepted, StatusRejected, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusAccepted, StatusRejected, StatusCancelled} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

// memStore keeps assignments and service bookings together so the status coupling
// the SQL store maintains can be observed.
type memStore struct {
	mu          sync.Mutex
	assignments map[types.ID]*Assignment
	services    map[types.ID]*booking.ServiceBooking
}

func newMemStore() *memStore {
	return &memStore{assignments: map[types.ID]*Assignment{}, services: map[types.ID]*booking.ServiceBooking{}}
}

func (m *memStore) GetService(_ context.Context, id types.ID) (*booking.ServiceBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.services[id]
	if !ok {
		return nil, errServiceNotFound
	}
	cp := *sb
	return &cp, nil
}

func (m *memStore) insertLocked(a *Assignment) error {
	sb, ok := m.services[a.ServiceBookingID]
	if !ok {
		return errServiceNotFound
	}
	switch sb.Status {
	case booking.ServiceAwaitingAssignment, booking.ServicePending:
	case booking.ServiceAssigned:
		return errActiveAssignment
	default:
		return errNotAssignable
	}
	for _, other := range m.assignments {
		if other.ServiceBookingID == a.ServiceBookingID && other.Status.Active() {
			return errActiveAssignment
		}
	}
	cp := *a
	m.assignments[a.ID] = &cp
	sb.Status = booking.ServiceAssigned
	return nil
}

func (m *memStore) Create(_ context.Context, a *Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(a)
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, errAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) transitionLocked(t Transition) bool {
	a, ok := m.assignments[t.ID]
	if !ok || a.Status != t.From || (t.ProviderID != nil && *t.ProviderID != a.ProviderID) {
		return false
	}
	at := t.At
	a.Status = t.To
	a.RespondedAt = &at
	if t.Reason != nil {
		a.RejectionReason = t.Reason
	}
	sb := m.services[a.ServiceBookingID]
	switch t.To {
	case StatusAccepted:
		pid := a.ProviderID
		sb.Status = booking.ServiceConfirmed
		sb.ProviderID = &pid
	case StatusRejected, StatusCancelled:
		if sb.Status == booking.ServiceAssigned {
			sb.Status = booking.ServiceAwaitingAssignment
			sb.ProviderID = nil
		}
	}
	return true
}

func (m *memStore) Transition(_ context.Context, t Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(t), nil
}

func (m *memStore) Reassign(_ context.Context, previous Transition, cancelPrevious bool, next *Assignment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// all or nothing: snapshot, then roll back on failure
	prevA := *m.assignments[previous.ID]
	sb := m.services[prevA.ServiceBookingID]
	prevSB := *sb
	if cancelPrevious && !m.transitionLocked(previous) {
		return false, nil
	}
	if err := m.insertLocked(next); err != nil {
		*m.assignments[previous.ID] = prevA
		*sb = prevSB
		return false, err
	}
	return true, nil
}

func (m *memStore) ListByProvider(_ context.Context, providerID types.ID) ([]*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Assignment{}
	for _, a := range m.assignments {
		if a.ProviderID == providerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListByServiceBooking(_ context.Context, id types.ID) ([]*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Assignment{}
	for _, a := range m.assignments {
		if a.ServiceBookingID == id {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	providers map[types.ID]*catalog.Provider
}

func (f *fakeCatalog) GetProvider(_ context.Context, id types.ID) (*catalog.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: service provider", types.ErrNotFound)
	}
	return p, nil
}

func (f *fakeCatalog) GetProviderByUser(_ context.Context, userID types.ID) (*catalog.Provider, error) {
	for _, p := range f.providers {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: service provider", types.ErrNotFound)
}

func (f *fakeCatalog) ListProviders(_ context.Context, status catalog.ApprovalStatus) ([]*catalog.Provider, error) {
	out := []*catalog.Provider{}
	for _, p := range f.providers {
		if p.ApprovalStatus == status {
			out = append(out, p)
		}
	}
	return out, nil
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

func (r *recorder) to(userID types.ID, typ notification.Type) []notification.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Message
	for _, m := range r.msgs {
		if m.UserID == userID && m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type party struct {
	user     *identity.User
	provider *catalog.Provider
}

type fixture struct {
	svc         *Service
	store       *memStore
	notes       *recorder
	coordinator *identity.User
	x, y, chef  party
	pending     party
	sb          *booking.ServiceBooking
}

func newParty(category string, status catalog.ApprovalStatus) party {
	u := &identity.User{ID: types.NewID(), Role: identity.RoleServiceProvider, Status: identity.StatusApproved}
	return party{user: u, provider: &catalog.Provider{
		ID: types.NewID(), UserID: u.ID, CategoryID: category, HourlyRate: 3000, ApprovalStatus: status, IsActive: true,
	}}
}

func newFixture() *fixture {
	f := &fixture{
		store:       newMemStore(),
		notes:       &recorder{},
		coordinator: &identity.User{ID: types.NewID(), Role: identity.RoleCityManager, Status: identity.StatusApproved},
		x:           newParty("cleaning", catalog.ApprovalApproved),
		y:           newParty("cleaning", catalog.ApprovalApproved),
		chef:        newParty("chef", catalog.ApprovalApproved),
		pending:     newParty("cleaning", catalog.ApprovalPending),
	}
	f.sb = &booking.ServiceBooking{
		ID: types.NewID(), BookingID: types.NewID(), CategoryID: "cleaning", ServiceName: "Cleaning",
		ServiceDate: time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC), Hours: 2, Rate: 2500, Total: 5000,
		Status: booking.ServiceAwaitingAssignment,
	}
	f.store.services[f.sb.ID] = f.sb
	cat := &fakeCatalog{providers: map[types.ID]*catalog.Provider{}}
	for _, p := range []party{f.x, f.y, f.chef, f.pending} {
		cat.providers[p.provider.ID] = p.provider
	}
	f.svc = NewService(f.store, f.store, cat, f.notes, zerolog.Nop())
	return f
}

func TestAssign_SecondActiveAssignmentConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, booking.ServiceAssigned, f.sb.Status)
	assert.Len(t, f.notes.to(f.x.user.ID, notification.TypeJobAssigned), 1)

	_, err = f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.y.provider.ID)
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = f.svc.Accept(ctx, f.x.user, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.y.provider.ID)
	assert.Error(t, err)
	assert.Empty(t, f.notes.to(f.y.user.ID, notification.TypeJobAssigned))
}

func TestAssign_ConcurrentOffersHaveOneWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 20; i++ {
		provider := f.x.provider.ID
		if i%2 == 1 {
			provider = f.y.provider.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, provider)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, types.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 19, conflicts)
	active := 0
	for _, a := range f.store.assignments {
		if a.Status.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestAssign_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, f.x.user, f.sb.ID, f.x.provider.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.chef.provider.ID)
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.pending.provider.ID)
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = f.svc.Assign(ctx, f.coordinator, f.sb.ID, "ghost")
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = f.svc.Assign(ctx, f.coordinator, "missing", f.x.provider.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	f.sb.Status = booking.ServiceCancelled
	_, err = f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.Empty(t, f.store.assignments)
}

func TestAccept_ConfirmsServiceBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, f.y.user, a.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = f.svc.Accept(ctx, f.coordinator, a.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	got, err := f.svc.Accept(ctx, f.x.user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.NotNil(t, got.RespondedAt)
	assert.Equal(t, booking.ServiceConfirmed, f.sb.Status)
	require.NotNil(t, f.sb.ProviderID)
	assert.Equal(t, f.x.provider.ID, *f.sb.ProviderID)
	assert.Len(t, f.notes.to(f.coordinator.ID, notification.TypeJobAccepted), 1)

	_, err = f.svc.Reject(ctx, f.x.user, a.ID, "changed my mind")
	assert.ErrorIs(t, err, types.ErrInvalidState)
	_, err = f.svc.CoordinatorCancel(ctx, f.coordinator, a.ID)
	assert.ErrorIs(t, err, types.ErrInvalidState)
	_, err = f.svc.Reassign(ctx, f.coordinator, a.ID, f.y.provider.ID)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestReject_FreesServiceBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)

	got, err := f.svc.Reject(ctx, f.x.user, a.ID, " too far ")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "too far", *got.RejectionReason)
	assert.Equal(t, booking.ServiceAwaitingAssignment, f.sb.Status)
	assert.Nil(t, f.sb.ProviderID)
	rejected := f.notes.to(f.coordinator.ID, notification.TypeJobRejected)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Body, "too far")

	candidates, err := f.svc.Candidates(ctx, f.coordinator, f.sb.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, f.y.provider.ID, candidates[0].ID)

	next, err := f.svc.Reassign(ctx, f.coordinator, a.ID, f.y.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, next.Status)
	assert.Empty(t, f.notes.to(f.x.user.ID, notification.TypeJobCancelled), "rejected offer is not withdrawn again")
}

func TestCoordinatorCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)

	_, err = f.svc.CoordinatorCancel(ctx, f.x.user, a.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	got, err := f.svc.CoordinatorCancel(ctx, f.coordinator, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, booking.ServiceAwaitingAssignment, f.sb.Status)
	assert.Len(t, f.notes.to(f.x.user.ID, notification.TypeJobCancelled), 1)

	_, err = f.svc.Accept(ctx, f.x.user, a.ID)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestReassign_FromPendingIsAtomic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)

	_, err = f.svc.Reassign(ctx, f.coordinator, old.ID, f.x.provider.ID)
	assert.ErrorIs(t, err, types.ErrValidation)

	next, err := f.svc.Reassign(ctx, f.coordinator, old.ID, f.y.provider.ID)
	require.NoError(t, err)

	prev, err := f.store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, prev.Status)
	assert.Equal(t, StatusPending, next.Status)
	assert.Equal(t, f.y.provider.ID, next.ProviderID)
	assert.Equal(t, booking.ServiceAssigned, f.sb.Status)

	assert.Len(t, f.notes.to(f.y.user.ID, notification.TypeJobAssigned), 1)
	assert.Len(t, f.notes.to(f.x.user.ID, notification.TypeJobCancelled), 1)

	active, err := f.svc.ListForServiceBooking(ctx, f.coordinator, f.sb.ID)
	require.NoError(t, err)
	n := 0
	for _, a := range active {
		if a.Status.Active() {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestReassign_RollsBackOnFailedInsert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)

	// the stay is cancelled while the offer is out
	f.store.mu.Lock()
	f.sb.Status = booking.ServiceCancelled
	f.store.mu.Unlock()

	_, err = f.svc.Reassign(ctx, f.coordinator, old.ID, f.y.provider.ID)
	assert.ErrorIs(t, err, types.ErrInvalidState)
	prev, err := f.store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, prev.Status)
	assert.Empty(t, f.notes.to(f.y.user.ID, notification.TypeJobAssigned))
}

func TestGetAndLists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.svc.Assign(ctx, f.coordinator, f.sb.ID, f.x.provider.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.x.user, a.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.coordinator, a.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.y.user, a.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	mine, err := f.svc.ListForProvider(ctx, f.x.user)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	none, err := f.svc.ListForProvider(ctx, f.y.user)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.ListForServiceBooking(ctx, f.x.user, f.sb.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)
}
