package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/modules/identity"
	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

type memStore struct {
	mu         sync.Mutex
	categories map[string]*Category
	properties map[types.ID]*Property
	providers  map[types.ID]*Provider
	items      []*Item
}

func newMemStore() *memStore {
	return &memStore{
		categories: map[string]*Category{
			"chef":     {ID: "chef", Name: "Private chef", BaseRate: 6000},
			"cleaning": {ID: "cleaning", Name: "Cleaning", BaseRate: 2500},
		},
		properties: map[types.ID]*Property{},
		providers:  map[types.ID]*Provider{},
	}
}

func (m *memStore) ListCategories(context.Context) ([]*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Category{}
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) GetCategory(_ context.Context, id string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, errCategoryNotFound
	}
	return c, nil
}

func (m *memStore) CreateProperty(_ context.Context, p *Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.properties[p.ID] = &cp
	return nil
}

func (m *memStore) GetProperty(_ context.Context, id types.ID) (*Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, errPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SetPropertyActive(_ context.Context, id types.ID, active bool) (*Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, errPropertyNotFound
	}
	p.IsActive = active
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPropertiesByOwner(_ context.Context, ownerID types.ID) ([]*Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Property{}
	for _, p := range m.properties {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CreateProvider(_ context.Context, p *Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.providers {
		if existing.UserID == p.UserID {
			return errApplicationExists
		}
	}
	cp := *p
	m.providers[p.ID] = &cp
	return nil
}

func (m *memStore) GetProvider(_ context.Context, id types.ID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, errProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProviderByUser(_ context.Context, userID types.ID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errProviderNotFound
}

func (m *memStore) ListProviders(_ context.Context, status ApprovalStatus) ([]*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Provider{}
	for _, p := range m.providers {
		if status == "" || p.ApprovalStatus == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) DecideProvider(_ context.Context, id types.ID, status ApprovalStatus, by types.ID, at time.Time, reason string) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, errProviderNotFound
	}
	if p.ApprovalStatus != ApprovalPending {
		return nil, errProviderDecided
	}
	p.ApprovalStatus = status
	p.ApprovedBy = &by
	p.ApprovedAt = &at
	if reason != "" {
		p.RejectionReason = &reason
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) DeleteProvider(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[id]; !ok {
		return errProviderNotFound
	}
	delete(m.providers, id)
	return nil
}

func (m *memStore) AddItem(_ context.Context, it *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	m.items = append(m.items, &cp)
	return nil
}

func (m *memStore) Items(_ context.Context, providerID types.ID, kind ItemKind, ids []types.ID) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[types.ID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []*Item{}
	for _, it := range m.items {
		if it.ProviderID != providerID || it.Kind != kind {
			continue
		}
		if len(ids) > 0 && !want[it.ID] {
			continue
		}
		cp := *it
		out = append(out, &cp)
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

func user(role identity.Role, status identity.Status) *identity.User {
	return &identity.User{ID: types.NewID(), Role: role, Status: status}
}

func newTestService() (*Service, *memStore, *recorder) {
	store := newMemStore()
	rec := &recorder{}
	return NewService(store, rec, zerolog.Nop()), store, rec
}

func validApplication() ApplicationInput {
	return ApplicationInput{CategoryID: "chef", BusinessName: "  Chez Ana ", HourlyRate: 4500}
}

func TestSubmitProviderApplication(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	applicant := user(identity.RoleServiceProvider, identity.StatusPending)

	p, err := svc.SubmitProviderApplication(ctx, applicant, validApplication())
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, p.ApprovalStatus)
	assert.Equal(t, "Chez Ana", p.BusinessName)

	_, err = svc.SubmitProviderApplication(ctx, applicant, validApplication())
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestSubmitProviderApplication_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := validApplication()
	in.CategoryID = "astronaut"
	_, err := svc.SubmitProviderApplication(ctx, user(identity.RoleClient, identity.StatusApproved), in)
	assert.ErrorIs(t, err, types.ErrValidation)

	in = validApplication()
	in.HourlyRate = 0
	_, err = svc.SubmitProviderApplication(ctx, user(identity.RoleClient, identity.StatusApproved), in)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.SubmitProviderApplication(ctx, user(identity.RoleBilling, identity.StatusApproved), validApplication())
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = svc.SubmitProviderApplication(ctx, user(identity.RoleClient, identity.StatusRejected), validApplication())
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestDecideProvider(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()
	applicant := user(identity.RoleServiceProvider, identity.StatusPending)
	p, err := svc.SubmitProviderApplication(ctx, applicant, validApplication())
	require.NoError(t, err)

	_, err = svc.DecideProvider(ctx, user(identity.RoleClient, identity.StatusApproved), p.ID, true, "")
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = svc.DecideProvider(ctx, user(identity.RoleCityManager, identity.StatusPending), p.ID, true, "")
	assert.ErrorIs(t, err, types.ErrForbidden)

	coordinator := user(identity.RoleCityManager, identity.StatusApproved)
	got, err := svc.DecideProvider(ctx, coordinator, p.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, got.ApprovalStatus)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, coordinator.ID, *got.ApprovedBy)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, notification.TypeApplicationApproved, rec.msgs[0].Type)
	assert.Equal(t, applicant.ID, rec.msgs[0].UserID)

	_, err = svc.DecideProvider(ctx, coordinator, p.ID, false, "late")
	assert.ErrorIs(t, err, types.ErrInvalidState)

	_, err = svc.DecideProvider(ctx, coordinator, "missing", true, "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDecideProvider_RejectionKeepsReason(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()
	p, err := svc.SubmitProviderApplication(ctx, user(identity.RoleClient, identity.StatusApproved), validApplication())
	require.NoError(t, err)

	got, err := svc.DecideProvider(ctx, user(identity.RoleAdmin, identity.StatusApproved), p.ID, false, "missing license")
	require.NoError(t, err)
	assert.Equal(t, ApprovalRejected, got.ApprovalStatus)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "missing license", *got.RejectionReason)
	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.msgs[0].Body, "missing license")
}

func TestDeleteProvider_OwnerOrAdmin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := user(identity.RoleClient, identity.StatusApproved)
	p, err := svc.SubmitProviderApplication(ctx, owner, validApplication())
	require.NoError(t, err)

	err = svc.DeleteProvider(ctx, user(identity.RoleClient, identity.StatusApproved), p.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, svc.DeleteProvider(ctx, owner, p.ID))
	_, err = svc.GetProvider(ctx, p.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCreateProperty(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := user(identity.RolePropertyOwner, identity.StatusApproved)

	p, err := svc.CreateProperty(ctx, owner, PropertyInput{Title: "Sea view", PricePerNight: 10000, MaxGuests: 4})
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.Equal(t, owner.ID, p.OwnerID)

	_, err = svc.CreateProperty(ctx, user(identity.RolePropertyOwner, identity.StatusPending), PropertyInput{Title: "x", PricePerNight: 1, MaxGuests: 1})
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = svc.CreateProperty(ctx, user(identity.RoleClient, identity.StatusApproved), PropertyInput{Title: "x", PricePerNight: 1, MaxGuests: 1})
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = svc.CreateProperty(ctx, owner, PropertyInput{Title: "x", PricePerNight: 1, MaxGuests: 0})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.SetPropertyActive(ctx, owner, p.ID, true)
	assert.ErrorIs(t, err, types.ErrForbidden)
	got, err := svc.SetPropertyActive(ctx, user(identity.RoleOperation, identity.StatusApproved), p.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	list, err := svc.ListPropertiesByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddItem_RequiresApprovedProfile(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner := user(identity.RoleServiceProvider, identity.StatusApproved)
	p, err := svc.SubmitProviderApplication(ctx, owner, validApplication())
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, owner, KindMenuItem, "Paella", 2500)
	assert.ErrorIs(t, err, types.ErrForbidden)

	store.providers[p.ID].ApprovalStatus = ApprovalApproved
	dish, err := svc.AddItem(ctx, owner, KindMenuItem, "Paella", 2500)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, KindTask, "Deep clean", 8000)
	require.NoError(t, err)

	menu, err := svc.ListItems(ctx, p.ID, KindMenuItem)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, "Paella", menu[0].Name)

	byID, err := svc.ItemsByID(ctx, p.ID, KindMenuItem, []types.ID{dish.ID, "unknown"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Equal(t, types.Money(2500), byID[dish.ID].Price)

	_, err = svc.AddItem(ctx, owner, "coupon", "x", 1)
	assert.ErrorIs(t, err, types.ErrValidation)
}
