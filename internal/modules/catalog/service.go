// README: Catalog service; provider applications, properties and provider item catalogs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/modules/identity"
	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

type Repository interface {
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	CreateProperty(ctx context.Context, p *Property) error
	GetProperty(ctx context.Context, id types.ID) (*Property, error)
	SetPropertyActive(ctx context.Context, id types.ID, active bool) (*Property, error)
	ListPropertiesByOwner(ctx context.Context, ownerID types.ID) ([]*Property, error)
	CreateProvider(ctx context.Context, p *Provider) error
	GetProvider(ctx context.Context, id types.ID) (*Provider, error)
	GetProviderByUser(ctx context.Context, userID types.ID) (*Provider, error)
	ListProviders(ctx context.Context, status ApprovalStatus) ([]*Provider, error)
	DecideProvider(ctx context.Context, id types.ID, status ApprovalStatus, by types.ID, at time.Time, reason string) (*Provider, error)
	DeleteProvider(ctx context.Context, id types.ID) error
	AddItem(ctx context.Context, it *Item) error
	Items(ctx context.Context, providerID types.ID, kind ItemKind, ids []types.ID) ([]*Item, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notification.Message)
}

type Service struct {
	store    Repository
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Repository, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log.With().Str("module", "catalog").Logger(), now: time.Now}
}

func requireApproved(actor *identity.User) error {
	if actor == nil {
		return types.ErrUnauthorized
	}
	return identity.CheckApproved(actor)
}

func requireRole(actor *identity.User, roles ...identity.Role) error {
	if err := requireApproved(actor); err != nil {
		return err
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s not allowed", types.ErrForbidden, actor.Role)
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.store.GetCategory(ctx, id)
}

// SubmitProviderApplication files a provider profile for review. Accounts still awaiting
// their own approval may apply; one application per user, ever.
func (s *Service) SubmitProviderApplication(ctx context.Context, actor *identity.User, in ApplicationInput) (*Provider, error) {
	if actor == nil {
		return nil, types.ErrUnauthorized
	}
	if actor.Status == identity.StatusRejected {
		return nil, fmt.Errorf("%w: account rejected", types.ErrForbidden)
	}
	if actor.Role != identity.RoleServiceProvider && actor.Role != identity.RoleClient {
		return nil, fmt.Errorf("%w: role %s cannot apply as a provider", types.ErrForbidden, actor.Role)
	}
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	if in.BusinessName == "" {
		return nil, fmt.Errorf("%w: business name is required", types.ErrValidation)
	}
	if in.HourlyRate <= 0 {
		return nil, fmt.Errorf("%w: hourly rate must be positive", types.ErrValidation)
	}
	if _, err := s.store.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown category %q", types.ErrValidation, in.CategoryID)
		}
		return nil, err
	}

	now := s.now()
	p := &Provider{
		ID:             types.NewID(),
		UserID:         actor.ID,
		CategoryID:     in.CategoryID,
		BusinessName:   in.BusinessName,
		Description:    strings.TrimSpace(in.Description),
		City:           strings.TrimSpace(in.City),
		Country:        strings.TrimSpace(in.Country),
		HourlyRate:     in.HourlyRate,
		ApprovalStatus: ApprovalPending,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateProvider(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Str("provider_id", string(p.ID)).Str("user_id", string(actor.ID)).Msg("provider application submitted")
	return p, nil
}

// DecideProvider approves or rejects a pending application. Any coordinator may decide
// any application; there is no jurisdiction scoping.
func (s *Service) DecideProvider(ctx context.Context, actor *identity.User, providerID types.ID, approve bool, reason string) (*Provider, error) {
	if err := requireRole(actor, identity.RoleAdmin, identity.RoleCountryManager, identity.RoleCityManager); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	status := ApprovalRejected
	if approve {
		status = ApprovalApproved
		reason = ""
	}
	p, err := s.store.DecideProvider(ctx, providerID, status, actor.ID, s.now(), reason)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("provider_id", string(p.ID)).Str("actor_id", string(actor.ID)).Str("status", string(status)).Msg("provider application decided")

	msg := notification.Message{UserID: p.UserID, RelatedID: p.ID}
	if approve {
		msg.Type = notification.TypeApplicationApproved
		msg.Title = "Application approved"
		msg.Body = fmt.Sprintf("%s is now listed as a service provider.", p.BusinessName)
	} else {
		msg.Type = notification.TypeApplicationRejected
		msg.Title = "Application rejected"
		msg.Body = "Your provider application was rejected."
		if reason != "" {
			msg.Body += " Reason: " + reason
		}
	}
	s.notifier.Send(ctx, msg)
	return p, nil
}

func (s *Service) DeleteProvider(ctx context.Context, actor *identity.User, providerID types.ID) error {
	if err := requireApproved(actor); err != nil {
		return err
	}
	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if actor.Role != identity.RoleAdmin && p.UserID != actor.ID {
		return fmt.Errorf("%w: not the provider owner", types.ErrForbidden)
	}
	return s.store.DeleteProvider(ctx, providerID)
}

func (s *Service) GetProvider(ctx context.Context, id types.ID) (*Provider, error) {
	return s.store.GetProvider(ctx, id)
}

func (s *Service) GetProviderByUser(ctx context.Context, userID types.ID) (*Provider, error) {
	return s.store.GetProviderByUser(ctx, userID)
}

func (s *Service) ListProviders(ctx context.Context, status ApprovalStatus) ([]*Provider, error) {
	return s.store.ListProviders(ctx, status)
}

// CreateProperty lists a property owned by the caller. New listings start inactive
// until staff activate them.
func (s *Service) CreateProperty(ctx context.Context, actor *identity.User, in PropertyInput) (*Property, error) {
	if err := requireRole(actor, identity.RolePropertyOwner, identity.RoleAdmin); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", types.ErrValidation)
	}
	if in.PricePerNight <= 0 {
		return nil, fmt.Errorf("%w: price per night must be positive", types.ErrValidation)
	}
	if in.MaxGuests <= 0 {
		return nil, fmt.Errorf("%w: max guests must be positive", types.ErrValidation)
	}
	p := &Property{
		ID:            types.NewID(),
		OwnerID:       actor.ID,
		Title:         in.Title,
		City:          strings.TrimSpace(in.City),
		Country:       strings.TrimSpace(in.Country),
		PricePerNight: in.PricePerNight,
		MaxGuests:     in.MaxGuests,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateProperty(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) SetPropertyActive(ctx context.Context, actor *identity.User, id types.ID, active bool) (*Property, error) {
	if err := requireRole(actor, identity.RoleAdmin, identity.RoleOperation, identity.RoleCountryManager, identity.RoleCityManager); err != nil {
		return nil, err
	}
	return s.store.SetPropertyActive(ctx, id, active)
}

func (s *Service) GetProperty(ctx context.Context, id types.ID) (*Property, error) {
	return s.store.GetProperty(ctx, id)
}

func (s *Service) ListPropertiesByOwner(ctx context.Context, ownerID types.ID) ([]*Property, error) {
	return s.store.ListPropertiesByOwner(ctx, ownerID)
}

// AddItem adds a menu item or task to the caller's own approved provider profile.
func (s *Service) AddItem(ctx context.Context, actor *identity.User, kind ItemKind, name string, price types.Money) (*Item, error) {
	if err := requireRole(actor, identity.RoleServiceProvider); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown item kind %q", types.ErrValidation, kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", types.ErrValidation)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", types.ErrValidation)
	}
	p, err := s.store.GetProviderByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if p.ApprovalStatus != ApprovalApproved {
		return nil, fmt.Errorf("%w: provider profile not approved", types.ErrForbidden)
	}
	it := &Item{
		ID:         types.NewID(),
		ProviderID: p.ID,
		Kind:       kind,
		Name:       name,
		Price:      price,
		Available:  true,
		CreatedAt:  s.now(),
	}
	if err := s.store.AddItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) ListItems(ctx context.Context, providerID types.ID, kind ItemKind) ([]*Item, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown item kind %q", types.ErrValidation, kind)
	}
	return s.store.Items(ctx, providerID, kind, nil)
}

// ItemsByID returns the requested items of a provider keyed by id; unknown ids are
// simply absent from the map.
func (s *Service) ItemsByID(ctx context.Context, providerID types.ID, kind ItemKind, ids []types.ID) (map[types.ID]*Item, error) {
	out := make(map[types.ID]*Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.store.Items(ctx, providerID, kind, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}
