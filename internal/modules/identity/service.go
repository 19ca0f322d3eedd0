// README: Identity service; registration, login, approval gate and role administration.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"staybook/internal/modules/notification"
	"staybook/internal/types"
)

const minPasswordLen = 8

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id types.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, f ListFilter) ([]*User, error)
	UpdateRole(ctx context.Context, id types.ID, role Role) (*User, error)
	Decide(ctx context.Context, id types.ID, status Status, by types.ID, at time.Time) (bool, error)
	CreateRoleRequest(ctx context.Context, r *RoleChangeRequest) error
	GetRoleRequest(ctx context.Context, id types.ID) (*RoleChangeRequest, error)
	ListRoleRequests(ctx context.Context, status Status) ([]*RoleChangeRequest, error)
	DecideRoleRequest(ctx context.Context, id types.ID, status Status, by types.ID, at time.Time, reason string) (*RoleChangeRequest, *User, error)
}

type Sessions interface {
	Create(ctx context.Context, userID types.ID) (string, error)
	Resolve(ctx context.Context, token string) (types.ID, error)
	Destroy(ctx context.Context, token string) error
}

type Notifier interface {
	Send(ctx context.Context, msg notification.Message)
}

type Service struct {
	store    Repository
	sessions Sessions
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
	cost     int
}

func NewService(store Repository, sessions Sessions, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		log:      log.With().Str("module", "identity").Logger(),
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

type RegisterCommand struct {
	Email    string
	Password string
	Name     string
	Role     Role
}

func (c *RegisterCommand) normalize() error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Name = strings.TrimSpace(c.Name)
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: invalid email", types.ErrValidation)
	}
	if len(c.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", types.ErrValidation, minPasswordLen)
	}
	if !c.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", types.ErrValidation, c.Role)
	}
	return nil
}

// Register is the self-service path. Clients start approved; every other
// self-service role waits for an admin.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	if cmd.Role == "" {
		cmd.Role = RoleClient
	}
	if err := cmd.normalize(); err != nil {
		return nil, err
	}
	if !cmd.Role.SelfService() {
		return nil, fmt.Errorf("%w: role %s cannot be self-registered", types.ErrValidation, cmd.Role)
	}
	status := StatusPending
	if cmd.Role.AutoApproved() {
		status = StatusApproved
	}
	u, err := s.create(ctx, cmd, status, nil)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", string(u.ID)).Str("role", string(u.Role)).Str("status", string(u.Status)).Msg("user registered")
	return u, nil
}

// CreateStaff creates an approved account with any role; admin only.
func (s *Service) CreateStaff(ctx context.Context, actorID types.ID, cmd RegisterCommand) (*User, error) {
	actor, err := s.requireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := cmd.normalize(); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, cmd, StatusApproved, &actor.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", string(actorID)).Str("user_id", string(u.ID)).Str("role", string(u.Role)).Msg("staff user created")
	return u, nil
}

func (s *Service) create(ctx context.Context, cmd RegisterCommand, status Status, approvedBy *types.ID) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.cost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &User{
		ID:           types.NewID(),
		Email:        cmd.Email,
		PasswordHash: string(hash),
		Name:         cmd.Name,
		Role:         cmd.Role,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if approvedBy != nil {
		u.ApprovedBy = approvedBy
		u.ApprovedAt = &now
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", types.ErrUnauthorized)

// Authenticate verifies credentials and opens a session. Pending and rejected users may
// log in; the approval gate is applied per operation.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, types.ErrNotFound) {
		return "", nil, errBadCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, errBadCredentials
	}
	token, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// ResolveSession maps a session token to its user without checking approval.
func (s *Service) ResolveSession(ctx context.Context, token string) (*User, error) {
	id, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Get(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, errInvalidSession
	}
	return u, err
}

func (s *Service) RequireApprovedUser(ctx context.Context, userID types.ID) (*User, error) {
	u, err := s.store.Get(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, errInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if err := CheckApproved(u); err != nil {
		return nil, err
	}
	return u, nil
}

// CheckApproved is the approval gate applied to an already-loaded user.
func CheckApproved(u *User) error {
	switch u.Status {
	case StatusApproved:
		return nil
	case StatusRejected:
		return fmt.Errorf("%w: account rejected", types.ErrForbidden)
	default:
		return fmt.Errorf("%w: account pending approval", types.ErrForbidden)
	}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, actorID types.ID, f ListFilter) ([]*User, error) {
	actor, err := s.RequireApprovedUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin && actor.Role != RoleOperation {
		return nil, fmt.Errorf("%w: listing users requires admin or operation", types.ErrForbidden)
	}
	return s.store.List(ctx, f)
}

func (s *Service) requireAdmin(ctx context.Context, actorID types.ID) (*User, error) {
	actor, err := s.RequireApprovedUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: admin only", types.ErrForbidden)
	}
	return actor, nil
}

// AssignRole changes a user's role by admin fiat. The operation_support singleton is
// enforced by the store, so two concurrent grants cannot both succeed.
func (s *Service) AssignRole(ctx context.Context, actorID, targetID types.ID, role Role) (*User, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", types.ErrValidation, role)
	}
	u, err := s.store.UpdateRole(ctx, targetID, role)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", string(actorID)).Str("user_id", string(targetID)).Str("role", string(role)).Msg("role assigned")
	s.notifier.Send(ctx, notification.Message{
		UserID:    u.ID,
		Type:      notification.TypeRoleChanged,
		Title:     "Role updated",
		Body:      fmt.Sprintf("Your role is now %s.", role),
		RelatedID: u.ID,
	})
	return u, nil
}

// DecideUser approves or rejects a pending account.
func (s *Service) DecideUser(ctx context.Context, actorID, targetID types.ID, approve bool) (*User, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	status, typ, body := StatusRejected, notification.TypeAccountRejected, "Your account was rejected."
	if approve {
		status, typ, body = StatusApproved, notification.TypeAccountApproved, "Your account has been approved."
	}
	ok, err := s.store.Decide(ctx, targetID, status, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.store.Get(ctx, targetID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: account already decided", types.ErrInvalidState)
	}
	u, err := s.store.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	s.notifier.Send(ctx, notification.Message{UserID: u.ID, Type: typ, Title: "Account review", Body: body, RelatedID: u.ID})
	return u, nil
}

func (s *Service) SubmitRoleChange(ctx context.Context, userID types.ID, role Role, reason string) (*RoleChangeRequest, error) {
	u, err := s.RequireApprovedUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", types.ErrValidation, role)
	}
	if role == u.Role {
		return nil, fmt.Errorf("%w: already holds role %s", types.ErrValidation, role)
	}
	r := &RoleChangeRequest{
		ID:            types.NewID(),
		UserID:        u.ID,
		RequestedRole: role,
		Reason:        strings.TrimSpace(reason),
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateRoleRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListRoleRequests(ctx context.Context, actorID types.ID, status Status) ([]*RoleChangeRequest, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListRoleRequests(ctx, status)
}

// DecideRoleChange records the decision; approval applies the role in the same transaction.
func (s *Service) DecideRoleChange(ctx context.Context, actorID, requestID types.ID, approve bool, reason string) (*RoleChangeRequest, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	req, _, err := s.store.DecideRoleRequest(ctx, requestID, status, actorID, s.now(), strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("Your request for role %s was rejected.", req.RequestedRole)
	if approve {
		body = fmt.Sprintf("Your role is now %s.", req.RequestedRole)
	}
	s.notifier.Send(ctx, notification.Message{
		UserID:    req.UserID,
		Type:      notification.TypeRoleChanged,
		Title:     "Role change request",
		Body:      body,
		RelatedID: req.ID,
	})
	return req, nil
}
