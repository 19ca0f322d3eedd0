// README: Settings service; read-through commission rate with a configured fallback.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/types"
)

type Repository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Put(ctx context.Context, st *Setting) error
	List(ctx context.Context) ([]*Setting, error)
}

type Service struct {
	store       Repository
	defaultRate types.Rate
	log         zerolog.Logger
}

func NewService(store Repository, defaultRate types.Rate, log zerolog.Logger) *Service {
	return &Service{store: store, defaultRate: defaultRate, log: log.With().Str("module", "settings").Logger()}
}

// CommissionRate reads service_commission_rate on every call (no caching) and falls back to
// the configured default when the row is absent or unparseable.
func (s *Service) CommissionRate(ctx context.Context) (types.Rate, error) {
	st, err := s.store.Get(ctx, KeyCommissionRate)
	if errors.Is(err, errNoSetting) {
		return s.defaultRate, nil
	}
	if err != nil {
		return 0, err
	}
	rate, err := types.ParseRate(st.Value)
	if err != nil || !rate.Valid() {
		s.log.Warn().Str("value", st.Value).Msg("invalid commission rate setting, using default")
		return s.defaultRate, nil
	}
	return rate, nil
}

func (s *Service) SetCommissionRate(ctx context.Context, actorID types.ID, rate types.Rate) (*Setting, error) {
	if !rate.Valid() {
		return nil, fmt.Errorf("%w: commission rate must be between 0 and 100", types.ErrValidation)
	}
	st := &Setting{
		Key:       KeyCommissionRate,
		Value:     rate.String(),
		Type:      TypeDecimal,
		UpdatedBy: &actorID,
		UpdatedAt: time.Now(),
	}
	if err := s.store.Put(ctx, st); err != nil {
		return nil, err
	}
	s.log.Info().Str("actor_id", string(actorID)).Str("rate", st.Value).Msg("commission rate updated")
	return st, nil
}

func (s *Service) List(ctx context.Context) ([]*Setting, error) {
	return s.store.List(ctx)
}
