// README: Notification sink; persists and pushes messages, never fails the caller.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/metrics"
	"staybook/internal/types"
)

const defaultListLimit = 100

type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID types.ID, limit int) ([]*Notification, error)
	CountUnread(ctx context.Context, userID types.ID) (int, error)
	MarkRead(ctx context.Context, userID, id types.ID) (bool, error)
	MarkAllRead(ctx context.Context, userID types.ID) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}

type Service struct {
	store     Repository
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewService builds the sink. publisher may be nil when live push is disabled.
func NewService(store Repository, publisher Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, publisher: publisher, log: log.With().Str("module", "notification").Logger(), now: time.Now}
}

// Send is fire-and-forget: failures are logged and counted, never returned, and the
// caller's cancellation does not abort delivery of an already-committed transition.
func (s *Service) Send(ctx context.Context, msg Message) {
	if msg.UserID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	n := &Notification{
		ID:        types.NewID(),
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Body,
		CreatedAt: s.now(),
	}
	if msg.RelatedID != "" {
		rel := msg.RelatedID
		n.RelatedID = &rel
	}

	if err := s.store.Insert(ctx, n); err != nil {
		metrics.IncNotification("failed")
		s.log.Error().Err(err).Str("user_id", string(msg.UserID)).Str("type", string(msg.Type)).Msg("store notification")
		return
	}
	metrics.IncNotification("stored")

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("user_id", string(msg.UserID)).Msg("push notification")
		return
	}
	metrics.IncNotification("pushed")
}

func (s *Service) List(ctx context.Context, userID types.ID) ([]*Notification, error) {
	return s.store.ListByUser(ctx, userID, defaultListLimit)
}

func (s *Service) UnreadCount(ctx context.Context, userID types.ID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id types.ID) error {
	ok, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification", types.ErrNotFound)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID types.ID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
