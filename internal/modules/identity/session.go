// README: Redis-backed opaque session tokens; tokens are stored only as keyed hashes.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"staybook/internal/types"
)

const sessionPrefix = "session:"

var errInvalidSession = fmt.Errorf("%w: invalid or expired session", types.ErrUnauthorized)

type SessionStore struct {
	redis  *redis.Client
	secret []byte
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, secret string, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: client, secret: []byte(secret), ttl: ttl}
}

func (s *SessionStore) key(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return sessionPrefix + hex.EncodeToString(mac.Sum(nil))
}

func (s *SessionStore) Create(ctx context.Context, userID types.ID) (string, error) {
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if err := s.redis.Set(ctx, s.key(token), string(userID), s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (types.ID, error) {
	if token == "" {
		return "", errInvalidSession
	}
	val, err := s.redis.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errInvalidSession
	}
	if err != nil {
		return "", err
	}
	return types.ID(val), nil
}

func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	return s.redis.Del(ctx, s.key(token)).Err()
}
