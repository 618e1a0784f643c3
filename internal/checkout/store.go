package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	pkgredis "github.com/upliftlabs/calculator-backend/pkg/redis"
)

// ErrSessionNotFound is returned when no session exists for the given key.
var ErrSessionNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")

// SessionStore persists checkout sessions for the duration of the browsing
// session. Implementations are ephemeral: records expire with the TTL.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// GetByProviderRef resolves a session from the opaque payment provider
	// reference, which is all a webhook event carries.
	GetByProviderRef(ctx context.Context, providerRef string) (*Session, error)
}

type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SessionKey(sessionID string) string
}

// RedisSessionStore keeps session JSON in Redis under a TTL, plus a small
// provider-ref index so webhook reconciliation can find its session.
type RedisSessionStore struct {
	client redisStore
	ttl    time.Duration
}

// NewRedisSessionStore wraps the shared Redis client as a session store.
func NewRedisSessionStore(client redisStore, ttl time.Duration) (*RedisSessionStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session")
	}
	if err := s.client.Set(ctx, s.client.SessionKey(session.ID.String()), raw, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	if session.Payment.ProviderRef != "" {
		refKey := s.client.SessionKey("ref:" + session.Payment.ProviderRef)
		if err := s.client.Set(ctx, refKey, session.ID.String(), s.ttl); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session ref index")
		}
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	raw, err := s.client.Get(ctx, s.client.SessionKey(id.String()))
	if err != nil {
		if pkgredis.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode session")
	}
	return &session, nil
}

func (s *RedisSessionStore) GetByProviderRef(ctx context.Context, providerRef string) (*Session, error) {
	if providerRef == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := s.client.Get(ctx, s.client.SessionKey("ref:"+providerRef))
	if err != nil {
		if pkgredis.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session ref index")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode session ref index")
	}
	return s.Get(ctx, id)
}
