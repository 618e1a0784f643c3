package checkout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
)

// MemorySessionStore is an in-process SessionStore used when Redis is not
// configured (single-instance deployments and tests). Sessions are copied on
// the way in and out so callers never share mutable state with the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]byte
	byRef    map[string]uuid.UUID
}

// NewMemorySessionStore builds an empty in-process store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[uuid.UUID][]byte),
		byRef:    make(map[string]uuid.UUID),
	}
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	if session == nil || session.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = raw
	if session.Payment.ProviderRef != "" {
		s.byRef[session.Payment.ProviderRef] = session.ID
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	raw, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode session")
	}
	return &session, nil
}

func (s *MemorySessionStore) GetByProviderRef(ctx context.Context, providerRef string) (*Session, error) {
	s.mu.RLock()
	id, ok := s.byRef[providerRef]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Get(ctx, id)
}
