package memory

import (
	"context"
	"errors"
	"sync"

	"broker-pricing/internal/pricing/application"
)

// SessionRepository keeps pricing sessions in memory. Sessions are cloned on the
// way in and out so callers never share mutable records.
type SessionRepository struct {
	mu   sync.RWMutex
	data map[string]*application.Session
}

// NewSessionRepository constructs a repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		data: make(map[string]*application.Session),
	}
}

// Save stores or replaces a session.
func (r *SessionRepository) Save(ctx context.Context, session *application.Session) error {
	_ = ctx
	if session == nil {
		return application.ErrNilSession
	}
	if session.ID == "" {
		return errors.New("memory session repo: empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[session.ID] = session.Clone()
	return nil
}

// Get loads a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*application.Session, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	session := r.data[id]
	if session == nil {
		return nil, application.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return application.ErrSessionNotFound
	}
	delete(r.data, id)
	return nil
}

// Count returns the number of stored sessions.
func (r *SessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
