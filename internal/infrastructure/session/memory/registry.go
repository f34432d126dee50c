package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

// Registry keeps sessions in process memory. Sessions are lost on restart and
// rebuilt lazily from the stored uploads.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*domain.Session)}
}

func (r *Registry) Get(_ context.Context, documentID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", documentID))
	}
	return session, nil
}

// Put replaces any previous session for the same document in one step.
// Sessions are treated as immutable once registered.
func (r *Registry) Put(_ context.Context, session *domain.Session) error {
	if session == nil || session.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "put session", fmt.Errorf("session without document id"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.DocumentID] = session
	return nil
}

func (r *Registry) Delete(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, documentID)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
