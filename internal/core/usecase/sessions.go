package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

type sessionRebuilder interface {
	Rebuild(ctx context.Context, doc *domain.Document) (*domain.Session, error)
}

// SessionResolver turns a document id into a ready session. Unknown ids are
// not_found, documents that are still processing or failed are not_ready, and
// a completed document whose session is gone gets it rebuilt once, serialized
// per document id.
type SessionResolver struct {
	repo      ports.DocumentRepository
	sessions  ports.SessionRegistry
	rebuilder sessionRebuilder

	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionResolver(
	repo ports.DocumentRepository,
	sessions ports.SessionRegistry,
	rebuilder sessionRebuilder,
) *SessionResolver {
	return &SessionResolver{
		repo:      repo,
		sessions:  sessions,
		rebuilder: rebuilder,
		locks:     make(map[string]*keyedLock),
	}
}

func (r *SessionResolver) Acquire(ctx context.Context, documentID string) (*domain.Document, *domain.Session, error) {
	doc, err := r.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	switch doc.Status {
	case domain.StatusProcessing:
		return nil, nil, domain.WrapError(domain.ErrNotReady, "acquire session",
			fmt.Errorf("document %s is still processing (stage %s)", doc.ID, doc.Stage))
	case domain.StatusFailed:
		return nil, nil, domain.WrapError(domain.ErrNotReady, "acquire session",
			fmt.Errorf("document %s failed: %s", doc.ID, doc.Error))
	}

	session, err := r.lookup(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	if session != nil {
		return doc, session, nil
	}

	unlock := r.lock(doc.ID)
	defer unlock()

	// Another caller may have rebuilt it while we waited.
	session, err = r.lookup(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	if session != nil {
		return doc, session, nil
	}

	session, err = r.rebuilder.Rebuild(ctx, doc)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild session: %w", err)
	}
	return doc, session, nil
}

// lookup returns (nil, nil) when the registry has no usable session.
func (r *SessionResolver) lookup(ctx context.Context, documentID string) (*domain.Session, error) {
	session, err := r.sessions.Get(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.Ready() {
		return nil, nil
	}
	return session, nil
}

func (r *SessionResolver) lock(id string) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &keyedLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}
