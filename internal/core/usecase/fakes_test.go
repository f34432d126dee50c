package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

type repoFake struct {
	mu      sync.Mutex
	docs    map[string]domain.Document
	history []domain.Document
	saveErr error
	// rejectDone fails writes on a finished context, as database/sql does.
	rejectDone bool
}

func newRepoFake(docs ...domain.Document) *repoFake {
	f := &repoFake{docs: make(map[string]domain.Document)}
	for _, doc := range docs {
		f.docs[doc.ID] = doc
	}
	return f
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (f *repoFake) List(context.Context, domain.ListFilter) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (f *repoFake) Save(ctx context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.rejectDone && ctx.Err() != nil {
		return fmt.Errorf("save document: %w", ctx.Err())
	}
	if _, ok := f.docs[doc.ID]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", fmt.Errorf("id=%s", doc.ID))
	}
	f.docs[doc.ID] = *doc
	f.history = append(f.history, *doc)
	return nil
}

func (f *repoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	delete(f.docs, id)
	return nil
}

func (f *repoFake) stages() []domain.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Stage, 0, len(f.history))
	for _, doc := range f.history {
		out = append(out, doc.Stage)
	}
	return out
}

func (f *repoFake) get(id string) domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	err     error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type queueFake struct {
	published []string
	err       error
	handler   func(context.Context, string) error
}

func (f *queueFake) PublishDocumentIngested(ctx context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	if f.handler != nil {
		_ = f.handler(ctx, documentID)
	}
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(_ context.Context, handler func(context.Context, string) error) error {
	f.handler = handler
	return nil
}

type loaderFake struct {
	mu       sync.Mutex
	segments []domain.Segment
	err      error
	calls    int
	delay    time.Duration
}

func (f *loaderFake) Load(context.Context, *domain.Document) ([]domain.Segment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func (f *loaderFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// chunkerFake emits one chunk per non-empty segment.
type chunkerFake struct{}

func (chunkerFake) Split(segments []domain.Segment) []domain.Chunk {
	var out []domain.Chunk
	offset := 0
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		n := len([]rune(seg.Text))
		out = append(out, domain.Chunk{
			Index:    len(out),
			Text:     seg.Text,
			Start:    offset,
			End:      offset + n,
			Position: seg.Position,
		})
		offset += n + 2
	}
	return out
}

type indexFake struct {
	mu          sync.Mutex
	err         error
	searchErr   error
	results     []domain.ScoredChunk
	indexed     map[string][]domain.Chunk
	dropped     []string
	searchK     int
	searchQuery string
	onIndex     func()
}

func newIndexFake() *indexFake {
	return &indexFake{indexed: make(map[string][]domain.Chunk)}
}

func (f *indexFake) Index(_ context.Context, documentID string, chunks []domain.Chunk) (domain.IndexHandle, error) {
	if f.onIndex != nil {
		f.onIndex()
	}
	if f.err != nil {
		return domain.IndexHandle{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[documentID] = chunks
	return domain.IndexHandle{DocumentID: documentID, Backend: "fake", ChunkCount: len(chunks)}, nil
}

func (f *indexFake) Search(_ context.Context, _ domain.IndexHandle, query string, k int) ([]domain.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchK = k
	f.searchQuery = query
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func (f *indexFake) Drop(_ context.Context, handle domain.IndexHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, handle.DocumentID)
	delete(f.indexed, handle.DocumentID)
	return nil
}

func (f *indexFake) has(documentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexed[documentID]
	return ok
}

type generatorFake struct {
	summary      string
	answer       string
	err          error
	gotChunks    []domain.Chunk
	gotQuestion  string
	gotContext   []domain.ScoredChunk
	summaryCalls int
}

func (f *generatorFake) Summarize(_ context.Context, chunks []domain.Chunk) (string, error) {
	f.summaryCalls++
	f.gotChunks = chunks
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func (f *generatorFake) Answer(_ context.Context, question string, sources []domain.ScoredChunk) (string, error) {
	f.gotQuestion = question
	f.gotContext = sources
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type sessionsFake struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	getErr   error
	deleted  []string
}

func newSessionsFake() *sessionsFake {
	return &sessionsFake{sessions: make(map[string]domain.Session)}
}

func (f *sessionsFake) Get(_ context.Context, documentID string) (*domain.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", documentID))
	}
	return &session, nil
}

func (f *sessionsFake) Put(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.DocumentID] = *session
	return nil
}

func (f *sessionsFake) Delete(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, documentID)
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *sessionsFake) has(documentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[documentID]
	return ok
}

type observerFake struct {
	started  int
	finished []domain.Stage
	errs     []error
}

func (f *observerFake) ObserveQueueLag(time.Duration) {}

func (f *observerFake) StartDocument() { f.started++ }

func (f *observerFake) FinishDocument(stage domain.Stage, _ time.Duration, err error) {
	f.finished = append(f.finished, stage)
	f.errs = append(f.errs, err)
}

func readySession(id string) domain.Session {
	chunks := []domain.Chunk{
		{Index: 0, Text: "alpha", Start: 0, End: 5, Position: domain.Position{Page: 1}},
		{Index: 1, Text: "beta", Start: 7, End: 11, Position: domain.Position{Page: 2}},
	}
	return domain.Session{
		DocumentID: id,
		Chunks:     chunks,
		Index:      domain.IndexHandle{DocumentID: id, Backend: "fake", ChunkCount: len(chunks)},
	}
}

func completedDoc(id string) domain.Document {
	doc := domain.Document{
		ID:         id,
		Filename:   "sample.txt",
		Format:     domain.FormatText,
		StorageKey: id + "/sample.txt",
		UploadDate: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:     domain.StatusCompleted,
		Stage:      domain.StageCompleted,
	}
	doc.SetChunkCount(2)
	return doc
}
