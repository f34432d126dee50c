package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

const defaultKeyPrefix = "docqa:session:"

// Registry stores sessions as JSON values in Redis so the API and a separate
// worker process see the same sessions.
type Registry struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

func New(opts Options) (*Registry, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(client, opts.KeyPrefix, opts.TTL), nil
}

func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *Registry {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Registry{client: client, prefix: prefix, ttl: ttl}
}

func (r *Registry) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, documentID string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, r.key(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", documentID))
		}
		return nil, domain.WrapError(domain.ErrTemporary, "redis get session", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", documentID, err)
	}
	return &session, nil
}

// Put writes the whole session with a single SET, replacing any previous value.
func (r *Registry) Put(ctx context.Context, session *domain.Session) error {
	if session == nil || session.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "put session", errors.New("session without document id"))
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(session.DocumentID), raw, r.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis put session", err)
	}
	return nil
}

func (r *Registry) Delete(ctx context.Context, documentID string) error {
	if err := r.client.Del(ctx, r.key(documentID)).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis delete session", err)
	}
	return nil
}

func (r *Registry) Close() error {
	return r.client.Close()
}

func (r *Registry) key(documentID string) string {
	return r.prefix + documentID
}
