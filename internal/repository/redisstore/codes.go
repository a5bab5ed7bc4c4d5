// Package redisstore keeps pending verification codes in Redis so that
// several console processes can share them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "mfc:code"

// incrementAttemptsLua bumps the attempt counter only when the record still
// exists, so an expired key is never resurrected without a TTL.
var incrementAttemptsLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and checks the server is reachable.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CodeStore implements domain.CodeStore with one hash per email. Keys expire
// at the record's ExpiresAt.
type CodeStore struct {
	client redis.UniversalClient
	prefix string
}

func NewCodeStore(client redis.UniversalClient, prefix string) *CodeStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &CodeStore{client: client, prefix: prefix}
}

func (s *CodeStore) key(email string) string {
	return s.prefix + ":" + email
}

func (s *CodeStore) Save(ctx context.Context, record *domain.CodeRecord) error {
	key := s.key(record.Email)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"secret", record.Secret,
		"issued_at", record.IssuedAt.UnixNano(),
		"expires_at", record.ExpiresAt.UnixNano(),
		"attempts", record.Attempts,
	)
	pipe.PExpireAt(ctx, key, record.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save code record: %w", err)
	}
	return nil
}

func (s *CodeStore) Get(ctx context.Context, email string) (*domain.CodeRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("get code record: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	issued, err1 := strconv.ParseInt(fields["issued_at"], 10, 64)
	expires, err2 := strconv.ParseInt(fields["expires_at"], 10, 64)
	attempts, err3 := strconv.Atoi(fields["attempts"])
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("decode code record: %w", err)
	}

	rec := &domain.CodeRecord{
		Email:     email,
		Secret:    fields["secret"],
		IssuedAt:  time.Unix(0, issued),
		ExpiresAt: time.Unix(0, expires),
		Attempts:  attempts,
	}
	if !time.Now().Before(rec.ExpiresAt) {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *CodeStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrementAttemptsLua.Run(ctx, s.client, []string{s.key(email)}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment code attempts: %w", err)
	}
	if n < 0 {
		return 0, domain.ErrNotFound
	}
	return n, nil
}

func (s *CodeStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("delete code record: %w", err)
	}
	return nil
}
