package out

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dispatchdesk/internal/modules/session/domain"
	apperrors "dispatchdesk/internal/platform/errors"
)

// RedisCredentialStore stores each credential field under prefix+field,
// for shared operator workstations that keep state in a local redis.
type RedisCredentialStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisCredentialStore(client redis.UniversalClient, prefix string) *RedisCredentialStore {
	return &RedisCredentialStore{redis: client, prefix: prefix}
}

func (s *RedisCredentialStore) key(field string) string {
	return s.prefix + field
}

func (s *RedisCredentialStore) Put(ctx context.Context, record domain.CredentialRecord) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(keyToken), record.Token, 0)
		pipe.Set(ctx, s.key(keyRole), record.Role, 0)
		pipe.Set(ctx, s.key(keySubject), record.SubjectID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *RedisCredentialStore) Get(ctx context.Context) (domain.CredentialRecord, error) {
	values, err := s.redis.MGet(ctx, s.key(keyToken), s.key(keyRole), s.key(keySubject)).Result()
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("read credentials: %w", err)
	}
	fields := make([]string, len(values))
	for i, v := range values {
		if str, ok := v.(string); ok {
			fields[i] = str
		}
	}
	record := domain.CredentialRecord{Token: fields[0], Role: fields[1], SubjectID: fields[2]}
	if !record.Complete() {
		return domain.CredentialRecord{}, apperrors.ErrNoCredentials
	}
	return record, nil
}

func (s *RedisCredentialStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(keyToken), s.key(keyRole), s.key(keySubject)).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
