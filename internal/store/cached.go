package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"

	"github.com/redis/go-redis/v9"
)

const formCachePrefix = "form:def:"

// CachedFormStore serves Get from Redis and invalidates on Replace and
// Delete. Redis failures degrade to the wrapped store.
type CachedFormStore struct {
	next   FormStore
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedFormStore(next FormStore, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedFormStore {
	return &CachedFormStore{next: next, rdb: rdb, ttl: ttl, logger: log}
}

func (s *CachedFormStore) Create(ctx context.Context, form *models.FormDefinition) error {
	return s.next.Create(ctx, form)
}

func (s *CachedFormStore) Replace(ctx context.Context, form *models.FormDefinition) error {
	if err := s.next.Replace(ctx, form); err != nil {
		return err
	}
	s.invalidate(ctx, form.ID)
	return nil
}

func (s *CachedFormStore) Get(ctx context.Context, id string) (*models.FormDefinition, error) {
	key := formCachePrefix + id

	cached, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var form models.FormDefinition
		if jerr := json.Unmarshal(cached, &form); jerr == nil {
			return &form, nil
		}
		s.invalidate(ctx, id)
	case !stderrors.Is(err, redis.Nil):
		s.logger.Warn("form cache read failed", map[string]interface{}{"formId": id, "error": err.Error()})
	}

	form, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(form); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("form cache write failed", map[string]interface{}{"formId": id, "error": err.Error()})
		}
	}
	return form, nil
}

func (s *CachedFormStore) List(ctx context.Context) ([]*models.FormDefinition, error) {
	return s.next.List(ctx)
}

func (s *CachedFormStore) Latest(ctx context.Context) (*models.FormDefinition, error) {
	return s.next.Latest(ctx)
}

func (s *CachedFormStore) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedFormStore) invalidate(ctx context.Context, id string) {
	if err := s.rdb.Del(ctx, formCachePrefix+id).Err(); err != nil {
		s.logger.Warn("form cache invalidation failed", map[string]interface{}{"formId": id, "error": err.Error()})
	}
}
