package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bi-agent/internal/common/database"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/metrics"
	"bi-agent/internal/models"
)

const cacheKeyPrefix = "bi-agent:tables"

// CachedSource is a read-through redis cache in front of another source.
// Cache failures are logged and bypassed; only the inner source can fail a fetch.
type CachedSource struct {
	inner  Source
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(inner Source, redis *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedSource {
	return &CachedSource{inner: inner, redis: redis, ttl: ttl, logger: log}
}

func (s *CachedSource) Name() string {
	return s.inner.Name()
}

func cacheKey(backend string, entity Entity, sector models.Sector) string {
	scope := "all"
	if sector.IsSet() {
		scope = string(sector)
	}
	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyPrefix, backend, entity, scope)
}

func (s *CachedSource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	key := cacheKey(s.Name(), EntityDeals, sector)

	var cached models.DealTable
	if s.lookup(ctx, EntityDeals, key, &cached) {
		return &cached, nil
	}

	table, err := s.inner.FetchDeals(ctx, sector)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, table)
	return table, nil
}

func (s *CachedSource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	key := cacheKey(s.Name(), EntityWorkOrders, sector)

	var cached models.WorkOrderTable
	if s.lookup(ctx, EntityWorkOrders, key, &cached) {
		return &cached, nil
	}

	table, err := s.inner.FetchWorkOrders(ctx, sector)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, table)
	return table, nil
}

// Invalidate drops every cached table of the inner backend.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	var keys []string
	for _, entity := range []Entity{EntityDeals, EntityWorkOrders} {
		keys = append(keys, cacheKey(s.Name(), entity, models.SectorNone))
		for _, sector := range models.Sectors {
			keys = append(keys, cacheKey(s.Name(), entity, sector))
		}
	}
	return s.redis.Del(ctx, keys...)
}

func (s *CachedSource) lookup(ctx context.Context, entity Entity, key string, dst interface{}) bool {
	raw, err := s.redis.Get(ctx, key)
	switch {
	case errors.Is(err, database.ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues(string(entity), "miss").Inc()
		return false
	case err != nil:
		metrics.CacheLookups.WithLabelValues(string(entity), "error").Inc()
		s.logger.Warn("table cache read failed", map[string]interface{}{"key": key, "error": err})
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.CacheLookups.WithLabelValues(string(entity), "error").Inc()
		s.logger.Warn("table cache entry is corrupt", map[string]interface{}{"key": key, "error": err})
		return false
	}

	metrics.CacheLookups.WithLabelValues(string(entity), "hit").Inc()
	s.logger.Debug("table cache hit", map[string]interface{}{"key": key})
	return true
}

func (s *CachedSource) store(ctx context.Context, key string, table interface{}) {
	raw, err := json.Marshal(table)
	if err != nil {
		s.logger.Warn("table cache encode failed", map[string]interface{}{"key": key, "error": err})
		return
	}
	if err := s.redis.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("table cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
