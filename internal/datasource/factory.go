package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bi-agent/internal/common/config"
	"bi-agent/internal/common/database"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/monday"
)

// Backend is the configured source plus the connections it owns.
type Backend struct {
	Source Source

	checks  map[string]func(context.Context) error
	closers []func() error
}

// Open builds the source selected by data.backend, wraps it in the redis cache
// when data.cache_ttl is set, and instruments the result.
func Open(cfg *config.Config, log logger.Logger) (*Backend, error) {
	b := &Backend{checks: map[string]func(context.Context) error{}}

	var src Source
	switch cfg.Data.Backend {
	case config.BackendLocal:
		src = NewLocalSource(cfg.Data.DealsCSV, cfg.Data.WorkOrdersCSV)

	case config.BackendMonday:
		client := monday.NewClient(monday.Config{
			APIURL:   cfg.Monday.APIURL,
			APIToken: cfg.Monday.APIToken,
			PageSize: cfg.Monday.PageSize,
			Timeout:  config.GetDuration(cfg.Monday.Timeout),
		})
		src = NewMondaySource(client, cfg.Monday.DealsBoardID, cfg.Monday.WorkOrdersBoardID)

	case config.BackendPostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		b.checks["postgres"] = pg.Ping
		b.closers = append(b.closers, pg.Close)
		src = NewPostgresSource(pg, cfg.Data.DealsTable, cfg.Data.WorkOrdersTable)

	case config.BackendElasticsearch:
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		b.checks["elasticsearch"] = es.Ping
		src = NewElasticsearchSource(es, cfg.Data.DealsIndex, cfg.Data.WorkOrdersIndex)

	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.Data.Backend)
	}

	if cfg.Data.CacheTTL > 0 {
		redis := database.NewRedis(cfg.Database.Redis)
		b.checks["redis"] = redis.Ping
		b.closers = append(b.closers, redis.Close)
		src = NewCachedSource(src, redis, time.Duration(cfg.Data.CacheTTL)*time.Second, log)
	}

	b.Source = Instrument(src, log)
	return b, nil
}

// Ping checks every connection the backend holds. Local and monday backends
// have nothing to check.
func (b *Backend) Ping(ctx context.Context) error {
	var errs []error
	for name, check := range b.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
