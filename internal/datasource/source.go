// Package datasource loads deal and work order snapshots from the configured backend.
package datasource

import (
	"context"
	"time"

	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/metrics"
	"bi-agent/internal/models"
)

// Entity names a board.
type Entity string

const (
	EntityDeals      Entity = "deals"
	EntityWorkOrders Entity = "work_orders"
)

// Source fetches full tables, optionally filtered to one sector. Returned tables
// always carry the required columns for their entity.
type Source interface {
	Name() string
	FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error)
	FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error)
}

// instrumented times every fetch, logs the outcome and folds any failure into
// a single DATA_FETCH_FAILED error.
type instrumented struct {
	inner  Source
	logger logger.Logger
}

// Instrument wraps src with metrics, logging and error normalization.
func Instrument(src Source, log logger.Logger) Source {
	return &instrumented{inner: src, logger: log}
}

func (s *instrumented) Name() string {
	return s.inner.Name()
}

func (s *instrumented) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	start := time.Now()
	table, err := s.inner.FetchDeals(ctx, sector)
	if err = s.observe(EntityDeals, sector, start, table.Len(), err); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *instrumented) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	start := time.Now()
	table, err := s.inner.FetchWorkOrders(ctx, sector)
	if err = s.observe(EntityWorkOrders, sector, start, table.Len(), err); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *instrumented) observe(entity Entity, sector models.Sector, start time.Time, rows int, err error) error {
	backend := s.inner.Name()
	elapsed := time.Since(start)
	metrics.DataFetchDuration.WithLabelValues(backend, string(entity)).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"backend":    backend,
		"entity":     string(entity),
		"sector":     sector.String(),
		"durationMs": elapsed.Milliseconds(),
	}

	if err != nil {
		metrics.DataFetchFailures.WithLabelValues(backend, string(entity)).Inc()
		fields["error"] = err
		s.logger.Error("data fetch failed", fields)
		if apperrors.HasCode(err, apperrors.ErrCodeDataFetchFailed) {
			return err
		}
		return apperrors.NewDataFetchError(backend, err).WithMetadata("entity", string(entity))
	}

	fields["rows"] = rows
	s.logger.Info("data fetch completed", fields)
	return nil
}
