package datasource

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-agent/internal/common/config"
	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/models"
)

func TestInstrument_WrapsFailures(t *testing.T) {
	src := Instrument(&countingSource{err: errors.New("connection refused")}, logger.NewTestLogger(t))
	assert.Equal(t, "fake", src.Name())

	_, err := src.FetchDeals(context.Background(), models.SectorNone)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDataFetchFailed))
	assert.Contains(t, err.Error(), "connection refused")

	std := apperrors.AsStandard(err)
	assert.Equal(t, "fake", std.Metadata["backend"])
	assert.Equal(t, "deals", std.Metadata["entity"])
}

func TestInstrument_KeepsExistingFetchError(t *testing.T) {
	inner := apperrors.NewDataFetchError("monday", errors.New("Board ID is not configured"))
	src := Instrument(&countingSource{err: inner}, logger.NewNoOpLogger())

	_, err := src.FetchWorkOrders(context.Background(), models.SectorNone)
	assert.Same(t, inner, err)
}

func TestInstrument_PassesTables(t *testing.T) {
	deals, wos := sampleTables()
	src := Instrument(&countingSource{deals: deals, workOrders: wos}, logger.NewNoOpLogger())

	gotDeals, err := src.FetchDeals(context.Background(), models.SectorNone)
	require.NoError(t, err)
	assert.Same(t, deals, gotDeals)

	gotWOs, err := src.FetchWorkOrders(context.Background(), models.SectorNone)
	require.NoError(t, err)
	assert.Same(t, wos, gotWOs)
}

func TestOpen(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		cfg := &config.Config{Data: config.DataConfig{
			Backend:       config.BackendLocal,
			DealsCSV:      filepath.Join("testdata", "deals.csv"),
			WorkOrdersCSV: filepath.Join("testdata", "work_orders.csv"),
		}}
		backend, err := Open(cfg, logger.NewNoOpLogger())
		require.NoError(t, err)
		defer backend.Close()

		assert.Equal(t, "local", backend.Source.Name())
		assert.NoError(t, backend.Ping(context.Background()))

		deals, err := backend.Source.FetchDeals(context.Background(), models.SectorNone)
		require.NoError(t, err)
		assert.Equal(t, 4, deals.Len())
	})

	t.Run("monday without token fails at fetch time", func(t *testing.T) {
		cfg := &config.Config{
			Data:   config.DataConfig{Backend: config.BackendMonday},
			Monday: config.MondayConfig{DealsBoardID: "123"},
		}
		backend, err := Open(cfg, logger.NewNoOpLogger())
		require.NoError(t, err)

		_, err = backend.Source.FetchDeals(context.Background(), models.SectorNone)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDataFetchFailed))
		assert.Contains(t, err.Error(), "MONDAY_API_TOKEN is not set")
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(&config.Config{Data: config.DataConfig{Backend: "sqlite"}}, logger.NewNoOpLogger())
		assert.Error(t, err)
	})
}
