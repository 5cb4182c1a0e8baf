package datasource

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-agent/internal/common/database"
	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/models"
)

func newPostgresTestSource(t *testing.T) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresSource(database.NewPostgresFromDB(db), "deals", "work_orders"), mock
}

func TestBuildSelect(t *testing.T) {
	fields := []fieldBinding{{"deal_name", models.ColDealName}, {"sector", models.ColDealSector}}

	query, args := buildSelect("deals", fields, models.SectorNone)
	assert.Equal(t, `SELECT "deal_name"::text, "sector"::text FROM "deals"`, query)
	assert.Empty(t, args)

	query, args = buildSelect("deals", fields, models.SectorMining)
	assert.Equal(t, `SELECT "deal_name"::text, "sector"::text FROM "deals" WHERE LOWER(sector) = LOWER($1)`, query)
	assert.Equal(t, []interface{}{"mining"}, args)
}

func TestPostgresSource_FetchDeals(t *testing.T) {
	src, mock := newPostgresTestSource(t)
	assert.Equal(t, "postgres", src.Name())

	query, _ := buildSelect("deals", dealFields, models.SectorRenewables)
	cols := make([]string, len(dealFields))
	for i, f := range dealFields {
		cols[i] = f.field
	}
	rows := sqlmock.NewRows(cols).
		AddRow("Alpha", "Won", "Closed", "Renewables", "1000", "OWNER_001", nil, "High", nil, "2024-01-05", nil, nil).
		AddRow("Beta", nil, nil, "renewables", nil, nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("renewables").WillReturnRows(rows)

	deals, err := src.FetchDeals(context.Background(), models.SectorRenewables)
	require.NoError(t, err)
	require.Equal(t, 2, deals.Len())
	assert.Equal(t, models.DealStatusWon, deals.Rows[0].Status)
	assert.Equal(t, "OWNER_001", deals.Rows[0].Owner)
	require.NotNil(t, deals.Rows[0].CreatedDate)
	assert.Equal(t, models.DealStatusMissing, deals.Rows[1].Status)
	assert.Equal(t, "", deals.Rows[1].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_FetchWorkOrders(t *testing.T) {
	src, mock := newPostgresTestSource(t)

	query, _ := buildSelect("work_orders", workOrderFields, models.SectorNone)
	cols := make([]string, len(workOrderFields))
	for i, f := range workOrderFields {
		cols[i] = f.field
	}
	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(
		sqlmock.NewRows(cols).AddRow("Alpha", "Mining", "-50", nil, nil, nil, "Billed", nil, nil, nil),
	)

	wos, err := src.FetchWorkOrders(context.Background(), models.SectorNone)
	require.NoError(t, err)
	require.Equal(t, 1, wos.Len())
	assert.Equal(t, "-50", wos.Rows[0].AmountReceivable)
	assert.Equal(t, "Billed", wos.Rows[0].BillingStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	src, mock := newPostgresTestSource(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation \"deals\" does not exist"))

	_, err := src.FetchDeals(context.Background(), models.SectorNone)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.Contains(t, err.Error(), "does not exist")
}
