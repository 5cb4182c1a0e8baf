package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"bi-agent/internal/common/config"
	"bi-agent/internal/common/database"
	apperrors "bi-agent/internal/common/errors"
	"bi-agent/internal/models"
)

// fieldBinding ties a snake_case storage field to its board column title.
// The same bindings serve the postgres tables and the elasticsearch documents.
type fieldBinding struct {
	field string
	title string
}

var dealFields = []fieldBinding{
	{"deal_name", models.ColDealName},
	{"deal_status", models.ColDealStatus},
	{"deal_stage", models.ColDealStage},
	{"sector", models.ColDealSector},
	{"masked_deal_value", models.ColDealValue},
	{"owner_code", models.ColDealOwner},
	{"client_code", models.ColDealClient},
	{"closure_probability", models.ColDealProbability},
	{"product_deal", models.ColDealProduct},
	{"created_date", models.ColDealCreatedDate},
	{"close_date", models.ColDealCloseDate},
	{"tentative_close_date", models.ColDealTentativeClose},
}

var workOrderFields = []fieldBinding{
	{"deal_name", models.ColWODealName},
	{"sector", models.ColWOSector},
	{"amount_receivable", models.ColWOReceivable},
	{"customer_code", models.ColWOCustomer},
	{"nature_of_work", models.ColWONatureOfWork},
	{"execution_status", models.ColWOExecutionStatus},
	{"billing_status", models.ColWOBillingStatus},
	{"invoice_status", models.ColWOInvoiceStatus},
	{"collection_status", models.ColWOCollectionStatus},
	{"wo_status_billed", models.ColWOBilledStatus},
}

func titles(fields []fieldBinding) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.title
	}
	return out
}

// PostgresSource reads the deals and work_orders tables. Every column is read as
// text so the same cleaning rules apply as for the CSV and monday backends.
type PostgresSource struct {
	client          *database.PostgresClient
	dealsTable      string
	workOrdersTable string
}

func NewPostgresSource(client *database.PostgresClient, dealsTable, workOrdersTable string) *PostgresSource {
	return &PostgresSource{
		client:          client,
		dealsTable:      dealsTable,
		workOrdersTable: workOrdersTable,
	}
}

func (s *PostgresSource) Name() string {
	return config.BackendPostgres
}

func (s *PostgresSource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	records, err := s.selectRecords(ctx, s.dealsTable, dealFields, sector)
	if err != nil {
		return nil, err
	}
	return DealsFromRecords(records, titles(dealFields), sector), nil
}

func (s *PostgresSource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	records, err := s.selectRecords(ctx, s.workOrdersTable, workOrderFields, sector)
	if err != nil {
		return nil, err
	}
	return WorkOrdersFromRecords(records, titles(workOrderFields), sector), nil
}

// buildSelect renders the query for a table; the sector filter is a bind parameter.
func buildSelect(table string, fields []fieldBinding, sector models.Sector) (string, []interface{}) {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = fmt.Sprintf("%s::text", pq.QuoteIdentifier(f.field))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), pq.QuoteIdentifier(table))
	if !sector.IsSet() {
		return query, nil
	}
	return query + " WHERE LOWER(sector) = LOWER($1)", []interface{}{string(sector)}
}

func (s *PostgresSource) selectRecords(ctx context.Context, table string, fields []fieldBinding, sector models.Sector) ([]Record, error) {
	query, args := buildSelect(table, fields, sector)

	rows, err := s.client.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select "+table, err)
	}
	defer rows.Close()

	var records []Record
	values := make([]sql.NullString, len(fields))
	dest := make([]interface{}, len(fields))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan "+table, err)
		}
		rec := make(Record, len(fields))
		for i, f := range fields {
			if values[i].Valid {
				rec[f.title] = strings.TrimSpace(values[i].String)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate "+table, err)
	}

	return records, nil
}
