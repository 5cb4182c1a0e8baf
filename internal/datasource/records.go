package datasource

import (
	"strings"
	"time"

	"bi-agent/internal/models"
)

// Record is one source row keyed by column title. Missing keys and empty
// strings both mean the value is missing.
type Record map[string]string

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2 Jan 2006",
}

// parseDate returns nil for blank or unrecognized input.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// withRequired returns columns plus any required column it lacks, preserving order.
func withRequired(columns, required []string) []string {
	out := make([]string, 0, len(columns)+len(required))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, c := range required {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func matchesSector(value string, sector models.Sector) bool {
	if !sector.IsSet() {
		return true
	}
	return strings.EqualFold(value, string(sector))
}

// DealsFromRecords maps title-keyed rows onto a DealTable, synthesizing absent
// required columns and keeping only rows of the given sector.
func DealsFromRecords(records []Record, columns []string, sector models.Sector) *models.DealTable {
	table := &models.DealTable{
		Rows:    make([]models.Deal, 0, len(records)),
		Columns: withRequired(columns, models.RequiredDealColumns),
	}

	for _, r := range records {
		if !matchesSector(r[models.ColDealSector], sector) {
			continue
		}
		table.Rows = append(table.Rows, models.Deal{
			Name:               r[models.ColDealName],
			Status:             models.ParseDealStatus(strings.TrimSpace(r[models.ColDealStatus])),
			Stage:              r[models.ColDealStage],
			Sector:             r[models.ColDealSector],
			Value:              r[models.ColDealValue],
			Owner:              r[models.ColDealOwner],
			ClientCode:         r[models.ColDealClient],
			ClosureProbability: r[models.ColDealProbability],
			Product:            r[models.ColDealProduct],
			CreatedDate:        parseDate(r[models.ColDealCreatedDate]),
			CloseDate:          parseDate(r[models.ColDealCloseDate]),
			TentativeCloseDate: parseDate(r[models.ColDealTentativeClose]),
		})
	}

	return table
}

// WorkOrdersFromRecords is DealsFromRecords for the work order board.
func WorkOrdersFromRecords(records []Record, columns []string, sector models.Sector) *models.WorkOrderTable {
	table := &models.WorkOrderTable{
		Rows:    make([]models.WorkOrder, 0, len(records)),
		Columns: withRequired(columns, models.RequiredWorkOrderColumns),
	}

	for _, r := range records {
		if !matchesSector(r[models.ColWOSector], sector) {
			continue
		}
		table.Rows = append(table.Rows, models.WorkOrder{
			DealName:         r[models.ColWODealName],
			Sector:           r[models.ColWOSector],
			AmountReceivable: r[models.ColWOReceivable],
			Customer:         r[models.ColWOCustomer],
			NatureOfWork:     r[models.ColWONatureOfWork],
			ExecutionStatus:  r[models.ColWOExecutionStatus],
			BillingStatus:    r[models.ColWOBillingStatus],
			InvoiceStatus:    r[models.ColWOInvoiceStatus],
			CollectionStatus: r[models.ColWOCollectionStatus],
			BilledStatus:     r[models.ColWOBilledStatus],
		})
	}

	return table
}
