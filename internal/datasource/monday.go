package datasource

import (
	"context"
	"sort"

	"bi-agent/internal/common/config"
	"bi-agent/internal/common/monday"
	"bi-agent/internal/models"
)

// DealsColumnMap renames deal board column ids to column titles.
// Regenerate with cmd/tools/board-probe when the board changes.
var DealsColumnMap = map[string]string{
	"color_mm0zcca8":    models.ColDealOwner,
	"dropdown_mm0zwvgm": models.ColDealClient,
	"color_mm0zcw27":    models.ColDealStatus,
	"date_mm0z5gvp":     models.ColDealCloseDate,
	"color_mm0z8axa":    models.ColDealProbability,
	"numeric_mm0z82j0":  models.ColDealValue,
	"date_mm0zr1sa":     models.ColDealTentativeClose,
	"color_mm0zaay1":    models.ColDealStage,
	"color_mm0z484":     models.ColDealProduct,
	"color_mm0znxwb":    models.ColDealSector,
	"date_mm0zyjxa":     models.ColDealCreatedDate,
	"numeric_mm0z5vb4":  "source_row_number",
	"color_mm0zw56s":    "quality_flag",
}

// WorkOrdersColumnMap renames work order board column ids to column titles.
var WorkOrdersColumnMap = map[string]string{
	"dropdown_mm0zr1a":  models.ColWOCustomer,
	"dropdown_mm0zvp6r": "Serial #",
	"color_mm0zggjj":    models.ColWONatureOfWork,
	"color_mm0zgmsk":    "Last executed month of recurring project",
	"color_mm0zngha":    models.ColWOExecutionStatus,
	"date_mm0zj4dm":     "Data Delivery Date",
	"date_mm0zv71s":     "Date of PO/LOI",
	"color_mm0z2jm6":    "Document Type",
	"date_mm0zb88":      "Probable Start Date",
	"date_mm0z9w1q":     "Probable End Date",
	"color_mm0zj4ev":    "BD/KAM Personnel code",
	"color_mm0zms75":    models.ColWOSector,
	"color_mm0zrda8":    "Type of Work",
	"color_mm0z467s":    "Is any Skylark software platform part of the client deliverables in this deal?",
	"date_mm0zhche":     "Last invoice date",
	"dropdown_mm0zys2b": "latest invoice no.",
	"numeric_mm0z14t8":  "Amount in Rupees (Excl of GST) (Masked)",
	"numeric_mm0z7155":  "Amount in Rupees (Incl of GST) (Masked)",
	"numeric_mm0z9gxw":  "Billed Value in Rupees (Excl of GST.) (Masked)",
	"numeric_mm0zees1":  "Billed Value in Rupees (Incl of GST.) (Masked)",
	"numeric_mm0zqba6":  "Collected Amount in Rupees (Incl of GST.) (Masked)",
	"numeric_mm0zdtk6":  "Amount to be billed in Rs. (Exl. of GST) (Masked)",
	"numeric_mm0zxvep":  "Amount to be billed in Rs. (Incl. of GST) (Masked)",
	"numeric_mm0zhacq":  models.ColWOReceivable,
	"color_mm0ztcf6":    "AR Priority account",
	"numeric_mm0zswea":  "Quantity by Ops",
	"dropdown_mm0zqn8j": "Quantities as per PO",
	"numeric_mm0zdj78":  "Quantity billed (till date)",
	"numeric_mm0z5wg8":  "Balance in quantity",
	"color_mm0z98zq":    models.ColWOInvoiceStatus,
	"text_mm0z687n":     "Expected Billing Month",
	"color_mm0z4mzb":    "Actual Billing Month",
	"text_mm0z9qjg":     "Actual Collection Month",
	"color_mm0zh4ja":    models.ColWOBilledStatus,
	"text_mm0zf6zn":     models.ColWOCollectionStatus,
	"text_mm0z2wqs":     "Collection Date",
	"color_mm0zrfab":    models.ColWOBillingStatus,
	"numeric_mm0z43q2":  "source_row_number",
	"color_mm0zcj4v":    "quality_flag",
}

// BoardReader is the part of the monday client a source needs.
type BoardReader interface {
	FetchBoardItems(ctx context.Context, boardID string) ([]monday.Item, error)
}

// MondaySource pages both boards live on every fetch.
type MondaySource struct {
	client            BoardReader
	dealsBoardID      string
	workOrdersBoardID string
}

func NewMondaySource(client BoardReader, dealsBoardID, workOrdersBoardID string) *MondaySource {
	return &MondaySource{
		client:            client,
		dealsBoardID:      dealsBoardID,
		workOrdersBoardID: workOrdersBoardID,
	}
}

func (s *MondaySource) Name() string {
	return config.BackendMonday
}

func (s *MondaySource) FetchDeals(ctx context.Context, sector models.Sector) (*models.DealTable, error) {
	items, err := s.client.FetchBoardItems(ctx, s.dealsBoardID)
	if err != nil {
		return nil, err
	}
	records, columns := itemsToRecords(items, models.ColDealName, DealsColumnMap)
	return DealsFromRecords(records, columns, sector), nil
}

func (s *MondaySource) FetchWorkOrders(ctx context.Context, sector models.Sector) (*models.WorkOrderTable, error) {
	items, err := s.client.FetchBoardItems(ctx, s.workOrdersBoardID)
	if err != nil {
		return nil, err
	}
	records, columns := itemsToRecords(items, models.ColWODealName, WorkOrdersColumnMap)
	return WorkOrdersFromRecords(records, columns, sector), nil
}

// itemsToRecords puts the item name under nameColumn and renames cell ids via
// columnMap. Unmapped ids keep their raw id as the column name.
func itemsToRecords(items []monday.Item, nameColumn string, columnMap map[string]string) ([]Record, []string) {
	records := make([]Record, 0, len(items))
	seen := map[string]bool{nameColumn: true}
	var extra []string

	for _, item := range items {
		rec := Record{nameColumn: item.Name}
		for id, text := range item.Cells() {
			col := id
			if title, ok := columnMap[id]; ok {
				col = title
			}
			rec[col] = text
			if !seen[col] {
				seen[col] = true
				extra = append(extra, col)
			}
		}
		records = append(records, rec)
	}

	sort.Strings(extra)
	return records, append([]string{nameColumn}, extra...)
}
