// internal/models/work_order.go
package models

// Work order board column titles.
const (
	ColWODealName         = "Deal name masked"
	ColWOSector           = "Sector"
	ColWOReceivable       = "Amount Receivable (Masked)"
	ColWOCustomer         = "Customer Name Code"
	ColWONatureOfWork     = "Nature of Work"
	ColWOExecutionStatus  = "Execution Status"
	ColWOBillingStatus    = "Billing Status"
	ColWOInvoiceStatus    = "Invoice Status"
	ColWOCollectionStatus = "Collection status"
	ColWOBilledStatus     = "WO Status (billed)"
)

// RequiredWorkOrderColumns must exist on every work order table.
var RequiredWorkOrderColumns = []string{
	ColWODealName,
	ColWOSector,
	ColWOReceivable,
}

// WorkOrder is one delivery/billing record linked to a deal by name.
// AmountReceivable keeps the raw source text; analytics clean it.
type WorkOrder struct {
	DealName         string `json:"dealName"`
	Sector           string `json:"sector"`
	AmountReceivable string `json:"amountReceivable"`
	Customer         string `json:"customer,omitempty"`
	NatureOfWork     string `json:"natureOfWork,omitempty"`
	ExecutionStatus  string `json:"executionStatus,omitempty"`
	BillingStatus    string `json:"billingStatus,omitempty"`
	InvoiceStatus    string `json:"invoiceStatus,omitempty"`
	CollectionStatus string `json:"collectionStatus,omitempty"`
	BilledStatus     string `json:"billedStatus,omitempty"`
}

// WorkOrderTable is a read-only snapshot of work orders plus the columns the source carried.
type WorkOrderTable struct {
	Rows    []WorkOrder `json:"rows"`
	Columns []string    `json:"columns"`
}

// Len returns the number of rows.
func (t *WorkOrderTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the source carried the named column.
func (t *WorkOrderTable) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	return containsColumn(t.Columns, name)
}
