// internal/models/deal.go
package models

import "time"

// Deal board column titles.
const (
	ColDealName           = "Deal Name"
	ColDealStatus         = "Deal Status"
	ColDealStage          = "Deal Stage"
	ColDealSector         = "Sector/service"
	ColDealValue          = "Masked Deal value"
	ColDealOwner          = "Owner code"
	ColDealClient         = "Client Code"
	ColDealProbability    = "Closure Probability"
	ColDealProduct        = "Product deal"
	ColDealCreatedDate    = "Created Date"
	ColDealCloseDate      = "Close Date (A)"
	ColDealTentativeClose = "Tentative Close Date"
)

// RequiredDealColumns must exist on every deal table; sources synthesize them when absent.
var RequiredDealColumns = []string{
	ColDealName,
	ColDealStatus,
	ColDealStage,
	ColDealSector,
	ColDealValue,
}

// DealStatus is the pipeline status of a deal. Empty means missing.
type DealStatus string

const (
	DealStatusMissing DealStatus = ""
	DealStatusOpen    DealStatus = "Open"
	DealStatusWon     DealStatus = "Won"
	DealStatusDead    DealStatus = "Dead"
	DealStatusOnHold  DealStatus = "On Hold"
)

// ParseDealStatus maps a raw label onto the allowed statuses; anything else is missing.
func ParseDealStatus(raw string) DealStatus {
	switch s := DealStatus(raw); s {
	case DealStatusOpen, DealStatusWon, DealStatusDead, DealStatusOnHold:
		return s
	}
	return DealStatusMissing
}

// Deal is one sales-pipeline record. Empty strings mean the value is missing.
// Name is a join key against WorkOrder.DealName and is not unique.
type Deal struct {
	Name               string     `json:"name"`
	Status             DealStatus `json:"status"`
	Stage              string     `json:"stage"`
	Sector             string     `json:"sector"`
	Value              string     `json:"value"`
	Owner              string     `json:"owner,omitempty"`
	ClientCode         string     `json:"clientCode,omitempty"`
	ClosureProbability string     `json:"closureProbability,omitempty"`
	Product            string     `json:"product,omitempty"`
	CreatedDate        *time.Time `json:"createdDate,omitempty"`
	CloseDate          *time.Time `json:"closeDate,omitempty"`
	TentativeCloseDate *time.Time `json:"tentativeCloseDate,omitempty"`
}

// DealTable is a read-only snapshot of deals plus the columns the source carried.
type DealTable struct {
	Rows    []Deal   `json:"rows"`
	Columns []string `json:"columns"`
}

// Len returns the number of rows.
func (t *DealTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the source carried the named column.
func (t *DealTable) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	return containsColumn(t.Columns, name)
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
