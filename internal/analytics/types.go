// Package analytics computes aggregate metrics over deal and work order snapshots.
//
// Every function is pure and total: empty tables yield zero-valued results, and
// unparsable or missing values are absorbed rather than reported as errors. When an
// input column a metric depends on is absent, the result carries
// Availability NotComputable instead of numbers.
package analytics

// Availability tags whether a result could be computed from the columns present.
type Availability string

const (
	Computed      Availability = "computed"
	NotComputable Availability = "not_computable"
)

// MissingLabel buckets rows whose categorical value is absent.
const MissingLabel = "missing"

const (
	topStagesLimit      = 8
	stageStatusLimit    = 10
	sectorMetricsLimit  = 10
	highOutstandingRank = 0.9
)

// LabelCount is one histogram bucket.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type PipelineSummary struct {
	Rows      int            `json:"rows"`
	ByStatus  map[string]int `json:"by_status"`
	TopStages []LabelCount   `json:"top_stages"`
}

// StatusCount returns the number of deals with the given status label.
func (p PipelineSummary) StatusCount(label string) int {
	return p.ByStatus[label]
}

type ReceivableSummary struct {
	Availability    Availability `json:"availability"`
	TotalReceivable *float64     `json:"total_receivable"`
	NegativeCount   *int         `json:"negative_count"`
}

type CrossBoardOverlap struct {
	OverlapCount int `json:"overlap_count"`
}

// StageStatusRow is one stage with its per-status counts (zero-filled).
type StageStatusRow struct {
	Stage  string         `json:"stage"`
	Counts map[string]int `json:"counts"`
}

// StageStatusTable is a stage x status cross-tabulation. SortStatus is the status
// column used to rank stages; empty when no deal carries a status.
type StageStatusTable struct {
	SortStatus string           `json:"sort_status,omitempty"`
	Statuses   []string         `json:"statuses"`
	Rows       []StageStatusRow `json:"rows"`
}

type PipelineBreakdown struct {
	StageStatusTable StageStatusTable `json:"stage_status_table"`
}

type SectorMetric struct {
	Sector         string  `json:"sector"`
	DealCount      int     `json:"deal_count"`
	WonCount       int     `json:"won_count"`
	WorkOrderCount int     `json:"work_order_count"`
	WinRate        float64 `json:"win_rate"`
}

type SectorPerformance struct {
	SectorMetrics []SectorMetric `json:"sector_metrics"`
}

// TopSector returns the sector with the highest deal count, or "" when there is none.
func (s SectorPerformance) TopSector() string {
	if len(s.SectorMetrics) == 0 {
		return ""
	}
	return s.SectorMetrics[0].Sector
}

type ConversionMetrics struct {
	WonCount   int     `json:"won_count"`
	DeadCount  int     `json:"dead_count"`
	OpenCount  int     `json:"open_count"`
	WonRate    float64 `json:"won_rate"`
	DeadRate   float64 `json:"dead_rate"`
	OpenRate   float64 `json:"open_rate"`
	TotalDeals int     `json:"total_deals"`
}

type ReceivableRisk struct {
	Availability        Availability `json:"availability"`
	NegativeRows        *int         `json:"negative_rows"`
	HighOutstandingRows *int         `json:"high_outstanding_rows"`
	Threshold           *float64     `json:"threshold"`
	TotalOutstanding    *float64     `json:"total_outstanding"`
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
