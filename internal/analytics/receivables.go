package analytics

import (
	"sort"
	"strings"

	"bi-agent/internal/models"
)

// ReceivableSummarize totals the receivable column, treating missing values as zero,
// and counts rows with a negative parsed amount.
func ReceivableSummarize(workOrders *models.WorkOrderTable) ReceivableSummary {
	if !workOrders.HasColumn(models.ColWOReceivable) {
		return ReceivableSummary{Availability: NotComputable}
	}

	values, present := cleanSeries(receivableColumn(workOrders))
	var total float64
	negative := 0
	for i, v := range values {
		if !present[i] {
			continue
		}
		total += v
		if v < 0 {
			negative++
		}
	}

	return ReceivableSummary{
		Availability:    Computed,
		TotalReceivable: floatPtr(total),
		NegativeCount:   intPtr(negative),
	}
}

// ReceivableRiskProfile flags negative receivables and rows at or above the 90th
// percentile of the receivable amount. Missing amounts count as zero before the
// percentile is taken.
func ReceivableRiskProfile(workOrders *models.WorkOrderTable) ReceivableRisk {
	if !workOrders.HasColumn(models.ColWOReceivable) {
		return ReceivableRisk{Availability: NotComputable}
	}

	values, _ := cleanSeries(receivableColumn(workOrders))

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	threshold := quantile(sorted, highOutstandingRank)

	var total float64
	negative, high := 0, 0
	for _, v := range values {
		total += v
		if v < 0 {
			negative++
		}
		if v >= threshold {
			high++
		}
	}

	return ReceivableRisk{
		Availability:        Computed,
		NegativeRows:        intPtr(negative),
		HighOutstandingRows: intPtr(high),
		Threshold:           floatPtr(threshold),
		TotalOutstanding:    floatPtr(total),
	}
}

// CrossBoardOverlapCount counts distinct trimmed deal names present on both boards.
func CrossBoardOverlapCount(deals *models.DealTable, workOrders *models.WorkOrderTable) CrossBoardOverlap {
	dealNames := make(map[string]struct{})
	if deals != nil {
		for _, d := range deals.Rows {
			if name := strings.TrimSpace(d.Name); name != "" {
				dealNames[name] = struct{}{}
			}
		}
	}

	matched := make(map[string]struct{})
	if workOrders != nil {
		for _, w := range workOrders.Rows {
			name := strings.TrimSpace(w.DealName)
			if name == "" {
				continue
			}
			if _, ok := dealNames[name]; ok {
				matched[name] = struct{}{}
			}
		}
	}

	return CrossBoardOverlap{OverlapCount: len(matched)}
}

func receivableColumn(workOrders *models.WorkOrderTable) []string {
	raw := make([]string, len(workOrders.Rows))
	for i, w := range workOrders.Rows {
		raw[i] = w.AmountReceivable
	}
	return raw
}
