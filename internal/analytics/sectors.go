package analytics

import (
	"sort"

	"bi-agent/internal/models"
)

// SectorBreakdown joins deal and work order counts per sector label. Win rate is won
// deals over deals in the sector, zero when the sector has no deals. Sectors are
// ranked by deal count, descending, and the top ten returned.
func SectorBreakdown(deals *models.DealTable, workOrders *models.WorkOrderTable) SectorPerformance {
	bySector := make(map[string]*SectorMetric)
	get := func(label string) *SectorMetric {
		m, ok := bySector[label]
		if !ok {
			m = &SectorMetric{Sector: label}
			bySector[label] = m
		}
		return m
	}

	if deals != nil {
		for _, d := range deals.Rows {
			m := get(labelOrMissing(d.Sector))
			m.DealCount++
			if d.Status == models.DealStatusWon {
				m.WonCount++
			}
		}
	}
	if workOrders != nil {
		for _, w := range workOrders.Rows {
			get(labelOrMissing(w.Sector)).WorkOrderCount++
		}
	}

	metrics := make([]SectorMetric, 0, len(bySector))
	for _, m := range bySector {
		if m.DealCount > 0 {
			m.WinRate = float64(m.WonCount) / float64(m.DealCount)
		}
		metrics = append(metrics, *m)
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].DealCount != metrics[j].DealCount {
			return metrics[i].DealCount > metrics[j].DealCount
		}
		return metrics[i].Sector < metrics[j].Sector
	})
	if len(metrics) > sectorMetricsLimit {
		metrics = metrics[:sectorMetricsLimit]
	}

	return SectorPerformance{SectorMetrics: metrics}
}
