package orchestrator

import (
	"fmt"

	"bi-agent/internal/analytics"
	"bi-agent/internal/models"
)

const plainCaveat = " Note: results may be affected by missing or inconsistent source data."

const notAvailable = "n/a"

func scopeText(sector models.Sector) string {
	if sector.IsSet() {
		return "for " + sector.Title()
	}
	return "across all sectors"
}

func pipelineNarrative(sector models.Sector, pipe analytics.PipelineSummary) string {
	return fmt.Sprintf("Pipeline %s has %d deals: %d won, %d open, and %d dead.",
		scopeText(sector), pipe.Rows,
		pipe.StatusCount(string(models.DealStatusWon)),
		pipe.StatusCount(string(models.DealStatusOpen)),
		pipe.StatusCount(string(models.DealStatusDead)),
	)
}

func sectorNarrative(sector models.Sector, perf analytics.SectorPerformance) string {
	top := perf.TopSector()
	if top == "" {
		top = "N/A"
	}
	return fmt.Sprintf("Sector performance %s is computed from deals and work orders. Top sector by deal volume: %s.",
		scopeText(sector), top)
}

func conversionNarrative(sector models.Sector, conv analytics.ConversionMetrics) string {
	return fmt.Sprintf("Conversion %s: win rate %.1f%%, dead rate %.1f%%, open rate %.1f%%.",
		scopeText(sector), conv.WonRate*100, conv.DeadRate*100, conv.OpenRate*100)
}

func receivablesNarrative(sector models.Sector, risk analytics.ReceivableRisk) string {
	return fmt.Sprintf("Receivable risk %s shows %s negative receivable rows and %s high-outstanding rows.",
		scopeText(sector), formatCount(risk.NegativeRows), formatCount(risk.HighOutstandingRows))
}

func overviewNarrative(sector models.Sector, pipe analytics.PipelineSummary, recv analytics.ReceivableSummary, overlap analytics.CrossBoardOverlap) string {
	total := notAvailable
	if recv.TotalReceivable != nil {
		total = fmt.Sprintf("%.2f", *recv.TotalReceivable)
	}
	return fmt.Sprintf("Overview %s: %d deals, total receivables %s, and %d cross-board linked deals.",
		scopeText(sector), pipe.Rows, total, overlap.OverlapCount)
}

func summaryLine(sector models.Sector, deals, workOrders int) string {
	s := fmt.Sprintf("Analyzed %d deals and %d work orders", deals, workOrders)
	if sector.IsSet() {
		s += " for " + sector.Title()
	}
	return s
}

func formatCount(v *int) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%d", *v)
}
