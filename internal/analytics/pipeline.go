package analytics

import (
	"sort"

	"bi-agent/internal/models"
)

// PipelineSummarize counts deals, buckets them by status and returns the eight most
// frequent stages. Missing statuses and stages land in the MissingLabel bucket.
func PipelineSummarize(deals *models.DealTable) PipelineSummary {
	statuses := make([]string, 0, deals.Len())
	stages := make([]string, 0, deals.Len())
	if deals != nil {
		for _, d := range deals.Rows {
			statuses = append(statuses, labelOrMissing(string(d.Status)))
			stages = append(stages, labelOrMissing(d.Stage))
		}
	}

	byStatus := make(map[string]int)
	for _, b := range histogram(statuses) {
		byStatus[b.Label] = b.Count
	}

	top := histogram(stages)
	if len(top) > topStagesLimit {
		top = top[:topStagesLimit]
	}

	return PipelineSummary{
		Rows:      deals.Len(),
		ByStatus:  byStatus,
		TopStages: top,
	}
}

// PipelineByStageStatus cross-tabulates stage against status, counting named deals
// with both values present. Stages are ranked by the count under the first status seen
// in the table, descending; ties keep stage-name order. At most ten stages are kept.
func PipelineByStageStatus(deals *models.DealTable) PipelineBreakdown {
	counts := make(map[string]map[string]int)
	statusSet := make(map[string]bool)
	sortStatus := ""

	if deals != nil {
		for _, d := range deals.Rows {
			if d.Status != models.DealStatusMissing && sortStatus == "" {
				sortStatus = string(d.Status)
			}
			if d.Name == "" || d.Stage == "" || d.Status == models.DealStatusMissing {
				continue
			}
			status := string(d.Status)
			statusSet[status] = true
			if counts[d.Stage] == nil {
				counts[d.Stage] = make(map[string]int)
			}
			counts[d.Stage][status]++
		}
	}

	statuses := make([]string, 0, len(statusSet))
	for s := range statusSet {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	stages := make([]string, 0, len(counts))
	for stage := range counts {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	if sortStatus != "" {
		sort.SliceStable(stages, func(i, j int) bool {
			return counts[stages[i]][sortStatus] > counts[stages[j]][sortStatus]
		})
	}
	if len(stages) > stageStatusLimit {
		stages = stages[:stageStatusLimit]
	}

	rows := make([]StageStatusRow, 0, len(stages))
	for _, stage := range stages {
		filled := make(map[string]int, len(statuses))
		for _, s := range statuses {
			filled[s] = counts[stage][s]
		}
		rows = append(rows, StageStatusRow{Stage: stage, Counts: filled})
	}

	return PipelineBreakdown{
		StageStatusTable: StageStatusTable{
			SortStatus: sortStatus,
			Statuses:   statuses,
			Rows:       rows,
		},
	}
}

// ConversionRates reports won/dead/open counts and their share of all deals. The
// rate denominator floors at one so an empty table yields zero rates.
func ConversionRates(deals *models.DealTable) ConversionMetrics {
	var won, dead, open int
	if deals != nil {
		for _, d := range deals.Rows {
			switch d.Status {
			case models.DealStatusWon:
				won++
			case models.DealStatusDead:
				dead++
			case models.DealStatusOpen:
				open++
			}
		}
	}

	total := deals.Len()
	denom := float64(total)
	if total < 1 {
		denom = 1
	}

	return ConversionMetrics{
		WonCount:   won,
		DeadCount:  dead,
		OpenCount:  open,
		WonRate:    float64(won) / denom,
		DeadRate:   float64(dead) / denom,
		OpenRate:   float64(open) / denom,
		TotalDeals: total,
	}
}

func labelOrMissing(v string) string {
	if v == "" {
		return MissingLabel
	}
	return v
}

// histogram counts labels, ordered by count descending then label ascending.
func histogram(labels []string) []LabelCount {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
