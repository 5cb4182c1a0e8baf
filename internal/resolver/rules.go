package resolver

import (
	"context"
	"strings"

	"bi-agent/internal/models"
)

// intentRule maps any of its keywords to an intent. Rules are checked in order.
type intentRule struct {
	intent   models.Intent
	keywords []string
}

var intentRules = []intentRule{
	{models.IntentReceivables, []string{"receivable", "collection", "outstanding", "accounts receivable"}},
	{models.IntentConversion, []string{"conversion", "won rate", "win rate", "dead rate"}},
	{models.IntentSectorPerformance, []string{"sector", "industry", "segment"}},
	{models.IntentPipeline, []string{"stage", "pipeline"}},
}

var businessKeywords = []string{"pipeline", "revenue", "sector", "performance", "receivable", "deals", "conversion"}

var timeframeHints = []string{
	"this quarter", "last quarter", "this month", "last month", "this year", "last year",
	"all-time", "q1", "q2", "q3", "q4",
}

// RuleStrategy is the deterministic keyword parser. It never fails.
type RuleStrategy struct{}

func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{}
}

func (*RuleStrategy) Source() models.ParserSource {
	return models.SourceRules
}

func (*RuleStrategy) Resolve(_ context.Context, question string) (models.ParsedQuery, error) {
	q := strings.ToLower(question)
	return models.ParsedQuery{
		Intent:                detectIntent(q),
		Sector:                detectSector(q),
		NeedsClarification:    needsTimeframe(q),
		ClarificationQuestion: models.DefaultClarification,
		Source:                models.SourceRules,
	}, nil
}

func detectIntent(q string) models.Intent {
	for _, rule := range intentRules {
		if containsAny(q, rule.keywords) {
			return rule.intent
		}
	}
	return models.IntentOverview
}

func detectSector(q string) models.Sector {
	for _, s := range models.Sectors {
		if strings.Contains(q, string(s)) {
			return s
		}
	}
	return models.SectorNone
}

// needsTimeframe is true for business questions that carry no timeframe hint.
func needsTimeframe(q string) bool {
	return containsAny(q, businessKeywords) && !containsAny(q, timeframeHints)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
