package resolver

import (
	"fmt"
	"strings"

	"bi-agent/internal/models"
)

// CoercePayload maps an arbitrary decoded JSON object onto a well-formed ParsedQuery.
// It is total: unknown intents become overview, unknown sectors become absent, blank
// timeframes are dropped and a missing clarification question takes the default.
// Source is left for the caller to set.
func CoercePayload(payload map[string]interface{}) models.ParsedQuery {
	intent := models.IntentOverview
	if raw, ok := payload["intent"]; ok && raw != nil {
		intent = models.ParseIntent(fmt.Sprint(raw))
	}

	sector := models.SectorNone
	if raw, ok := payload["sector"]; ok && raw != nil {
		sector = models.ParseSector(fmt.Sprint(raw))
	}

	timeframe := ""
	if raw, ok := payload["timeframe"]; ok && raw != nil {
		timeframe = strings.TrimSpace(fmt.Sprint(raw))
	}

	question := ""
	if raw, ok := payload["clarification_question"]; ok && truthy(raw) {
		question = strings.TrimSpace(fmt.Sprint(raw))
	}
	if question == "" {
		question = models.DefaultClarification
	}

	return models.ParsedQuery{
		Intent:                intent,
		Sector:                sector,
		Timeframe:             timeframe,
		NeedsClarification:    truthy(payload["needs_clarification"]),
		ClarificationQuestion: question,
	}
}

// truthy follows JSON-ish truthiness: null, false, 0, "" and empty containers are false.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}
