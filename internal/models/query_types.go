// internal/models/query_types.go
package models

import (
	"encoding/json"
	"strings"
)

// Intent is the closed set of business question categories.
type Intent string

const (
	IntentPipeline          Intent = "pipeline"
	IntentReceivables       Intent = "receivables"
	IntentConversion        Intent = "conversion"
	IntentSectorPerformance Intent = "sector_performance"
	IntentOverview          Intent = "overview"
)

var allowedIntents = map[Intent]bool{
	IntentPipeline:          true,
	IntentReceivables:       true,
	IntentConversion:        true,
	IntentSectorPerformance: true,
	IntentOverview:          true,
}

// ParseIntent coerces a raw label into a valid Intent. Unknown labels become overview.
func ParseIntent(raw string) Intent {
	intent := Intent(strings.TrimSpace(raw))
	if allowedIntents[intent] {
		return intent
	}
	return IntentOverview
}

// Sector is the closed set of business sectors. SectorNone means no sector filter.
type Sector string

const (
	SectorNone         Sector = ""
	SectorMining       Sector = "mining"
	SectorRenewables   Sector = "renewables"
	SectorRailways     Sector = "railways"
	SectorPowerline    Sector = "powerline"
	SectorConstruction Sector = "construction"
	SectorOthers       Sector = "others"
)

// Sectors lists every named sector in detection order.
var Sectors = []Sector{
	SectorMining,
	SectorRenewables,
	SectorRailways,
	SectorPowerline,
	SectorConstruction,
	SectorOthers,
}

// ParseSector lower-cases and trims raw; anything outside Sectors becomes SectorNone.
func ParseSector(raw string) Sector {
	candidate := Sector(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Sectors {
		if s == candidate {
			return s
		}
	}
	return SectorNone
}

// IsSet reports whether a sector filter applies.
func (s Sector) IsSet() bool {
	return s != SectorNone
}

// Title returns the display form, e.g. "Renewables".
func (s Sector) Title() string {
	if s == SectorNone {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// String renders the sector for trace details; absent renders as "none".
func (s Sector) String() string {
	if s == SectorNone {
		return "none"
	}
	return string(s)
}

// MarshalJSON encodes SectorNone as null.
func (s Sector) MarshalJSON() ([]byte, error) {
	if s == SectorNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null or any string and coerces it through ParseSector.
func (s *Sector) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SectorNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSector(raw)
	return nil
}

// ParserSource records which resolver strategy produced a ParsedQuery.
type ParserSource string

const (
	SourceLLM   ParserSource = "llm"
	SourceRules ParserSource = "rules"
)

// DefaultClarification is asked whenever a timeframe is needed but no better question exists.
const DefaultClarification = "Which timeframe should I use (this quarter, last quarter, this month, or all-time)?"

// ParsedQuery is the structured form of a free-text question. Every enum field is
// valid by construction once it leaves the resolver.
type ParsedQuery struct {
	Intent                Intent       `json:"intent"`
	Sector                Sector       `json:"sector"`
	Timeframe             string       `json:"timeframe,omitempty"`
	NeedsClarification    bool         `json:"needs_clarification"`
	ClarificationQuestion string       `json:"clarification_question"`
	Source                ParserSource `json:"source"`
}
