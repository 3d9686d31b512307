package ir

// MatchType names the strategy that produced a MatchResult.
type MatchType string

const (
	MatchNone     MatchType = ""
	MatchExact    MatchType = "exact"
	MatchFuzzy    MatchType = "fuzzy"
	MatchPartial  MatchType = "partial"
	MatchSemantic MatchType = "semantic"
)

// MatchResult is the output of one Match call. Immutable once returned.
// A failed match has an empty Intent and zero Confidence.
type MatchResult struct {
	Intent        string    `json:"intent,omitempty"`
	Confidence    float64   `json:"confidence"`
	MatchType     MatchType `json:"match_type,omitempty"`
	Category      string    `json:"category,omitempty"`
	Params        Object    `json:"params"`
	Pattern       string    `json:"pattern,omitempty"`
	Original      string    `json:"original"`
	Preprocessed  string    `json:"preprocessed"`
	RegistryHash  string    `json:"registry_hash,omitempty"`
	ActiveContext string    `json:"active_context,omitempty"`
}

// Matched reports whether the result carries an intent.
func (r MatchResult) Matched() bool {
	return r.Intent != "" && r.Confidence > 0
}

// EntityKind is the semantic type of a recognized sub-span.
type EntityKind string

const (
	EntityNumber   EntityKind = "number"
	EntityTime     EntityKind = "time"
	EntityDate     EntityKind = "date"
	EntityCurrency EntityKind = "currency"
	EntityQuantity EntityKind = "quantity"
	EntityTable    EntityKind = "table"
	EntityPersons  EntityKind = "persons"
)

// EntityMatch is one recognized sub-span of a transcript.
// Start and End are byte offsets into the preprocessed text, half-open,
// so text[Start:End] == Raw.
type EntityMatch struct {
	Kind  EntityKind `json:"kind"`
	Raw   string     `json:"raw"`
	Value Value      `json:"value"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}
