package model

import "time"

// Source identifiers for the supported vendors.
const (
	SourceClaude   = "claude"
	SourceCodex    = "codex"
	SourceGemini   = "gemini"
	SourceOpenCode = "opencode"
	SourceCursor   = "cursor"
)

// AllSources lists every supported source.
var AllSources = []string{SourceOpenCode, SourceClaude, SourceCodex, SourceGemini, SourceCursor}

// TokenBreakdown holds token counts by kind for one or more usage events.
// Breakdowns combine by field-wise addition.
type TokenBreakdown struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheRead  int64 `json:"cacheRead"`
	CacheWrite int64 `json:"cacheWrite"`
	Reasoning  int64 `json:"reasoning"`
}

// Total returns the sum across all token kinds.
func (t TokenBreakdown) Total() int64 {
	return t.Input + t.Output + t.CacheRead + t.CacheWrite + t.Reasoning
}

// Add accumulates another breakdown into t.
func (t *TokenBreakdown) Add(o TokenBreakdown) {
	t.Input += o.Input
	t.Output += o.Output
	t.CacheRead += o.CacheRead
	t.CacheWrite += o.CacheWrite
	t.Reasoning += o.Reasoning
}

// IsZero reports whether every field is zero.
func (t TokenBreakdown) IsZero() bool {
	return t == TokenBreakdown{}
}

// UnifiedMessage is one normalized usage event produced by a source parser.
// Values are immutable after creation and only ever folded into aggregates.
type UnifiedMessage struct {
	Source     string
	ModelID    string
	ProviderID string
	SessionID  string
	Timestamp  time.Time
	Date       string // calendar day in UTC, YYYY-MM-DD
	Tokens     TokenBreakdown
	Cost       float64
	Agent      string
}

// NewMessage builds a UnifiedMessage, deriving the date from the timestamp
// by UTC calendar-day truncation.
func NewMessage(source, modelID, providerID, sessionID string, ts time.Time, tokens TokenBreakdown, cost float64) UnifiedMessage {
	return UnifiedMessage{
		Source:     source,
		ModelID:    modelID,
		ProviderID: providerID,
		SessionID:  sessionID,
		Timestamp:  ts,
		Date:       ts.UTC().Format("2006-01-02"),
		Tokens:     tokens,
		Cost:       cost,
	}
}
