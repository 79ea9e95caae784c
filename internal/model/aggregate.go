package model

// LegacyDeviceID is the synthetic device that captures totals persisted
// before device-level tracking existed, so old data survives merges as a
// distinct contributor.
const LegacyDeviceID = "__legacy__"

// ModelBreakdown holds aggregate counters for one model within one source
// within one day. Tokens always equals Input+Output+CacheRead+CacheWrite+Reasoning.
type ModelBreakdown struct {
	Tokens     int64   `json:"tokens"`
	Cost       float64 `json:"cost"`
	Input      int64   `json:"input"`
	Output     int64   `json:"output"`
	CacheRead  int64   `json:"cacheRead"`
	CacheWrite int64   `json:"cacheWrite"`
	Reasoning  int64   `json:"reasoning"`
	Messages   int64   `json:"messages"`
}

// Add accumulates another breakdown into m.
func (m *ModelBreakdown) Add(o ModelBreakdown) {
	m.Tokens += o.Tokens
	m.Cost += o.Cost
	m.Input += o.Input
	m.Output += o.Output
	m.CacheRead += o.CacheRead
	m.CacheWrite += o.CacheWrite
	m.Reasoning += o.Reasoning
	m.Messages += o.Messages
}

// AddMessage folds one usage event into m.
func (m *ModelBreakdown) AddMessage(msg UnifiedMessage) {
	m.Tokens += msg.Tokens.Total()
	m.Cost += msg.Cost
	m.Input += msg.Tokens.Input
	m.Output += msg.Tokens.Output
	m.CacheRead += msg.Tokens.CacheRead
	m.CacheWrite += msg.Tokens.CacheWrite
	m.Reasoning += msg.Tokens.Reasoning
	m.Messages++
}

// Balanced reports whether the Tokens counter matches the per-kind fields.
func (m ModelBreakdown) Balanced() bool {
	return m.Tokens == m.Input+m.Output+m.CacheRead+m.CacheWrite+m.Reasoning
}

// DeviceSourceData is one device's contribution to one source on one day.
// It is owned by the submitting device and replaced wholesale on
// resubmission, never added to incrementally.
type DeviceSourceData struct {
	ModelBreakdown
	Models map[string]ModelBreakdown `json:"models"`
}

// Clone returns a deep copy.
func (d DeviceSourceData) Clone() DeviceSourceData {
	out := DeviceSourceData{ModelBreakdown: d.ModelBreakdown}
	if d.Models != nil {
		out.Models = make(map[string]ModelBreakdown, len(d.Models))
		for k, v := range d.Models {
			out.Models[k] = v
		}
	}
	return out
}

// SourceBreakdown is the per-source, per-day aggregate across all devices.
// Devices is the authoritative state; the embedded counters and Models map
// are derived and regenerated after every device-map mutation.
type SourceBreakdown struct {
	ModelBreakdown
	Models  map[string]ModelBreakdown   `json:"models"`
	Devices map[string]DeviceSourceData `json:"devices,omitempty"`
}

// Clone returns a deep copy.
func (s *SourceBreakdown) Clone() *SourceBreakdown {
	out := &SourceBreakdown{ModelBreakdown: s.ModelBreakdown}
	if s.Models != nil {
		out.Models = make(map[string]ModelBreakdown, len(s.Models))
		for k, v := range s.Models {
			out.Models[k] = v
		}
	}
	if s.Devices != nil {
		out.Devices = make(map[string]DeviceSourceData, len(s.Devices))
		for k, v := range s.Devices {
			out.Devices[k] = v.Clone()
		}
	}
	return out
}

// DayTotals is a whole-day rollup across all sources, always derived by
// summing the day's SourceBreakdown entries.
type DayTotals struct {
	Tokens           int64   `json:"tokens"`
	Cost             float64 `json:"cost"`
	InputTokens      int64   `json:"inputTokens"`
	OutputTokens     int64   `json:"outputTokens"`
	CacheReadTokens  int64   `json:"cacheReadTokens"`
	CacheWriteTokens int64   `json:"cacheWriteTokens"`
	ReasoningTokens  int64   `json:"reasoningTokens"`
}

// SourceContribution is one source/model slice of a day, as exposed in the
// export document.
type SourceContribution struct {
	Source     string         `json:"source"`
	ModelID    string         `json:"modelId"`
	ProviderID string         `json:"providerId,omitempty"`
	Tokens     TokenBreakdown `json:"tokens"`
	Cost       float64        `json:"cost"`
	Messages   int64          `json:"messages"`
}

// DailyContribution is the externally visible unit for one day.
type DailyContribution struct {
	Date           string               `json:"date"`
	Totals         DayTotals            `json:"totals"`
	Intensity      int                  `json:"intensity"`
	TokenBreakdown TokenBreakdown       `json:"tokenBreakdown"`
	Sources        []SourceContribution `json:"sources"`
}

// Submission is the payload a device sends to a reconciliation target:
// per-day source breakdowns plus the stable device identifier.
type Submission struct {
	DeviceID string                                 `json:"deviceId"`
	Days     map[string]map[string]DeviceSourceData `json:"days"`
}
