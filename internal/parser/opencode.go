package parser

import (
	"encoding/json"
	"os"
	"time"

	"github.com/tokgraph/tokgraph/internal/model"
)

// openCodeMessage is the raw structure of one per-message JSON file under
// the OpenCode storage directory.
type openCodeMessage struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"sessionID"`
	Role       string  `json:"role"`
	ModelID    string  `json:"modelID"`
	ProviderID string  `json:"providerID"`
	Cost       float64 `json:"cost"`
	Agent      string  `json:"agent"`
	Mode       string  `json:"mode"`
	Tokens     *struct {
		Input     int64 `json:"input"`
		Output    int64 `json:"output"`
		Reasoning int64 `json:"reasoning"`
		Cache     struct {
			Read  int64 `json:"read"`
			Write int64 `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
	Time struct {
		Created float64 `json:"created"` // Unix milliseconds
	} `json:"time"`
}

// ParseOpenCodeFile parses one OpenCode message file into at most one
// usage event. Non-assistant messages and messages without usage yield nil.
func ParseOpenCodeFile(path string) *model.UnifiedMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var raw openCodeMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	if raw.Role != "assistant" || raw.Tokens == nil || raw.ModelID == "" {
		return nil
	}

	provider := raw.ProviderID
	if provider == "" {
		provider = "unknown"
	}

	ts := time.UnixMilli(int64(raw.Time.Created)).UTC()
	msg := model.NewMessage(
		model.SourceOpenCode, raw.ModelID, provider, raw.SessionID, ts,
		model.TokenBreakdown{
			Input:      raw.Tokens.Input,
			Output:     raw.Tokens.Output,
			CacheRead:  raw.Tokens.Cache.Read,
			CacheWrite: raw.Tokens.Cache.Write,
			Reasoning:  raw.Tokens.Reasoning,
		},
		raw.Cost,
	)

	// Agent label: mode takes precedence over the explicit agent field.
	if raw.Mode != "" {
		msg.Agent = raw.Mode
	} else {
		msg.Agent = raw.Agent
	}

	return &msg
}
