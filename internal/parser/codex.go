package parser

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tokgraph/tokgraph/internal/model"
)

// codexEntry is the raw JSON structure of one line in a Codex CLI session
// JSONL file. Token counts arrive either as per-event values or as running
// session totals, so parsing is stateful per file.
type codexEntry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   struct {
		Type      string     `json:"type"`
		Model     string     `json:"model"`
		ModelName string     `json:"model_name"`
		Info      *codexInfo `json:"info"`
	} `json:"payload"`
}

type codexInfo struct {
	Model           string           `json:"model"`
	ModelName       string           `json:"model_name"`
	LastTokenUsage  *codexTokenUsage `json:"last_token_usage"`
	TotalTokenUsage *codexTokenUsage `json:"total_token_usage"`
}

type codexTokenUsage struct {
	InputTokens          int64 `json:"input_tokens"`
	OutputTokens         int64 `json:"output_tokens"`
	CachedInputTokens    int64 `json:"cached_input_tokens"`
	CacheReadInputTokens int64 `json:"cache_read_input_tokens"`
}

func (u *codexTokenUsage) cached() int64 {
	if u.CachedInputTokens != 0 {
		return u.CachedInputTokens
	}
	return u.CacheReadInputTokens
}

// ParseCodexFile parses a Codex session JSONL file. When an event reports
// only cumulative totals, the emitted tokens are the positive delta against
// the previous totals; negative deltas from session resets clamp to zero and
// all-zero deltas are suppressed.
func ParseCodexFile(path string) []model.UnifiedMessage {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var messages []model.UnifiedMessage
	var currentModel string
	var prevTotals *codexTokenUsage

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw codexEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		if raw.Type == "turn_context" {
			if m := codexModel(&raw); m != "" {
				currentModel = m
			}
			continue
		}
		if raw.Type != "event_msg" || raw.Payload.Type != "token_count" {
			continue
		}
		if m := codexModel(&raw); m != "" {
			currentModel = m
		}

		info := raw.Payload.Info
		if info == nil {
			continue
		}

		var tokens model.TokenBreakdown
		switch {
		case info.LastTokenUsage != nil:
			// input_tokens includes cached tokens as a subset; separate
			// them to avoid double-counting.
			last := info.LastTokenUsage
			cached := last.cached()
			tokens = model.TokenBreakdown{
				Input:     max64(last.InputTokens-cached, 0),
				Output:    last.OutputTokens,
				CacheRead: cached,
			}
		case info.TotalTokenUsage != nil && prevTotals != nil:
			cur, prev := info.TotalTokenUsage, prevTotals
			deltaInput := max64(cur.InputTokens-prev.InputTokens, 0)
			deltaCached := max64(cur.cached()-prev.cached(), 0)
			tokens = model.TokenBreakdown{
				Input:     max64(deltaInput-deltaCached, 0),
				Output:    max64(cur.OutputTokens-prev.OutputTokens, 0),
				CacheRead: deltaCached,
			}
		default:
			if info.TotalTokenUsage != nil {
				prevTotals = info.TotalTokenUsage
			}
			continue
		}

		if info.TotalTokenUsage != nil {
			prevTotals = info.TotalTokenUsage
		}

		if tokens.IsZero() {
			continue
		}

		ts, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}

		modelID := currentModel
		if modelID == "" {
			modelID = "unknown"
		}

		messages = append(messages, model.NewMessage(
			model.SourceCodex, modelID, "openai", sessionID, ts, tokens, 0))
	}

	return messages
}

func codexModel(e *codexEntry) string {
	if e.Payload.Model != "" {
		return e.Payload.Model
	}
	if e.Payload.ModelName != "" {
		return e.Payload.ModelName
	}
	if e.Payload.Info != nil {
		if e.Payload.Info.Model != "" {
			return e.Payload.Info.Model
		}
		if e.Payload.Info.ModelName != "" {
			return e.Payload.Info.ModelName
		}
	}
	return ""
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
