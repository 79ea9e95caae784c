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

// claudeEntry is the raw JSON structure of one line in a Claude Code
// session JSONL file.
type claudeEntry struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
	Message   struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// ParseClaudeFile parses a single Claude Code JSONL file. Malformed lines
// are skipped. Entries carrying both a message ID and a request ID are
// deduplicated on the messageId:requestId pair within the file.
func ParseClaudeFile(path string) []model.UnifiedMessage {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	fallbackSession := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var messages []model.UnifiedMessage
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw claudeEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		if raw.Type != "assistant" || raw.Message.Model == "" {
			continue
		}

		if raw.Message.ID != "" && raw.RequestID != "" {
			key := raw.Message.ID + ":" + raw.RequestID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		ts, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			continue
		}

		sessionID := raw.SessionID
		if sessionID == "" {
			sessionID = fallbackSession
		}

		usage := raw.Message.Usage
		tokens := model.TokenBreakdown{
			Input:      usage.InputTokens,
			Output:     usage.OutputTokens,
			CacheRead:  usage.CacheReadInputTokens,
			CacheWrite: usage.CacheCreationInputTokens,
		}
		if tokens.IsZero() {
			continue
		}

		messages = append(messages, model.NewMessage(
			model.SourceClaude, raw.Message.Model, "anthropic", sessionID, ts, tokens, 0))
	}

	return messages
}
