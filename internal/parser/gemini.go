package parser

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tokgraph/tokgraph/internal/model"
)

// geminiSession is the structured chat session format written under
// ~/.gemini/tmp/*/chats/session-*.json.
type geminiSession struct {
	SessionID string `json:"sessionId"`
	Messages  []struct {
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Model     string `json:"model"`
		Tokens    *struct {
			Input    int64 `json:"input"`
			Output   int64 `json:"output"`
			Cached   int64 `json:"cached"`
			Thoughts int64 `json:"thoughts"`
		} `json:"tokens"`
	} `json:"messages"`
}

// ParseGeminiFile parses a Gemini CLI session file. Structured chat
// sessions are tried first; headless runs (single JSON documents or JSONL
// event streams carrying a stats object) are handled as a fallback since
// their field names drift between CLI releases.
func ParseGeminiFile(path string) []model.UnifiedMessage {
	fallbackTS := fileModTime(path)

	if strings.HasSuffix(path, ".jsonl") {
		return parseGeminiHeadlessJSONL(path, fallbackTS)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var session geminiSession
	if err := json.Unmarshal(data, &session); err == nil && len(session.Messages) > 0 {
		if msgs := parseGeminiSession(session, fallbackTS); len(msgs) > 0 {
			return msgs
		}
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parseGeminiHeadlessValue(gjson.ParseBytes(data), sessionID, fallbackTS)
}

func parseGeminiSession(session geminiSession, fallbackTS time.Time) []model.UnifiedMessage {
	var messages []model.UnifiedMessage
	for _, msg := range session.Messages {
		if msg.Type != "gemini" || msg.Tokens == nil || msg.Model == "" {
			continue
		}

		ts := fallbackTS
		if parsed, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			ts = parsed
		}

		messages = append(messages, model.NewMessage(
			model.SourceGemini, msg.Model, "google", session.SessionID, ts,
			model.TokenBreakdown{
				Input:     msg.Tokens.Input,
				Output:    msg.Tokens.Output,
				CacheRead: msg.Tokens.Cached,
				Reasoning: msg.Tokens.Thoughts,
			}, 0))
	}
	return messages
}

func parseGeminiHeadlessJSONL(path string, fallbackTS time.Time) []model.UnifiedMessage {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var currentModel string
	var messages []model.UnifiedMessage

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}
		value := gjson.Parse(line)

		if value.Get("type").String() == "init" {
			if m := value.Get("model").String(); m != "" {
				currentModel = m
			}
			if id := firstString(value, "session_id", "sessionId"); id != "" {
				sessionID = id
			}
			continue
		}

		stats := value.Get("stats")
		if !stats.Exists() {
			stats = value.Get("result.stats")
		}
		if stats.Exists() {
			ts := headlessTimestamp(value, fallbackTS)
			messages = append(messages, messagesFromStats(stats, currentModel, sessionID, ts)...)
		}
	}

	return messages
}

func parseGeminiHeadlessValue(value gjson.Result, sessionID string, fallbackTS time.Time) []model.UnifiedMessage {
	stats := value.Get("stats")
	if !stats.Exists() {
		stats = value.Get("result.stats")
	}
	if !stats.Exists() {
		return nil
	}
	return messagesFromStats(stats, value.Get("model").String(), sessionID, headlessTimestamp(value, fallbackTS))
}

// messagesFromStats extracts per-model token usage from a headless stats
// object, trying the per-model map first and flat counters second.
func messagesFromStats(stats gjson.Result, modelHint, sessionID string, ts time.Time) []model.UnifiedMessage {
	var messages []model.UnifiedMessage

	if models := stats.Get("models"); models.IsObject() {
		models.ForEach(func(key, data gjson.Result) bool {
			tokens := data.Get("tokens")
			if !tokens.Exists() {
				return true
			}
			breakdown := model.TokenBreakdown{
				Input:     firstInt(tokens, "prompt", "input", "input_tokens"),
				Output:    firstInt(tokens, "candidates", "output", "output_tokens"),
				CacheRead: firstInt(tokens, "cached", "cached_tokens"),
				Reasoning: firstInt(tokens, "thoughts", "reasoning"),
			}
			if breakdown.IsZero() {
				return true
			}
			messages = append(messages, model.NewMessage(
				model.SourceGemini, key.String(), "google", sessionID, ts, breakdown, 0))
			return true
		})
		if len(messages) > 0 {
			return messages
		}
	}

	breakdown := model.TokenBreakdown{
		Input:     firstInt(stats, "input_tokens", "prompt_tokens"),
		Output:    firstInt(stats, "output_tokens", "candidates_tokens"),
		CacheRead: firstInt(stats, "cached_tokens"),
		Reasoning: firstInt(stats, "thoughts_tokens", "reasoning_tokens"),
	}
	if breakdown.IsZero() {
		return nil
	}

	if modelHint == "" {
		modelHint = "unknown"
	}
	return []model.UnifiedMessage{model.NewMessage(
		model.SourceGemini, modelHint, "google", sessionID, ts, breakdown, 0)}
}

func headlessTimestamp(value gjson.Result, fallback time.Time) time.Time {
	for _, key := range []string{"timestamp", "created_at"} {
		if ts, ok := parseTimestampValue(value.Get(key)); ok {
			return ts
		}
	}
	return fallback
}

func firstString(value gjson.Result, keys ...string) string {
	for _, key := range keys {
		if s := value.Get(key).String(); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(value gjson.Result, keys ...string) int64 {
	for _, key := range keys {
		if v := value.Get(key); v.Exists() {
			return v.Int()
		}
	}
	return 0
}
