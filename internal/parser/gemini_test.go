package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokgraph/tokgraph/internal/model"
)

func TestParseGeminiSessionFile(t *testing.T) {
	content := `{
		"sessionId": "gem-1",
		"messages": [
			{"type": "user", "timestamp": "2026-03-01T08:00:00Z"},
			{"type": "gemini", "timestamp": "2026-03-01T08:00:05Z", "model": "gemini-2.5-pro",
			 "tokens": {"input": 500, "output": 100, "cached": 200, "thoughts": 50}},
			{"type": "gemini", "timestamp": "2026-03-01T08:01:00Z", "model": ""}
		]
	}`
	path := writeTempFile(t, "session-1.json", content)

	msgs := ParseGeminiFile(path)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, model.SourceGemini, msg.Source)
	assert.Equal(t, "gemini-2.5-pro", msg.ModelID)
	assert.Equal(t, "google", msg.ProviderID)
	assert.Equal(t, "gem-1", msg.SessionID)
	assert.Equal(t, model.TokenBreakdown{Input: 500, Output: 100, CacheRead: 200, Reasoning: 50}, msg.Tokens)
}

func TestParseGeminiHeadlessStatsModels(t *testing.T) {
	content := `{
		"timestamp": "2026-03-02T12:00:00Z",
		"stats": {
			"models": {
				"gemini-2.5-flash": {"tokens": {"prompt": 30, "candidates": 10, "cached": 5, "thoughts": 2}},
				"gemini-2.5-pro": {"tokens": {"input_tokens": 0, "output_tokens": 0}}
			}
		}
	}`
	path := writeTempFile(t, "session-headless.json", content)

	msgs := ParseGeminiFile(path)
	require.Len(t, msgs, 1)
	assert.Equal(t, "gemini-2.5-flash", msgs[0].ModelID)
	assert.Equal(t, model.TokenBreakdown{Input: 30, Output: 10, CacheRead: 5, Reasoning: 2}, msgs[0].Tokens)
	assert.Equal(t, "2026-03-02", msgs[0].Date)
}

func TestParseGeminiHeadlessFlatStats(t *testing.T) {
	content := `{"model":"gemini-2.5-pro","timestamp":"2026-03-03T12:00:00Z","stats":{"input_tokens":12,"output_tokens":4}}`
	path := writeTempFile(t, "session-flat.json", content)

	msgs := ParseGeminiFile(path)
	require.Len(t, msgs, 1)
	assert.Equal(t, "gemini-2.5-pro", msgs[0].ModelID)
	assert.Equal(t, model.TokenBreakdown{Input: 12, Output: 4}, msgs[0].Tokens)
}

func TestParseGeminiHeadlessJSONL(t *testing.T) {
	content := `{"type":"init","model":"gemini-2.5-pro","session_id":"run-7"}
{"timestamp":"2026-03-04T09:00:00Z","result":{"stats":{"input_tokens":40,"output_tokens":8}}}
`
	path := writeTempFile(t, "session-run.jsonl", content)

	msgs := ParseGeminiFile(path)
	require.Len(t, msgs, 1)
	assert.Equal(t, "gemini-2.5-pro", msgs[0].ModelID)
	assert.Equal(t, "run-7", msgs[0].SessionID)
	assert.Equal(t, model.TokenBreakdown{Input: 40, Output: 8}, msgs[0].Tokens)
}

func TestParseGeminiFileWithoutStats(t *testing.T) {
	path := writeTempFile(t, "session-empty.json", `{"foo": "bar"}`)
	assert.Empty(t, ParseGeminiFile(path))
}
