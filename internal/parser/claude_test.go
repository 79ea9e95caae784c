package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokgraph/tokgraph/internal/model"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseClaudeFile(t *testing.T) {
	content := `{"type":"assistant","sessionId":"sess-1","timestamp":"2026-01-15T10:00:00Z","requestId":"req-1","message":{"id":"msg-1","model":"claude-sonnet-4-5","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":10,"cache_read_input_tokens":200}}}
{"type":"user","sessionId":"sess-1","timestamp":"2026-01-15T10:00:01Z"}
not json at all
{"type":"assistant","sessionId":"sess-1","timestamp":"2026-01-15T23:59:59Z","requestId":"req-2","message":{"id":"msg-2","model":"claude-sonnet-4-5","usage":{"input_tokens":5,"output_tokens":5}}}
`
	path := writeTempFile(t, "session.jsonl", content)

	msgs := ParseClaudeFile(path)
	require.Len(t, msgs, 2)

	first := msgs[0]
	assert.Equal(t, model.SourceClaude, first.Source)
	assert.Equal(t, "claude-sonnet-4-5", first.ModelID)
	assert.Equal(t, "anthropic", first.ProviderID)
	assert.Equal(t, "sess-1", first.SessionID)
	assert.Equal(t, "2026-01-15", first.Date)
	assert.Equal(t, model.TokenBreakdown{Input: 100, Output: 50, CacheRead: 200, CacheWrite: 10}, first.Tokens)
}

func TestParseClaudeFileDeduplicates(t *testing.T) {
	line := `{"type":"assistant","sessionId":"s","timestamp":"2026-01-15T10:00:00Z","requestId":"req-1","message":{"id":"msg-1","model":"claude-opus-4","usage":{"input_tokens":10,"output_tokens":1}}}`
	path := writeTempFile(t, "dup.jsonl", line+"\n"+line+"\n")

	msgs := ParseClaudeFile(path)
	assert.Len(t, msgs, 1)
}

func TestParseClaudeFileSkipsZeroUsage(t *testing.T) {
	content := `{"type":"assistant","sessionId":"s","timestamp":"2026-01-15T10:00:00Z","requestId":"r","message":{"id":"m","model":"claude-opus-4","usage":{}}}
`
	path := writeTempFile(t, "zero.jsonl", content)

	assert.Empty(t, ParseClaudeFile(path))
}

func TestParseClaudeFileSessionFallback(t *testing.T) {
	content := `{"type":"assistant","timestamp":"2026-01-15T10:00:00Z","requestId":"r","message":{"id":"m","model":"claude-opus-4","usage":{"input_tokens":1,"output_tokens":1}}}
`
	path := writeTempFile(t, "abc-123.jsonl", content)

	msgs := ParseClaudeFile(path)
	require.Len(t, msgs, 1)
	assert.Equal(t, "abc-123", msgs[0].SessionID)
}

func TestParseClaudeFileMissing(t *testing.T) {
	assert.Nil(t, ParseClaudeFile(filepath.Join(t.TempDir(), "nope.jsonl")))
}
