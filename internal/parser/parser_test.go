package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokgraph/tokgraph/internal/model"
)

func TestFilter(t *testing.T) {
	mk := func(date string) model.UnifiedMessage {
		ts, _ := time.Parse("2006-01-02", date)
		return model.NewMessage(model.SourceClaude, "m", "anthropic", "s", ts, model.TokenBreakdown{Input: 1}, 0)
	}
	msgs := []model.UnifiedMessage{mk("2025-12-30"), mk("2026-01-01"), mk("2026-02-15"), mk("2026-03-01")}

	assert.Len(t, Filter(msgs, "", "", ""), 4)
	assert.Len(t, Filter(msgs, "2026-01-01", "", ""), 3)
	assert.Len(t, Filter(msgs, "", "2026-01-01", ""), 2)
	assert.Len(t, Filter(msgs, "2026-01-01", "2026-02-28", ""), 2)
	assert.Len(t, Filter(msgs, "", "", "2026"), 3)
	assert.Len(t, Filter(msgs, "2026-02-01", "", "2026"), 2)
}

func TestParseAll(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	t.Setenv("CODEX_HOME", filepath.Join(home, ".codex"))

	claudeDir := filepath.Join(home, ".claude", "projects", "proj")
	require.NoError(t, os.MkdirAll(claudeDir, 0o755))
	claudeLine := `{"type":"assistant","sessionId":"s","timestamp":"2026-01-15T10:00:00Z","requestId":"r","message":{"id":"m","model":"claude-opus-4","usage":{"input_tokens":10,"output_tokens":2}}}`
	require.NoError(t, os.WriteFile(filepath.Join(claudeDir, "sess.jsonl"), []byte(claudeLine+"\n"), 0o644))

	ocDir := filepath.Join(home, ".local", "share", "opencode", "storage", "message", "sess")
	require.NoError(t, os.MkdirAll(ocDir, 0o755))
	ocMsg := `{"id":"m","sessionID":"s","role":"assistant","modelID":"gpt-5","providerID":"openai","tokens":{"input":3,"output":1},"time":{"created":1767175200000}}`
	require.NoError(t, os.WriteFile(filepath.Join(ocDir, "msg.json"), []byte(ocMsg), 0o644))

	msgs, err := ParseAll(context.Background(), Options{Roots: Roots{HomeDir: home}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	bySource := make(map[string]int)
	for _, m := range msgs {
		bySource[m.Source]++
	}
	assert.Equal(t, map[string]int{model.SourceClaude: 1, model.SourceOpenCode: 1}, bySource)
}

func TestParseAllSourceSubset(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	claudeDir := filepath.Join(home, ".claude", "projects")
	require.NoError(t, os.MkdirAll(claudeDir, 0o755))
	claudeLine := `{"type":"assistant","sessionId":"s","timestamp":"2026-01-15T10:00:00Z","requestId":"r","message":{"id":"m","model":"claude-opus-4","usage":{"input_tokens":10,"output_tokens":2}}}`
	require.NoError(t, os.WriteFile(filepath.Join(claudeDir, "sess.jsonl"), []byte(claudeLine+"\n"), 0o644))

	msgs, err := ParseAll(context.Background(), Options{
		Roots:   Roots{HomeDir: home},
		Sources: []string{model.SourceCodex},
	})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFindFilesMissingRoot(t *testing.T) {
	roots := Roots{HomeDir: t.TempDir()}
	assert.Empty(t, roots.FindFiles(model.SourceClaude))
	assert.Empty(t, roots.FindFiles("nonsense"))
}
