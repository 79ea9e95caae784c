package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokgraph/tokgraph/internal/model"
)

func TestParseCursorCSVNewLayout(t *testing.T) {
	csv := `Date,Kind,Model,Max Mode,Input (w/ Cache Write),Input (w/o Cache Write),Cache Read,Output Tokens,Total Tokens,Cost
2026-04-01T10:00:00.123Z,Included,claude-4-sonnet,No,1500,1000,800,300,2600,"$1,234.56"
2026-04-01T11:00:00Z,Included,gpt-5,No,200,250,0,100,550,NaN
`
	msgs, err := ParseCursorCSV(strings.NewReader(csv), "acct")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	first := msgs[0]
	assert.Equal(t, model.SourceCursor, first.Source)
	assert.Equal(t, "claude-4-sonnet", first.ModelID)
	assert.Equal(t, "anthropic", first.ProviderID)
	// cache write is the spread between the two input columns
	assert.Equal(t, model.TokenBreakdown{Input: 1000, Output: 300, CacheRead: 800, CacheWrite: 500}, first.Tokens)
	assert.Equal(t, 1234.56, first.Cost)
	assert.Equal(t, "2026-04-01", first.Date)

	second := msgs[1]
	assert.Equal(t, "openai", second.ProviderID)
	// negative cache-write spread clamps to zero
	assert.Equal(t, int64(0), second.Tokens.CacheWrite)
	assert.Equal(t, float64(0), second.Cost)
}

func TestParseCursorCSVOldLayout(t *testing.T) {
	csv := `Date,Model,Input (w/ Cache Write),Input (w/o Cache Write),Cache Read,Output Tokens,Total Tokens,Cost,Cost to you
2026-04-02,gemini-2.5-pro,100,80,10,50,240,$0.50,$0.00
`
	msgs, err := ParseCursorCSV(strings.NewReader(csv), "acct")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, "gemini-2.5-pro", msg.ModelID)
	assert.Equal(t, "google", msg.ProviderID)
	assert.Equal(t, model.TokenBreakdown{Input: 80, Output: 50, CacheRead: 10, CacheWrite: 20}, msg.Tokens)
	assert.Equal(t, 0.50, msg.Cost)
	assert.Equal(t, "2026-04-02", msg.Date)
}

func TestParseCursorCSVRejectsBadHeader(t *testing.T) {
	_, err := ParseCursorCSV(strings.NewReader("<!DOCTYPE html>\n"), "acct")
	assert.Error(t, err)
}

func TestParseCursorCSVSkipsMalformedRows(t *testing.T) {
	csv := `Date,Model,Input (w/ Cache Write),Input (w/o Cache Write),Cache Read,Output Tokens,Total Tokens,Cost,Cost to you
not-a-date,gpt-5,1,1,1,1,4,$0.01,$0.00
2026-04-03T09:00:00Z,,1,1,1,1,4,$0.01,$0.00
2026-04-03T09:00:00Z,gpt-5,10,10,0,5,25,$0.05,$0.00
`
	msgs, err := ParseCursorCSV(strings.NewReader(csv), "acct")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestCursorAccountID(t *testing.T) {
	assert.Equal(t, "active", cursorAccountID("usage.csv"))
	assert.Equal(t, "work", cursorAccountID("usage.work.csv"))
	assert.Equal(t, "a-b_c", cursorAccountID("usage.a-b_c.csv"))
	assert.Equal(t, "a-b", cursorAccountID("usage.a/b.csv"))
	assert.Equal(t, "unknown", cursorAccountID("other.csv"))
}

func TestIsCursorUsageFile(t *testing.T) {
	assert.True(t, isCursorUsageFile("usage.csv"))
	assert.True(t, isCursorUsageFile("usage.work.csv"))
	assert.False(t, isCursorUsageFile("usage.backup.csv"))
	assert.False(t, isCursorUsageFile("notes.csv"))
}

func TestInferProvider(t *testing.T) {
	assert.Equal(t, "anthropic", inferProvider("claude-4-opus"))
	assert.Equal(t, "anthropic", inferProvider("sonnet-4.5"))
	assert.Equal(t, "openai", inferProvider("GPT-5"))
	assert.Equal(t, "google", inferProvider("gemini-2.5-pro"))
	assert.Equal(t, "deepseek", inferProvider("deepseek-v3"))
	assert.Equal(t, "cursor", inferProvider("composer-1"))
}
