package pricing

import (
	"math"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/tokgraph/tokgraph/internal/model"
)

func TestCost(t *testing.T) {
	price := ModelPrice{Input: 1e-6, Output: 2e-6, CacheRead: 1e-7, CacheWrite: 1.25e-6}
	tokens := model.TokenBreakdown{Input: 1000, Output: 500, CacheRead: 10000, CacheWrite: 2000, Reasoning: 100}

	// reasoning bills at the output rate
	want := 1000*1e-6 + 600*2e-6 + 10000*1e-7 + 2000*1.25e-6
	assert.InDelta(t, want, Cost(price, tokens), 1e-12)
}

func TestCostIgnoresBrokenRates(t *testing.T) {
	price := ModelPrice{Input: math.NaN(), Output: -1, CacheRead: math.Inf(1)}
	tokens := model.TokenBreakdown{Input: 100, Output: 100, CacheRead: 100}

	assert.Equal(t, float64(0), Cost(price, tokens))
}

func testMessage(source, modelID string, tokens model.TokenBreakdown, cost float64) model.UnifiedMessage {
	ts, _ := time.Parse("2006-01-02", "2026-01-15")
	return model.NewMessage(source, modelID, "", "s", ts, tokens, cost)
}

func TestApplyCostsGeminiCacheFree(t *testing.T) {
	catalog := NewCatalog(map[string]ModelPrice{
		"google/gemini-2.5-pro": {Input: 1e-6, Output: 2e-6, CacheRead: 1e-7},
	})
	msgs := []model.UnifiedMessage{testMessage(model.SourceGemini, "gemini-2.5-pro",
		model.TokenBreakdown{Input: 1000, Output: 100, CacheRead: 50000, Reasoning: 200}, 0)}

	ApplyCosts(msgs, catalog)

	// cache reads cost nothing, reasoning billed as output
	assert.InDelta(t, 1000*1e-6+300*2e-6, msgs[0].Cost, 1e-12)
}

func TestApplyCostsCursorFallback(t *testing.T) {
	catalog := NewCatalog(map[string]ModelPrice{"gpt-5": {Input: 1e-6, Output: 2e-6}})
	msgs := []model.UnifiedMessage{
		testMessage(model.SourceCursor, "gpt-5", model.TokenBreakdown{Input: 1000}, 9.99),
		testMessage(model.SourceCursor, "composer-unknown", model.TokenBreakdown{Input: 1000}, 0.25),
	}

	ApplyCosts(msgs, catalog)

	// resolvable model: calculated cost replaces the CSV value
	assert.InDelta(t, 0.001, msgs[0].Cost, 1e-12)
	// unresolvable model: vendor-reported cost survives
	assert.Equal(t, 0.25, msgs[1].Cost)
}

func TestApplyCostsUnknownModelCostsZero(t *testing.T) {
	catalog := NewCatalog(nil)
	msgs := []model.UnifiedMessage{
		testMessage(model.SourceOpenCode, "mystery-model", model.TokenBreakdown{Input: 100}, 5.0),
	}

	ApplyCosts(msgs, catalog)
	assert.Equal(t, float64(0), msgs[0].Cost)
}

func TestApplyCostsWarnsOncePerUnknownModel(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	catalog := NewCatalog(nil)
	msgs := []model.UnifiedMessage{
		testMessage(model.SourceOpenCode, "mystery-model", model.TokenBreakdown{Input: 100}, 0),
		testMessage(model.SourceOpenCode, "mystery-model", model.TokenBreakdown{Input: 100}, 0),
		testMessage(model.SourceOpenCode, "other-mystery", model.TokenBreakdown{Input: 100}, 0),
	}

	ApplyCosts(msgs, catalog)

	seen := make(map[string]int)
	for _, entry := range hook.AllEntries() {
		if entry.Level == log.WarnLevel {
			if name, ok := entry.Data["model"].(string); ok {
				seen[name]++
			}
		}
	}
	assert.Equal(t, 1, seen["mystery-model"])
	assert.Equal(t, 1, seen["other-mystery"])
}
