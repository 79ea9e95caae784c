package pricing

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/tokgraph/tokgraph/internal/model"
)

// Cost computes the USD cost of one usage event at the given rates.
// Reasoning tokens bill at the output rate. Broken catalog rates
// (negative, NaN, Inf) are treated as zero.
func Cost(price ModelPrice, tokens model.TokenBreakdown) float64 {
	return float64(tokens.Input)*rate(price.Input) +
		float64(tokens.Output+tokens.Reasoning)*rate(price.Output) +
		float64(tokens.CacheRead)*rate(price.CacheRead) +
		float64(tokens.CacheWrite)*rate(price.CacheWrite)
}

func rate(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0
	}
	return r
}

// ApplyCosts prices every message in place. Billing differs by source:
// Gemini does not charge for cache reads, and Cursor exports carry a
// vendor-reported cost that wins only when the catalog has no answer.
// Unresolvable models cost zero.
func ApplyCosts(msgs []model.UnifiedMessage, catalog *Catalog) {
	missed := make(map[string]bool)
	for i := range msgs {
		msg := &msgs[i]
		price, ok := catalog.Resolve(msg.ModelID)
		if !ok {
			if !missed[msg.ModelID] {
				missed[msg.ModelID] = true
				log.WithField("model", msg.ModelID).Warn("no pricing found for model")
			}
			if msg.Source != model.SourceCursor {
				msg.Cost = 0
			}
			continue
		}

		switch msg.Source {
		case model.SourceGemini:
			msg.Cost = Cost(price, model.TokenBreakdown{
				Input:     msg.Tokens.Input,
				Output:    msg.Tokens.Output,
				Reasoning: msg.Tokens.Reasoning,
			})
		case model.SourceCursor:
			if calculated := Cost(price, msg.Tokens); calculated > 0 {
				msg.Cost = calculated
			}
		default:
			msg.Cost = Cost(price, msg.Tokens)
		}
	}
}
