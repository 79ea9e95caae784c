// Package aggregator folds usage events into per-day contribution data,
// grades daily cost intensity, and assembles the export document.
package aggregator

import (
	"sort"
	"time"

	"github.com/tokgraph/tokgraph/internal/model"
)

// Version stamps export documents.
const Version = "1.0"

type sourceAcc struct {
	models    map[string]*model.ModelBreakdown
	providers map[string]string // modelID -> providerID
}

type dayAcc struct {
	tokens  model.TokenBreakdown
	cost    float64
	sources map[string]*sourceAcc
}

// Contributions folds messages into one DailyContribution per active day,
// sorted by date ascending. Intensity is left ungraded; call Grade.
func Contributions(msgs []model.UnifiedMessage) []model.DailyContribution {
	days := make(map[string]*dayAcc)
	for _, msg := range msgs {
		day := days[msg.Date]
		if day == nil {
			day = &dayAcc{sources: make(map[string]*sourceAcc)}
			days[msg.Date] = day
		}
		day.tokens.Add(msg.Tokens)
		day.cost += msg.Cost

		src := day.sources[msg.Source]
		if src == nil {
			src = &sourceAcc{
				models:    make(map[string]*model.ModelBreakdown),
				providers: make(map[string]string),
			}
			day.sources[msg.Source] = src
		}
		mb := src.models[msg.ModelID]
		if mb == nil {
			mb = &model.ModelBreakdown{}
			src.models[msg.ModelID] = mb
		}
		mb.AddMessage(msg)
		if msg.ProviderID != "" {
			src.providers[msg.ModelID] = msg.ProviderID
		}
	}

	contributions := make([]model.DailyContribution, 0, len(days))
	for date, day := range days {
		contributions = append(contributions, model.DailyContribution{
			Date: date,
			Totals: model.DayTotals{
				Tokens:           day.tokens.Total(),
				Cost:             day.cost,
				InputTokens:      day.tokens.Input,
				OutputTokens:     day.tokens.Output,
				CacheReadTokens:  day.tokens.CacheRead,
				CacheWriteTokens: day.tokens.CacheWrite,
				ReasoningTokens:  day.tokens.Reasoning,
			},
			TokenBreakdown: day.tokens,
			Sources:        sourceContributions(day.sources),
		})
	}
	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].Date < contributions[j].Date
	})
	return contributions
}

func sourceContributions(sources map[string]*sourceAcc) []model.SourceContribution {
	var rows []model.SourceContribution
	for source, acc := range sources {
		for modelID, mb := range acc.models {
			rows = append(rows, model.SourceContribution{
				Source:     source,
				ModelID:    modelID,
				ProviderID: acc.providers[modelID],
				Tokens: model.TokenBreakdown{
					Input:      mb.Input,
					Output:     mb.Output,
					CacheRead:  mb.CacheRead,
					CacheWrite: mb.CacheWrite,
					Reasoning:  mb.Reasoning,
				},
				Cost:     mb.Cost,
				Messages: mb.Messages,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		return rows[i].ModelID < rows[j].ModelID
	})
	return rows
}

// Grade assigns each day a cost intensity from 0 to 4 relative to the
// most expensive day: zero-cost days are 0, then equal-width quartiles of
// (0, max] map to 1 through 4.
func Grade(contributions []model.DailyContribution) {
	var maxCost float64
	for _, c := range contributions {
		if c.Totals.Cost > maxCost {
			maxCost = c.Totals.Cost
		}
	}
	for i := range contributions {
		contributions[i].Intensity = intensity(contributions[i].Totals.Cost, maxCost)
	}
}

func intensity(cost, maxCost float64) int {
	if cost <= 0 || maxCost <= 0 {
		return 0
	}
	switch ratio := cost / maxCost; {
	case ratio <= 0.25:
		return 1
	case ratio <= 0.5:
		return 2
	case ratio <= 0.75:
		return 3
	default:
		return 4
	}
}

// Summary computes the whole-range rollup. TotalDays spans the calendar
// from first to last active day inclusive; the average is cost per active
// day.
func Summary(contributions []model.DailyContribution) model.DataSummary {
	summary := model.DataSummary{}
	if len(contributions) == 0 {
		return summary
	}

	sourceSet := make(map[string]bool)
	modelSet := make(map[string]bool)
	for _, c := range contributions {
		summary.TotalTokens += c.Totals.Tokens
		summary.TotalCost += c.Totals.Cost
		if c.Totals.Tokens > 0 {
			summary.ActiveDays++
		}
		if c.Totals.Cost > summary.MaxCostInSingleDay {
			summary.MaxCostInSingleDay = c.Totals.Cost
		}
		for _, s := range c.Sources {
			sourceSet[s.Source] = true
			modelSet[s.ModelID] = true
		}
	}

	summary.TotalDays = calendarSpan(contributions[0].Date, contributions[len(contributions)-1].Date)
	if summary.ActiveDays > 0 {
		summary.AveragePerDay = summary.TotalCost / float64(summary.ActiveDays)
	}
	summary.Sources = sortedKeys(sourceSet)
	summary.Models = sortedKeys(modelSet)
	return summary
}

func calendarSpan(first, last string) int {
	start, err1 := time.Parse("2006-01-02", first)
	end, err2 := time.Parse("2006-01-02", last)
	if err1 != nil || err2 != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Years computes per-year rollups, oldest first.
func Years(contributions []model.DailyContribution) []model.YearSummary {
	byYear := make(map[string]*model.YearSummary)
	for _, c := range contributions {
		if len(c.Date) < 4 {
			continue
		}
		year := c.Date[:4]
		ys := byYear[year]
		if ys == nil {
			ys = &model.YearSummary{Year: year, Range: model.DateRange{Start: c.Date, End: c.Date}}
			byYear[year] = ys
		}
		ys.TotalTokens += c.Totals.Tokens
		ys.TotalCost += c.Totals.Cost
		if c.Date < ys.Range.Start {
			ys.Range.Start = c.Date
		}
		if c.Date > ys.Range.End {
			ys.Range.End = c.Date
		}
	}

	years := make([]model.YearSummary, 0, len(byYear))
	for _, ys := range byYear {
		years = append(years, *ys)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	return years
}

// BuildExport assembles the full export document from priced messages.
func BuildExport(msgs []model.UnifiedMessage) *model.Export {
	contributions := Contributions(msgs)
	Grade(contributions)
	return exportFrom(contributions)
}

// ExportFromContributions assembles the export document from already
// aggregated days, regrading intensity over the given set.
func ExportFromContributions(contributions []model.DailyContribution) *model.Export {
	Grade(contributions)
	return exportFrom(contributions)
}

func exportFrom(contributions []model.DailyContribution) *model.Export {
	export := &model.Export{
		Meta: model.ExportMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Version:     Version,
		},
		Summary:       Summary(contributions),
		Years:         Years(contributions),
		Contributions: contributions,
	}
	if len(contributions) > 0 {
		export.Meta.DateRange = model.DateRange{
			Start: contributions[0].Date,
			End:   contributions[len(contributions)-1].Date,
		}
	}
	return export
}

// FromDaySources rebuilds contributions from a merged per-day, per-source
// aggregate, as stored by a reconciliation target.
func FromDaySources(days map[string]map[string]*model.SourceBreakdown) []model.DailyContribution {
	contributions := make([]model.DailyContribution, 0, len(days))
	for date, sources := range days {
		var tokens model.TokenBreakdown
		var cost float64
		var rows []model.SourceContribution
		for source, sb := range sources {
			tokens.Add(model.TokenBreakdown{
				Input:      sb.Input,
				Output:     sb.Output,
				CacheRead:  sb.CacheRead,
				CacheWrite: sb.CacheWrite,
				Reasoning:  sb.Reasoning,
			})
			cost += sb.Cost
			for modelID, mb := range sb.Models {
				rows = append(rows, model.SourceContribution{
					Source:  source,
					ModelID: modelID,
					Tokens: model.TokenBreakdown{
						Input:      mb.Input,
						Output:     mb.Output,
						CacheRead:  mb.CacheRead,
						CacheWrite: mb.CacheWrite,
						Reasoning:  mb.Reasoning,
					},
					Cost:     mb.Cost,
					Messages: mb.Messages,
				})
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Source != rows[j].Source {
				return rows[i].Source < rows[j].Source
			}
			return rows[i].ModelID < rows[j].ModelID
		})
		contributions = append(contributions, model.DailyContribution{
			Date: date,
			Totals: model.DayTotals{
				Tokens:           tokens.Total(),
				Cost:             cost,
				InputTokens:      tokens.Input,
				OutputTokens:     tokens.Output,
				CacheReadTokens:  tokens.CacheRead,
				CacheWriteTokens: tokens.CacheWrite,
				ReasoningTokens:  tokens.Reasoning,
			},
			TokenBreakdown: tokens,
			Sources:        rows,
		})
	}
	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].Date < contributions[j].Date
	})
	return contributions
}
