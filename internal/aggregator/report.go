package aggregator

import (
	"sort"

	"github.com/tokgraph/tokgraph/internal/model"
)

// ModelRow is one line of the per-model report.
type ModelRow struct {
	ModelID    string               `json:"modelId"`
	ProviderID string               `json:"providerId,omitempty"`
	Tokens     model.TokenBreakdown `json:"tokens"`
	TotalToks  int64                `json:"totalTokens"`
	Cost       float64              `json:"cost"`
	Messages   int64                `json:"messages"`
}

// ModelReport rolls up usage per model across the whole range, most
// expensive first.
func ModelReport(msgs []model.UnifiedMessage) []ModelRow {
	byModel := make(map[string]*ModelRow)
	for _, msg := range msgs {
		row := byModel[msg.ModelID]
		if row == nil {
			row = &ModelRow{ModelID: msg.ModelID}
			byModel[msg.ModelID] = row
		}
		row.Tokens.Add(msg.Tokens)
		row.Cost += msg.Cost
		row.Messages++
		if msg.ProviderID != "" {
			row.ProviderID = msg.ProviderID
		}
	}

	rows := make([]ModelRow, 0, len(byModel))
	for _, row := range byModel {
		row.TotalToks = row.Tokens.Total()
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Cost != rows[j].Cost {
			return rows[i].Cost > rows[j].Cost
		}
		return rows[i].ModelID < rows[j].ModelID
	})
	return rows
}

// MonthRow is one line of the monthly report.
type MonthRow struct {
	Month      string  `json:"month"` // YYYY-MM
	Tokens     int64   `json:"tokens"`
	Cost       float64 `json:"cost"`
	Messages   int64   `json:"messages"`
	ActiveDays int     `json:"activeDays"`
}

// MonthlyReport rolls up usage per calendar month, oldest first.
func MonthlyReport(msgs []model.UnifiedMessage) []MonthRow {
	type monthAcc struct {
		row  MonthRow
		days map[string]bool
	}
	byMonth := make(map[string]*monthAcc)
	for _, msg := range msgs {
		if len(msg.Date) < 7 {
			continue
		}
		month := msg.Date[:7]
		acc := byMonth[month]
		if acc == nil {
			acc = &monthAcc{row: MonthRow{Month: month}, days: make(map[string]bool)}
			byMonth[month] = acc
		}
		acc.row.Tokens += msg.Tokens.Total()
		acc.row.Cost += msg.Cost
		acc.row.Messages++
		acc.days[msg.Date] = true
	}

	rows := make([]MonthRow, 0, len(byMonth))
	for _, acc := range byMonth {
		acc.row.ActiveDays = len(acc.days)
		rows = append(rows, acc.row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}
