// Package output renders reports as plain text tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tokgraph/tokgraph/internal/aggregator"
	"github.com/tokgraph/tokgraph/internal/model"
)

// PrintJSON writes any value as indented JSON to stdout.
func PrintJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

// FormatNumber renders a token count with thousands separators.
func FormatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatCost renders a USD amount.
func FormatCost(c float64) string {
	return fmt.Sprintf("$%.2f", c)
}

var intensityMarks = []string{" ", "░", "▒", "▓", "█"}

// PrintGraph renders the export as a daily table with an intensity mark
// per day, followed by the range summary.
func PrintGraph(export *model.Export) {
	fmt.Printf("%-12s %-3s %15s %12s\n", "Date", "", "Tokens", "Cost")
	fmt.Println(strings.Repeat("-", 45))
	for _, c := range export.Contributions {
		mark := " "
		if c.Intensity >= 0 && c.Intensity < len(intensityMarks) {
			mark = intensityMarks[c.Intensity]
		}
		fmt.Printf("%-12s %-3s %15s %12s\n",
			c.Date, mark, FormatNumber(c.Totals.Tokens), FormatCost(c.Totals.Cost))
	}
	fmt.Println(strings.Repeat("-", 45))
	PrintSummary(export.Summary)
}

// PrintSummary renders the whole-range rollup.
func PrintSummary(s model.DataSummary) {
	fmt.Printf("Total tokens:  %s\n", FormatNumber(s.TotalTokens))
	fmt.Printf("Total cost:    %s\n", FormatCost(s.TotalCost))
	fmt.Printf("Active days:   %d of %d\n", s.ActiveDays, s.TotalDays)
	if s.ActiveDays > 0 {
		fmt.Printf("Avg cost/day:  %s\n", FormatCost(s.AveragePerDay))
	}
	fmt.Printf("Max day cost:  %s\n", FormatCost(s.MaxCostInSingleDay))
	if len(s.Sources) > 0 {
		fmt.Printf("Sources:       %s\n", strings.Join(s.Sources, ", "))
	}
}

// PrintModels renders the per-model report.
func PrintModels(rows []aggregator.ModelRow) {
	fmt.Printf("%-40s %15s %10s %12s\n", "Model", "Tokens", "Msgs", "Cost")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range rows {
		name := r.ModelID
		if r.ProviderID != "" {
			name = r.ProviderID + "/" + r.ModelID
		}
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Printf("%-40s %15s %10s %12s\n",
			name, FormatNumber(r.TotalToks), FormatNumber(r.Messages), FormatCost(r.Cost))
	}
}

// PrintMonthly renders the per-month report.
func PrintMonthly(rows []aggregator.MonthRow) {
	fmt.Printf("%-10s %15s %10s %8s %12s\n", "Month", "Tokens", "Msgs", "Days", "Cost")
	fmt.Println(strings.Repeat("-", 60))
	for _, r := range rows {
		fmt.Printf("%-10s %15s %10s %8d %12s\n",
			r.Month, FormatNumber(r.Tokens), FormatNumber(r.Messages), r.ActiveDays, FormatCost(r.Cost))
	}
}
