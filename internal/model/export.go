package model

// DateRange is an inclusive start/end pair of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExportMeta describes one export pass.
type ExportMeta struct {
	GeneratedAt string    `json:"generatedAt"`
	Version     string    `json:"version"`
	DateRange   DateRange `json:"dateRange"`
}

// DataSummary is the whole-range rollup, regenerated on each export.
type DataSummary struct {
	TotalTokens        int64    `json:"totalTokens"`
	TotalCost          float64  `json:"totalCost"`
	TotalDays          int      `json:"totalDays"`
	ActiveDays         int      `json:"activeDays"`
	AveragePerDay      float64  `json:"averagePerDay"`
	MaxCostInSingleDay float64  `json:"maxCostInSingleDay"`
	Sources            []string `json:"sources"`
	Models             []string `json:"models"`
}

// YearSummary is the per-year rollup.
type YearSummary struct {
	Year        string    `json:"year"`
	TotalTokens int64     `json:"totalTokens"`
	TotalCost   float64   `json:"totalCost"`
	Range       DateRange `json:"range"`
}

// Export is the complete structured document consumed by external
// visualizers and the leaderboard. Derived, never mutated in place.
type Export struct {
	Meta          ExportMeta          `json:"meta"`
	Summary       DataSummary         `json:"summary"`
	Years         []YearSummary       `json:"years"`
	Contributions []DailyContribution `json:"contributions"`
}
