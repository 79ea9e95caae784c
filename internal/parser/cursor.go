package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tokgraph/tokgraph/internal/model"
)

// Cursor usage exports come as CSV in two layouts:
//
//	new: Date,Kind,Model,Max Mode,Input (w/ Cache Write),Input (w/o Cache Write),Cache Read,Output Tokens,Total Tokens,Cost
//	old: Date,Model,Input (w/ Cache Write),Input (w/o Cache Write),Cache Read,Output Tokens,Total Tokens,Cost,Cost to you
type cursorColumns struct {
	model, inputWithCW, inputNoCW, cacheRead, output, cost int
}

// ParseCursorCSV parses a Cursor usage export. The first header field must
// be "Date"; anything else means an incompatible or unauthenticated export
// and fails the whole read. Malformed data rows are skipped.
func ParseCursorCSV(r io.Reader, accountID string) ([]model.UnifiedMessage, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read cursor csv header: %w", err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != "Date" {
		return nil, fmt.Errorf("unexpected cursor csv header %q", strings.Join(header, ","))
	}

	cols := cursorColumns{model: 1, inputWithCW: 2, inputNoCW: 3, cacheRead: 4, output: 5, cost: 7}
	for _, field := range header {
		if strings.TrimSpace(field) == "Kind" {
			cols = cursorColumns{model: 2, inputWithCW: 4, inputNoCW: 5, cacheRead: 6, output: 7, cost: 9}
			break
		}
	}

	var messages []model.UnifiedMessage
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) <= cols.cost {
			continue
		}

		modelID := strings.TrimSpace(record[cols.model])
		if modelID == "" {
			continue
		}

		ts, ok := parseCursorDate(strings.TrimSpace(record[0]))
		if !ok {
			continue
		}

		inputWithCW := parseTokenCount(record[cols.inputWithCW])
		inputNoCW := parseTokenCount(record[cols.inputNoCW])
		tokens := model.TokenBreakdown{
			Input:      inputNoCW,
			Output:     parseTokenCount(record[cols.output]),
			CacheRead:  parseTokenCount(record[cols.cacheRead]),
			CacheWrite: max64(inputWithCW-inputNoCW, 0),
		}

		msg := model.NewMessage(
			model.SourceCursor, modelID, inferProvider(modelID),
			fmt.Sprintf("cursor-%s-%s", accountID, record[0]),
			ts, tokens, parseCost(record[cols.cost]))
		messages = append(messages, msg)
	}

	return messages, nil
}

// ParseCursorFile parses one cached Cursor export file. The account ID is
// recovered from the file name (usage.csv for the active account,
// usage.<account>.csv otherwise).
func ParseCursorFile(path string) ([]model.UnifiedMessage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseCursorCSV(file, cursorAccountID(filepath.Base(path)))
}

func cursorAccountID(fileName string) string {
	if fileName == "usage.csv" {
		return "active"
	}
	stem, ok := strings.CutPrefix(fileName, "usage.")
	if !ok {
		return "unknown"
	}
	stem, ok = strings.CutSuffix(stem, ".csv")
	if !ok || stem == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, c := range stem {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			b.WriteRune(c)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// inferProvider guesses the upstream vendor from the model name. Unknown
// models stay attributed to cursor itself.
func inferProvider(modelID string) string {
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "claude"), strings.Contains(lower, "sonnet"),
		strings.Contains(lower, "opus"), strings.Contains(lower, "haiku"):
		return "anthropic"
	case strings.Contains(lower, "gpt"), strings.Contains(lower, "o1"), strings.Contains(lower, "o3"):
		return "openai"
	case strings.Contains(lower, "gemini"):
		return "google"
	case strings.Contains(lower, "deepseek"):
		return "deepseek"
	case strings.Contains(lower, "llama"), strings.Contains(lower, "mixtral"):
		return "meta"
	default:
		return "cursor"
	}
}

func parseTokenCount(field string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseCost handles "$0.50", "1,234.56", empty and NaN cells.
func parseCost(field string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(field))
	if cleaned == "" || strings.EqualFold(cleaned, "nan") {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// Fractional seconds are accepted by time.Parse without appearing in the
// layout, so two layouts cover all four observed timestamp shapes.
var cursorDateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

func parseCursorDate(s string) (time.Time, bool) {
	for _, layout := range cursorDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	// Date-only rows are pinned to noon UTC so day truncation is stable.
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.Add(12 * time.Hour), true
	}
	return time.Time{}, false
}
