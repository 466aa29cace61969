// Package schedule turns spreadsheet rows into the typed events of one week.
package schedule

import (
	"log/slog"
	"strings"
	"weeklydigest/internal/models"
)

// SeminarLabel is the only type label that classifies a row as Regular.
const SeminarLabel = "ゼミ"

// Columns lists, per logical field, the header spellings tried in order.
type Columns struct {
	Date    []string `yaml:"date"`
	Time    []string `yaml:"time"`
	Type    []string `yaml:"type"`
	Content []string `yaml:"content"`
	Person  []string `yaml:"person"`
	Absent  []string `yaml:"absent"`
}

// DefaultColumns returns the header aliases used when no override is configured.
func DefaultColumns() Columns {
	return Columns{
		Date:    []string{"日付", "date", "Date"},
		Time:    []string{"テスト時間", "時間", "time", "Time"},
		Type:    []string{"種別", "種類", "type", "Type"},
		Content: []string{"内容", "content", "Content"},
		Person:  []string{"担当", "person", "Person"},
		Absent:  []string{"欠席予定", "欠席", "absent", "Absent"},
	}
}

// Merge returns c with every empty alias list filled from fallback.
func (c Columns) Merge(fallback Columns) Columns {
	pick := func(a, b []string) []string {
		if len(a) > 0 {
			return a
		}
		return b
	}
	return Columns{
		Date:    pick(c.Date, fallback.Date),
		Time:    pick(c.Time, fallback.Time),
		Type:    pick(c.Type, fallback.Type),
		Content: pick(c.Content, fallback.Content),
		Person:  pick(c.Person, fallback.Person),
		Absent:  pick(c.Absent, fallback.Absent),
	}
}

// Records converts a header row plus data rows into RawRecords.
// Cells missing at the end of a short row become empty strings.
func Records(rows [][]string) []models.RawRecord {
	if len(rows) == 0 {
		return nil
	}
	headers := rows[0]
	records := make([]models.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(models.RawRecord, len(headers))
		for i, h := range headers {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

// Classifier filters records down to the events of a week.
type Classifier struct {
	logger  *slog.Logger
	columns Columns
}

// NewClassifier creates a Classifier. A nil logger discards diagnostics.
func NewClassifier(logger *slog.Logger, columns Columns) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{logger: logger, columns: columns.Merge(DefaultColumns())}
}

// Classify is shorthand for classifying with the default columns and no diagnostics.
func Classify(records []models.RawRecord, window models.WeekWindow) []models.Event {
	return NewClassifier(nil, Columns{}).Classify(records, window)
}

// Classify returns, in source order, one Event per record dated inside window.
// Rows that cannot be dated or that lack required fields are skipped.
func (c *Classifier) Classify(records []models.RawRecord, window models.WeekWindow) []models.Event {
	var events []models.Event
	refYear := window.Monday.Year

	for i, rec := range records {
		row := i + 2 // 1-based, after the header row

		dateCell := strings.TrimSpace(rec.Lookup(c.columns.Date...))
		if dateCell == "" {
			c.logger.Debug("Skipping row without date", "row", row)
			continue
		}
		date, ok := ParseDate(dateCell, refYear)
		if !ok {
			c.logger.Debug("Skipping row with unparseable date", "row", row, "date", dateCell)
			continue
		}
		if !window.Contains(date) {
			continue
		}

		typeRaw := rec.Lookup(c.columns.Type...)
		ev := models.Event{
			Date:    date,
			Time:    strings.TrimSpace(rec.Lookup(c.columns.Time...)),
			Content: rec.Lookup(c.columns.Content...),
			Person:  rec.Lookup(c.columns.Person...),
			Type:    c.classifyType(row, typeRaw),
			TypeRaw: typeRaw,
			Absent:  rec.Lookup(c.columns.Absent...),
		}

		if ev.Type == models.Regular && ev.Time == "" {
			c.logger.Debug("Dropping seminar row without time", "row", row, "date", date, "content", ev.Content)
			continue
		}

		c.logger.Debug("Added event", "row", row, "date", date, "type", ev.Type, "time", ev.Time, "content", ev.Content, "person", ev.Person)
		events = append(events, ev)
	}
	return events
}

func (c *Classifier) classifyType(row int, label string) models.EventType {
	trimmed := strings.TrimSpace(label)
	if trimmed == SeminarLabel {
		return models.Regular
	}
	if strings.Contains(trimmed, SeminarLabel) || strings.EqualFold(trimmed, "seminar") {
		c.logger.Warn("Type label resembles the seminar label but does not match it; treating as important",
			"row", row, "label", label)
	}
	return models.Important
}
