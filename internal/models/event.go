package models

import "cloud.google.com/go/civil"

// RawRecord is one spreadsheet data row keyed by the header row's column names.
type RawRecord map[string]string

// Lookup returns the first non-empty cell among the given column aliases.
func (r RawRecord) Lookup(aliases ...string) string {
	for _, key := range aliases {
		if v, ok := r[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// EventType is the classified kind of a schedule row.
type EventType int

const (
	// Important is the default for every label that is not the seminar label.
	Important EventType = iota
	// Regular is the seminar type; it always carries a time.
	Regular
)

func (t EventType) String() string {
	if t == Regular {
		return "regular"
	}
	return "important"
}

// Event represents one in-week schedule entry.
// Time and Absent hold the raw sheet text; neither is parsed.
type Event struct {
	Date    civil.Date // Calendar date the row was scheduled for
	Time    string     // Display time, e.g. "13:00-14:30"
	Content string     // What happens
	Person  string     // Who is in charge
	Type    EventType  // Regular or Important
	TypeRaw string     // Label as written in the sheet
	Absent  string     // Free-text list of people who will be absent
}

// WeekWindow is the Monday..Sunday span of one ISO week.
type WeekWindow struct {
	Monday civil.Date
	Days   [7]civil.Date
}

// Contains reports whether d falls within the week.
func (w WeekWindow) Contains(d civil.Date) bool {
	return !d.Before(w.Monday) && !d.After(w.End())
}

// End returns the Sunday of the week.
func (w WeekWindow) End() civil.Date {
	return w.Days[6]
}
