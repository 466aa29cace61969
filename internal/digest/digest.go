// Package digest renders a week's events as the text posted to the channel.
package digest

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"weeklydigest/internal/models"

	"cloud.google.com/go/civil"
)

const (
	// DefaultSeminarTime is the usual seminar slot; other times get a warning line.
	DefaultSeminarTime = "13:00-14:30"

	noEventsLine  = "予定はありません。"
	bulletPrefix  = "> • "
	noAbsentees   = "なし"
	timeWarning   = "*※注意! 時間が通常の " + DefaultSeminarTime + " 以外です*"
	headerPattern = "今週の予定：%d月%d日 〜 %d月%d日"
)

var weekdayKanji = [7]string{"月", "火", "水", "木", "金", "土", "日"}

// Format renders events for the given week. The input slice is not modified.
func Format(events []models.Event, window models.WeekWindow) string {
	start, end := window.Monday, window.Monday.AddDays(6)
	header := fmt.Sprintf(headerPattern, int(start.Month), start.Day, int(end.Month), end.Day)
	if len(events) == 0 {
		return header + "\n" + noEventsLine
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b models.Event) int {
		return cmp.Or(compareDates(a.Date, b.Date), strings.Compare(a.Time, b.Time))
	})

	lines := []string{header}
	for _, ev := range sorted {
		summary := fmt.Sprintf("%s: %s", dayLabel(ev.Date), ev.Content)
		lines = append(lines, summary)
		if ev.Type != models.Regular {
			continue
		}
		if ev.Person != "" {
			lines = append(lines, bulletPrefix+"担当: "+ev.Person)
		}
		if ev.Time != "" {
			lines = append(lines, bulletPrefix+"時間: "+ev.Time)
		}
		absent := ev.Absent
		if strings.TrimSpace(absent) == "" {
			absent = noAbsentees
		}
		lines = append(lines, bulletPrefix+"欠席予定: "+absent)
		if ev.Time != "" && ev.Time != DefaultSeminarTime {
			lines = append(lines, bulletPrefix+timeWarning)
		}
	}
	return strings.Join(lines, "\n")
}

// dayLabel renders a date as M/D(曜).
func dayLabel(d civil.Date) string {
	return fmt.Sprintf("%d/%d(%s)", int(d.Month), d.Day, weekdayKanji[mondayIndex(d)])
}

// mondayIndex returns 0 for Monday through 6 for Sunday.
func mondayIndex(d civil.Date) int {
	return (int(d.In(time.UTC).Weekday()) + 6) % 7
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
