package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	// Leading month/day; any trailing year segment is ignored.
	monthDayRe = regexp.MustCompile(`^\s*(\d{1,2})[/-](\d{1,2})(?:[/-]\d{2,4})?`)

	isoDateRe     = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
	kanjiDateRe   = regexp.MustCompile(`^(?:(\d{4})\s*年\s*)?(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	monthFirstRe  = regexp.MustCompile(`^([A-Za-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	dayFirstRe    = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]+)\.?(?:,?\s+(\d{4}))?$`)
	englishMonths = map[string]time.Month{}
)

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		englishMonths[name] = m
		englishMonths[name[:3]] = m
	}
	englishMonths["sept"] = time.September
}

// ParseDate converts a free-text date cell into a calendar date. Cells without
// an explicit year resolve against refYear. The second result is false when
// the cell cannot be interpreted as a valid date.
func ParseDate(cell string, refYear int) (civil.Date, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return civil.Date{}, false
	}

	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(refYear, atoi(m[1]), atoi(m[2])); ok {
			return d, true
		}
	}
	return parseFallback(s, refYear)
}

// parseFallback accepts YYYY-MM-DD (also with / or .), 年月日 and English month names.
func parseFallback(s string, refYear int) (civil.Date, bool) {
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := kanjiDateRe.FindStringSubmatch(s); m != nil {
		year := refYear
		if m[1] != "" {
			year = atoi(m[1])
		}
		return makeDate(year, atoi(m[2]), atoi(m[3]))
	}
	if m := monthFirstRe.FindStringSubmatch(s); m != nil {
		return englishDate(m[1], m[2], m[3], refYear)
	}
	if m := dayFirstRe.FindStringSubmatch(s); m != nil {
		return englishDate(m[2], m[1], m[3], refYear)
	}
	return civil.Date{}, false
}

func englishDate(month, day, year string, refYear int) (civil.Date, bool) {
	mon, ok := englishMonths[strings.ToLower(month)]
	if !ok {
		return civil.Date{}, false
	}
	y := refYear
	if year != "" {
		y = atoi(year)
	}
	return makeDate(y, int(mon), atoi(day))
}

// makeDate rejects values time.Date would silently normalise, such as 2/30.
func makeDate(year, month, day int) (civil.Date, bool) {
	if month < 1 || month > 12 || day < 1 {
		return civil.Date{}, false
	}
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
