// Package week computes the Monday..Sunday window a digest covers.
package week

import (
	"time"
	"weeklydigest/internal/models"

	"cloud.google.com/go/civil"
)

// TokyoZone is the IANA name of the zone digests are anchored to.
const TokyoZone = "Asia/Tokyo"

// Tokyo returns the Asia/Tokyo location, or a fixed +09:00 zone when the
// tz database is not available on the host.
func Tokyo() *time.Location {
	loc, err := time.LoadLocation(TokyoZone)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Monday returns the calendar date of the Monday of the ISO week containing now,
// evaluated in now's own location.
func Monday(now time.Time) civil.Date {
	today := civil.DateOf(now)
	// ISO weekday: Monday=1 .. Sunday=7.
	iso := int(now.Weekday())
	if iso == 0 {
		iso = 7
	}
	return today.AddDays(-(iso - 1))
}

// Window returns the seven dates starting at monday.
func Window(monday civil.Date) models.WeekWindow {
	w := models.WeekWindow{Monday: monday}
	for i := range w.Days {
		w.Days[i] = monday.AddDays(i)
	}
	return w
}

// Current returns the week containing now as observed in loc.
func Current(now time.Time, loc *time.Location) models.WeekWindow {
	if loc == nil {
		loc = Tokyo()
	}
	return Window(Monday(now.In(loc)))
}
