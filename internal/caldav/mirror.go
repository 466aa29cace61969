// Package caldav mirrors the week's events into a CalDAV calendar.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"weeklydigest/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

var (
	// uidNamespace scopes the name-based UIDs so reruns overwrite the same resources.
	uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("weeklydigest"))

	timeRangeRe = regexp.MustCompile(`^(\d{1,2})[:：](\d{2})\s*[-~〜～－]\s*(\d{1,2})[:：](\d{2})$`)
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Username != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", "weeklydigest/1.0")
	return t.Transport.RoundTrip(req)
}

// Mirror writes events into one calendar collection on a CalDAV server.
type Mirror struct {
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarPath string
	loc          *time.Location
}

// NewMirror connects to endpoint and locates the calendar named calendarName.
// Timed events are written in loc.
func NewMirror(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*Mirror, error) {
	httpClient := &http.Client{Transport: &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := findCalendar(ctx, caldavClient, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return newMirror(logger, httpClient, endpoint, calendarPath, loc)
}

func newMirror(logger *slog.Logger, httpClient webdav.HTTPClient, endpoint, calendarPath string, loc *time.Location) (*Mirror, error) {
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Mirror{
		webdavClient: webdavClient,
		logger:       logger,
		calendarPath: calendarPath,
		loc:          loc,
	}, nil
}

// MirrorEvents writes every event to the calendar. A failing event does not
// stop the others; all failures are returned together.
func (m *Mirror) MirrorEvents(ctx context.Context, events []models.Event) error {
	var errs []error
	for _, ev := range events {
		if err := m.put(ctx, ev); err != nil {
			m.logger.Error("Failed to mirror event", "date", ev.Date, "content", ev.Content, "error", err)
			errs = append(errs, err)
		}
	}
	m.logger.Info("Mirrored events to CalDAV", "count", len(events)-len(errs), "failed", len(errs))
	return errors.Join(errs...)
}

func (m *Mirror) put(ctx context.Context, ev models.Event) error {
	uid := EventUID(ev)
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//weeklydigest//EN")
	cal.Children = append(cal.Children, toICal(ev, uid, m.loc, time.Now().UTC()))

	eventPath := path.Join(m.calendarPath, uid+".ics")
	writer, err := m.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	m.logger.Debug("Mirrored event", "uid", uid, "path", eventPath)
	return nil
}

// EventUID derives a stable UID from the event's date, type label and content.
func EventUID(ev models.Event) string {
	name := ev.Date.String() + "|" + strings.TrimSpace(ev.TypeRaw) + "|" + ev.Content
	return uuid.NewSHA1(uidNamespace, []byte(name)).String()
}

// toICal converts an Event to a VEVENT. Events whose time is an HH:MM-HH:MM
// range become timed events; everything else is all-day.
func toICal(ev models.Event, uid string, loc *time.Location, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, ev.Content)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	if start, end, ok := parseTimeRange(ev, loc); ok {
		ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	} else {
		ve.Props.SetDate(ical.PropDateTimeStart, ev.Date.In(time.UTC))
		ve.Props.SetDate(ical.PropDateTimeEnd, ev.Date.AddDays(1).In(time.UTC))
	}

	var desc []string
	if ev.Person != "" {
		desc = append(desc, "担当: "+ev.Person)
	}
	if ev.Time != "" {
		desc = append(desc, "時間: "+ev.Time)
	}
	if ev.Absent != "" {
		desc = append(desc, "欠席予定: "+ev.Absent)
	}
	if len(desc) > 0 {
		ve.Props.SetText(ical.PropDescription, strings.Join(desc, "\n"))
	}
	if ev.TypeRaw != "" {
		ve.Props.SetText(ical.PropCategories, strings.TrimSpace(ev.TypeRaw))
	}
	return ve
}

func parseTimeRange(ev models.Event, loc *time.Location) (time.Time, time.Time, bool) {
	m := timeRangeRe.FindStringSubmatch(strings.TrimSpace(ev.Time))
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	n := make([]int, 4)
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	if n[0] > 23 || n[1] > 59 || n[2] > 24 || n[3] > 59 {
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(ev.Date.Year, ev.Date.Month, ev.Date.Day, n[0], n[1], 0, 0, loc)
	end := time.Date(ev.Date.Year, ev.Date.Month, ev.Date.Day, n[2], n[3], 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func findCalendar(ctx context.Context, client *caldav.Client, name string) (string, error) {
	principalPath, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
