package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/holiday-engine/backend/internal/log"
)

const productID = "-//holiday-engine//holidays//EN"

// ExportEvent is one all-day entry of an exported calendar.
type ExportEvent struct {
	UID         string
	Date        Date
	Summary     string
	Description string
	Categories  []string
}

// WriteICS renders events as an all-day VCALENDAR named name.
func WriteICS(w io.Writer, name string, events []ExportEvent, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)

	for _, ev := range events {
		vev := cal.AddEvent(ev.UID)
		vev.SetDtStampTime(stamp.UTC())
		vev.SetSummary(ev.Summary)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		vev.SetAllDayStartAt(ev.Date.Time())
		vev.SetAllDayEndAt(ev.Date.AddDays(1).Time())
		if len(ev.Categories) > 0 {
			vev.SetProperty(ical.ComponentPropertyCategories, strings.Join(ev.Categories, ","))
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	return nil
}

// ImportedEvent is a VEVENT reduced to the day it starts on.
type ImportedEvent struct {
	UID         string
	Date        Date
	Summary     string
	Description string
}

// ParseICS reads the VEVENTs of an ICS payload. Events without a UID,
// summary or start date are logged and skipped.
func ParseICS(r io.Reader) ([]ImportedEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var out []ImportedEvent
	for _, vev := range cal.Events() {
		ev, err := importEvent(vev)
		if err != nil {
			log.Warn("skipping calendar event", "error", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func importEvent(vev *ical.VEvent) (ImportedEvent, error) {
	var ev ImportedEvent

	uid := vev.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = strings.TrimSpace(uid.Value)

	summary := vev.GetProperty(ical.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return ev, fmt.Errorf("event %s: missing SUMMARY", ev.UID)
	}
	ev.Summary = strings.TrimSpace(summary.Value)
	if p := vev.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}

	start := vev.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil {
		return ev, fmt.Errorf("event %s: missing DTSTART", ev.UID)
	}
	// All-day values are plain YYYYMMDD; anything else goes through the
	// library's timezone handling.
	if v := strings.TrimSpace(start.Value); len(v) == 8 {
		t, err := time.Parse("20060102", v)
		if err != nil {
			return ev, fmt.Errorf("event %s: DTSTART %q: %w", ev.UID, v, err)
		}
		ev.Date = DateOf(t)
		return ev, nil
	}
	t, err := vev.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("event %s: DTSTART: %w", ev.UID, err)
	}
	ev.Date = DateOf(t)
	return ev, nil
}

// MaxFeedBytes bounds the size of a calendar read from a feed or upload.
const MaxFeedBytes = 5 << 20

// ErrFeedTooLarge is returned for a calendar over MaxFeedBytes.
var ErrFeedTooLarge = fmt.Errorf("calendar exceeds %d bytes", MaxFeedBytes)

// ParseFeed reads at most MaxFeedBytes from r and parses them. A longer
// input fails with ErrFeedTooLarge instead of being parsed truncated.
func ParseFeed(r io.Reader) ([]ImportedEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	if len(body) > MaxFeedBytes {
		return nil, ErrFeedTooLarge
	}
	return ParseICS(bytes.NewReader(body))
}

// Fetcher downloads ICS feeds.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{httpClient: &http.Client{Timeout: timeout}}
}

// FetchICS downloads url and parses its events.
func (f *Fetcher) FetchICS(ctx context.Context, url string) ([]ImportedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	return ParseFeed(resp.Body)
}
