package calendar

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDate(t *testing.T) {
	_, ok := NewDate(2024, time.February, 29)
	assert.True(t, ok)
	_, ok = NewDate(2025, time.February, 29)
	assert.False(t, ok)
	_, ok = NewDate(2025, 13, 1)
	assert.False(t, ok)
	_, ok = NewDate(2025, time.April, 31)
	assert.False(t, ok)
}

func TestDateArithmetic(t *testing.T) {
	d, err := ParseDate("2024-12-31")
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", d.AddDays(1).String())
	assert.Equal(t, "2024-02-29", d.AddDays(-306).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Zero(t, d.Compare(d))
	assert.Equal(t, time.Tuesday, d.Weekday())
	assert.False(t, d.IsWeekend())
	assert.True(t, d.AddDays(4).IsWeekend())

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestDateText(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2025-06-21")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-06-21", string(b))
}

func TestWriteICS_ParseICS(t *testing.T) {
	midsummer, _ := NewDate(2025, time.June, 21)
	christmas, _ := NewDate(2025, time.December, 25)
	events := []ExportEvent{
		{UID: "default.se.midsommardagen-2025-06-21", Date: midsummer, Summary: "Midsommardagen", Categories: []string{"SE", "public_holiday"}},
		{UID: "default.se.juldagen-2025-12-25", Date: christmas, Summary: "Juldagen", Description: "Red day"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, "Holidays 2025", events, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "X-WR-CALNAME:Holidays 2025")
	assert.Contains(t, out, "20250621")

	parsed, err := ParseICS(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "Midsommardagen", parsed[0].Summary)
	assert.Equal(t, midsummer, parsed[0].Date)
	assert.Equal(t, christmas, parsed[1].Date)
	assert.Equal(t, "Red day", parsed[1].Description)
}

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:company-day@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250314\r\n" +
	"SUMMARY:Company Day\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:offsite@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250920T090000Z\r\n" +
	"SUMMARY:Offsite\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:untitled@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250401\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS_SkipsIncompleteEvents(t *testing.T) {
	events, err := ParseICS(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2025-03-14", events[0].Date.String())
	assert.Equal(t, "2025-09-20", events[1].Date.String())
}

func TestFetcher_FetchICS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/huge.ics" {
			w.Write(bytes.Repeat([]byte("A"), MaxFeedBytes+1))
			return
		}
		if r.URL.Path != "/feed.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	events, err := f.FetchICS(context.Background(), srv.URL+"/feed.ics")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = f.FetchICS(context.Background(), srv.URL+"/missing.ics")
	assert.Error(t, err)

	_, err = f.FetchICS(context.Background(), srv.URL+"/huge.ics")
	assert.ErrorIs(t, err, ErrFeedTooLarge)
}

func TestParseFeed_Size(t *testing.T) {
	events, err := ParseFeed(strings.NewReader(feed))
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = ParseFeed(strings.NewReader(feed + strings.Repeat(" ", MaxFeedBytes)))
	assert.ErrorIs(t, err, ErrFeedTooLarge)
}

type fakeFocuser struct {
	year int
	err  error
	sets int
}

func (f *fakeFocuser) FocusYear() int { return f.year }

func (f *fakeFocuser) SetFocusYear(ctx context.Context, year int) error {
	if f.err != nil {
		return f.err
	}
	f.year = year
	f.sets++
	return nil
}

func TestScheduler_CheckRollover(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
	target := &fakeFocuser{year: 2025}
	s := NewScheduler(target, "@daily", func() time.Time { return now }, time.UTC)

	changed, err := s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)

	now = now.Add(2 * time.Minute)
	changed, err = s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2026, target.year)
	assert.Equal(t, now, s.LastRun())

	changed, err = s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, target.sets)
}

func TestScheduler_KeepsExplicitFocus(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	target := &fakeFocuser{year: 2026}
	s := NewScheduler(target, "@daily", func() time.Time { return now }, time.UTC)

	changed, err := s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)

	// The window was moved on purpose; the next daily tick must not undo it.
	target.year = 2030
	now = now.AddDate(0, 0, 1)
	changed, err = s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2030, target.year)

	// New Year's Day still refocuses on the new civil year.
	now = time.Date(2027, 1, 1, 0, 5, 0, 0, time.UTC)
	changed, err = s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2027, target.year)
}

func TestScheduler_RetriesFailedRollover(t *testing.T) {
	now := time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)
	target := &fakeFocuser{year: 2025}
	s := NewScheduler(target, "@daily", func() time.Time { return now }, time.UTC)
	_, err := s.CheckRollover(context.Background())
	require.NoError(t, err)

	now = now.AddDate(0, 0, 1)
	target.err = errors.New("boom")
	_, err = s.CheckRollover(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2025, target.year)

	target.err = nil
	changed, err := s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2026, target.year)
}

func TestScheduler_UsesLocation(t *testing.T) {
	// 23:30 UTC on Dec 31 is already New Year's Day in Stockholm.
	stockholm := time.FixedZone("CET", 3600)
	now := time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC)
	target := &fakeFocuser{year: 2025}
	s := NewScheduler(target, "", func() time.Time { return now }, stockholm)

	changed, err := s.CheckRollover(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2026, target.year)
}

func TestScheduler_StartStop(t *testing.T) {
	target := &fakeFocuser{year: 2000}
	s := NewScheduler(target, "@every 1h", func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }, time.UTC)
	assert.Nil(t, s.NextRun())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 2025, target.year, "Start checks immediately")
	assert.NotNil(t, s.NextRun())

	bad := NewScheduler(target, "not a spec", nil, nil)
	assert.Error(t, bad.Start(context.Background()))
}
