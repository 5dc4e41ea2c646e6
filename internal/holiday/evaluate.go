// Package holiday evaluates holiday rules into dated occurrences, keeps the
// per-session holiday cache, and records every rule mutation in the change log.
package holiday

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// Occurrence is one resolved, dated instance of a rule.
type Occurrence struct {
	RuleID       string          `json:"rule_id"`
	Region       string          `json:"region"`
	Date         calendar.Date   `json:"date"`
	DisplayTitle string          `json:"display_title"`
	IsRedDay     bool            `json:"is_red_day"`
	SymbolName   string          `json:"symbol_name,omitempty"`
	IsCustom     bool            `json:"is_custom"`
	Kind         models.RuleKind `json:"kind"`

	// ObservedDate is set when an observe-mode shift adds a weekday copy.
	ObservedDate *calendar.Date `json:"observed_date,omitempty"`
	// IsObserved marks the copy placed in the cache on ObservedDate.
	IsObserved bool `json:"is_observed,omitempty"`

	seq int64
}

// Evaluate resolves rule for year. It returns nil when the recurrence has no
// valid date that year (Feb 29 in a common year, a missing 5th weekday, a
// one-off dated in another year). Evaluate is pure: it reads nothing but its
// arguments.
func Evaluate(rule models.Rule, year int) *Occurrence {
	base, ok := baseDate(rule.Recurrence, year)
	if !ok {
		return nil
	}

	occ := &Occurrence{
		RuleID:       rule.ID,
		Region:       rule.Region,
		Date:         base,
		DisplayTitle: rule.Title,
		IsRedDay:     rule.IsRedDay(),
		SymbolName:   rule.SymbolName,
		IsCustom:     rule.IsCustom,
		Kind:         rule.Kind,
		seq:          rule.Seq,
	}

	if rule.ShiftPolicy.Mode == models.ShiftNone || rule.ShiftPolicy.Mode == "" || !base.IsWeekend() {
		return occ
	}

	shifted := shiftOffWeekend(base, rule.ShiftPolicy.Direction)
	switch rule.ShiftPolicy.Mode {
	case models.ShiftReplace:
		occ.Date = shifted
	case models.ShiftObserve:
		occ.ObservedDate = &shifted
	}
	return occ
}

func baseDate(rec models.Recurrence, year int) (calendar.Date, bool) {
	switch rec.Kind {
	case models.RecurrenceFixedDate:
		return calendar.NewDate(year, time.Month(rec.Month), rec.Day)

	case models.RecurrenceNthWeekday:
		return nthWeekday(year, time.Month(rec.Month), rec.Weekday, rec.Ordinal, rec.FromEnd)

	case models.RecurrenceEasterOffset:
		d := calendar.Easter(year).AddDays(rec.Offset)
		if d.Year != year {
			return calendar.Date{}, false
		}
		return d, true

	case models.RecurrenceOneOff:
		d, err := calendar.ParseDate(rec.Date)
		if err != nil || d.Year != year {
			return calendar.Date{}, false
		}
		return d, true

	case models.RecurrenceWeekdayOnOrAfter:
		anchor, ok := calendar.NewDate(year, time.Month(rec.Month), rec.Day)
		if !ok {
			return calendar.Date{}, false
		}
		return weekdayOnOrAfter(anchor, rec.Weekday)

	case models.RecurrenceRRule:
		return firstRRuleMatch(rec.Expr, year)
	}
	return calendar.Date{}, false
}

// rruleWeekdays maps time.Weekday (Sunday = 0) onto rrule weekdays.
var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func nthWeekday(year int, month time.Month, weekday time.Weekday, ordinal int, fromEnd bool) (calendar.Date, bool) {
	if ordinal < 1 || ordinal > 5 || weekday < time.Sunday || weekday > time.Saturday {
		return calendar.Date{}, false
	}
	first, ok := calendar.NewDate(year, month, 1)
	if !ok {
		return calendar.Date{}, false
	}
	n := ordinal
	if fromEnd {
		n = -ordinal
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.MONTHLY,
		Dtstart:   first.Time(),
		Until:     first.Time().AddDate(0, 1, -1),
		Byweekday: []rrule.Weekday{rruleWeekdays[weekday].Nth(n)},
	})
	if err != nil {
		return calendar.Date{}, false
	}
	return firstOf(r.All())
}

func weekdayOnOrAfter(anchor calendar.Date, weekday time.Weekday) (calendar.Date, bool) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return calendar.Date{}, false
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   anchor.Time(),
		Count:     1,
		Byweekday: []rrule.Weekday{rruleWeekdays[weekday]},
	})
	if err != nil {
		return calendar.Date{}, false
	}
	return firstOf(r.All())
}

// rruleEpoch anchors rules without a DTSTART. It is a leap year before the
// earliest supported year, so INTERVAL=4 yearly rules land on leap years.
var rruleEpoch = time.Date(1580, time.January, 1, 0, 0, 0, 0, time.UTC)

// firstRRuleMatch expands the full recurrence, honoring its DTSTART, INTERVAL,
// COUNT and UNTIL, and returns the first instance dated in year.
func firstRRuleMatch(expr string, year int) (calendar.Date, bool) {
	opt, err := parseRRule(expr)
	if err != nil {
		return calendar.Date{}, false
	}

	loc := time.UTC
	if opt.Dtstart.IsZero() {
		opt.Dtstart = rruleEpoch
		if opt.Interval <= 1 && opt.Count == 0 {
			// Every period matches, so starting at the year skips the walk from the epoch.
			opt.Dtstart = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	} else {
		loc = opt.Dtstart.Location()
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	next := start.AddDate(1, 0, 0)

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return calendar.Date{}, false
	}
	for _, t := range r.Between(start, next, true) {
		if t.Year() == year {
			return calendar.DateOf(t), true
		}
	}
	return calendar.Date{}, false
}

// parseRRule accepts a bare RRULE value, an "RRULE:" line, or a DTSTART line
// followed by an RRULE line.
func parseRRule(expr string) (*rrule.ROption, error) {
	var dtstart, rule string
	for _, line := range strings.FieldsFunc(expr, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "DTSTART"):
			dtstart = line
		default:
			rule = strings.TrimPrefix(line, "RRULE:")
		}
	}
	if dtstart != "" {
		rule = dtstart + "\n" + rule
	}
	return rrule.StrToROption(rule)
}

func firstOf(times []time.Time) (calendar.Date, bool) {
	if len(times) == 0 {
		return calendar.Date{}, false
	}
	return calendar.DateOf(times[0]), true
}

// shiftOffWeekend moves a weekend date to the weekday chosen by dir.
// An empty direction behaves as nearest.
func shiftOffWeekend(d calendar.Date, dir models.ShiftDirection) calendar.Date {
	wd := d.Weekday()
	switch dir {
	case models.ShiftFollowing:
		if wd == time.Saturday {
			return d.AddDays(2)
		}
		return d.AddDays(1)
	case models.ShiftPreceding:
		if wd == time.Saturday {
			return d.AddDays(-1)
		}
		return d.AddDays(-2)
	default:
		if wd == time.Saturday {
			return d.AddDays(-1)
		}
		return d.AddDays(1)
	}
}
