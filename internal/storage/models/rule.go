// Package models contains the storable shapes of the holiday engine.
package models

import (
	"time"
)

// RuleKind classifies a rule as a non-working public holiday or an observance.
type RuleKind string

const (
	KindPublicHoliday RuleKind = "public_holiday"
	KindObservance    RuleKind = "observance"
)

// RecurrenceKind selects how a Recurrence resolves to a date in a year.
type RecurrenceKind string

const (
	RecurrenceFixedDate        RecurrenceKind = "fixed_date"
	RecurrenceNthWeekday       RecurrenceKind = "nth_weekday"
	RecurrenceEasterOffset     RecurrenceKind = "easter_offset"
	RecurrenceOneOff           RecurrenceKind = "one_off"
	RecurrenceWeekdayOnOrAfter RecurrenceKind = "weekday_on_or_after"
	RecurrenceRRule            RecurrenceKind = "rrule"
)

// Recurrence is a tagged union; only the fields relevant to Kind are set.
type Recurrence struct {
	Kind    RecurrenceKind `json:"kind"`
	Month   int            `json:"month,omitempty"`
	Day     int            `json:"day,omitempty"`
	Weekday time.Weekday   `json:"weekday"`           // 0 = Sunday
	Ordinal int            `json:"ordinal,omitempty"` // 1-based
	FromEnd bool           `json:"from_end,omitempty"`
	Offset  int            `json:"offset,omitempty"` // days relative to Easter Sunday
	Date    string         `json:"date,omitempty"`   // "2006-01-02", one-off only
	Expr    string         `json:"expr,omitempty"`   // RFC 5545 RRULE, rrule only
}

// FixedDate recurs on the same month and day every year.
func FixedDate(month time.Month, day int) Recurrence {
	return Recurrence{Kind: RecurrenceFixedDate, Month: int(month), Day: day}
}

// NthWeekday recurs on the ordinal-th weekday of month, counted from the
// last day of the month when fromEnd is set.
func NthWeekday(month time.Month, weekday time.Weekday, ordinal int, fromEnd bool) Recurrence {
	return Recurrence{Kind: RecurrenceNthWeekday, Month: int(month), Weekday: weekday, Ordinal: ordinal, FromEnd: fromEnd}
}

// EasterOffset recurs days after (before, when negative) Easter Sunday.
func EasterOffset(days int) Recurrence {
	return Recurrence{Kind: RecurrenceEasterOffset, Offset: days}
}

// OneOff happens once, on date ("2006-01-02").
func OneOff(date string) Recurrence {
	return Recurrence{Kind: RecurrenceOneOff, Date: date}
}

// WeekdayOnOrAfter recurs on the first weekday falling on or after month/day.
func WeekdayOnOrAfter(month time.Month, day int, weekday time.Weekday) Recurrence {
	return Recurrence{Kind: RecurrenceWeekdayOnOrAfter, Month: int(month), Day: day, Weekday: weekday}
}

// RRule recurs on the first match of an RFC 5545 RRULE within each year.
func RRule(expr string) Recurrence {
	return Recurrence{Kind: RecurrenceRRule, Expr: expr}
}

// ShiftMode controls what happens when a rule lands on a weekend.
type ShiftMode string

const (
	ShiftNone    ShiftMode = "none"
	ShiftReplace ShiftMode = "replace" // the occurrence moves to the weekday
	ShiftObserve ShiftMode = "observe" // an observed copy is added on the weekday
)

// ShiftDirection picks the substitute weekday.
type ShiftDirection string

const (
	ShiftNearest   ShiftDirection = "nearest" // Saturday -> Friday, Sunday -> Monday
	ShiftFollowing ShiftDirection = "following"
	ShiftPreceding ShiftDirection = "preceding"
)

// ShiftPolicy is the weekend-shift configuration of a rule.
type ShiftPolicy struct {
	Mode      ShiftMode      `json:"mode"`
	Direction ShiftDirection `json:"direction,omitempty"`
}

// NoShift leaves weekend dates where they fall.
var NoShift = ShiftPolicy{Mode: ShiftNone}

// Rule is the declarative description of a holiday or observance.
type Rule struct {
	ID          string      `json:"id"`
	Seq         int64       `json:"seq"`
	Region      string      `json:"region"`
	Kind        RuleKind    `json:"kind"`
	Recurrence  Recurrence  `json:"recurrence"`
	ShiftPolicy ShiftPolicy `json:"shift_policy"`
	Title       string      `json:"title"`
	TitleKey    string      `json:"title_key,omitempty"`
	SymbolName  string      `json:"symbol_name,omitempty"`
	IsCustom    bool        `json:"is_custom"`
	IsEnabled   bool        `json:"is_enabled"`
	Revision    int         `json:"revision"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsRedDay reports whether occurrences of the rule are non-working days.
func (r Rule) IsRedDay() bool {
	return r.Kind == KindPublicHoliday
}

// Equal reports whether two rules have identical field values.
func (r Rule) Equal(o Rule) bool {
	return r.ID == o.ID &&
		r.Seq == o.Seq &&
		r.Region == o.Region &&
		r.Kind == o.Kind &&
		r.Recurrence == o.Recurrence &&
		r.ShiftPolicy == o.ShiftPolicy &&
		r.Title == o.Title &&
		r.TitleKey == o.TitleKey &&
		r.SymbolName == o.SymbolName &&
		r.IsCustom == o.IsCustom &&
		r.IsEnabled == o.IsEnabled &&
		r.Revision == o.Revision &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		r.UpdatedAt.Equal(o.UpdatedAt)
}
