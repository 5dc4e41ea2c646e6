package holiday

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/storage/models"
)

var regionPattern = regexp.MustCompile(`^[A-Z]{2,3}(-[A-Z0-9]{1,3})?$`)

// NormalizeRegion upper-cases and trims code and checks its shape
// ("SE", "US", "DE-NW").
func NormalizeRegion(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !regionPattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, code)
	}
	return code, nil
}

// ValidateRule checks that a rule is structurally sound. A rule can pass
// validation and still have no occurrence in a given year.
func ValidateRule(r models.Rule) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if _, err := NormalizeRegion(r.Region); err != nil || r.Region != strings.ToUpper(r.Region) {
		return fmt.Errorf("%w: region %q", ErrInvalidRule, r.Region)
	}
	if r.Kind != models.KindPublicHoliday && r.Kind != models.KindObservance {
		return fmt.Errorf("%w: kind %q", ErrInvalidRule, r.Kind)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRule)
	}
	if err := validateRecurrence(r.Recurrence); err != nil {
		return err
	}
	return validateShift(r.ShiftPolicy)
}

func validateRecurrence(rec models.Recurrence) error {
	switch rec.Kind {
	case models.RecurrenceFixedDate:
		return validateMonthDay(rec.Month, rec.Day)

	case models.RecurrenceNthWeekday:
		if rec.Month < 1 || rec.Month > 12 {
			return fmt.Errorf("%w: month %d", ErrInvalidRule, rec.Month)
		}
		if err := validateWeekday(rec.Weekday); err != nil {
			return err
		}
		if rec.Ordinal < 1 || rec.Ordinal > 5 {
			return fmt.Errorf("%w: ordinal %d", ErrInvalidRule, rec.Ordinal)
		}

	case models.RecurrenceEasterOffset:
		if rec.Offset < -366 || rec.Offset > 366 {
			return fmt.Errorf("%w: easter offset %d", ErrInvalidRule, rec.Offset)
		}

	case models.RecurrenceOneOff:
		if _, err := calendar.ParseDate(rec.Date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}

	case models.RecurrenceWeekdayOnOrAfter:
		if err := validateMonthDay(rec.Month, rec.Day); err != nil {
			return err
		}
		return validateWeekday(rec.Weekday)

	case models.RecurrenceRRule:
		if _, err := parseRRule(rec.Expr); err != nil {
			return fmt.Errorf("%w: rrule %q: %v", ErrInvalidRule, rec.Expr, err)
		}

	default:
		return fmt.Errorf("%w: recurrence kind %q", ErrInvalidRule, rec.Kind)
	}
	return nil
}

// validateMonthDay accepts any day that exists in at least one year, so
// Feb 29 is allowed.
func validateMonthDay(month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidRule, month)
	}
	if _, ok := calendar.NewDate(2024, time.Month(month), day); !ok {
		return fmt.Errorf("%w: day %d of month %d", ErrInvalidRule, day, month)
	}
	return nil
}

func validateWeekday(wd time.Weekday) error {
	if wd < time.Sunday || wd > time.Saturday {
		return fmt.Errorf("%w: weekday %d", ErrInvalidRule, wd)
	}
	return nil
}

func validateShift(p models.ShiftPolicy) error {
	switch p.Mode {
	case models.ShiftNone, "":
		return nil
	case models.ShiftReplace, models.ShiftObserve:
	default:
		return fmt.Errorf("%w: shift mode %q", ErrInvalidRule, p.Mode)
	}
	switch p.Direction {
	case models.ShiftNearest, models.ShiftFollowing, models.ShiftPreceding, "":
		return nil
	}
	return fmt.Errorf("%w: shift direction %q", ErrInvalidRule, p.Direction)
}
