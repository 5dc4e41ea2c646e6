package holiday

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/holiday-engine/backend/internal/storage/models"
)

// newEntry builds the change-log entry for a transition. The description is
// derived from the before/after snapshots only, so it is reproducible.
func newEntry(id string, ts time.Time, action models.ChangeAction, before, after *models.Rule,
	source models.ChangeSource, notes, appVersion string) (models.ChangeLogEntry, error) {

	subject := after
	if subject == nil {
		subject = before
	}
	if subject == nil {
		return models.ChangeLogEntry{}, fmt.Errorf("%w: entry without rule", ErrInvalidTransition)
	}

	beforeJSON, err := snapshotJSON(before)
	if err != nil {
		return models.ChangeLogEntry{}, err
	}
	afterJSON, err := snapshotJSON(after)
	if err != nil {
		return models.ChangeLogEntry{}, err
	}

	return models.ChangeLogEntry{
		ID:                id,
		Timestamp:         ts,
		RuleID:            subject.ID,
		RuleName:          subject.Title,
		Region:            subject.Region,
		Action:            action,
		BeforeJSON:        beforeJSON,
		AfterJSON:         afterJSON,
		ChangeDescription: Describe(action, before, after),
		Notes:             optional(notes),
		SourceLabel:       source,
		AppVersion:        optional(appVersion),
	}, nil
}

func snapshotJSON(r *models.Rule) (*string, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding rule snapshot: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeSnapshot parses a BeforeJSON/AfterJSON value. A nil input yields nil.
func DecodeSnapshot(s *string) (*models.Rule, error) {
	if s == nil {
		return nil, nil
	}
	var r models.Rule
	if err := json.Unmarshal([]byte(*s), &r); err != nil {
		return nil, fmt.Errorf("decoding rule snapshot: %w", err)
	}
	return &r, nil
}

// Replay folds the entries of one rule, oldest first, into the rule's state
// after the last entry. A nil result means the rule is deleted.
func Replay(entries []models.ChangeLogEntry) (*models.Rule, error) {
	var state *models.Rule
	for i, e := range entries {
		if i > 0 && e.RuleID != entries[0].RuleID {
			return nil, fmt.Errorf("replay: entry %s belongs to rule %s, not %s", e.ID, e.RuleID, entries[0].RuleID)
		}
		if e.Action == models.ActionDeleted {
			state = nil
			continue
		}
		after, err := DecodeSnapshot(e.AfterJSON)
		if err != nil {
			return nil, fmt.Errorf("replay: entry %s: %w", e.ID, err)
		}
		if after == nil {
			return nil, fmt.Errorf("replay: entry %s (%s) has no after snapshot", e.ID, e.Action)
		}
		state = after
	}
	return state, nil
}

// Describe renders the human-readable summary of a transition.
func Describe(action models.ChangeAction, before, after *models.Rule) string {
	switch action {
	case models.ActionCreated:
		if after != nil && after.IsCustom {
			return fmt.Sprintf("Created new custom rule %q", after.Title)
		}
		return fmt.Sprintf("Created rule %q", titleOf(after))
	case models.ActionDefaultsLoaded:
		return fmt.Sprintf("Loaded default rule %q", titleOf(after))
	case models.ActionDeleted:
		return fmt.Sprintf("Deleted rule %q", titleOf(before))
	case models.ActionEnabled:
		return "Enabled"
	case models.ActionDisabled:
		return "Disabled"
	}

	changes := diffRules(before, after)
	switch action {
	case models.ActionReset:
		if len(changes) == 0 {
			return "Reset to default"
		}
		return "Reset to default: " + strings.Join(changes, "; ")
	case models.ActionMigrated:
		if len(changes) == 0 {
			return "Migrated"
		}
		return "Migrated: " + strings.Join(changes, "; ")
	}
	if len(changes) == 0 {
		return "No changes"
	}
	return strings.Join(changes, "; ")
}

func diffRules(before, after *models.Rule) []string {
	if before == nil || after == nil {
		return nil
	}
	var out []string
	if before.Title != after.Title {
		out = append(out, fmt.Sprintf("Title changed from %q to %q", before.Title, after.Title))
	}
	if before.Recurrence != after.Recurrence {
		out = append(out, fmt.Sprintf("Date changed from %s to %s",
			DescribeRecurrence(before.Recurrence), DescribeRecurrence(after.Recurrence)))
	}
	if before.Region != after.Region {
		out = append(out, fmt.Sprintf("Region changed from %s to %s", before.Region, after.Region))
	}
	if before.Kind != after.Kind {
		out = append(out, fmt.Sprintf("Kind changed from %s to %s", kindLabel(before.Kind), kindLabel(after.Kind)))
	}
	if before.ShiftPolicy != after.ShiftPolicy {
		out = append(out, fmt.Sprintf("Weekend shift changed from %s to %s",
			shiftLabel(before.ShiftPolicy), shiftLabel(after.ShiftPolicy)))
	}
	if before.SymbolName != after.SymbolName {
		out = append(out, fmt.Sprintf("Symbol changed from %q to %q", before.SymbolName, after.SymbolName))
	}
	if before.TitleKey != after.TitleKey {
		out = append(out, fmt.Sprintf("Title key changed from %q to %q", before.TitleKey, after.TitleKey))
	}
	if before.IsEnabled != after.IsEnabled {
		if after.IsEnabled {
			out = append(out, "Enabled")
		} else {
			out = append(out, "Disabled")
		}
	}
	if before.Revision != after.Revision {
		out = append(out, fmt.Sprintf("Revision changed from %d to %d", before.Revision, after.Revision))
	}
	return out
}

// DescribeRecurrence renders a recurrence in short English, e.g. "Jan 1" or
// "4th Thursday of November".
func DescribeRecurrence(rec models.Recurrence) string {
	switch rec.Kind {
	case models.RecurrenceFixedDate:
		return fmt.Sprintf("%s %d", shortMonth(rec.Month), rec.Day)
	case models.RecurrenceNthWeekday:
		month := time.Month(rec.Month).String()
		if rec.FromEnd {
			if rec.Ordinal == 1 {
				return fmt.Sprintf("last %s of %s", rec.Weekday, month)
			}
			return fmt.Sprintf("%s to last %s of %s", ordinal(rec.Ordinal), rec.Weekday, month)
		}
		return fmt.Sprintf("%s %s of %s", ordinal(rec.Ordinal), rec.Weekday, month)
	case models.RecurrenceEasterOffset:
		switch {
		case rec.Offset == 0:
			return "Easter Sunday"
		case rec.Offset == 1:
			return "1 day after Easter"
		case rec.Offset == -1:
			return "1 day before Easter"
		case rec.Offset > 0:
			return fmt.Sprintf("%d days after Easter", rec.Offset)
		default:
			return fmt.Sprintf("%d days before Easter", -rec.Offset)
		}
	case models.RecurrenceOneOff:
		return rec.Date
	case models.RecurrenceWeekdayOnOrAfter:
		return fmt.Sprintf("first %s on or after %s %d", rec.Weekday, shortMonth(rec.Month), rec.Day)
	case models.RecurrenceRRule:
		return "RRULE " + rec.Expr
	}
	return string(rec.Kind)
}

func shortMonth(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return time.Month(m).String()[:3]
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func kindLabel(k models.RuleKind) string {
	if k == models.KindPublicHoliday {
		return "public holiday"
	}
	return string(k)
}

func shiftLabel(p models.ShiftPolicy) string {
	if p.Mode == models.ShiftNone || p.Mode == "" {
		return "none"
	}
	dir := p.Direction
	if dir == "" {
		dir = models.ShiftNearest
	}
	return fmt.Sprintf("%s (%s)", p.Mode, dir)
}

func titleOf(r *models.Rule) string {
	if r == nil {
		return ""
	}
	return r.Title
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
