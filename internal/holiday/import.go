package holiday

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/holiday-engine/backend/internal/calendar"
	appLog "github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// ImportResult reports what ImportOneOffs did.
type ImportResult struct {
	Created []models.Rule `json:"created"`
	Skipped int           `json:"skipped"`
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// ImportedRuleID derives a stable rule ID for an imported event, so importing
// the same feed twice creates nothing new.
func ImportedRuleID(region string, ev calendar.ImportedEvent) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(ev.UID), "-"), "-")
	return "import." + strings.ToLower(region) + "." + slug + "." + ev.Date.String()
}

// ImportOneOffs creates one custom one-off rule per event in region, each
// recorded as its own created entry. Events already imported, or imported and
// later deleted, are skipped. origin names the feed in the entry notes.
func (e *Engine) ImportOneOffs(ctx context.Context, region string, kind models.RuleKind,
	events []calendar.ImportedEvent, origin string) (ImportResult, error) {

	var res ImportResult
	region, err := NormalizeRegion(region)
	if err != nil {
		return res, err
	}
	if kind == "" {
		kind = models.KindObservance
	}
	notes := "Imported from calendar"
	if origin != "" {
		notes = "Imported from " + origin
	}

	for _, ev := range events {
		rule := models.Rule{
			ID:          ImportedRuleID(region, ev),
			Region:      region,
			Kind:        kind,
			Recurrence:  models.OneOff(ev.Date.String()),
			ShiftPolicy: models.NoShift,
			Title:       ev.Summary,
			IsEnabled:   true,
		}
		created, _, err := e.CreateRule(ctx, rule, notes)
		if errors.Is(err, ErrRuleExists) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Created = append(res.Created, created)
	}

	appLog.Info("calendar imported", "region", region, "created", len(res.Created), "skipped", res.Skipped)
	return res, nil
}
