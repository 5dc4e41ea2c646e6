package holiday

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/holiday-engine/backend/internal/storage/models"
)

// defaultRule is one shipped rule definition. Its ID is derived from the
// region and slug and never changes between releases.
type defaultRule struct {
	slug     string
	title    string
	kind     models.RuleKind
	rec      models.Recurrence
	shift    models.ShiftPolicy
	symbol   string
	revision int
}

var observeNearest = models.ShiftPolicy{Mode: models.ShiftObserve, Direction: models.ShiftNearest}

func public(slug, title string, rec models.Recurrence, symbol string) defaultRule {
	return defaultRule{slug: slug, title: title, kind: models.KindPublicHoliday, rec: rec, shift: models.NoShift, symbol: symbol, revision: 1}
}

func observance(slug, title string, rec models.Recurrence, symbol string) defaultRule {
	return defaultRule{slug: slug, title: title, kind: models.KindObservance, rec: rec, shift: models.NoShift, symbol: symbol, revision: 1}
}

func observed(d defaultRule) defaultRule {
	d.shift = observeNearest
	return d
}

var defaultSets = map[string][]defaultRule{
	"SE": {
		public("nyarsdagen", "Nyårsdagen", models.FixedDate(time.January, 1), "sparkles"),
		public("trettondedag-jul", "Trettondedag jul", models.FixedDate(time.January, 6), "star.fill"),
		public("langfredagen", "Långfredagen", models.EasterOffset(-2), "cross.fill"),
		public("paskdagen", "Påskdagen", models.EasterOffset(0), "hare.fill"),
		public("annandag-pask", "Annandag påsk", models.EasterOffset(1), "hare.fill"),
		public("forsta-maj", "Första maj", models.FixedDate(time.May, 1), "flag.fill"),
		public("kristi-himmelsfardsdag", "Kristi himmelsfärdsdag", models.EasterOffset(39), "cloud.sun.fill"),
		public("pingstdagen", "Pingstdagen", models.EasterOffset(49), "flame.fill"),
		public("nationaldagen", "Sveriges nationaldag", models.FixedDate(time.June, 6), "flag.fill"),
		public("midsommardagen", "Midsommardagen", models.WeekdayOnOrAfter(time.June, 20, time.Saturday), "sun.max.fill"),
		public("alla-helgons-dag", "Alla helgons dag", models.WeekdayOnOrAfter(time.October, 31, time.Saturday), "candle.fill"),
		public("juldagen", "Juldagen", models.FixedDate(time.December, 25), "gift.fill"),
		public("annandag-jul", "Annandag jul", models.FixedDate(time.December, 26), "gift.fill"),
		observance("alla-hjartans-dag", "Alla hjärtans dag", models.FixedDate(time.February, 14), "heart.fill"),
		observance("valborgsmassoafton", "Valborgsmässoafton", models.FixedDate(time.April, 30), "flame"),
		observance("mors-dag", "Mors dag", models.NthWeekday(time.May, time.Sunday, 1, true), "heart"),
		observance("midsommarafton", "Midsommarafton", models.WeekdayOnOrAfter(time.June, 19, time.Friday), "leaf.fill"),
		observance("fars-dag", "Fars dag", models.NthWeekday(time.November, time.Sunday, 2, false), "heart"),
		observance("julafton", "Julafton", models.FixedDate(time.December, 24), "gift"),
		observance("nyarsafton", "Nyårsafton", models.FixedDate(time.December, 31), "sparkles"),
	},
	"US": {
		observed(public("new-years-day", "New Year's Day", models.FixedDate(time.January, 1), "sparkles")),
		public("mlk-day", "Martin Luther King Jr. Day", models.NthWeekday(time.January, time.Monday, 3, false), "person.fill"),
		public("presidents-day", "Presidents' Day", models.NthWeekday(time.February, time.Monday, 3, false), "building.columns.fill"),
		public("memorial-day", "Memorial Day", models.NthWeekday(time.May, time.Monday, 1, true), "flag.fill"),
		observed(public("juneteenth", "Juneteenth", models.FixedDate(time.June, 19), "star.fill")),
		observed(public("independence-day", "Independence Day", models.FixedDate(time.July, 4), "flag.fill")),
		public("labor-day", "Labor Day", models.NthWeekday(time.September, time.Monday, 1, false), "hammer.fill"),
		public("columbus-day", "Columbus Day", models.NthWeekday(time.October, time.Monday, 2, false), "sailboat.fill"),
		observed(public("veterans-day", "Veterans Day", models.FixedDate(time.November, 11), "medal.fill")),
		public("thanksgiving", "Thanksgiving Day", models.NthWeekday(time.November, time.Thursday, 4, false), "fork.knife"),
		observed(public("christmas-day", "Christmas Day", models.FixedDate(time.December, 25), "gift.fill")),
		observance("valentines-day", "Valentine's Day", models.FixedDate(time.February, 14), "heart.fill"),
		observance("easter-sunday", "Easter Sunday", models.EasterOffset(0), "hare.fill"),
		observance("mothers-day", "Mother's Day", models.NthWeekday(time.May, time.Sunday, 2, false), "heart"),
		observance("fathers-day", "Father's Day", models.NthWeekday(time.June, time.Sunday, 3, false), "heart"),
		observance("halloween", "Halloween", models.FixedDate(time.October, 31), "moon.stars.fill"),
	},
	"DE": {
		public("neujahr", "Neujahr", models.FixedDate(time.January, 1), "sparkles"),
		public("karfreitag", "Karfreitag", models.EasterOffset(-2), "cross.fill"),
		public("ostermontag", "Ostermontag", models.EasterOffset(1), "hare.fill"),
		public("tag-der-arbeit", "Tag der Arbeit", models.FixedDate(time.May, 1), "hammer.fill"),
		public("christi-himmelfahrt", "Christi Himmelfahrt", models.EasterOffset(39), "cloud.sun.fill"),
		public("pfingstmontag", "Pfingstmontag", models.EasterOffset(50), "flame.fill"),
		public("fronleichnam", "Fronleichnam", models.EasterOffset(60), "leaf.fill"),
		public("tag-der-deutschen-einheit", "Tag der Deutschen Einheit", models.FixedDate(time.October, 3), "flag.fill"),
		public("allerheiligen", "Allerheiligen", models.FixedDate(time.November, 1), "candle.fill"),
		public("erster-weihnachtstag", "1. Weihnachtstag", models.FixedDate(time.December, 25), "gift.fill"),
		public("zweiter-weihnachtstag", "2. Weihnachtstag", models.FixedDate(time.December, 26), "gift.fill"),
		observance("muttertag", "Muttertag", models.NthWeekday(time.May, time.Sunday, 2, false), "heart"),
		observance("heiligabend", "Heiligabend", models.FixedDate(time.December, 24), "gift"),
		observance("silvester", "Silvester", models.FixedDate(time.December, 31), "sparkles"),
	},
}

// DefaultRuleID returns the stable ID of a shipped rule.
func DefaultRuleID(region, slug string) string {
	return "default." + strings.ToLower(region) + "." + slug
}

// DefaultRegions lists the regions that ship a default rule set.
func DefaultRegions() []string {
	out := make([]string, 0, len(defaultSets))
	for r := range defaultSets {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// HasDefaults reports whether region ships a default rule set.
func HasDefaults(region string) bool {
	_, ok := defaultSets[region]
	return ok
}

// DefaultRules returns the shipped rules of region in their shipped order.
// Seq and timestamps are left for the engine to assign.
func DefaultRules(region string) ([]models.Rule, error) {
	set, ok := defaultSets[region]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefaults, region)
	}
	out := make([]models.Rule, 0, len(set))
	for _, d := range set {
		out = append(out, d.rule(region))
	}
	return out, nil
}

// DefaultsToInsert returns the shipped rules of region whose IDs are not in
// existing. Existing rules are never touched, so a second call after the
// first was applied returns nothing.
func DefaultsToInsert(region string, existing []models.Rule) ([]models.Rule, error) {
	shipped, err := DefaultRules(region)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, r := range existing {
		present[r.ID] = true
	}
	var out []models.Rule
	for _, r := range shipped {
		if !present[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// shippedDefault looks up the shipped definition behind a default rule ID.
func shippedDefault(id string) (models.Rule, bool) {
	for region, set := range defaultSets {
		for _, d := range set {
			if DefaultRuleID(region, d.slug) == id {
				return d.rule(region), true
			}
		}
	}
	return models.Rule{}, false
}

func (d defaultRule) rule(region string) models.Rule {
	return models.Rule{
		ID:          DefaultRuleID(region, d.slug),
		Region:      region,
		Kind:        d.kind,
		Recurrence:  d.rec,
		ShiftPolicy: d.shift,
		Title:       d.title,
		TitleKey:    "holiday." + strings.ToLower(region) + "." + d.slug,
		SymbolName:  d.symbol,
		IsCustom:    false,
		IsEnabled:   true,
		Revision:    d.revision,
	}
}
