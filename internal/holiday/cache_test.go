package holiday

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holiday-engine/backend/internal/storage/models"
)

func cacheFixture() []models.Rule {
	newYearSE := testRule("se.newyear", models.FixedDate(time.January, 1))
	newYearSE.Seq = 1

	eve := testRule("se.nyarsafton", models.FixedDate(time.December, 31))
	eve.Kind = models.KindObservance
	eve.Seq = 2

	newYearUS := testRule("us.newyear", models.FixedDate(time.January, 1))
	newYearUS.Region = "US"
	newYearUS.Seq = 3

	disabled := testRule("se.disabled", models.FixedDate(time.March, 3))
	disabled.IsEnabled = false
	disabled.Seq = 4

	// Observance created before the public holiday sharing its date.
	flagDay := testRule("se.flagday", models.FixedDate(time.June, 6))
	flagDay.Kind = models.KindObservance
	flagDay.Seq = 5
	national := testRule("se.national", models.FixedDate(time.June, 6))
	national.Seq = 6

	return []models.Rule{newYearSE, eve, newYearUS, disabled, flagDay, national}
}

func TestCalculateHolidays_FiltersRegionsAndDisabledRules(t *testing.T) {
	days := CalculateHolidays(cacheFixture(), []string{"SE"}, 2025)

	jan1 := days[mustDate(t, "2025-01-01")]
	require.Len(t, jan1, 1)
	assert.Equal(t, "se.newyear", jan1[0].RuleID)

	_, ok := days[mustDate(t, "2025-03-03")]
	assert.False(t, ok, "disabled rule must not produce occurrences")

	for _, occs := range days {
		for _, occ := range occs {
			assert.Equal(t, "SE", occ.Region)
		}
	}
}

func TestCalculateHolidays_CoversAdjacentYears(t *testing.T) {
	days := CalculateHolidays(cacheFixture(), []string{"SE"}, 2025)

	for _, d := range []string{"2024-01-01", "2025-01-01", "2026-01-01"} {
		assert.Contains(t, days, mustDate(t, d))
	}
	assert.NotContains(t, days, mustDate(t, "2023-01-01"))
	assert.NotContains(t, days, mustDate(t, "2027-01-01"))
}

func TestCalculateHolidays_OrdersPublicBeforeObservance(t *testing.T) {
	days := CalculateHolidays(cacheFixture(), []string{"SE", "US"}, 2025)

	june6 := days[mustDate(t, "2025-06-06")]
	require.Len(t, june6, 2)
	assert.Equal(t, "se.national", june6[0].RuleID)
	assert.Equal(t, "se.flagday", june6[1].RuleID)

	jan1 := days[mustDate(t, "2025-01-01")]
	require.Len(t, jan1, 2)
	assert.Equal(t, "se.newyear", jan1[0].RuleID, "lower creation order first")
	assert.Equal(t, "us.newyear", jan1[1].RuleID)
}

func TestCalculateHolidays_IsIdempotent(t *testing.T) {
	rules := cacheFixture()
	first := CalculateHolidays(rules, []string{"SE", "US"}, 2025)
	second := CalculateHolidays(rules, []string{"SE", "US"}, 2025)
	assert.Equal(t, first, second)
}

func TestCalculate_AddsObservedCopy(t *testing.T) {
	july4 := testRule("us.july4", models.FixedDate(time.July, 4))
	july4.Region = "US"
	july4.ShiftPolicy = models.ShiftPolicy{Mode: models.ShiftObserve, Direction: models.ShiftNearest}

	snap, err := Calculate(context.Background(), []models.Rule{july4}, []string{"US"}, 2026, 2, nil)
	require.NoError(t, err)

	nominal := snap.On(mustDate(t, "2026-07-04"))
	require.Len(t, nominal, 1)
	assert.False(t, nominal[0].IsObserved)

	observed := snap.On(mustDate(t, "2026-07-03"))
	require.Len(t, observed, 1)
	assert.True(t, observed[0].IsObserved)
	assert.Equal(t, "us.july4", observed[0].RuleID)
}

func TestCalculate_UsesTitleResolver(t *testing.T) {
	rule := testRule("se.newyear", models.FixedDate(time.January, 1))
	rule.TitleKey = "holiday.se.nyarsdagen"
	resolver := TitleResolverFunc(func(r models.Rule) string {
		if r.TitleKey == "holiday.se.nyarsdagen" {
			return "New Year's Day"
		}
		return ""
	})

	snap, err := Calculate(context.Background(), []models.Rule{rule}, []string{"SE"}, 2025, 1, resolver)
	require.NoError(t, err)
	occs := snap.On(mustDate(t, "2025-01-01"))
	require.Len(t, occs, 1)
	assert.Equal(t, "New Year's Day", occs[0].DisplayTitle)
}

func TestCalculate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Calculate(ctx, cacheFixture(), []string{"SE"}, 2025, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_Queries(t *testing.T) {
	snap, err := Calculate(context.Background(), cacheFixture(), []string{"SE"}, 2025, 4, nil)
	require.NoError(t, err)

	assert.True(t, snap.Covers(2024))
	assert.True(t, snap.Covers(2026))
	assert.False(t, snap.Covers(2027))

	all := snap.InYear(2025, false)
	red := snap.InYear(2025, true)
	assert.Len(t, all, 4)
	assert.Len(t, red, 2)
	for _, occ := range red {
		assert.True(t, occ.IsRedDay)
	}

	next := snap.Upcoming(mustDate(t, "2025-06-01"), 2)
	require.Len(t, next, 2)
	assert.Equal(t, "2025-06-06", next[0].Date.String())
	assert.Equal(t, "se.national", next[0].RuleID)
	assert.Equal(t, "se.flagday", next[1].RuleID)

	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.On(mustDate(t, "2025-01-01")))
	assert.Zero(t, nilSnap.Len())
}
