package holiday

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_AreValid(t *testing.T) {
	for _, region := range DefaultRegions() {
		rules, err := DefaultRules(region)
		require.NoError(t, err)
		require.NotEmpty(t, rules)

		seen := map[string]bool{}
		for _, r := range rules {
			assert.NoError(t, ValidateRule(r), r.ID)
			assert.False(t, r.IsCustom, r.ID)
			assert.True(t, r.IsEnabled, r.ID)
			assert.Equal(t, region, r.Region)
			assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
			seen[r.ID] = true

			for year := 2020; year <= 2035; year++ {
				assert.NotNil(t, Evaluate(r, year), "%s has no date in %d", r.ID, year)
			}
		}
	}
}

func TestDefaultRules_UnknownRegion(t *testing.T) {
	_, err := DefaultRules("XX")
	assert.ErrorIs(t, err, ErrUnknownDefaults)
	assert.False(t, HasDefaults("XX"))
	assert.True(t, HasDefaults("US"))
}

func TestDefaultsToInsert_IsIdempotent(t *testing.T) {
	first, err := DefaultsToInsert("US", nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := DefaultsToInsert("US", first)
	require.NoError(t, err)
	assert.Empty(t, second)

	partial, err := DefaultsToInsert("US", first[:3])
	require.NoError(t, err)
	assert.Len(t, partial, len(first)-3)
}

func TestSwedishMovableDefaults(t *testing.T) {
	rules, err := DefaultRules("SE")
	require.NoError(t, err)
	byID := map[string]int{}
	for i, r := range rules {
		byID[r.ID] = i
	}

	midsummer := rules[byID[DefaultRuleID("SE", "midsommardagen")]]
	assert.Equal(t, "2025-06-21", Evaluate(midsummer, 2025).Date.String())

	allSaints := rules[byID[DefaultRuleID("SE", "alla-helgons-dag")]]
	assert.Equal(t, "2025-11-01", Evaluate(allSaints, 2025).Date.String())

	ascension := rules[byID[DefaultRuleID("SE", "kristi-himmelsfardsdag")]]
	assert.Equal(t, "2025-05-29", Evaluate(ascension, 2025).Date.String())
}

func TestShippedDefault(t *testing.T) {
	r, ok := shippedDefault("default.us.thanksgiving")
	require.True(t, ok)
	assert.Equal(t, "US", r.Region)
	assert.Equal(t, "Thanksgiving Day", r.Title)

	_, ok = shippedDefault("custom.123")
	assert.False(t, ok)
}
