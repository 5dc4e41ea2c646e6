package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/storage"
	"github.com/holiday-engine/backend/internal/storage/models"
)

var _ holiday.Store = (*storage.Store)(nil)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "holidays.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(context.Background(), db))
	return db
}

func sampleRule(id string, seq int64) models.Rule {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return models.Rule{
		ID:          id,
		Seq:         seq,
		Region:      "SE",
		Kind:        models.KindPublicHoliday,
		Recurrence:  models.NthWeekday(time.May, time.Monday, 1, true),
		ShiftPolicy: models.ShiftPolicy{Mode: models.ShiftObserve, Direction: models.ShiftNearest},
		Title:       "Company Day",
		TitleKey:    "holiday.se.company",
		SymbolName:  "star",
		IsCustom:    true,
		IsEnabled:   true,
		Revision:    1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func sampleEntry(id string, rule models.Rule, action models.ChangeAction) models.ChangeLogEntry {
	after := `{"id":"` + rule.ID + `"}`
	notes := "note"
	return models.ChangeLogEntry{
		ID:                id,
		Timestamp:         rule.UpdatedAt,
		RuleID:            rule.ID,
		RuleName:          rule.Title,
		Region:            rule.Region,
		Action:            action,
		AfterJSON:         &after,
		ChangeDescription: "Created",
		Notes:             &notes,
		SourceLabel:       models.SourceUser,
	}
}

func TestRunMigrations_IsRepeatable(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, storage.RunMigrations(context.Background(), db))
}

func TestStore_ApplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(openTestDB(t))

	rule := sampleRule("custom.1", 1)
	entry := sampleEntry("e1", rule, models.ActionCreated)
	require.NoError(t, store.Apply(ctx, models.RuleChange{Upsert: &rule, Entry: entry}))

	rules, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rule.Equal(rules[0]), "stored %+v", rules[0])

	entries, err := store.RuleEntries(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Nil(t, entries[0].BeforeJSON)
	require.NotNil(t, entries[0].AfterJSON)
	assert.Equal(t, *entry.AfterJSON, *entries[0].AfterJSON)
	assert.True(t, entry.Timestamp.Equal(entries[0].Timestamp))
	assert.Nil(t, entries[0].AppVersion)
}

func TestStore_ApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(openTestDB(t))

	first := sampleRule("custom.1", 1)
	require.NoError(t, store.Apply(ctx, models.RuleChange{Upsert: &first, Entry: sampleEntry("e1", first, models.ActionCreated)}))

	// The second entry reuses ID e1, so the whole batch must roll back.
	second := sampleRule("custom.2", 2)
	third := sampleRule("custom.3", 3)
	err := store.Apply(ctx,
		models.RuleChange{Upsert: &second, Entry: sampleEntry("e2", second, models.ActionCreated)},
		models.RuleChange{Upsert: &third, Entry: sampleEntry("e1", third, models.ActionCreated)},
	)
	require.Error(t, err)

	rules, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	entries, err := store.Entries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_DeleteRetiresID(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(openTestDB(t))

	rule := sampleRule("custom.1", 1)
	require.NoError(t, store.Apply(ctx, models.RuleChange{Upsert: &rule, Entry: sampleEntry("e1", rule, models.ActionCreated)}))
	require.NoError(t, store.Apply(ctx, models.RuleChange{DeleteID: rule.ID, Entry: sampleEntry("e2", rule, models.ActionDeleted)}))

	rules, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	retired, err := store.RetiredRuleIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom.1"}, retired)

	entries, err := store.Entries(ctx, "SE")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID, "newest first")
}

func TestChangeLog_IsAppendOnly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := storage.NewStore(db)

	rule := sampleRule("custom.1", 1)
	require.NoError(t, store.Apply(ctx, models.RuleChange{Upsert: &rule, Entry: sampleEntry("e1", rule, models.ActionCreated)}))

	_, err := db.ExecContext(ctx, `UPDATE change_log SET notes = 'edited'`)
	assert.Error(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM change_log`)
	assert.Error(t, err)
}

func TestStore_SkipsCorruptRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := storage.NewStore(db)

	rule := sampleRule("custom.1", 1)
	require.NoError(t, store.Apply(ctx, models.RuleChange{Upsert: &rule, Entry: sampleEntry("e1", rule, models.ActionCreated)}))

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `INSERT INTO rules (id, seq, region, kind, recurrence, title, created_at, updated_at)
		VALUES ('broken', 2, 'SE', 'observance', 'not json', 'Broken', ?, ?)`, now, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO change_log (id, timestamp, rule_id, rule_name, region, action, change_description, source_label)
		VALUES ('bad', ?, 'custom.1', 'x', 'SE', 'exploded', 'x', 'user')`, now)
	require.NoError(t, err)

	rules, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "custom.1", rules[0].ID)

	entries, err := store.RuleEntries(ctx, "custom.1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
}

func TestStore_Regions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(openTestDB(t))

	codes, err := store.LoadRegions(ctx)
	require.NoError(t, err)
	assert.Nil(t, codes)

	require.NoError(t, store.SaveRegions(ctx, []string{"SE", "US"}))
	codes, err = store.LoadRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SE", "US"}, codes)

	require.NoError(t, store.SaveRegions(ctx, nil))
	codes, err = store.LoadRegions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, codes)
	assert.Empty(t, codes)
}

func TestEngineOverSQLite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	engine := holiday.New(storage.NewStore(db), holiday.WithInitialRegions("US"))
	require.NoError(t, engine.Open(ctx, 2025))
	inserted, err := engine.LoadDefaults(ctx, "US")
	require.NoError(t, err)
	require.NotEmpty(t, inserted)

	// A fresh engine over the same database sees the same state.
	reopened := holiday.New(storage.NewStore(db))
	require.NoError(t, reopened.Open(ctx, 2025))
	assert.Equal(t, []string{"US"}, reopened.Regions())
	assert.Len(t, reopened.Rules("US"), len(inserted))

	id := holiday.DefaultRuleID("US", "independence-day")
	current, ok := reopened.Rule(id)
	require.True(t, ok)
	replayed, err := reopened.Reconstruct(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, replayed)
	assert.True(t, current.Equal(*replayed))
}
