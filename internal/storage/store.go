package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/holiday-engine/backend/internal/storage/models"
)

// RegionsSettingKey holds the persisted region selection. The engine owns it.
const RegionsSettingKey = "regions"

// Store backs the holiday engine: rules, change log and region selection
// in one SQLite database.
type Store struct {
	db        *DB
	rules     *RuleRepository
	changeLog *ChangeLogRepository
	settings  *SettingsRepository
}

func NewStore(db *DB) *Store {
	return &Store{
		db:        db,
		rules:     NewRuleRepository(db),
		changeLog: NewChangeLogRepository(db),
		settings:  NewSettingsRepository(db),
	}
}

func (s *Store) LoadRules(ctx context.Context) ([]models.Rule, error) {
	return s.rules.List(ctx)
}

func (s *Store) RetiredRuleIDs(ctx context.Context) ([]string, error) {
	return s.changeLog.DeletedRuleIDs(ctx)
}

// Apply writes every rule change and its entry in a single transaction.
func (s *Store) Apply(ctx context.Context, changes ...models.RuleChange) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, c := range changes {
			var err error
			if c.Upsert != nil {
				err = s.rules.Upsert(ctx, tx, *c.Upsert)
			} else {
				err = s.rules.Delete(ctx, tx, c.DeleteID)
			}
			if err != nil {
				return err
			}
			if err := s.changeLog.Append(ctx, tx, c.Entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Entries(ctx context.Context, region string) ([]models.ChangeLogEntry, error) {
	return s.changeLog.List(ctx, region)
}

func (s *Store) RuleEntries(ctx context.Context, ruleID string) ([]models.ChangeLogEntry, error) {
	return s.changeLog.ListForRule(ctx, ruleID)
}

// LoadRegions returns nil when no selection has been saved yet.
func (s *Store) LoadRegions(ctx context.Context) ([]string, error) {
	raw, ok, err := s.settings.Get(ctx, RegionsSettingKey)
	if err != nil || !ok {
		return nil, err
	}
	codes := []string{}
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, fmt.Errorf("decoding region selection: %w", err)
	}
	return codes, nil
}

func (s *Store) SaveRegions(ctx context.Context, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("encoding region selection: %w", err)
	}
	return s.settings.Set(ctx, RegionsSettingKey, string(raw))
}

// Settings exposes the key/value settings table.
func (s *Store) Settings() *SettingsRepository {
	return s.settings
}
