package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// RuleRepository provides data access for holiday rules.
type RuleRepository struct {
	BaseRepository
}

func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{BaseRepository: NewBaseRepository(db)}
}

const ruleColumns = `id, seq, region, kind, recurrence, shift_mode, shift_direction,
	title, title_key, symbol_name, is_custom, is_enabled, revision, created_at, updated_at`

// List returns every stored rule ordered by creation sequence. Rows that
// cannot be decoded are logged and skipped.
func (r *RuleRepository) List(ctx context.Context) ([]models.Rule, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			log.Warn("skipping unreadable rule row", "error", err.Error())
			continue
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetByID returns the rule with id, or nil when there is none.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.Rule, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying rule: %w", err)
	}
	return &rule, nil
}

// Upsert inserts rule or replaces the stored row with the same ID.
func (r *RuleRepository) Upsert(ctx context.Context, q Queryable, rule models.Rule) error {
	rec, err := json.Marshal(rule.Recurrence)
	if err != nil {
		return fmt.Errorf("encoding recurrence: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			region = excluded.region,
			kind = excluded.kind,
			recurrence = excluded.recurrence,
			shift_mode = excluded.shift_mode,
			shift_direction = excluded.shift_direction,
			title = excluded.title,
			title_key = excluded.title_key,
			symbol_name = excluded.symbol_name,
			is_custom = excluded.is_custom,
			is_enabled = excluded.is_enabled,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`,
		rule.ID, rule.Seq, rule.Region, rule.Kind, string(rec),
		rule.ShiftPolicy.Mode, rule.ShiftPolicy.Direction,
		rule.Title, rule.TitleKey, rule.SymbolName,
		rule.IsCustom, rule.IsEnabled, rule.Revision,
		rule.CreatedAt.UTC(), rule.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting rule %s: %w", rule.ID, err)
	}
	return nil
}

// Delete removes the rule with id.
func (r *RuleRepository) Delete(ctx context.Context, q Queryable, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting rule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deleting rule %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (models.Rule, error) {
	var (
		rule      models.Rule
		rec       string
		shiftMode string
		shiftDir  string
	)
	err := s.Scan(
		&rule.ID, &rule.Seq, &rule.Region, &rule.Kind, &rec, &shiftMode, &shiftDir,
		&rule.Title, &rule.TitleKey, &rule.SymbolName,
		&rule.IsCustom, &rule.IsEnabled, &rule.Revision,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return models.Rule{}, err
	}
	if err := json.Unmarshal([]byte(rec), &rule.Recurrence); err != nil {
		return models.Rule{}, fmt.Errorf("rule %s: decoding recurrence: %w", rule.ID, err)
	}
	if rule.Kind != models.KindPublicHoliday && rule.Kind != models.KindObservance {
		return models.Rule{}, fmt.Errorf("rule %s: unknown kind %q", rule.ID, rule.Kind)
	}
	rule.ShiftPolicy = models.ShiftPolicy{Mode: models.ShiftMode(shiftMode), Direction: models.ShiftDirection(shiftDir)}
	return rule, nil
}
