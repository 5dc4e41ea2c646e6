package storage

import (
	"context"
	"fmt"

	"github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// ChangeLogRepository appends to and reads the change_log table. The table
// rejects UPDATE and DELETE, so entries are immutable once written.
type ChangeLogRepository struct {
	BaseRepository
}

func NewChangeLogRepository(db *DB) *ChangeLogRepository {
	return &ChangeLogRepository{BaseRepository: NewBaseRepository(db)}
}

const entryColumns = `id, timestamp, rule_id, rule_name, region, action, before_json, after_json,
	change_description, notes, source_label, app_version`

// Append writes entry through q.
func (r *ChangeLogRepository) Append(ctx context.Context, q Queryable, entry models.ChangeLogEntry) error {
	_, err := q.ExecContext(ctx, `INSERT INTO change_log (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UTC(), entry.RuleID, entry.RuleName, entry.Region, entry.Action,
		entry.BeforeJSON, entry.AfterJSON, entry.ChangeDescription, entry.Notes,
		entry.SourceLabel, entry.AppVersion,
	)
	if err != nil {
		return fmt.Errorf("appending change log entry %s: %w", entry.ID, err)
	}
	return nil
}

// List returns entries newest first. An empty region lists every region.
func (r *ChangeLogRepository) List(ctx context.Context, region string) ([]models.ChangeLogEntry, error) {
	if region == "" {
		return r.query(ctx, `SELECT `+entryColumns+` FROM change_log ORDER BY seq DESC`)
	}
	return r.query(ctx, `SELECT `+entryColumns+` FROM change_log WHERE region = ? ORDER BY seq DESC`, region)
}

// ListForRule returns the entries of one rule oldest first.
func (r *ChangeLogRepository) ListForRule(ctx context.Context, ruleID string) ([]models.ChangeLogEntry, error) {
	return r.query(ctx, `SELECT `+entryColumns+` FROM change_log WHERE rule_id = ? ORDER BY seq`, ruleID)
}

// DeletedRuleIDs lists the IDs of rules that were deleted at some point.
func (r *ChangeLogRepository) DeletedRuleIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT DISTINCT rule_id FROM change_log WHERE action = ?`, models.ActionDeleted)
	if err != nil {
		return nil, fmt.Errorf("querying deleted rules: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// query skips rows that fail to decode or carry an unknown action or source.
func (r *ChangeLogRepository) query(ctx context.Context, query string, args ...any) ([]models.ChangeLogEntry, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change log: %w", err)
	}
	defer rows.Close()

	var entries []models.ChangeLogEntry
	for rows.Next() {
		var e models.ChangeLogEntry
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.RuleID, &e.RuleName, &e.Region, &e.Action,
			&e.BeforeJSON, &e.AfterJSON, &e.ChangeDescription, &e.Notes,
			&e.SourceLabel, &e.AppVersion,
		); err != nil {
			log.Warn("skipping unreadable change log row", "error", err.Error())
			continue
		}
		if !e.Action.Valid() || !e.SourceLabel.Valid() {
			log.Warn("skipping change log row with unknown labels",
				"id", e.ID, "action", e.Action, "source", e.SourceLabel)
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
