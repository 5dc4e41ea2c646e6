package models

import "time"

// ChangeAction names the kind of mutation a change-log entry records.
type ChangeAction string

const (
	ActionCreated        ChangeAction = "created"
	ActionModified       ChangeAction = "modified"
	ActionDeleted        ChangeAction = "deleted"
	ActionEnabled        ChangeAction = "enabled"
	ActionDisabled       ChangeAction = "disabled"
	ActionReset          ChangeAction = "reset"
	ActionMigrated       ChangeAction = "migrated"
	ActionDefaultsLoaded ChangeAction = "defaults_loaded"
)

// Valid reports whether a is a known action.
func (a ChangeAction) Valid() bool {
	switch a {
	case ActionCreated, ActionModified, ActionDeleted, ActionEnabled,
		ActionDisabled, ActionReset, ActionMigrated, ActionDefaultsLoaded:
		return true
	}
	return false
}

// ChangeSource records who or what triggered a change.
type ChangeSource string

const (
	SourceUser      ChangeSource = "user"
	SourceSystem    ChangeSource = "system"
	SourceMigration ChangeSource = "migration"
)

// Valid reports whether s is a known source.
func (s ChangeSource) Valid() bool {
	return s == SourceUser || s == SourceSystem || s == SourceMigration
}

// ChangeLogEntry is one immutable audit record of a rule mutation.
// BeforeJSON and AfterJSON hold serialized Rule snapshots.
type ChangeLogEntry struct {
	ID                string       `json:"id"`
	Timestamp         time.Time    `json:"timestamp"`
	RuleID            string       `json:"rule_id"`
	RuleName          string       `json:"rule_name"`
	Region            string       `json:"region"`
	Action            ChangeAction `json:"action"`
	BeforeJSON        *string      `json:"before_json,omitempty"`
	AfterJSON         *string      `json:"after_json,omitempty"`
	ChangeDescription string       `json:"change_description"`
	Notes             *string      `json:"notes,omitempty"`
	SourceLabel       ChangeSource `json:"source_label"`
	AppVersion        *string      `json:"app_version,omitempty"`
}

// RuleChange pairs a rule write with the entry that records it.
// Exactly one of Upsert and DeleteID is set.
type RuleChange struct {
	Upsert   *Rule
	DeleteID string
	Entry    ChangeLogEntry
}
