package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// RuleRequest is the editable part of a rule. Creating and replacing a rule
// use the same body.
type RuleRequest struct {
	ID          string              `json:"id" validate:"omitempty,max=128"`
	Region      string              `json:"region" validate:"required,min=2,max=7"`
	Kind        models.RuleKind     `json:"kind" validate:"required,oneof=public_holiday observance"`
	Recurrence  models.Recurrence   `json:"recurrence"`
	ShiftPolicy *models.ShiftPolicy `json:"shift_policy"`
	Title       string              `json:"title" validate:"required,max=200"`
	TitleKey    string              `json:"title_key" validate:"max=200"`
	SymbolName  string              `json:"symbol_name" validate:"max=100"`
	IsEnabled   *bool               `json:"is_enabled"`
	Notes       string              `json:"notes" validate:"max=1000"`
}

// apply copies the request onto r, leaving identity and provenance alone.
func (req RuleRequest) apply(r *models.Rule) {
	r.Region = strings.ToUpper(strings.TrimSpace(req.Region))
	r.Kind = req.Kind
	r.Recurrence = req.Recurrence
	r.ShiftPolicy = models.NoShift
	if req.ShiftPolicy != nil {
		r.ShiftPolicy = *req.ShiftPolicy
	}
	r.Title = strings.TrimSpace(req.Title)
	r.TitleKey = req.TitleKey
	r.SymbolName = req.SymbolName
	if req.IsEnabled != nil {
		r.IsEnabled = *req.IsEnabled
	}
}

// NotesRequest carries the optional note of a state change.
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// RuleMutationResponse returns the stored rule and the entry that recorded
// the change. Entry is null when the request changed nothing.
type RuleMutationResponse struct {
	Rule  models.Rule            `json:"rule"`
	Entry *models.ChangeLogEntry `json:"entry"`
}

// RuleResponse is a rule plus its occurrence in the focus year, if any.
type RuleResponse struct {
	Rule       models.Rule         `json:"rule"`
	FocusYear  int                 `json:"focus_year"`
	Occurrence *holiday.Occurrence `json:"occurrence"`
}

// ListRules returns the stored rules in creation order, optionally for ?region=.
func ListRules(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		region := r.URL.Query().Get("region")
		if region != "" {
			var err error
			if region, err = holiday.NormalizeRegion(region); err != nil {
				writeEngineError(w, err, "list rules")
				return
			}
		}
		rules := engine.Rules(region)
		if rules == nil {
			rules = []models.Rule{}
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

// GetRule returns one rule.
func GetRule(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, ok := engine.Rule(mux.Vars(r)["id"])
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Rule not found")
			return
		}
		year := engine.FocusYear()
		occ := holiday.Evaluate(rule, year)
		if occ != nil {
			occ.DisplayTitle = rule.Title
		}
		writeJSON(w, http.StatusOK, RuleResponse{Rule: rule, FocusYear: year, Occurrence: occ})
	}
}

// CreateRule adds a custom rule.
func CreateRule(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RuleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		rule := models.Rule{ID: strings.TrimSpace(req.ID), IsEnabled: true}
		req.apply(&rule)

		stored, entry, err := engine.CreateRule(r.Context(), rule, req.Notes)
		if err != nil {
			writeEngineError(w, err, "create rule")
			return
		}
		writeJSON(w, http.StatusCreated, RuleMutationResponse{Rule: stored, Entry: &entry})
	}
}

// UpdateRule replaces the editable fields of a rule.
func UpdateRule(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RuleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := mux.Vars(r)["id"]
		if req.ID != "" && req.ID != id {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Rule id cannot change")
			return
		}

		stored, entry, err := engine.UpdateRule(r.Context(), id, req.apply, req.Notes)
		if err != nil {
			writeEngineError(w, err, "update rule")
			return
		}
		writeJSON(w, http.StatusOK, RuleMutationResponse{Rule: stored, Entry: entry})
	}
}

// DeleteRule removes a custom rule. Shipped defaults can only be disabled.
func DeleteRule(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		entry, err := engine.DeleteRule(r.Context(), mux.Vars(r)["id"], req.Notes)
		if err != nil {
			writeEngineError(w, err, "delete rule")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// SetRuleEnabled enables or disables a rule.
func SetRuleEnabled(engine *holiday.Engine, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		stored, entry, err := engine.SetEnabled(r.Context(), mux.Vars(r)["id"], enabled, req.Notes)
		if err != nil {
			writeEngineError(w, err, "change rule state")
			return
		}
		writeJSON(w, http.StatusOK, RuleMutationResponse{Rule: stored, Entry: entry})
	}
}

// ResetRule restores a shipped default to its shipped definition.
func ResetRule(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		stored, entry, err := engine.ResetRule(r.Context(), mux.Vars(r)["id"], req.Notes)
		if err != nil {
			writeEngineError(w, err, "reset rule")
			return
		}
		writeJSON(w, http.StatusOK, RuleMutationResponse{Rule: stored, Entry: entry})
	}
}

// RuleHistoryResponse is the change log of one rule and the state it
// replays to. Current is null for a deleted rule.
type RuleHistoryResponse struct {
	RuleID  string                  `json:"rule_id"`
	Entries []models.ChangeLogEntry `json:"entries"`
	Current *models.Rule            `json:"current"`
}

// RuleHistory returns the entries of a rule oldest first.
func RuleHistory(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		entries, err := engine.History(ctx, id)
		if err != nil {
			writeEngineError(w, err, "load rule history")
			return
		}
		current, err := engine.Reconstruct(ctx, id)
		if err != nil {
			writeEngineError(w, err, "replay rule history")
			return
		}
		writeJSON(w, http.StatusOK, RuleHistoryResponse{RuleID: id, Entries: entries, Current: current})
	}
}
