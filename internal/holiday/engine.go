package holiday

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/holiday-engine/backend/internal/calendar"
	appLog "github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// Store is the persistence the engine relies on. Apply must write every
// rule change and every entry in one transaction: all of them or none.
type Store interface {
	LoadRules(ctx context.Context) ([]models.Rule, error)
	RetiredRuleIDs(ctx context.Context) ([]string, error)
	Apply(ctx context.Context, changes ...models.RuleChange) error
	// Entries lists entries newest first; an empty region means all regions.
	Entries(ctx context.Context, region string) ([]models.ChangeLogEntry, error)
	// RuleEntries lists the entries of one rule oldest first.
	RuleEntries(ctx context.Context, ruleID string) ([]models.ChangeLogEntry, error)
	// LoadRegions returns nil when no selection was ever saved.
	LoadRegions(ctx context.Context) ([]string, error)
	SaveRegions(ctx context.Context, codes []string) error
}

// EventType identifies an engine event.
type EventType string

const (
	EventCacheRebuilt   EventType = "cache_rebuilt"
	EventRuleChanged    EventType = "rule_changed"
	EventRegionsChanged EventType = "regions_changed"
)

// Event is published to subscribers after a state change.
type Event struct {
	Type       EventType
	Generation uint64
	FocusYear  int
	Regions    []string
	Entry      *models.ChangeLogEntry
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used to stamp change-log entries.
// Evaluation never reads it.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithAppVersion records version as provenance on every entry.
func WithAppVersion(version string) Option {
	return func(e *Engine) { e.appVersion = version }
}

// WithWorkers bounds the goroutines used to evaluate rules during a rebuild.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithTitleResolver plugs in localized display titles.
func WithTitleResolver(r TitleResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithIDGenerator overrides how entry and custom rule IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithInitialRegions sets the selection used when none was saved yet.
func WithInitialRegions(codes ...string) Option {
	return func(e *Engine) { e.initialRegions = codes }
}

// Engine is the single owner of a session's rules, holiday cache and change
// log. All rule mutations go through Record so that each one is persisted
// together with exactly one change-log entry.
type Engine struct {
	store          Store
	clock          func() time.Time
	newID          func() string
	appVersion     string
	workers        int
	resolver       TitleResolver
	initialRegions []string

	// mu serializes mutations and guards the fields below.
	mu        sync.Mutex
	rules     map[string]models.Rule
	retired   map[string]bool
	nextSeq   int64
	regions   *RegionSelection
	focusYear int
	lastStamp time.Time

	rebuildMu sync.Mutex
	requested atomic.Uint64
	cache     atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates an engine over store. Call Open before use.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		clock:   time.Now,
		newID:   uuid.NewString,
		workers: 4,
		rules:   make(map[string]models.Rule),
		retired: make(map[string]bool),
		nextSeq: 1,
		regions: NewRegionSelection(),
		subs:    make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open loads persisted state and builds the cache for focusYear.
func (e *Engine) Open(ctx context.Context, focusYear int) error {
	rules, err := e.store.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	retired, err := e.store.RetiredRuleIDs(ctx)
	if err != nil {
		return fmt.Errorf("loading retired rule ids: %w", err)
	}
	codes, err := e.store.LoadRegions(ctx)
	if err != nil {
		return fmt.Errorf("loading region selection: %w", err)
	}

	e.mu.Lock()
	for _, r := range rules {
		e.rules[r.ID] = r
		if r.Seq >= e.nextSeq {
			e.nextSeq = r.Seq + 1
		}
	}
	for _, id := range retired {
		e.retired[id] = true
	}

	saveInitial := codes == nil
	if saveInitial {
		codes = e.initialRegions
	}
	sel := NewRegionSelection()
	for _, c := range codes {
		norm, err := NormalizeRegion(c)
		if err != nil {
			appLog.Warn("ignoring invalid region in selection", "region", c)
			continue
		}
		sel.AddRegionIfPossible(norm, MaxRegions)
	}
	e.regions = sel
	e.mu.Unlock()

	if saveInitial {
		if err := e.store.SaveRegions(ctx, sel.Codes()); err != nil {
			return fmt.Errorf("saving initial region selection: %w", err)
		}
	}

	appLog.Info("holiday engine opened",
		"rules", len(rules),
		"regions", sel.Codes(),
		"focus_year", focusYear,
	)
	_, err = e.Rebuild(ctx, focusYear)
	return err
}

// Snapshot returns the currently published cache. It is never partially built.
func (e *Engine) Snapshot() *Snapshot {
	return e.cache.Load()
}

// FocusYear returns the most recently requested focus year.
func (e *Engine) FocusYear() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focusYear
}

// Rebuild recomputes the cache for focusYear and publishes it. When a newer
// rebuild has been requested meanwhile, this one is discarded and the
// current snapshot is returned instead.
func (e *Engine) Rebuild(ctx context.Context, focusYear int) (*Snapshot, error) {
	e.mu.Lock()
	e.focusYear = focusYear
	gen := e.requested.Add(1)
	e.mu.Unlock()
	return e.runRebuild(ctx, gen)
}

// SetFocusYear moves the cached window to year.
func (e *Engine) SetFocusYear(ctx context.Context, year int) error {
	_, err := e.Rebuild(ctx, year)
	return err
}

// rebuild refreshes the cache for the current focus year.
func (e *Engine) rebuild(ctx context.Context) (*Snapshot, error) {
	return e.runRebuild(ctx, e.requested.Add(1))
}

func (e *Engine) runRebuild(ctx context.Context, gen uint64) (*Snapshot, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	if gen != e.requested.Load() {
		appLog.Debug("skipping superseded cache rebuild", "generation", gen)
		return e.Snapshot(), nil
	}

	e.mu.Lock()
	rules := e.sortedRulesLocked("")
	regions := e.regions.Codes()
	focusYear := e.focusYear
	e.mu.Unlock()

	start := time.Now()
	snap, err := Calculate(ctx, rules, regions, focusYear, e.workers, e.resolver)
	if err != nil {
		return nil, fmt.Errorf("rebuilding holiday cache: %w", err)
	}
	if gen != e.requested.Load() {
		appLog.Debug("discarding stale cache rebuild", "generation", gen)
		return e.Snapshot(), nil
	}

	snap.Generation = gen
	e.cache.Store(snap)
	appLog.Debug("holiday cache rebuilt",
		"generation", gen,
		"focus_year", focusYear,
		"regions", regions,
		"dates", snap.Len(),
		"elapsed", time.Since(start),
	)
	e.publish(Event{Type: EventCacheRebuilt, Generation: gen, FocusYear: focusYear, Regions: regions})
	return snap, nil
}

// Record applies one rule transition and appends its change-log entry in a
// single transaction. before must equal the stored rule (nil for created
// and defaults_loaded); after is nil for deleted. On success the cache is
// rebuilt before Record returns.
func (e *Engine) Record(ctx context.Context, action models.ChangeAction, before, after *models.Rule,
	source models.ChangeSource, notes string) (models.ChangeLogEntry, error) {

	entry, _, err := e.record(ctx, action, before, after, source, notes)
	return entry, err
}

func (e *Engine) record(ctx context.Context, action models.ChangeAction, before, after *models.Rule,
	source models.ChangeSource, notes string) (models.ChangeLogEntry, *models.Rule, error) {

	e.mu.Lock()
	ts := e.stampLocked()
	change, err := e.prepareLocked(action, before, after, source, notes, ts, e.nextSeq)
	if err != nil {
		e.mu.Unlock()
		return models.ChangeLogEntry{}, nil, err
	}
	if err := e.store.Apply(ctx, change); err != nil {
		e.mu.Unlock()
		return models.ChangeLogEntry{}, nil, fmt.Errorf("recording %s of rule %s: %w", action, change.Entry.RuleID, err)
	}
	e.commitLocked(ts, change)
	e.mu.Unlock()

	e.afterCommit(ctx, change)
	return change.Entry, change.Upsert, nil
}

// prepareLocked validates a transition against the stored state and builds
// the change to persist. It does not modify engine state.
func (e *Engine) prepareLocked(action models.ChangeAction, before, after *models.Rule,
	source models.ChangeSource, notes string, ts time.Time, seq int64) (models.RuleChange, error) {

	if !action.Valid() {
		return models.RuleChange{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if !source.Valid() {
		return models.RuleChange{}, fmt.Errorf("%w: unknown source %q", ErrInvalidTransition, source)
	}

	switch action {
	case models.ActionCreated, models.ActionDefaultsLoaded:
		if before != nil || after == nil {
			return models.RuleChange{}, fmt.Errorf("%w: %s needs only an after state", ErrInvalidTransition, action)
		}
		next := *after
		if _, exists := e.rules[next.ID]; exists || e.retired[next.ID] {
			return models.RuleChange{}, fmt.Errorf("%w: %s", ErrRuleExists, next.ID)
		}
		if action == models.ActionDefaultsLoaded && next.IsCustom {
			return models.RuleChange{}, fmt.Errorf("%w: defaults cannot be custom rules", ErrInvalidTransition)
		}
		if err := ValidateRule(next); err != nil {
			return models.RuleChange{}, err
		}
		next.Seq = seq
		next.CreatedAt = ts
		next.UpdatedAt = ts
		if next.Revision == 0 {
			next.Revision = 1
		}
		return e.change(action, nil, &next, source, notes, ts)

	case models.ActionDeleted:
		if before == nil || after != nil {
			return models.RuleChange{}, fmt.Errorf("%w: deleted needs only a before state", ErrInvalidTransition)
		}
		current, err := e.currentLocked(*before)
		if err != nil {
			return models.RuleChange{}, err
		}
		if !current.IsCustom {
			return models.RuleChange{}, fmt.Errorf("%w: %s", ErrNotDeletable, current.ID)
		}
		return e.change(action, &current, nil, source, notes, ts)
	}

	if before == nil || after == nil {
		return models.RuleChange{}, fmt.Errorf("%w: %s needs before and after states", ErrInvalidTransition, action)
	}
	if before.ID != after.ID {
		return models.RuleChange{}, fmt.Errorf("%w: rule id cannot change", ErrInvalidTransition)
	}
	current, err := e.currentLocked(*before)
	if err != nil {
		return models.RuleChange{}, err
	}

	next := *after
	next.Seq = current.Seq
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = current.UpdatedAt
	if next.IsCustom != current.IsCustom {
		return models.RuleChange{}, fmt.Errorf("%w: custom flag cannot change", ErrInvalidTransition)
	}
	if err := ValidateRule(next); err != nil {
		return models.RuleChange{}, err
	}

	switch action {
	case models.ActionEnabled, models.ActionDisabled:
		want := action == models.ActionEnabled
		flipped := current
		flipped.IsEnabled = want
		if current.IsEnabled == want || !flipped.Equal(next) {
			return models.RuleChange{}, fmt.Errorf("%w: %s may only flip the enabled flag", ErrInvalidTransition, action)
		}
	case models.ActionReset:
		if current.IsCustom {
			return models.RuleChange{}, fmt.Errorf("%w: %s", ErrNotResettable, current.ID)
		}
	case models.ActionModified:
		if current.Equal(next) {
			return models.RuleChange{}, fmt.Errorf("%w: modified without changes", ErrInvalidTransition)
		}
	}

	next.UpdatedAt = ts
	return e.change(action, &current, &next, source, notes, ts)
}

func (e *Engine) change(action models.ChangeAction, before, after *models.Rule,
	source models.ChangeSource, notes string, ts time.Time) (models.RuleChange, error) {

	entry, err := newEntry(e.newID(), ts, action, before, after, source, notes, e.appVersion)
	if err != nil {
		return models.RuleChange{}, err
	}
	change := models.RuleChange{Upsert: after, Entry: entry}
	if after == nil {
		change.DeleteID = before.ID
	}
	return change, nil
}

// currentLocked returns the stored rule matching before, or an error when
// it is missing or has changed since before was read.
func (e *Engine) currentLocked(before models.Rule) (models.Rule, error) {
	current, ok := e.rules[before.ID]
	if !ok {
		return models.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, before.ID)
	}
	if !current.Equal(before) {
		return models.Rule{}, fmt.Errorf("%w: %s", ErrStaleState, before.ID)
	}
	return current, nil
}

// stampLocked returns the next entry timestamp, never earlier than the last.
func (e *Engine) stampLocked() time.Time {
	ts := e.clock().UTC()
	if ts.Before(e.lastStamp) {
		ts = e.lastStamp
	}
	return ts
}

func (e *Engine) commitLocked(ts time.Time, changes ...models.RuleChange) {
	for _, c := range changes {
		if c.Upsert != nil {
			e.rules[c.Upsert.ID] = *c.Upsert
			if c.Upsert.Seq >= e.nextSeq {
				e.nextSeq = c.Upsert.Seq + 1
			}
			continue
		}
		delete(e.rules, c.DeleteID)
		e.retired[c.DeleteID] = true
	}
	e.lastStamp = ts
}

func (e *Engine) afterCommit(ctx context.Context, changes ...models.RuleChange) {
	for i := range changes {
		entry := changes[i].Entry
		e.publish(Event{Type: EventRuleChanged, Entry: &entry})
	}
	// The mutation is committed; finish the rebuild even if ctx is cancelled.
	if _, err := e.rebuild(context.WithoutCancel(ctx)); err != nil {
		appLog.Error("cache rebuild after rule change failed", err)
	}
}

// CreateRule adds a custom rule. An empty ID gets a generated one.
func (e *Engine) CreateRule(ctx context.Context, rule models.Rule, notes string) (models.Rule, models.ChangeLogEntry, error) {
	if rule.ID == "" {
		rule.ID = "custom." + e.newID()
	}
	region, err := NormalizeRegion(rule.Region)
	if err != nil {
		return models.Rule{}, models.ChangeLogEntry{}, err
	}
	rule.Region = region
	rule.IsCustom = true

	entry, stored, err := e.record(ctx, models.ActionCreated, nil, &rule, models.SourceUser, notes)
	if err != nil {
		return models.Rule{}, models.ChangeLogEntry{}, err
	}
	return *stored, entry, nil
}

// UpdateRule applies edit to a copy of the stored rule and records the
// result as modified. An edit that changes nothing records nothing.
func (e *Engine) UpdateRule(ctx context.Context, id string, edit func(*models.Rule), notes string) (models.Rule, *models.ChangeLogEntry, error) {
	return e.editRule(ctx, id, models.ActionModified, models.SourceUser, edit, notes)
}

// MigrateRule is UpdateRule for automated schema or data migrations.
func (e *Engine) MigrateRule(ctx context.Context, id string, edit func(*models.Rule), notes string) (models.Rule, *models.ChangeLogEntry, error) {
	return e.editRule(ctx, id, models.ActionMigrated, models.SourceMigration, edit, notes)
}

// SetEnabled enables or disables a rule. Setting the current value records nothing.
func (e *Engine) SetEnabled(ctx context.Context, id string, enabled bool, notes string) (models.Rule, *models.ChangeLogEntry, error) {
	action := models.ActionDisabled
	if enabled {
		action = models.ActionEnabled
	}
	return e.editRule(ctx, id, action, models.SourceUser, func(r *models.Rule) { r.IsEnabled = enabled }, notes)
}

// ResetRule restores a shipped default rule to its shipped definition.
func (e *Engine) ResetRule(ctx context.Context, id string, notes string) (models.Rule, *models.ChangeLogEntry, error) {
	shipped, ok := shippedDefault(id)
	if !ok {
		return models.Rule{}, nil, fmt.Errorf("%w: %s", ErrNotResettable, id)
	}
	return e.editRule(ctx, id, models.ActionReset, models.SourceUser, func(r *models.Rule) {
		seq, created, updated := r.Seq, r.CreatedAt, r.UpdatedAt
		*r = shipped
		r.Seq, r.CreatedAt, r.UpdatedAt = seq, created, updated
	}, notes)
}

func (e *Engine) editRule(ctx context.Context, id string, action models.ChangeAction, source models.ChangeSource,
	edit func(*models.Rule), notes string) (models.Rule, *models.ChangeLogEntry, error) {

	current, ok := e.Rule(id)
	if !ok {
		return models.Rule{}, nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	next := current
	edit(&next)
	next.ID = current.ID
	next.Seq, next.CreatedAt, next.UpdatedAt = current.Seq, current.CreatedAt, current.UpdatedAt
	if next.Equal(current) {
		return current, nil, nil
	}

	entry, stored, err := e.record(ctx, action, &current, &next, source, notes)
	if err != nil {
		return models.Rule{}, nil, err
	}
	return *stored, &entry, nil
}

// DeleteRule removes a custom rule. Its ID is never reused.
func (e *Engine) DeleteRule(ctx context.Context, id string, notes string) (models.ChangeLogEntry, error) {
	current, ok := e.Rule(id)
	if !ok {
		return models.ChangeLogEntry{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return e.Record(ctx, models.ActionDeleted, &current, nil, models.SourceUser, notes)
}

// LoadDefaults inserts the shipped rules of region that are not stored yet,
// writing one defaults_loaded entry per inserted rule in one transaction.
// Calling it again inserts nothing.
func (e *Engine) LoadDefaults(ctx context.Context, region string) ([]models.Rule, error) {
	region, err := NormalizeRegion(region)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	missing, err := DefaultsToInsert(region, e.sortedRulesLocked(""))
	if err != nil || len(missing) == 0 {
		e.mu.Unlock()
		return nil, err
	}

	ts := e.stampLocked()
	changes := make([]models.RuleChange, 0, len(missing))
	for i := range missing {
		c, err := e.prepareLocked(models.ActionDefaultsLoaded, nil, &missing[i], models.SourceSystem, "", ts, e.nextSeq+int64(i))
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := e.store.Apply(ctx, changes...); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("loading %s defaults: %w", region, err)
	}
	e.commitLocked(ts, changes...)
	e.mu.Unlock()

	inserted := make([]models.Rule, 0, len(changes))
	for _, c := range changes {
		inserted = append(inserted, *c.Upsert)
	}
	appLog.Info("default rules loaded", "region", region, "inserted", len(inserted))
	e.afterCommit(ctx, changes...)
	return inserted, nil
}

// UpgradeDefaults migrates stored default rules whose shipped definition has
// a newer revision, keeping the user's enabled choice.
func (e *Engine) UpgradeDefaults(ctx context.Context) ([]models.ChangeLogEntry, error) {
	e.mu.Lock()
	ts := e.stampLocked()
	var changes []models.RuleChange
	for _, current := range e.sortedRulesLocked("") {
		if current.IsCustom {
			continue
		}
		shipped, ok := shippedDefault(current.ID)
		if !ok || shipped.Revision <= current.Revision {
			continue
		}
		next := shipped
		next.IsEnabled = current.IsEnabled
		cur := current
		c, err := e.prepareLocked(models.ActionMigrated, &cur, &next, models.SourceMigration,
			fmt.Sprintf("shipped definition revision %d", shipped.Revision), ts, 0)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		changes = append(changes, c)
	}
	if len(changes) == 0 {
		e.mu.Unlock()
		return nil, nil
	}
	if err := e.store.Apply(ctx, changes...); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("upgrading default rules: %w", err)
	}
	e.commitLocked(ts, changes...)
	e.mu.Unlock()

	entries := make([]models.ChangeLogEntry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, c.Entry)
	}
	appLog.Info("default rules upgraded", "migrated", len(entries))
	e.afterCommit(ctx, changes...)
	return entries, nil
}

// AddRegion selects code. ok is false, with no change, when the selection is
// full or already contains code.
func (e *Engine) AddRegion(ctx context.Context, code string) (bool, error) {
	code, err := NormalizeRegion(code)
	if err != nil {
		return false, err
	}
	return e.updateRegions(ctx, func(s *RegionSelection) bool {
		return s.AddRegionIfPossible(code, MaxRegions)
	})
}

// RemoveRegion deselects code. ok is false, with no change, when code is not
// selected or fewer than minimumCount regions would remain.
func (e *Engine) RemoveRegion(ctx context.Context, code string, minimumCount int) (bool, error) {
	code, err := NormalizeRegion(code)
	if err != nil {
		return false, err
	}
	return e.updateRegions(ctx, func(s *RegionSelection) bool {
		return s.RemoveRegionIfPossible(code, minimumCount)
	})
}

func (e *Engine) updateRegions(ctx context.Context, mutate func(*RegionSelection) bool) (bool, error) {
	e.mu.Lock()
	candidate := NewRegionSelection(e.regions.Codes()...)
	if !mutate(candidate) {
		e.mu.Unlock()
		return false, nil
	}
	if err := e.store.SaveRegions(ctx, candidate.Codes()); err != nil {
		e.mu.Unlock()
		return false, fmt.Errorf("saving region selection: %w", err)
	}
	e.regions = candidate
	codes := candidate.Codes()
	e.mu.Unlock()

	e.publish(Event{Type: EventRegionsChanged, Regions: codes})
	if _, err := e.rebuild(context.WithoutCancel(ctx)); err != nil {
		appLog.Error("cache rebuild after region change failed", err)
	}
	return true, nil
}

// Regions returns the selected region codes in selection order.
func (e *Engine) Regions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.regions.Codes()
}

// Rule returns the stored rule with id.
func (e *Engine) Rule(id string) (models.Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	return r, ok
}

// Rules lists stored rules in creation order; an empty region lists all.
func (e *Engine) Rules(region string) []models.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedRulesLocked(region)
}

func (e *Engine) sortedRulesLocked(region string) []models.Rule {
	out := make([]models.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if region == "" || r.Region == region {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// On returns the cached occurrences on d.
func (e *Engine) On(d calendar.Date) []Occurrence {
	return e.Snapshot().On(d)
}

// InYear lists the cached occurrences dated in year. Years outside the
// cached window yield nothing; call Rebuild to move the window first.
func (e *Engine) InYear(year int, redOnly bool) []Occurrence {
	return e.Snapshot().InYear(year, redOnly)
}

// Upcoming lists up to limit cached occurrences on or after from.
func (e *Engine) Upcoming(from calendar.Date, limit int) []Occurrence {
	return e.Snapshot().Upcoming(from, limit)
}

// Entries lists change-log entries newest first, optionally for one region.
func (e *Engine) Entries(ctx context.Context, region string) ([]models.ChangeLogEntry, error) {
	return e.store.Entries(ctx, region)
}

// History lists the entries of one rule oldest first.
func (e *Engine) History(ctx context.Context, ruleID string) ([]models.ChangeLogEntry, error) {
	return e.store.RuleEntries(ctx, ruleID)
}

// Reconstruct replays the change log of ruleID. A nil rule means deleted.
func (e *Engine) Reconstruct(ctx context.Context, ruleID string) (*models.Rule, error) {
	entries, err := e.History(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", ErrRuleNotFound, ruleID)
	}
	return Replay(entries)
}

// Subscribe returns a channel of engine events and a cancel function.
// Events are dropped for subscribers whose buffer is full.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) publish(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			appLog.Warn("dropping engine event for slow subscriber", "type", ev.Type)
		}
	}
}
