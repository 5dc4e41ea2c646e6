package holiday

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// windowRadius is how many years on each side of the focus year are cached,
// so a month grid can show the days spilling over from adjacent years.
const windowRadius = 1

// TitleResolver supplies the localized display title of a rule.
type TitleResolver interface {
	DisplayTitle(rule models.Rule) string
}

// TitleResolverFunc adapts a function to TitleResolver.
type TitleResolverFunc func(rule models.Rule) string

func (f TitleResolverFunc) DisplayTitle(rule models.Rule) string { return f(rule) }

// Snapshot is a fully built, immutable holiday cache. Readers hold on to a
// snapshot; rebuilds publish a new one.
type Snapshot struct {
	Generation uint64
	FocusYear  int
	Regions    []string

	days map[calendar.Date][]Occurrence
}

// On returns the occurrences on d in display order. A missing date yields nil.
func (s *Snapshot) On(d calendar.Date) []Occurrence {
	if s == nil {
		return nil
	}
	occs := s.days[d]
	if len(occs) == 0 {
		return nil
	}
	out := make([]Occurrence, len(occs))
	copy(out, occs)
	return out
}

// Len returns the number of dates with at least one occurrence.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.days)
}

// Covers reports whether year lies inside the cached window.
func (s *Snapshot) Covers(year int) bool {
	return s != nil && year >= s.FocusYear-windowRadius && year <= s.FocusYear+windowRadius
}

// Dates returns every cached date in ascending order.
func (s *Snapshot) Dates() []calendar.Date {
	if s == nil {
		return nil
	}
	dates := make([]calendar.Date, 0, len(s.days))
	for d := range s.days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Map returns a copy of the date-keyed cache.
func (s *Snapshot) Map() map[calendar.Date][]Occurrence {
	out := make(map[calendar.Date][]Occurrence)
	if s == nil {
		return out
	}
	for d, occs := range s.days {
		cp := make([]Occurrence, len(occs))
		copy(cp, occs)
		out[d] = cp
	}
	return out
}

// InYear lists the occurrences dated in year, ordered by date then display
// order. With redOnly only red days are returned.
func (s *Snapshot) InYear(year int, redOnly bool) []Occurrence {
	var out []Occurrence
	for _, d := range s.Dates() {
		if d.Year != year {
			continue
		}
		for _, occ := range s.days[d] {
			if redOnly && !occ.IsRedDay {
				continue
			}
			out = append(out, occ)
		}
	}
	return out
}

// Upcoming lists occurrences dated on or after from, at most limit of them
// (no limit when limit <= 0).
func (s *Snapshot) Upcoming(from calendar.Date, limit int) []Occurrence {
	var out []Occurrence
	for _, d := range s.Dates() {
		if d.Before(from) {
			continue
		}
		for _, occ := range s.days[d] {
			if limit > 0 && len(out) >= limit {
				return out
			}
			out = append(out, occ)
		}
	}
	return out
}

// CalculateHolidays evaluates the enabled rules of the selected regions for
// focusYear and its neighbours and returns the date-keyed occurrence map.
func CalculateHolidays(rules []models.Rule, regions []string, focusYear int) map[calendar.Date][]Occurrence {
	snap, _ := Calculate(context.Background(), rules, regions, focusYear, 1, nil)
	return snap.Map()
}

// Calculate builds a Snapshot. Rule evaluation fans out over up to workers
// goroutines; results are merged and ordered in a single pass afterwards.
// It fails only when ctx is cancelled.
func Calculate(ctx context.Context, rules []models.Rule, regions []string, focusYear, workers int, resolver TitleResolver) (*Snapshot, error) {
	if workers < 1 {
		workers = 1
	}

	selected := make(map[string]bool, len(regions))
	for _, r := range regions {
		selected[r] = true
	}
	eligible := make([]models.Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsEnabled && selected[r.Region] {
			eligible = append(eligible, r)
		}
	}

	results := make([][]*Occurrence, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range eligible {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = evaluateWindow(eligible[i], focusYear, resolver)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	days := make(map[calendar.Date][]Occurrence)
	for _, occs := range results {
		for _, occ := range occs {
			days[occ.Date] = append(days[occ.Date], *occ)
			if occ.ObservedDate != nil {
				observed := *occ
				observed.Date = *occ.ObservedDate
				observed.IsObserved = true
				days[observed.Date] = append(days[observed.Date], observed)
			}
		}
	}
	for _, occs := range days {
		sortOccurrences(occs)
	}

	regionsCopy := make([]string, len(regions))
	copy(regionsCopy, regions)
	return &Snapshot{FocusYear: focusYear, Regions: regionsCopy, days: days}, nil
}

func evaluateWindow(rule models.Rule, focusYear int, resolver TitleResolver) []*Occurrence {
	title := rule.Title
	if resolver != nil {
		if t := resolver.DisplayTitle(rule); t != "" {
			title = t
		}
	}
	var out []*Occurrence
	for y := focusYear - windowRadius; y <= focusYear+windowRadius; y++ {
		if occ := Evaluate(rule, y); occ != nil {
			occ.DisplayTitle = title
			out = append(out, occ)
		}
	}
	return out
}

// sortOccurrences orders one day's list: public holidays before observances,
// then by rule creation order, nominal dates before observed copies.
func sortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if ra, rb := kindRank(a.Kind), kindRank(b.Kind); ra != rb {
			return ra < rb
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		if a.IsObserved != b.IsObserved {
			return !a.IsObserved
		}
		return a.RuleID < b.RuleID
	})
}

func kindRank(k models.RuleKind) int {
	if k == models.KindPublicHoliday {
		return 0
	}
	return 1
}
