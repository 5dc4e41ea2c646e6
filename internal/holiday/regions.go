package holiday

// MaxRegions is the hard upper bound on simultaneously selected regions.
const MaxRegions = 5

// RegionSelection is an ordered set of distinct region codes.
// It is not safe for concurrent use; the Engine guards it.
type RegionSelection struct {
	codes []string
}

// NewRegionSelection builds a selection from codes, dropping duplicates and
// anything past MaxRegions.
func NewRegionSelection(codes ...string) *RegionSelection {
	s := &RegionSelection{}
	for _, c := range codes {
		s.AddRegionIfPossible(c, MaxRegions)
	}
	return s
}

// AddRegionIfPossible appends code unless the selection already holds
// maxCount entries (capped at MaxRegions) or already contains code.
func (s *RegionSelection) AddRegionIfPossible(code string, maxCount int) bool {
	if maxCount > MaxRegions {
		maxCount = MaxRegions
	}
	if len(s.codes) >= maxCount || s.Contains(code) {
		return false
	}
	s.codes = append(s.codes, code)
	return true
}

// RemoveRegionIfPossible removes code unless it is absent or removing it
// would leave fewer than minimumCount entries.
func (s *RegionSelection) RemoveRegionIfPossible(code string, minimumCount int) bool {
	idx := s.indexOf(code)
	if idx < 0 || len(s.codes)-1 < minimumCount {
		return false
	}
	s.codes = append(s.codes[:idx], s.codes[idx+1:]...)
	return true
}

func (s *RegionSelection) Contains(code string) bool {
	return s.indexOf(code) >= 0
}

func (s *RegionSelection) Len() int {
	return len(s.codes)
}

// Codes returns a copy of the selected codes in selection order.
func (s *RegionSelection) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

func (s *RegionSelection) indexOf(code string) int {
	for i, c := range s.codes {
		if c == code {
			return i
		}
	}
	return -1
}
