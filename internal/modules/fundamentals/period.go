package fundamentals

import (
	"sort"
	"strings"
)

// defaultMaxItems bounds the series returned when no target filing is
// given; EDGAR facts documents can carry a decade of restatements.
const defaultMaxItems = 5

// normalizeFilingID reduces an accession number to lowercase alphanumerics
// so "0000320193-24-000123" and "000032019324000123" compare equal. EDGAR
// is inconsistent about dashes across its own endpoints.
func normalizeFilingID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range strings.ToLower(id) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SelectForFiling picks the observations relevant to one filing. With a
// target filing ID, only observations reported by that exact filing
// qualify; no match means an empty result, never a silent fallback to a
// different filing's numbers. Without a target, the most recent maxItems
// observations are returned. Either way the result is ordered most recent
// period first.
func SelectForFiling(obs []Observation, targetFilingID string, maxItems int) []Observation {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PeriodEnd.After(sorted[j].PeriodEnd)
	})

	if target := normalizeFilingID(targetFilingID); target != "" {
		matched := sorted[:0:0]
		for _, o := range sorted {
			if normalizeFilingID(o.FilingID) == target {
				matched = append(matched, o)
			}
		}
		sorted = matched
	}

	if len(sorted) > maxItems {
		sorted = sorted[:maxItems]
	}
	return sorted
}
