package fundamentals

import "time"

// dedupeByPeriod collapses observations sharing a period end, keeping the
// first seen. Input must already be sorted most recent first, so after a
// restatement the kept value is the one from the most recent filing.
func dedupeByPeriod(obs []Observation) []Observation {
	seen := make(map[time.Time]struct{}, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if _, dup := seen[o.PeriodEnd]; dup {
			continue
		}
		seen[o.PeriodEnd] = struct{}{}
		out = append(out, o)
	}
	return out
}

// ComputeChange derives the period-over-period delta. Both values must be
// present for any field to be set; a zero prior yields an absolute delta
// and direction but leaves the percentage undefined rather than inventing
// one.
func ComputeChange(current, prior *float64) MetricChange {
	if current == nil || prior == nil {
		return MetricChange{}
	}

	abs := *current - *prior
	dir := DirectionUnchanged
	switch {
	case abs > 0:
		dir = DirectionIncrease
	case abs < 0:
		dir = DirectionDecrease
	}

	change := MetricChange{Absolute: &abs, Direction: &dir}
	if *prior != 0 {
		pct := abs / abs0(*prior) * 100
		change.Percentage = &pct
	}
	return change
}

func abs0(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// BuildMetric assembles one concept's standardized view from its selected
// observations (most recent first). Returns nil when there is nothing to
// report. Change is only attached when a prior period exists.
func BuildMetric(obs []Observation) *StandardizedMetric {
	series := dedupeByPeriod(obs)
	if len(series) == 0 {
		return nil
	}

	m := &StandardizedMetric{
		Current: &series[0],
		Series:  series,
	}
	if len(series) > 1 {
		m.Prior = &series[1]
		change := ComputeChange(&m.Current.Value, &m.Prior.Value)
		m.Change = &change
	}
	return m
}

// deriveNetMargin computes net income as a percentage of revenue, aligned
// strictly by period end. Periods present in only one of the two series
// are dropped; pairing a Q3 margin from a Q2 revenue would be worse than
// no margin at all.
func deriveNetMargin(revenue, netIncome *StandardizedMetric) *StandardizedMetric {
	if revenue == nil || netIncome == nil {
		return nil
	}

	incomeByPeriod := make(map[time.Time]Observation, len(netIncome.Series))
	for _, o := range netIncome.Series {
		incomeByPeriod[o.PeriodEnd] = o
	}

	var series []Observation
	for _, rev := range revenue.Series {
		inc, ok := incomeByPeriod[rev.PeriodEnd]
		if !ok || rev.Value == 0 {
			continue
		}
		series = append(series, Observation{
			Concept:   ConceptNetMargin,
			PeriodEnd: rev.PeriodEnd,
			Value:     inc.Value / rev.Value * 100,
			SourceTag: "derived",
			FilingID:  rev.FilingID,
			Form:      rev.Form,
		})
	}
	return BuildMetric(series)
}

// BuildAll turns per-concept observation sets into the final metrics map,
// attaching the derived net margin when both of its inputs resolved.
func BuildAll(byConcept map[string][]Observation) map[string]StandardizedMetric {
	metrics := make(map[string]StandardizedMetric, len(byConcept)+1)
	for concept, obs := range byConcept {
		if m := BuildMetric(obs); m != nil {
			metrics[concept] = *m
		}
	}

	var revenue, netIncome *StandardizedMetric
	if m, ok := metrics[ConceptRevenue]; ok {
		revenue = &m
	}
	if m, ok := metrics[ConceptNetIncome]; ok {
		netIncome = &m
	}
	if margin := deriveNetMargin(revenue, netIncome); margin != nil {
		metrics[ConceptNetMargin] = *margin
	}
	return metrics
}
