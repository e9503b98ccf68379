// Package fundamentals standardizes raw EDGAR XBRL facts into a small set
// of period-aligned financial metrics. It owns the taxonomy synonym lists,
// the filing-period selection policy, and the change computation.
package fundamentals

import "time"

// Concept names exposed to callers. Filers tag these under dozens of
// different GAAP elements; the resolver maps them back to one name each.
const (
	ConceptRevenue   = "revenue"
	ConceptNetIncome = "net_income"
	ConceptEPS       = "eps"
	ConceptNetMargin = "net_margin" // derived, not resolved from tags
)

// Direction is the sign of a period-over-period change.
type Direction string

const (
	DirectionIncrease  Direction = "increase"
	DirectionDecrease  Direction = "decrease"
	DirectionUnchanged Direction = "unchanged"
)

// Observation is one standardized reported value. Produced at the parsing
// boundary and immutable afterwards; downstream stages only filter and sort.
type Observation struct {
	Concept   string    `json:"concept"`
	PeriodEnd time.Time `json:"period_end"`
	Value     float64   `json:"value"`
	SourceTag string    `json:"source_tag"`
	FilingID  string    `json:"filing_id"`
	Form      string    `json:"form,omitempty"`
}

// MetricChange is the period-over-period delta between two observations.
// Percentage is nil when the prior value is zero: division by zero is
// "undefined", never "0%".
type MetricChange struct {
	Absolute   *float64   `json:"absolute"`
	Percentage *float64   `json:"percentage"`
	Direction  *Direction `json:"direction"`
}

// StandardizedMetric is one concept's view: the filing-period value, the
// prior period, the full deduplicated series (most recent first), and the
// computed change when a prior exists.
type StandardizedMetric struct {
	Current *Observation  `json:"current"`
	Prior   *Observation  `json:"prior,omitempty"`
	Series  []Observation `json:"series"`
	Change  *MetricChange `json:"change,omitempty"`
}

// StandardizedMetrics is the pipeline's result for one filing. Built once
// per request and returned to the caller; the pipeline retains nothing.
type StandardizedMetrics struct {
	CIK         string                        `json:"cik"`
	EntityName  string                        `json:"entity_name"`
	Accession   string                        `json:"accession"`
	Metrics     map[string]StandardizedMetric `json:"metrics"`
	GeneratedAt time.Time                     `json:"generated_at"`
}
