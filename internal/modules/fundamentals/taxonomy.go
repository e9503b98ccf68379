package fundamentals

import (
	"time"

	"github.com/finbrief/edgar-pipeline/internal/clients/edgar"
)

// conceptSpec binds a concept name to its ordered GAAP synonym list and
// the units worth reading. Order encodes authority: earlier tags are what
// most filers use for the headline figure, later ones are industry or
// legacy variants.
type conceptSpec struct {
	name  string
	tags  []string
	units []string
}

var conceptSpecs = []conceptSpec{
	{
		name: ConceptRevenue,
		tags: []string{
			"Revenues",
			"RevenueFromContractWithCustomerExcludingAssessedTax",
			"RevenueFromContractWithCustomerIncludingAssessedTax",
			"SalesRevenueNet",
			"SalesRevenueGoodsNet",
			"SalesRevenueServicesNet",
			"RevenuesNetOfInterestExpense",
			"RegulatedAndUnregulatedOperatingRevenue",
		},
		units: []string{"USD"},
	},
	{
		name: ConceptNetIncome,
		tags: []string{
			"NetIncomeLoss",
			"ProfitLoss",
			"NetIncomeLossAvailableToCommonStockholdersBasic",
			"IncomeLossFromContinuingOperationsNetOfTax",
		},
		units: []string{"USD"},
	},
	{
		name: ConceptEPS,
		tags: []string{
			"EarningsPerShareDiluted",
			"EarningsPerShareBasic",
			"EarningsPerShareBasicAndDiluted",
		},
		units: []string{"USD/shares"},
	},
}

// Resolver maps concept names onto whichever GAAP tag a filer actually
// used. Resolution is first-match-wins over the priority list: a tag that
// is present with data always beats a lower-priority tag, no matter how
// many observations the lower-priority tag carries.
type Resolver struct {
	specs []conceptSpec
}

// NewResolver returns a resolver over the built-in synonym lists.
func NewResolver() *Resolver {
	return &Resolver{specs: conceptSpecs}
}

// Concepts returns the resolvable concept names in resolution order.
func (r *Resolver) Concepts() []string {
	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, s.name)
	}
	return names
}

// Resolve finds the highest-priority tag for concept that yields at least
// one observation, and returns that tag's observations. A tag that exists
// in the document but has no usable data points does not satisfy the
// concept; resolution moves on to the next synonym.
func (r *Resolver) Resolve(concept string, facts *edgar.CompanyFacts) (string, []Observation, bool) {
	var cs *conceptSpec
	for i := range r.specs {
		if r.specs[i].name == concept {
			cs = &r.specs[i]
			break
		}
	}
	if cs == nil || facts == nil {
		return "", nil, false
	}

	for _, tag := range cs.tags {
		tf := facts.GAAPTag(tag)
		if tf == nil {
			continue
		}
		obs := observationsFromTag(concept, tag, tf, cs.units)
		if len(obs) > 0 {
			return tag, obs, true
		}
	}
	return "", nil, false
}

// observationsFromTag converts one tag's raw fact entries into standardized
// observations. Unit selection happens here and nowhere else: the first
// preferred unit with data wins, so a filer reporting both USD and EUR
// yields a single-currency series.
func observationsFromTag(concept, tag string, tf *edgar.TagFacts, preferredUnits []string) []Observation {
	var raw []edgar.RawFact
	for _, unit := range preferredUnits {
		if facts, ok := tf.Units[unit]; ok && len(facts) > 0 {
			raw = facts
			break
		}
	}
	if raw == nil {
		return nil
	}

	obs := make([]Observation, 0, len(raw))
	for _, f := range raw {
		end, err := time.Parse("2006-01-02", f.End)
		if err != nil {
			continue
		}
		obs = append(obs, Observation{
			Concept:   concept,
			PeriodEnd: end,
			Value:     f.Value,
			SourceTag: tag,
			FilingID:  f.Accession,
			Form:      f.Form,
		})
	}
	return obs
}
