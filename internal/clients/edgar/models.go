package edgar

// CompanyFacts is the EDGAR XBRL companyfacts document for one entity:
// a nested map of taxonomy -> tag -> units -> reported facts.
type CompanyFacts struct {
	CIK        int64                          `json:"cik"`
	EntityName string                         `json:"entityName"`
	Facts      map[string]map[string]TagFacts `json:"facts"`
}

// TagFacts holds every reported fact for one taxonomy tag, grouped by unit
// (e.g. "USD", "USD/shares", "shares").
type TagFacts struct {
	Label       string               `json:"label"`
	Description string               `json:"description"`
	Units       map[string][]RawFact `json:"units"`
}

// RawFact is a single reported XBRL fact. Duration facts carry both Start
// and End; instant facts carry only End.
type RawFact struct {
	Start        string  `json:"start,omitempty"`
	End          string  `json:"end"`
	Value        float64 `json:"val"`
	Accession    string  `json:"accn"`
	FiscalYear   int     `json:"fy"`
	FiscalPeriod string  `json:"fp"`
	Form         string  `json:"form"`
	Filed        string  `json:"filed"`
	Frame        string  `json:"frame,omitempty"`
}

// GAAPTaxonomy is the taxonomy namespace carrying the tags this pipeline
// standardizes. Other namespaces (dei, srt) are present in the document but
// not consumed.
const GAAPTaxonomy = "us-gaap"

// GAAPTag returns the facts reported under a us-gaap tag, or nil when the
// entity never used that tag.
func (cf *CompanyFacts) GAAPTag(tag string) *TagFacts {
	gaap, ok := cf.Facts[GAAPTaxonomy]
	if !ok {
		return nil
	}
	tf, ok := gaap[tag]
	if !ok {
		return nil
	}
	return &tf
}
