// Package edgar provides the SEC EDGAR client and the resilience stack
// guarding every request to it.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Client exposes the two EDGAR endpoint shapes the pipeline consumes: the
// per-entity XBRL companyfacts document and raw filing documents by archive
// URL. All requests flow through the Fetcher's resilience stack.
type Client struct {
	fetcher         *Fetcher
	factsBaseURL    string
	archivesBaseURL string
	log             zerolog.Logger
}

// NewClient creates an EDGAR client on top of a fetcher.
func NewClient(fetcher *Fetcher, factsBaseURL, archivesBaseURL string, log zerolog.Logger) *Client {
	return &Client{
		fetcher:         fetcher,
		factsBaseURL:    strings.TrimSuffix(factsBaseURL, "/"),
		archivesBaseURL: strings.TrimSuffix(archivesBaseURL, "/"),
		log:             log.With().Str("client", "edgar").Logger(),
	}
}

// NormalizeCIK left-pads an entity identifier to the 10-digit form EDGAR
// URLs require, stripping an optional "CIK" prefix.
func NormalizeCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	cik = strings.TrimPrefix(strings.ToUpper(cik), "CIK")
	cik = strings.TrimLeft(cik, "0")
	if len(cik) > 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// CompanyFacts fetches and parses the XBRL facts document for one entity.
func (c *Client) CompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.factsBaseURL, NormalizeCIK(cik))

	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	var facts CompanyFacts
	if err := json.Unmarshal(body, &facts); err != nil {
		return nil, &Error{Kind: KindParse, URL: url, Err: err}
	}
	if facts.Facts == nil {
		return nil, &Error{Kind: KindParse, URL: url, Err: fmt.Errorf("companyfacts document has no facts section")}
	}

	c.log.Debug().
		Str("cik", cik).
		Str("entity", facts.EntityName).
		Int("gaap_tags", len(facts.Facts[GAAPTaxonomy])).
		Msg("Fetched companyfacts")

	return &facts, nil
}

// FilingDocument fetches a raw filing document by its archive path and
// returns the opaque text. Used as a fallback when structured facts are
// unavailable for a filing.
func (c *Client) FilingDocument(ctx context.Context, path string) (string, error) {
	url := path
	if !strings.HasPrefix(path, "http") {
		url = c.archivesBaseURL + "/" + strings.TrimPrefix(path, "/")
	}

	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	c.log.Debug().Str("url", url).Int("bytes", len(body)).Msg("Fetched filing document")
	return string(body), nil
}
