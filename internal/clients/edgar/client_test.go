package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbrief/edgar-pipeline/internal/reliability"
)

const sampleCompanyFacts = `{
	"cik": 320193,
	"entityName": "Apple Inc.",
	"facts": {
		"dei": {
			"EntityCommonStockSharesOutstanding": {
				"label": "Entity Common Stock, Shares Outstanding",
				"units": {
					"shares": [
						{"end": "2024-10-18", "val": 15115823000, "accn": "0000320193-24-000123", "fy": 2024, "fp": "FY", "form": "10-K", "filed": "2024-11-01"}
					]
				}
			}
		},
		"us-gaap": {
			"Revenues": {
				"label": "Revenues",
				"units": {
					"USD": [
						{"start": "2023-10-01", "end": "2024-09-28", "val": 391035000000, "accn": "0000320193-24-000123", "fy": 2024, "fp": "FY", "form": "10-K", "filed": "2024-11-01"},
						{"start": "2022-09-25", "end": "2023-09-30", "val": 383285000000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03"}
					]
				}
			},
			"EarningsPerShareDiluted": {
				"label": "Earnings Per Share, Diluted",
				"units": {
					"USD/shares": [
						{"start": "2023-10-01", "end": "2024-09-28", "val": 6.08, "accn": "0000320193-24-000123", "fy": 2024, "fp": "FY", "form": "10-K", "filed": "2024-11-01"}
					]
				}
			}
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	limiter := reliability.NewRateLimiter(1000, zerolog.Nop())
	breaker := reliability.NewBreaker(reliability.BreakerConfig{
		FailureThreshold:    100,
		SuccessThreshold:    1,
		RecoveryTimeout:     time.Minute,
		HalfOpenMaxRequests: 1,
	}, IsUpstreamFailure, zerolog.Nop())
	fetcher := NewFetcher(limiter, breaker, FetcherConfig{
		UserAgent:      "pipeline-test test@example.com",
		MaxRetries:     1,
		BackoffBase:    time.Millisecond,
		AttemptTimeout: 2 * time.Second,
	}, zerolog.Nop())

	return NewClient(fetcher, srv.URL, srv.URL, zerolog.Nop()), srv
}

// TestNormalizeCIK tests CIK normalization to the 10-digit URL form.
func TestNormalizeCIK(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"320193", "0000320193"},
		{"0000320193", "0000320193"},
		{"CIK320193", "0000320193"},
		{"cik0000320193", "0000320193"},
		{" 320193 ", "0000320193"},
		{"1018724", "0001018724"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCIK(tt.input))
		})
	}
}

// TestCompanyFacts tests fetching and parsing a companyfacts document.
func TestCompanyFacts(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(sampleCompanyFacts))
	}))

	facts, err := client.CompanyFacts(context.Background(), "320193")
	require.NoError(t, err)

	assert.Equal(t, "/api/xbrl/companyfacts/CIK0000320193.json", gotPath)
	assert.Equal(t, int64(320193), facts.CIK)
	assert.Equal(t, "Apple Inc.", facts.EntityName)

	revenues := facts.GAAPTag("Revenues")
	require.NotNil(t, revenues)
	require.Len(t, revenues.Units["USD"], 2)
	assert.Equal(t, 391035000000.0, revenues.Units["USD"][0].Value)
	assert.Equal(t, "0000320193-24-000123", revenues.Units["USD"][0].Accession)
	assert.Equal(t, "10-K", revenues.Units["USD"][0].Form)

	assert.Nil(t, facts.GAAPTag("NetIncomeLoss"))
}

// TestCompanyFactsParseError tests that a malformed body surfaces as a
// typed parse error.
func TestCompanyFactsParseError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))

	_, err := client.CompanyFacts(context.Background(), "320193")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindParse, ee.Kind)
	assert.False(t, IsRetryable(err))
}

// TestCompanyFactsMissingFactsSection tests rejection of documents without
// a facts map.
func TestCompanyFactsMissingFactsSection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cik": 320193, "entityName": "Apple Inc."}`))
	}))

	_, err := client.CompanyFacts(context.Background(), "320193")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindParse, ee.Kind)
}

// TestFilingDocument tests raw document fetch by relative archive path.
func TestFilingDocument(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("UNITED STATES SECURITIES AND EXCHANGE COMMISSION ..."))
	}))

	text, err := client.FilingDocument(context.Background(), "Archives/edgar/data/320193/000032019324000123/aapl-20240928.htm")
	require.NoError(t, err)

	assert.Equal(t, "/Archives/edgar/data/320193/000032019324000123/aapl-20240928.htm", gotPath)
	assert.Contains(t, text, "SECURITIES AND EXCHANGE COMMISSION")
}
