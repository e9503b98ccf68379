package fundamentals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/finbrief/edgar-pipeline/internal/cache"
	"github.com/finbrief/edgar-pipeline/internal/clients/edgar"
	"github.com/finbrief/edgar-pipeline/internal/observability"
)

// FactsSource produces a company facts document. Satisfied by
// *edgar.Client; narrowed to an interface so tests can substitute a stub.
type FactsSource interface {
	CompanyFacts(ctx context.Context, cik string) (*edgar.CompanyFacts, error)
}

// ServiceConfig carries the pipeline-level knobs.
type ServiceConfig struct {
	// OverallTimeout bounds one whole request including every retry.
	OverallTimeout time.Duration
	// MaxSeriesItems caps each concept's series length.
	MaxSeriesItems int
}

// Service is the fundamentals pipeline: fetch (through cache), resolve,
// select, standardize. Stateless between requests apart from the cache.
type Service struct {
	source   FactsSource
	cache    *cache.TwoTier
	resolver *Resolver
	cfg      ServiceConfig
	now      func() time.Time
	log      zerolog.Logger
}

// NewService wires the pipeline.
func NewService(source FactsSource, c *cache.TwoTier, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.MaxSeriesItems <= 0 {
		cfg.MaxSeriesItems = defaultMaxItems
	}
	return &Service{
		source:   source,
		cache:    c,
		resolver: NewResolver(),
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "fundamentals").Logger(),
	}
}

// GetStandardizedMetrics runs the full pipeline for one filing. Concepts
// the filer never reported, and concepts whose observations belong to
// other filings, are simply absent from the result; only fetch failures
// surface as a *PipelineError.
func (s *Service) GetStandardizedMetrics(ctx context.Context, cik, accession string) (*StandardizedMetrics, error) {
	start := s.now()
	reqLog := s.log.With().
		Str("request_id", uuid.NewString()[:8]).
		Str("cik", cik).
		Str("accession", accession).
		Logger()

	if s.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OverallTimeout)
		defer cancel()
	}

	facts, err := s.companyFacts(ctx, cik, reqLog)
	if err != nil {
		pe := Classify(err)
		observability.RecordPipelineRequest(pe.Kind.String(), s.now().Sub(start))
		reqLog.Warn().Err(err).Str("kind", pe.Kind.String()).Msg("Pipeline request failed")
		return nil, pe
	}

	byConcept := make(map[string][]Observation)
	for _, concept := range s.resolver.Concepts() {
		tag, obs, ok := s.resolver.Resolve(concept, facts)
		if !ok {
			reqLog.Debug().Str("concept", concept).Msg("No taxonomy tag resolved")
			continue
		}
		selected := SelectForFiling(obs, accession, s.cfg.MaxSeriesItems)
		if len(selected) == 0 {
			reqLog.Debug().Str("concept", concept).Str("tag", tag).Msg("No observations for target filing")
			continue
		}
		byConcept[concept] = selected
	}

	result := &StandardizedMetrics{
		CIK:         edgar.NormalizeCIK(cik),
		EntityName:  facts.EntityName,
		Accession:   accession,
		Metrics:     BuildAll(byConcept),
		GeneratedAt: s.now().UTC(),
	}

	observability.RecordPipelineRequest("ok", s.now().Sub(start))
	reqLog.Info().
		Int("concepts", len(result.Metrics)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Standardized metrics built")
	return result, nil
}

// companyFacts returns the facts document through the cache. Only
// successful fetches are written back; a failure must never be cached or
// every retry inside the TTL would replay it.
func (s *Service) companyFacts(ctx context.Context, cik string, log zerolog.Logger) (*edgar.CompanyFacts, error) {
	key := "facts:" + edgar.NormalizeCIK(cik)

	if payload, ok := s.cache.Get(ctx, key); ok {
		var facts edgar.CompanyFacts
		if err := msgpack.Unmarshal(payload, &facts); err == nil {
			observability.RecordDocCache(true)
			return &facts, nil
		}
		// Corrupt entry: fall through to a fresh fetch, which overwrites it.
		log.Warn().Str("key", key).Msg("Cached facts document undecodable, refetching")
	}
	observability.RecordDocCache(false)

	facts, err := s.source.CompanyFacts(ctx, cik)
	if err != nil {
		return nil, err
	}

	payload, err := msgpack.Marshal(facts)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Facts document not cacheable")
		return facts, nil
	}
	s.cache.Set(ctx, key, payload)
	return facts, nil
}
