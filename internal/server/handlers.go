package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/finbrief/edgar-pipeline/internal/modules/fundamentals"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "edgar-pipeline",
	})
}

// handleSystemStatus handles system status requests
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc_mb": m.Alloc / 1024 / 1024,
			"sys_mb":   m.Sys / 1024 / 1024,
			"num_gc":   m.NumGC,
		},
	}

	// Host metrics are best-effort; their absence never fails the endpoint.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		response["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["host_memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleCacheStats returns the combined two-tier cache snapshot.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats(r.Context()))
}

// handleCacheClear empties both cache tiers.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := s.cache.Clear(r.Context())
	s.log.Info().Int("removed", removed).Msg("Cache cleared via admin endpoint")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": removed,
	})
}

// handleBreakerStatus returns the circuit breaker snapshot.
func (s *Server) handleBreakerStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.breaker.Status())
}

// handleBreakerReset forces the breaker closed.
func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	s.breaker.Reset()
	s.log.Warn().Msg("Circuit breaker reset via admin endpoint")
	s.writeJSON(w, http.StatusOK, s.breaker.Status())
}

// handleRateLimitStatus returns the token bucket snapshot.
func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.limiter.Status())
}

// handleStandardizedMetrics runs the fundamentals pipeline for one filing.
func (s *Server) handleStandardizedMetrics(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")
	accession := chi.URLParam(r, "accession")

	result, err := s.fundamentals.GetStandardizedMetrics(r.Context(), cik, accession)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleFilingDocument fetches a raw filing document by archive path.
func (s *Server) handleFilingDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "missing required query parameter: path")
		return
	}

	doc, err := s.edgar.FilingDocument(r.Context(), path)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// writePipelineError maps a pipeline failure onto an HTTP status, exposing
// the failure kind so clients can branch without parsing messages. Errors
// arriving straight from the transport layer are classified first so every
// route speaks the same kind vocabulary.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var pe *fundamentals.PipelineError
	if !errors.As(err, &pe) {
		pe = fundamentals.Classify(err)
	}

	status := http.StatusBadGateway
	switch pe.Kind {
	case fundamentals.FailRateLimited:
		status = http.StatusTooManyRequests
	case fundamentals.FailCircuitOpen:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "30")
	case fundamentals.FailNotFound:
		status = http.StatusNotFound
	}

	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":      pe.Kind.String(),
			"message":   pe.Message,
			"retryable": pe.Retryable(),
		},
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
