// Package api exposes the scoring pipeline over HTTP. The transport layer
// owns JSON (de)serialization, presentation rounding and percent fields;
// all scoring logic lives in internal/scoring.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"leadscore/internal/cfg"
	"leadscore/internal/features"
	"leadscore/internal/metrics"
	"leadscore/internal/scoring"
	"leadscore/internal/storage"
)

// ServiceName and ServiceVersion identify the API in the root document and
// health responses.
const (
	ServiceName    = "Territory Scoring API"
	ServiceVersion = "1.0"
)

// Server serves scoring requests over HTTP and WebSocket.
type Server struct {
	scorer  *scoring.Scorer
	store   *storage.Store // nil disables persistence
	metrics *metrics.Metrics
	cfg     cfg.Settings
	server  *http.Server
	started time.Time
}

// NewServer wires the handlers. store may be nil when persistence is not
// configured.
func NewServer(scorer *scoring.Scorer, store *storage.Store, m *metrics.Metrics, settings cfg.Settings) *Server {
	s := &Server{
		scorer:  scorer,
		store:   store,
		metrics: m,
		cfg:     settings,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/score", s.handleScore)
	mux.HandleFunc("/batch", s.handleBatch)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       settings.ReadTimeout,
		WriteTimeout:      settings.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests and blocks until the listener stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting scoring server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ScoreResponse is the wire form of one successful score. Percent fields
// and rounding are presentation only and happen nowhere else.
type ScoreResponse struct {
	CompanyName           string             `json:"company_name"`
	Domain                string             `json:"domain"`
	CloseScore            float64            `json:"close_score"`
	CloseScorePercent     string             `json:"close_score_percent"`
	PredictedACV          float64            `json:"predicted_acv"`
	ExpectedValue         float64            `json:"expected_value"`
	Segment               string             `json:"segment"`
	MarketingRatio        float64            `json:"marketing_to_headcount_ratio"`
	MarketingRatioPercent string             `json:"marketing_ratio_percent"`
	InputsUsed            *features.Resolved `json:"inputs_used,omitempty"`
}

// ErrorResponse is the wire form of a per-item failure.
type ErrorResponse struct {
	CompanyName string `json:"company_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Error       string `json:"error"`
	Segment     string `json:"segment,omitempty"`
}

// BatchRequest wraps the ordered company collection of a batch call.
type BatchRequest struct {
	Companies []features.RawInput `json:"companies"`
}

// BatchSummary aggregates successful rows of a batch response.
type BatchSummary struct {
	AvgCloseScore    float64 `json:"avg_close_score"`
	AvgExpectedValue float64 `json:"avg_expected_value"`
	IdealTargets     int     `json:"ideal_targets"`
	GoodTargets      int     `json:"good_targets"`
	MediumTargets    int     `json:"medium_targets"`
	LowPriority      int     `json:"low_priority"`
}

// BatchResponse carries per-item results in input order plus summary stats.
type BatchResponse struct {
	TotalCompanies        int               `json:"total_companies"`
	SuccessfulPredictions int               `json:"successful_predictions"`
	FailedPredictions     int               `json:"failed_predictions"`
	Results               []json.RawMessage `json:"results"`
	SummaryStats          *BatchSummary     `json:"summary_stats,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    ServiceName,
		"version": ServiceVersion,
		"model":   s.scorer.Version(),
		"endpoints": map[string]string{
			"/health":     "GET - health check",
			"/score":      "POST - score a single company",
			"/batch":      "POST - score multiple companies",
			"/stream":     "GET - WebSocket, one company per message",
			"/model/info": "GET - loaded model details",
			"/metrics":    "GET - Prometheus metrics",
		},
		"required_inputs": []string{"marketing_headcount", "people_count"},
		"optional_inputs": []string{"company_revenue", "is_b2b"},
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw features.RawInput
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.countRequest("/score", http.StatusBadRequest)
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	res, err := s.scorer.Score(raw)
	if err != nil {
		// Validation failures are a normal outcome for the caller's
		// data, not a transport error: respond 200 with an error record
		// so spreadsheet rows keep flowing.
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			s.countRequest("/score", http.StatusOK)
			writeJSON(w, http.StatusOK, errorRecord(raw, verr))
			return
		}
		s.countRequest("/score", http.StatusInternalServerError)
		log.Error().Err(err).Msg("scoring failed")
		http.Error(w, fmt.Sprintf("scoring failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.persist(res)
	s.countRequest("/score", http.StatusOK)
	writeJSON(w, http.StatusOK, toResponse(res, true))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.countRequest("/batch", http.StatusBadRequest)
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Companies) == 0 {
		s.countRequest("/batch", http.StatusBadRequest)
		http.Error(w, "companies array is required", http.StatusBadRequest)
		return
	}
	if len(req.Companies) > s.cfg.BatchMaxSize {
		s.countRequest("/batch", http.StatusRequestEntityTooLarge)
		http.Error(w, fmt.Sprintf("batch exceeds maximum size %d", s.cfg.BatchMaxSize), http.StatusRequestEntityTooLarge)
		return
	}

	if s.metrics != nil {
		s.metrics.BatchSizeObserve(len(req.Companies))
	}

	items := s.scorer.ScoreAll(r.Context(), req.Companies)

	resp := BatchResponse{
		TotalCompanies: len(items),
		Results:        make([]json.RawMessage, 0, len(items)),
	}
	var sum BatchSummary
	var scoreSum, evSum float64

	for _, item := range items {
		if item.Err != nil {
			resp.FailedPredictions++
			resp.Results = append(resp.Results, mustMarshal(errorRecord(req.Companies[item.Index], item.Err)))
			continue
		}
		resp.SuccessfulPredictions++
		s.persist(item.Result)
		scoreSum += item.Result.CloseScore
		evSum += item.Result.ExpectedValue
		switch item.Result.Segment {
		case scoring.SegmentIdeal:
			sum.IdealTargets++
		case scoring.SegmentGood:
			sum.GoodTargets++
		case scoring.SegmentMedium:
			sum.MediumTargets++
		case scoring.SegmentLow:
			sum.LowPriority++
		}
		resp.Results = append(resp.Results, mustMarshal(toResponse(item.Result, false)))
	}

	if resp.SuccessfulPredictions > 0 {
		n := float64(resp.SuccessfulPredictions)
		sum.AvgCloseScore = round4(scoreSum / n)
		sum.AvgExpectedValue = round2(evSum / n)
		resp.SummaryStats = &sum
	}

	s.countRequest("/batch", http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"model":     s.scorer.Version(),
		"features":  features.Dim,
		"uptime":    time.Since(s.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":       s.scorer.Version(),
		"features":      features.Names,
		"feature_count": features.Dim,
		"segments": []string{
			scoring.SegmentIdeal,
			scoring.SegmentGood,
			scoring.SegmentMedium,
			scoring.SegmentLow,
		},
	})
}

// errorRecord builds the caller-facing record for a failed item. The
// missing-marketing-team rule gets its dedicated segment label so CRM
// consumers can filter those rows.
func errorRecord(raw features.RawInput, err error) ErrorResponse {
	rec := ErrorResponse{
		CompanyName: raw.CompanyName,
		Domain:      raw.Domain,
		Error:       err.Error(),
	}
	var verr *features.ValidationError
	if errors.As(err, &verr) && verr.Field == "marketing_headcount" {
		rec.Segment = scoring.SegmentNotApplicable
	}
	return rec
}

func toResponse(res *scoring.Result, includeInputs bool) ScoreResponse {
	resp := ScoreResponse{
		CompanyName:           res.CompanyName,
		Domain:                res.Domain,
		CloseScore:            round4(res.CloseScore),
		CloseScorePercent:     fmt.Sprintf("%.1f%%", res.CloseScore*100),
		PredictedACV:          round2(res.PredictedACV),
		ExpectedValue:         round2(res.ExpectedValue),
		Segment:               res.Segment,
		MarketingRatio:        round4(res.MarketingRatio),
		MarketingRatioPercent: fmt.Sprintf("%.2f%%", res.MarketingRatio*100),
	}
	if includeInputs {
		inputs := res.Inputs
		resp.InputsUsed = &inputs
	}
	return resp
}

func (s *Server) persist(res *scoring.Result) {
	if s.store == nil {
		return
	}
	if err := s.store.StoreResult(res); err != nil {
		log.Warn().Err(err).Str("domain", res.Domain).Msg("failed to persist score result")
	}
}

func (s *Server) countRequest(endpoint string, status int) {
	if s.metrics != nil {
		s.metrics.HTTPRequestInc(endpoint, fmt.Sprintf("%d", status))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All response types marshal cleanly; this indicates a bug.
		log.Error().Err(err).Msg("failed to marshal batch item")
		return json.RawMessage(`{"error":"internal encoding failure"}`)
	}
	return data
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
