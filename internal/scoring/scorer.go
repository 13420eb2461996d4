// Package scoring composes feature derivation and the two decision trees
// into the full pipeline: win probability, clamped contract value, expected
// value and priority segment.
package scoring

import (
	"time"

	"leadscore/internal/features"
	"leadscore/internal/model"
)

// Priority segments derived from the close score.
const (
	SegmentIdeal         = "Ideal Target"
	SegmentGood          = "Good Target"
	SegmentMedium        = "Medium Target"
	SegmentLow           = "Low Priority"
	SegmentNotApplicable = "Not Applicable - No Marketing Team"
)

// Config carries every tunable the pipeline needs, passed explicitly at
// construction time. There is no package-level default state.
type Config struct {
	// Predicted ACV is clamped into [ACVMin, ACVMax]; the regressor has
	// weak fit and a pathological leaf must not produce a nonsense
	// headline number.
	ACVMin float64
	ACVMax float64

	// Segment thresholds: closed lower bounds on the close score.
	IdealThreshold  float64
	GoodThreshold   float64
	MediumThreshold float64

	Defaults features.Defaults

	// BatchWorkers bounds concurrent items in ScoreAll.
	BatchWorkers int
}

// DefaultConfig returns the documented production configuration.
func DefaultConfig() Config {
	return Config{
		ACVMin:          5000,
		ACVMax:          40000,
		IdealThreshold:  0.70,
		GoodThreshold:   0.50,
		MediumThreshold: 0.30,
		Defaults: features.Defaults{
			CompanyRevenue: 80_000_000,
			IsB2B:          1,
		},
		BatchWorkers: 8,
	}
}

// Metrics is the narrow observability surface the scorer needs. A nil
// Metrics disables instrumentation.
type Metrics interface {
	ScoreObserve(float64)
	ACVClampInc()
	ValidationFailureInc()
	ScoringLatencyObserve(float64)
}

// Result is the output of one scoring run. Created fresh per request,
// never persisted by this package.
type Result struct {
	CompanyName    string            `json:"company_name"`
	Domain         string            `json:"domain"`
	CloseScore     float64           `json:"close_score"`
	PredictedACV   float64           `json:"predicted_acv"`
	ExpectedValue  float64           `json:"expected_value"`
	Segment        string            `json:"segment"`
	MarketingRatio float64           `json:"marketing_to_headcount_ratio"`
	Inputs         features.Resolved `json:"inputs_used"`
	ScoredAt       time.Time         `json:"scored_at"`
}

// Scorer runs the pipeline against a fixed pair of trees. The trees are
// read-only after construction; a Scorer is safe for concurrent use.
type Scorer struct {
	classifier *model.Tree[model.ClassProbs]
	regressor  *model.Tree[float64]
	cfg        Config
	metrics    Metrics
}

// New builds a Scorer from loaded artifacts and an explicit configuration.
func New(classifier *model.Tree[model.ClassProbs], regressor *model.Tree[float64], cfg Config, m Metrics) *Scorer {
	return &Scorer{
		classifier: classifier,
		regressor:  regressor,
		cfg:        cfg,
		metrics:    m,
	}
}

// Version reports the classifier artifact version, used by health and
// model-info endpoints.
func (s *Scorer) Version() string { return s.classifier.Version() }

// Score runs the full pipeline for one company. Validation failures from
// feature derivation are returned verbatim; no partial result is produced.
func (s *Scorer) Score(raw features.RawInput) (*Result, error) {
	start := time.Now()

	v, resolved, err := features.Derive(raw, s.cfg.Defaults)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ValidationFailureInc()
		}
		return nil, err
	}

	closeScore := s.classifier.Evaluate(v).Positive()

	acv := s.regressor.Evaluate(v)
	if acv < s.cfg.ACVMin || acv > s.cfg.ACVMax {
		if s.metrics != nil {
			s.metrics.ACVClampInc()
		}
		acv = clamp(acv, s.cfg.ACVMin, s.cfg.ACVMax)
	}

	res := &Result{
		CompanyName:    raw.CompanyName,
		Domain:         raw.Domain,
		CloseScore:     closeScore,
		PredictedACV:   acv,
		ExpectedValue:  closeScore * acv,
		Segment:        SegmentFor(s.cfg, closeScore),
		MarketingRatio: v.MarketingRatio(),
		Inputs:         resolved,
		ScoredAt:       time.Now().UTC(),
	}

	if s.metrics != nil {
		s.metrics.ScoreObserve(closeScore)
		s.metrics.ScoringLatencyObserve(time.Since(start).Seconds())
	}
	return res, nil
}

// SegmentFor maps a close score to its priority segment. Lower bounds are
// closed, upper bounds open: a score of exactly 0.70 is Ideal Target.
func SegmentFor(cfg Config, score float64) string {
	switch {
	case score >= cfg.IdealThreshold:
		return SegmentIdeal
	case score >= cfg.GoodThreshold:
		return SegmentGood
	case score >= cfg.MediumThreshold:
		return SegmentMedium
	default:
		return SegmentLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
