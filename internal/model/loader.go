package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"

	"leadscore/internal/features"
)

// Artifact kinds.
const (
	KindClassifier = "classifier"
	KindRegressor  = "regressor"
)

// ConfigError reports a malformed model artifact. It is fatal: the process
// must refuse to start rather than risk silent mis-scoring.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid model artifact: %s", e.Reason)
	}
	return fmt.Sprintf("invalid model artifact %s: %s", e.Path, e.Reason)
}

type artifactNode struct {
	Leaf      bool            `json:"leaf,omitempty"`
	Feature   int             `json:"feature,omitempty"`
	Threshold float64         `json:"threshold,omitempty"`
	Left      int             `json:"left,omitempty"`
	Right     int             `json:"right,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

type artifact struct {
	Version  string         `json:"version"`
	Kind     string         `json:"kind"`
	Features []string       `json:"features"`
	Nodes    []artifactNode `json:"nodes"`
}

// LoadClassifier reads and validates a classifier artifact from disk.
func LoadClassifier(path string) (*Tree[ClassProbs], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier artifact: %w", err)
	}
	t, err := ParseClassifier(data)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Path = path
		}
		return nil, err
	}
	log.Info().Str("path", path).Str("version", t.Version()).Int("nodes", t.NodeCount()).Msg("classifier artifact loaded")
	return t, nil
}

// LoadRegressor reads and validates a regressor artifact from disk.
func LoadRegressor(path string) (*Tree[float64], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regressor artifact: %w", err)
	}
	t, err := ParseRegressor(data)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Path = path
		}
		return nil, err
	}
	log.Info().Str("path", path).Str("version", t.Version()).Int("nodes", t.NodeCount()).Msg("regressor artifact loaded")
	return t, nil
}

// ParseClassifier validates a serialized classifier artifact. Leaf payloads
// are two class probabilities; each must lie in [0,1].
func ParseClassifier(data []byte) (*Tree[ClassProbs], error) {
	return parse(data, KindClassifier, func(raw json.RawMessage) (ClassProbs, error) {
		var p ClassProbs
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("leaf value must be two class probabilities: %w", err)
		}
		for _, prob := range p {
			if math.IsNaN(prob) || prob < 0 || prob > 1 {
				return p, fmt.Errorf("class probability %v outside [0,1]", prob)
			}
		}
		return p, nil
	})
}

// ParseRegressor validates a serialized regressor artifact. Leaf payloads
// are scalar contract values.
func ParseRegressor(data []byte) (*Tree[float64], error) {
	return parse(data, KindRegressor, func(raw json.RawMessage) (float64, error) {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, fmt.Errorf("leaf value must be a scalar: %w", err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("leaf value %v is not finite", v)
		}
		return v, nil
	})
}

func parse[T any](data []byte, kind string, decodeLeaf func(json.RawMessage) (T, error)) (*Tree[T], error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if a.Kind != kind {
		return nil, &ConfigError{Reason: fmt.Sprintf("kind %q, want %q", a.Kind, kind)}
	}
	if err := checkFeatureOrder(a.Features); err != nil {
		return nil, err
	}
	if len(a.Nodes) == 0 {
		return nil, &ConfigError{Reason: "artifact has no nodes"}
	}

	nodes := make([]node[T], len(a.Nodes))
	for i, an := range a.Nodes {
		if an.Leaf {
			outcome, err := decodeLeaf(an.Value)
			if err != nil {
				return nil, &ConfigError{Reason: fmt.Sprintf("node %d: %v", i, err)}
			}
			nodes[i] = node[T]{leaf: true, outcome: outcome}
			continue
		}
		if an.Feature < 0 || an.Feature >= features.Dim {
			return nil, &ConfigError{Reason: fmt.Sprintf("node %d: feature index %d out of range [0,%d)", i, an.Feature, features.Dim)}
		}
		if math.IsNaN(an.Threshold) {
			return nil, &ConfigError{Reason: fmt.Sprintf("node %d: threshold is NaN", i)}
		}
		// Children must point forward in the node array. That rules out
		// cycles and self references in one check, and matches how the
		// trainer serializes trees (preorder).
		for _, child := range [2]int{an.Left, an.Right} {
			if child <= i || child >= len(a.Nodes) {
				return nil, &ConfigError{Reason: fmt.Sprintf("node %d: child reference %d dangling or non-forward", i, child)}
			}
		}
		nodes[i] = node[T]{
			feature:   an.Feature,
			threshold: an.Threshold,
			left:      an.Left,
			right:     an.Right,
		}
	}

	return &Tree[T]{version: a.Version, nodes: nodes}, nil
}

// checkFeatureOrder rejects artifacts whose feature list does not match the
// runtime's canonical order. The trees encode split-node feature indices
// against this order, so a mismatch would score against the wrong inputs.
func checkFeatureOrder(names []string) error {
	if len(names) != features.Dim {
		return &ConfigError{Reason: fmt.Sprintf("artifact lists %d features, runtime expects %d", len(names), features.Dim)}
	}
	for i, name := range names {
		if name != features.Names[i] {
			return &ConfigError{Reason: fmt.Sprintf("feature %d is %q, runtime expects %q", i, name, features.Names[i])}
		}
	}
	return nil
}
