// Package model loads and evaluates the pre-trained decision tree
// artifacts. Trees are loaded once at process start, validated, and then
// shared read-only by every evaluation; nothing in this package mutates a
// tree after Load returns, so concurrent evaluation needs no locking.
package model

import (
	"leadscore/internal/features"
)

// ClassProbs is the leaf payload of the classifier: per-class probabilities
// with index 1 holding the positive (won-deal) class.
type ClassProbs [2]float64

// Positive returns the probability of the positive class.
func (p ClassProbs) Positive() float64 { return p[1] }

type node[T any] struct {
	feature   int
	threshold float64
	left      int
	right     int
	leaf      bool
	outcome   T
}

// Tree is a binary decision tree over feature vectors, generic over the
// leaf payload so the classifier and the regressor share one traversal.
type Tree[T any] struct {
	version string
	nodes   []node[T]
}

// Version reports the artifact version string.
func (t *Tree[T]) Version() string { return t.version }

// NodeCount reports the number of nodes in the tree.
func (t *Tree[T]) NodeCount() int { return len(t.nodes) }

// Evaluate walks the tree from the root and returns the reached leaf's
// outcome. At each split, feature <= threshold routes left and feature >
// threshold routes right. This direction matches the exported artifacts;
// reversing it would silently invert every prediction.
func (t *Tree[T]) Evaluate(v features.Vector) T {
	i := 0
	for !t.nodes[i].leaf {
		n := t.nodes[i]
		if v[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].outcome
}
