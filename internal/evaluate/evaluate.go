// Package evaluate scores a computed pair relation against ground truth.
package evaluate

import (
	"context"
	"fmt"
)

// Pair is an unordered pair of record keys.
type Pair struct {
	A string
	B string
}

func (p Pair) normalized() Pair {
	if p.B < p.A {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

// Result holds confusion counts and the derived scores. Scores are zero when
// there are no true positives.
type Result struct {
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// IDColumns names the two key columns of a stored pair relation.
type IDColumns struct {
	Left  string
	Right string
}

// PairSource loads the pairs of a stored relation.
type PairSource interface {
	LoadPairs(ctx context.Context, relation, leftCol, rightCol string) ([]Pair, error)
}

// Evaluate compares computed against truth as sets of unordered pairs, so a
// computed (b, a) matches a truth (a, b). Repeated pairs count once.
func Evaluate(truth, computed []Pair) Result {
	truthSet := toSet(truth)
	computedSet := toSet(computed)

	var r Result
	for p := range computedSet {
		if _, ok := truthSet[p]; ok {
			r.TruePositives++
		} else {
			r.FalsePositives++
		}
	}
	r.FalseNegatives = len(truthSet) - r.TruePositives

	if r.TruePositives == 0 {
		return r
	}
	r.Precision = float64(r.TruePositives) / float64(r.TruePositives+r.FalsePositives)
	r.Recall = float64(r.TruePositives) / float64(r.TruePositives+r.FalseNegatives)
	r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	return r
}

// EvaluateRelations loads two stored relations through src and evaluates
// the computed one against the truth.
func EvaluateRelations(ctx context.Context, src PairSource, truthName string, truthCols IDColumns, computedName string, computedCols IDColumns) (Result, error) {
	truth, err := src.LoadPairs(ctx, truthName, truthCols.Left, truthCols.Right)
	if err != nil {
		return Result{}, fmt.Errorf("loading ground truth %s: %w", truthName, err)
	}
	computed, err := src.LoadPairs(ctx, computedName, computedCols.Left, computedCols.Right)
	if err != nil {
		return Result{}, fmt.Errorf("loading computed pairs %s: %w", computedName, err)
	}
	return Evaluate(truth, computed), nil
}

func toSet(pairs []Pair) map[Pair]struct{} {
	set := make(map[Pair]struct{}, len(pairs))
	for _, p := range pairs {
		set[p.normalized()] = struct{}{}
	}
	return set
}
