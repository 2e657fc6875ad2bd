package evaluate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	truth := []Pair{{"a", "b"}, {"c", "d"}, {"e", "f"}, {"g", "h"}}
	computed := []Pair{{"b", "a"}, {"c", "d"}, {"c", "d"}, {"x", "y"}}

	got := Evaluate(truth, computed)
	assert.Equal(t, 2, got.TruePositives)
	assert.Equal(t, 1, got.FalsePositives)
	assert.Equal(t, 2, got.FalseNegatives)
	assert.InDelta(t, 2.0/3, got.Precision, 1e-12)
	assert.InDelta(t, 0.5, got.Recall, 1e-12)
	assert.InDelta(t, 4.0/7, got.F1, 1e-12)
}

func TestEvaluatePerfect(t *testing.T) {
	pairs := []Pair{{"1", "2"}, {"3", "4"}}
	got := Evaluate(pairs, []Pair{{"2", "1"}, {"4", "3"}})
	assert.Equal(t, Result{TruePositives: 2, Precision: 1, Recall: 1, F1: 1}, got)
}

func TestEvaluateNoOverlapScoresZero(t *testing.T) {
	assert.Equal(t, Result{FalsePositives: 1, FalseNegatives: 1}, Evaluate([]Pair{{"a", "b"}}, []Pair{{"a", "c"}}))
	assert.Equal(t, Result{}, Evaluate(nil, nil))
	assert.Equal(t, Result{FalseNegatives: 1}, Evaluate([]Pair{{"a", "b"}}, nil))
}

type staticSource map[string][]Pair

func (s staticSource) LoadPairs(_ context.Context, relation, _, _ string) ([]Pair, error) {
	pairs, ok := s[relation]
	if !ok {
		return nil, errors.New("no such relation")
	}
	return pairs, nil
}

func TestEvaluateRelations(t *testing.T) {
	src := staticSource{
		"truth": {{"a", "b"}},
		"out":   {{"b", "a"}, {"a", "c"}},
	}
	got, err := EvaluateRelations(context.Background(), src, "truth", IDColumns{"l", "r"}, "out", IDColumns{"l_id", "r_id"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TruePositives)
	assert.Equal(t, 1, got.FalsePositives)

	_, err = EvaluateRelations(context.Background(), src, "missing", IDColumns{}, "out", IDColumns{})
	assert.ErrorContains(t, err, "loading ground truth missing")
}
