package simjoin

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
)

func collection(name string, values ...string) Collection {
	c := Collection{Name: name, KeyAttr: "id", JoinAttr: "value"}
	for i, v := range values {
		c.Rows = append(c.Rows, Row{Key: fmt.Sprintf("%s%d", name, i), Value: v})
	}
	return c
}

var vocabulary = strings.Fields("alpha beta gamma delta epsilon zeta eta theta iota kappa " +
	"lambda mu nu xi omicron pi rho sigma tau upsilon phi chi psi omega " +
	"red green blue amber jade onyx")

// randomCollection draws skewed word sets so that frequent and rare tokens
// both occur and some records collide exactly.
func randomCollection(rng *rand.Rand, name string, n int) Collection {
	values := make([]string, n)
	for i := range values {
		if i > 0 && rng.Intn(10) == 0 {
			values[i] = values[rng.Intn(i)]
			continue
		}
		words := make([]string, 1+rng.Intn(8))
		for j := range words {
			words[j] = vocabulary[int(rng.ExpFloat64()*6)%len(vocabulary)]
		}
		values[i] = strings.Join(words, " ")
	}
	return collection(name, values...)
}

func runJoin(t *testing.T, plan JoinPlan, tok tokenizer.Tokenizer, threshold float64, workers int) Relation {
	t.Helper()
	res, err := Run(context.Background(), plan, Options{Tokenizer: tok, Threshold: threshold, Workers: workers, OutputName: "out"})
	require.NoError(t, err)
	return res.Relation
}

func runBruteForce(t *testing.T, plan JoinPlan, tok tokenizer.Tokenizer, threshold float64) Relation {
	t.Helper()
	res, err := RunBruteForce(context.Background(), plan, Options{Tokenizer: tok, Threshold: threshold, OutputName: "out"})
	require.NoError(t, err)
	return res.Relation
}

// pairSet normalizes pairs for comparison. Self-join pairs are unordered.
func pairSet(rel Relation, unordered bool) map[MatchPair]int {
	set := make(map[MatchPair]int, len(rel.Pairs))
	for _, p := range rel.Pairs {
		if unordered && p.Right < p.Left {
			p.Left, p.Right = p.Right, p.Left
		}
		set[p]++
	}
	return set
}
