package simjoin

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

var thresholds = []float64{0.05, 0.1, 0.2, 0.25, 0.3, 1.0 / 3, 0.4, 0.5, 0.6, 2.0 / 3, 0.7, 0.75, 0.8, 0.9, 1}

func TestSelfJoinMatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewSource(seed))
		plan := NewPlan(randomCollection(rng, "c", 60), nil)
		for _, th := range thresholds {
			want := pairSet(runBruteForce(t, plan, tokenizer.Whitespace(), th), true)
			for _, workers := range []int{1, 4} {
				got := pairSet(runJoin(t, plan, tokenizer.Whitespace(), th, workers), true)
				require.Equal(t, want, got, "seed=%d t=%v workers=%d", seed, th, workers)
			}
		}
	}
}

func TestInnerJoinMatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewSource(seed))
		left := randomCollection(rng, "l", 40+rng.Intn(30))
		right := randomCollection(rng, "r", 20+rng.Intn(50))
		plan := NewPlan(left, &right)
		for _, th := range thresholds {
			want := pairSet(runBruteForce(t, plan, tokenizer.Whitespace(), th), false)
			for _, workers := range []int{1, 3} {
				got := pairSet(runJoin(t, plan, tokenizer.Whitespace(), th, workers), false)
				require.Equal(t, want, got, "seed=%d t=%v workers=%d", seed, th, workers)
			}
		}
	}
}

func TestQGramJoinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]string, 80)
	for i := range values {
		b := make([]byte, 2+rng.Intn(7))
		for j := range b {
			b[j] = "abcd"[rng.Intn(4)]
		}
		values[i] = string(b)
	}
	left := collection("l", values[:50]...)
	right := collection("r", values[30:]...)
	tok := tokenizer.QGram(2)
	for _, th := range thresholds {
		inner := NewPlan(left, &right)
		assert.Equal(t,
			pairSet(runBruteForce(t, inner, tok, th), false),
			pairSet(runJoin(t, inner, tok, th, 2), false), "inner t=%v", th)

		self := NewPlan(left, nil)
		assert.Equal(t,
			pairSet(runBruteForce(t, self, tok, th), true),
			pairSet(runJoin(t, self, tok, th, 2), true), "self t=%v", th)
	}
}

func TestSelfJoinNeverPairsARecordWithItself(t *testing.T) {
	c := collection("c", "same words here", "same words here", "same words", "other", "other")
	rel := runJoin(t, NewPlan(c, nil), tokenizer.Whitespace(), 0.5, 2)

	seen := make(map[MatchPair]bool)
	for _, p := range rel.Pairs {
		assert.NotEqual(t, p.Left, p.Right)
		if p.Right < p.Left {
			p.Left, p.Right = p.Right, p.Left
		}
		assert.False(t, seen[p], "duplicate pair %v", p)
		seen[p] = true
	}
	assert.Equal(t, map[MatchPair]bool{
		{"c0", "c1"}: true,
		{"c0", "c2"}: true,
		{"c1", "c2"}: true,
		{"c3", "c4"}: true,
	}, seen)
}

func TestInnerJoinIgnoresKeyEquality(t *testing.T) {
	left := Collection{Name: "people", KeyAttr: "id", JoinAttr: "name", Rows: []Row{
		{Key: "1", Value: "ada lovelace"},
		{Key: "2", Value: "alan turing"},
	}}
	right := Collection{Name: "authors", KeyAttr: "id", JoinAttr: "name", Rows: []Row{
		{Key: "1", Value: "alan turing"},
		{Key: "2", Value: "ada lovelace"},
	}}
	rel := runJoin(t, NewPlan(left, &right), tokenizer.Whitespace(), 0.9, 1)
	assert.ElementsMatch(t, []MatchPair{{"1", "2"}, {"2", "1"}}, rel.Pairs)
}

func TestThresholdMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	left := randomCollection(rng, "l", 50)
	right := randomCollection(rng, "r", 50)
	for _, plan := range []JoinPlan{NewPlan(left, nil), NewPlan(left, &right)} {
		var prev map[MatchPair]int
		for i := len(thresholds) - 1; i >= 0; i-- {
			cur := pairSet(runJoin(t, plan, tokenizer.Whitespace(), thresholds[i], 2), plan.Kind() == "self")
			for p := range prev {
				assert.Contains(t, cur, p, "%s: lowering t to %v dropped %v", plan.Kind(), thresholds[i], p)
			}
			prev = cur
		}
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	left := collection("l", "a b")
	right := collection("r", "a b c d")
	tok := tokenizer.Whitespace()

	// Jaccard is exactly 0.5; the indexed record may be the longer one.
	assert.Equal(t, []MatchPair{{"l0", "r0"}}, runJoin(t, NewPlan(left, &right), tok, 0.5, 1).Pairs)
	assert.Equal(t, []MatchPair{{"r0", "l0"}}, runJoin(t, NewPlan(right, &left), tok, 0.5, 1).Pairs)
	assert.Empty(t, runJoin(t, NewPlan(left, &right), tok, 0.51, 1).Pairs)

	self := collection("c", "a b", "a b c d")
	assert.Len(t, runJoin(t, NewPlan(self, nil), tok, 0.5, 1).Pairs, 1)
}

func TestThresholdJustAboveExactRatioExcludes(t *testing.T) {
	c := collection("c", "a", "a b")
	tok := tokenizer.Whitespace()

	assert.Len(t, runJoin(t, NewPlan(c, nil), tok, 0.5, 1).Pairs, 1)
	assert.Empty(t, runJoin(t, NewPlan(c, nil), tok, 0.5000000001, 1).Pairs)
	assert.Empty(t, runBruteForce(t, NewPlan(c, nil), tok, 0.5000000001).Pairs)
}

func TestJoinIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	left := randomCollection(rng, "l", 80)
	right := randomCollection(rng, "r", 80)
	plan := NewPlan(left, &right)

	first, err := Run(context.Background(), plan, Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.4, Workers: 4})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Run(context.Background(), plan, Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.4, Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, first.Relation, again.Relation)
		assert.Equal(t, first.Stats.IndexingSide, again.Stats.IndexingSide)
	}
}

func TestKittenSitting(t *testing.T) {
	c := collection("w", "kitten", "sitting")
	plan := NewPlan(c, nil)
	tok := tokenizer.QGram(3)

	assert.Empty(t, runJoin(t, plan, tok, 0.3, 1).Pairs)
	assert.Empty(t, runBruteForce(t, plan, tok, 0.3).Pairs)

	want := map[MatchPair]int{{"w0", "w1"}: 1}
	assert.Equal(t, want, pairSet(runJoin(t, plan, tok, 0.05, 1), true))
	assert.Equal(t, want, pairSet(runBruteForce(t, plan, tok, 0.05), true))
}

func TestNewYorkCity(t *testing.T) {
	left := collection("l", "new york city")
	right := collection("r", "New York")
	rel := runJoin(t, NewPlan(left, &right), tokenizer.Words(), 0.6, 1)
	assert.Equal(t, []MatchPair{{"l0", "r0"}}, rel.Pairs)
	assert.Equal(t, [2]string{"l_id", "r_id"}, rel.Columns)
}

func TestEmptyInputsYieldEmptyRelations(t *testing.T) {
	empty := collection("e")
	full := collection("f", "a b", "a b")

	for _, plan := range []JoinPlan{NewPlan(empty, nil), NewPlan(empty, &full), NewPlan(full, &empty)} {
		res, err := Run(context.Background(), plan, Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.5, OutputName: "o"})
		require.NoError(t, err)
		assert.Empty(t, res.Relation.Pairs)
		assert.Equal(t, "o", res.Relation.Name)
	}
}

func TestRecordsWithoutTokensNeverMatch(t *testing.T) {
	c := collection("c", "", "", "  ", "x")
	for _, th := range []float64{0.01, 1} {
		assert.Empty(t, runJoin(t, NewPlan(c, nil), tokenizer.Whitespace(), th, 1).Pairs)
		assert.Empty(t, runBruteForce(t, NewPlan(c, nil), tokenizer.Whitespace(), th).Pairs)
	}
}

type stageLog struct {
	mu     sync.Mutex
	stages []Stage
}

func (l *stageLog) observe(s Stage, _ time.Duration) {
	l.mu.Lock()
	l.stages = append(l.stages, s)
	l.mu.Unlock()
}

func TestStagesRunInOrderAndCleanUp(t *testing.T) {
	var log stageLog
	c := collection("c", "a b", "a b c")
	res, err := Run(context.Background(), NewPlan(c, nil), Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.5, OnStage: log.observe})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageTokenize, StageDocFrequency, StagePrefix, StageCandidates, StageVerify, StageCleanup}, log.stages)
	assert.Equal(t, "self", res.Stats.Kind)
	assert.Equal(t, AlgorithmPrefix, res.Stats.Algorithm)
	assert.Equal(t, 1, res.Stats.Matches)
	assert.Contains(t, res.Stats.Stages, "verify")

	log = stageLog{}
	_, err = RunBruteForce(context.Background(), NewPlan(c, nil), Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.5, OnStage: log.observe})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageTokenize, StageBruteForce, StageCleanup}, log.stages)
}

func TestTokenizerFailureAbortsAndCleansUp(t *testing.T) {
	var log stageLog
	c := collection("c", "fine", "bad \xff value")
	_, err := Run(context.Background(), NewPlan(c, nil), Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.5, OnStage: log.observe})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTokenizer)
	assert.ErrorIs(t, err, tokenizer.ErrMalformedValue)
	assert.Equal(t, []Stage{StageTokenize, StageCleanup}, log.stages)
}

func TestInvalidThresholdRejectedBeforeAnyStage(t *testing.T) {
	var log stageLog
	c := collection("c", "a")
	for _, th := range []float64{0, 1.5} {
		_, err := Run(context.Background(), NewPlan(c, nil), Options{Tokenizer: tokenizer.Whitespace(), Threshold: th, OnStage: log.observe})
		assert.ErrorIs(t, err, apperrors.ErrInvalidThreshold)
	}
	assert.Empty(t, log.stages)
}

func TestCancelledJoinCleansUp(t *testing.T) {
	var log stageLog
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := collection("c", "a b")
	_, err := Run(ctx, NewPlan(c, nil), Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.5, OnStage: log.observe})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []Stage{StageCleanup}, log.stages)
}

func TestNewPlan(t *testing.T) {
	a := collection("a", "x")
	b := collection("b", "x")
	sameName := collection("a", "y")

	assert.IsType(t, SelfJoin{}, NewPlan(a, nil))
	assert.IsType(t, SelfJoin{}, NewPlan(a, &sameName))
	assert.IsType(t, InnerJoin{}, NewPlan(a, &b))
}

func TestWidowTokensStayOutOfIndex(t *testing.T) {
	// x and y each occur on one side only.
	left := collection("l", "a x")
	right := collection("r", "a y")

	res, err := Run(context.Background(), NewPlan(left, &right), Options{Tokenizer: tokenizer.Whitespace(), Threshold: 0.3, Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.IndexPostings)
	assert.Equal(t, 1, res.Stats.Candidates)
	assert.Equal(t, []MatchPair{{"l0", "r0"}}, res.Relation.Pairs)
}

func TestNewIndexSkipsTokens(t *testing.T) {
	r := &Record{ID: 0, Key: "k", Length: 3, Ranked: []string{"a", "b", "c"}}
	indexed := []Prefix{{Record: r, Length: 3}}

	full := NewIndex(indexed, nil)
	assert.Equal(t, 3, full.Postings())

	skipped := NewIndex(indexed, func(tok string) bool { return tok == "b" })
	assert.Equal(t, 2, skipped.Postings())
	assert.True(t, skipped.Contains("a"))
	assert.False(t, skipped.Contains("b"))
}
