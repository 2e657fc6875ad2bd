package simjoin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

const (
	AlgorithmPrefix     = "prefix"
	AlgorithmBruteForce = "brute_force"

	DefaultLeftPrefix  = "l_"
	DefaultRightPrefix = "r_"
)

// Stage names a pipeline step.
type Stage uint8

const (
	StageTokenize Stage = iota
	StageDocFrequency
	StagePrefix
	StageCandidates
	StageVerify
	StageBruteForce
	StageCleanup
)

func (s Stage) String() string {
	switch s {
	case StageTokenize:
		return "tokenize"
	case StageDocFrequency:
		return "doc_frequency"
	case StagePrefix:
		return "prefix"
	case StageCandidates:
		return "candidates"
	case StageVerify:
		return "verify"
	case StageBruteForce:
		return "brute_force"
	case StageCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Options configures a single pipeline run.
type Options struct {
	Tokenizer   tokenizer.Tokenizer
	Threshold   float64
	Workers     int
	OutputName  string
	LeftPrefix  string
	RightPrefix string
	// OnStage is called after every stage, cleanup included.
	OnStage func(stage Stage, elapsed time.Duration)
}

// Stats describes a finished run.
type Stats struct {
	Kind          string                   `json:"kind"`
	Algorithm     string                   `json:"algorithm"`
	LeftRecords   int                      `json:"left_records"`
	RightRecords  int                      `json:"right_records"`
	Tokens        int                      `json:"distinct_tokens"`
	IndexingSide  string                   `json:"indexing_side,omitempty"`
	IndexPostings int                      `json:"index_postings"`
	Candidates    int                      `json:"candidates"`
	Matches       int                      `json:"matches"`
	Stages        map[string]time.Duration `json:"stage_durations"`
}

// Result is the output relation of a run and its statistics.
type Result struct {
	Relation Relation
	Stats    Stats
}

// joinState is threaded through the stages of one run and owns every
// intermediate structure of it.
type joinState struct {
	opts       Options
	records    [2][]*Record
	df         *DocFrequencyIndex
	indexSide  Side
	indexed    []Prefix
	probing    []Prefix
	candidates []CandidatePair
	matches    []MatchPair
	stats      Stats
}

func (st *joinState) rankAll() {
	for _, side := range st.records {
		for _, r := range side {
			st.df.Rank(r)
		}
	}
	st.stats.Tokens = st.df.Len()
}

type step struct {
	stage Stage
	run   stageFunc
}

// Run executes the prefix-filtered join described by plan.
func Run(ctx context.Context, plan JoinPlan, opts Options) (Result, error) {
	s := plan.strategy()
	return run(ctx, plan, opts, AlgorithmPrefix, []step{
		{StageTokenize, s.tokenize},
		{StageDocFrequency, s.docFrequency},
		{StagePrefix, s.prefix},
		{StageCandidates, s.candidates},
		{StageVerify, s.verify},
	})
}

// RunBruteForce executes the reference join described by plan.
func RunBruteForce(ctx context.Context, plan JoinPlan, opts Options) (Result, error) {
	s := plan.strategy()
	return run(ctx, plan, opts, AlgorithmBruteForce, []step{
		{StageTokenize, s.tokenize},
		{StageBruteForce, s.bruteForce},
	})
}

func run(ctx context.Context, plan JoinPlan, opts Options, algorithm string, steps []step) (Result, error) {
	if err := ValidateThreshold(opts.Threshold); err != nil {
		return Result{}, err
	}
	if opts.Tokenizer == nil {
		return Result{}, fmt.Errorf("%w: no tokenizer", apperrors.ErrInvalidInput)
	}
	opts = opts.withDefaults()

	st := joinState{
		opts: opts,
		stats: Stats{
			Kind:      plan.Kind(),
			Algorithm: algorithm,
			Stages:    make(map[string]time.Duration, len(steps)+1),
		},
	}
	defer func() {
		start := time.Now()
		st = cleanup(st)
		opts.observe(StageCleanup, time.Since(start))
	}()

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%s stage: %w", s.stage, err)
		}
		start := time.Now()
		var err error
		st, err = s.run(ctx, st)
		elapsed := time.Since(start)
		st.stats.Stages[s.stage.String()] = elapsed
		opts.observe(s.stage, elapsed)
		if err != nil {
			return Result{}, fmt.Errorf("%s stage: %w", s.stage, err)
		}
	}

	sort.Slice(st.matches, func(i, j int) bool {
		if st.matches[i].Left != st.matches[j].Left {
			return st.matches[i].Left < st.matches[j].Left
		}
		return st.matches[i].Right < st.matches[j].Right
	})
	st.stats.Matches = len(st.matches)

	leftKey, rightKey := plan.keyAttrs()
	return Result{
		Relation: Relation{
			Name:    opts.OutputName,
			Columns: [2]string{opts.LeftPrefix + leftKey, opts.RightPrefix + rightKey},
			Pairs:   st.matches,
		},
		Stats: st.stats,
	}, nil
}

// cleanup releases everything the stages built. The match slice is handed
// to the caller and left alone.
func cleanup(st joinState) joinState {
	if st.df != nil {
		st.df.Release()
		st.df = nil
	}
	st.records = [2][]*Record{}
	st.indexed = nil
	st.probing = nil
	st.candidates = nil
	return st
}

func (o Options) withDefaults() Options {
	if o.LeftPrefix == "" {
		o.LeftPrefix = DefaultLeftPrefix
	}
	if o.RightPrefix == "" {
		o.RightPrefix = DefaultRightPrefix
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

func (o Options) observe(stage Stage, elapsed time.Duration) {
	if o.OnStage != nil {
		o.OnStage(stage, elapsed)
	}
}
