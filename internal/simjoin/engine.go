package simjoin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/tracing"
)

// Catalog is the relational store joins read their inputs from and publish
// their results to. Publish must replace the named relation atomically.
type Catalog interface {
	Load(ctx context.Context, collection, keyAttr, joinAttr string) (Collection, error)
	Publish(ctx context.Context, joinID string, rel Relation) error
}

// ResultCache memoizes match sets by content key. The bool result reports a
// cache hit.
type ResultCache interface {
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]MatchPair, error)) ([]MatchPair, bool, error)
}

// Request describes one join call. An empty RightCollection, or one equal to
// LeftCollection, selects the self-join; RightKey and RightAttr are then
// ignored. JoinID is minted when empty.
type Request struct {
	JoinID          string
	LeftCollection  string
	RightCollection string
	LeftKey         string
	RightKey        string
	LeftAttr        string
	RightAttr       string
	Tokenizer       tokenizer.Tokenizer
	Threshold       float64
	OutputName      string
	LeftPrefix      string
	RightPrefix     string
}

// Response is the outcome of a published join.
type Response struct {
	JoinID   string
	Relation Relation
	Stats    Stats
	Cached   bool
}

// EngineConfig holds the optional collaborators of an Engine.
type EngineConfig struct {
	Workers int
	Cache   ResultCache
	Metrics *metrics.Metrics
	Sampler tracing.Sampler
}

// Engine loads collections from a Catalog, runs joins and publishes their
// output relations.
type Engine struct {
	catalog Catalog
	cfg     EngineConfig
	logger  *slog.Logger
}

func NewEngine(catalog Catalog, cfg EngineConfig) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{
		catalog: catalog,
		cfg:     cfg,
		logger:  slog.Default().With("component", "simjoin-engine"),
	}
}

// Join runs the prefix-filtered join and publishes its result.
func (e *Engine) Join(ctx context.Context, req Request) (*Response, error) {
	return e.execute(ctx, req, AlgorithmPrefix)
}

// BruteForceJoin runs the reference join and publishes its result.
func (e *Engine) BruteForceJoin(ctx context.Context, req Request) (*Response, error) {
	return e.execute(ctx, req, AlgorithmBruteForce)
}

func (e *Engine) execute(ctx context.Context, req Request, algorithm string) (*Response, error) {
	if err := ValidateThreshold(req.Threshold); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	joinID := req.JoinID
	if joinID == "" {
		joinID = uuid.NewString()
	}
	ctx = logger.WithJoinID(ctx, joinID)
	log := logger.FromContext(ctx).With("component", "simjoin-engine")
	ctx, span := tracing.StartSpan(ctx, "join", joinID)
	span.SetAttr("algorithm", algorithm)
	start := time.Now()
	defer func() {
		span.End()
		if e.cfg.Sampler.Sampled(joinID) {
			span.Log(log)
		}
	}()

	plan, err := e.load(ctx, req)
	if err != nil {
		e.recordOutcome("unknown", algorithm, "failed", time.Since(start))
		return nil, err
	}
	kind := plan.Kind()
	span.SetAttr("kind", kind)

	opts := Options{
		Tokenizer:   req.Tokenizer,
		Threshold:   req.Threshold,
		Workers:     e.cfg.Workers,
		OutputName:  req.OutputName,
		LeftPrefix:  req.LeftPrefix,
		RightPrefix: req.RightPrefix,
		OnStage: func(stage Stage, elapsed time.Duration) {
			span.RecordChild(stage.String(), elapsed)
			if e.cfg.Metrics != nil {
				e.cfg.Metrics.JoinStageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
			}
		},
	}
	runner := Run
	if algorithm == AlgorithmBruteForce {
		runner = RunBruteForce
	}

	var result Result
	compute := func(ctx context.Context) ([]MatchPair, error) {
		res, err := runner(ctx, plan, opts)
		if err != nil {
			return nil, err
		}
		result = res
		return res.Relation.Pairs, nil
	}

	var (
		pairs  []MatchPair
		cached bool
	)
	if e.cfg.Cache != nil {
		pairs, cached, err = e.cfg.Cache.GetOrCompute(ctx, CacheKey(plan, req, algorithm), compute)
		e.recordCache(cached)
	} else {
		pairs, err = compute(ctx)
	}
	if err != nil {
		log.Error("join failed", "kind", kind, "algorithm", algorithm, "error", err)
		e.recordOutcome(kind, algorithm, "failed", time.Since(start))
		return nil, fmt.Errorf("join %s: %w", joinID, err)
	}

	rel := result.Relation
	stats := result.Stats
	if cached {
		rel = cachedRelation(plan, req, pairs)
		stats = Stats{Kind: kind, Algorithm: algorithm, Matches: len(pairs)}
	}
	// Nothing is published once the caller's context is done.
	if err := ctx.Err(); err != nil {
		log.Warn("join abandoned before publish", "output", rel.Name, "error", err)
		e.recordOutcome(kind, algorithm, "failed", time.Since(start))
		return nil, fmt.Errorf("join %s: %w", joinID, err)
	}
	if err := e.catalog.Publish(ctx, joinID, rel); err != nil {
		log.Error("publishing join result failed", "output", rel.Name, "error", err)
		e.recordOutcome(kind, algorithm, "failed", time.Since(start))
		return nil, fmt.Errorf("join %s: publishing %s: %w", joinID, rel.Name, err)
	}

	elapsed := time.Since(start)
	e.recordOutcome(kind, algorithm, "completed", elapsed)
	e.recordSizes(stats)
	span.SetAttr("matches", len(rel.Pairs))
	log.Info("join completed",
		"kind", kind,
		"algorithm", algorithm,
		"output", rel.Name,
		"matches", len(rel.Pairs),
		"candidates", stats.Candidates,
		"cached", cached,
		"duration", elapsed,
	)
	return &Response{JoinID: joinID, Relation: rel, Stats: stats, Cached: cached}, nil
}

func (e *Engine) load(ctx context.Context, req Request) (JoinPlan, error) {
	_, span := tracing.StartChildSpan(ctx, "load")
	defer span.End()

	left, err := e.catalog.Load(ctx, req.LeftCollection, req.LeftKey, req.LeftAttr)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", req.LeftCollection, err)
	}
	if req.isSelf() {
		return NewPlan(left, nil), nil
	}
	right, err := e.catalog.Load(ctx, req.RightCollection, req.RightKey, req.RightAttr)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", req.RightCollection, err)
	}
	return NewPlan(left, &right), nil
}

func (e *Engine) recordOutcome(kind, algorithm, status string, elapsed time.Duration) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.JoinsTotal.WithLabelValues(kind, algorithm, status).Inc()
	if status == "completed" {
		e.cfg.Metrics.JoinDuration.WithLabelValues(kind, algorithm).Observe(elapsed.Seconds())
	}
}

func (e *Engine) recordSizes(stats Stats) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.JoinMatches.Observe(float64(stats.Matches))
	if stats.Algorithm == AlgorithmPrefix && stats.Stages != nil {
		e.cfg.Metrics.JoinCandidates.Observe(float64(stats.Candidates))
	}
	if stats.Stages != nil {
		e.cfg.Metrics.JoinRecords.WithLabelValues(SideLeft.String()).Observe(float64(stats.LeftRecords))
		if stats.Kind == "inner" {
			e.cfg.Metrics.JoinRecords.WithLabelValues(SideRight.String()).Observe(float64(stats.RightRecords))
		}
	}
}

func (e *Engine) recordCache(hit bool) {
	if e.cfg.Metrics == nil {
		return
	}
	if hit {
		e.cfg.Metrics.CacheHitsTotal.Inc()
	} else {
		e.cfg.Metrics.CacheMissesTotal.Inc()
	}
}

func (r Request) isSelf() bool {
	return r.RightCollection == "" || r.RightCollection == r.LeftCollection
}

func (r Request) validate() error {
	switch {
	case r.Tokenizer == nil:
		return fmt.Errorf("%w: tokenizer is required", apperrors.ErrInvalidInput)
	case r.LeftCollection == "":
		return fmt.Errorf("%w: left collection is required", apperrors.ErrInvalidInput)
	case r.LeftKey == "" || r.LeftAttr == "":
		return fmt.Errorf("%w: left key and attribute are required", apperrors.ErrInvalidInput)
	case !r.isSelf() && (r.RightKey == "" || r.RightAttr == ""):
		return fmt.Errorf("%w: right key and attribute are required", apperrors.ErrInvalidInput)
	case r.OutputName == "":
		return fmt.Errorf("%w: output name is required", apperrors.ErrInvalidInput)
	}
	left, right := r.prefixes()
	if left == right {
		return fmt.Errorf("%w: column prefixes must differ, both are %q", apperrors.ErrInvalidInput, left)
	}
	return nil
}

func (r Request) prefixes() (string, string) {
	left, right := r.LeftPrefix, r.RightPrefix
	if left == "" {
		left = DefaultLeftPrefix
	}
	if right == "" {
		right = DefaultRightPrefix
	}
	return left, right
}

func cachedRelation(plan JoinPlan, req Request, pairs []MatchPair) Relation {
	leftKey, rightKey := plan.keyAttrs()
	lp, rp := req.prefixes()
	return Relation{
		Name:    req.OutputName,
		Columns: [2]string{lp + leftKey, rp + rightKey},
		Pairs:   pairs,
	}
}

// CacheKey identifies a join by the content of its inputs: the loaded rows,
// tokenizer, threshold and algorithm. Collection names are not part of the
// key, so identical rows under another name share an entry.
func CacheKey(plan JoinPlan, req Request, algorithm string) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(plan.Kind())
	write(algorithm)
	write(req.Tokenizer.Name())
	write(strconv.FormatFloat(req.Threshold, 'g', -1, 64))
	collections := []Collection{}
	switch p := plan.(type) {
	case SelfJoin:
		collections = append(collections, p.Input)
	case InnerJoin:
		collections = append(collections, p.Left, p.Right)
	}
	for _, c := range collections {
		write(strconv.Itoa(len(c.Rows)))
		for _, row := range c.Rows {
			write(row.Key)
			write(row.Value)
		}
	}
	return "simjoin:" + hex.EncodeToString(h.Sum(nil))
}
