// Package joiner exposes the similarity join engine as a service: the JSON
// request and event contracts shared by the HTTP handler and the Kafka
// consumer.
package joiner

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/kafka"
)

// Join lifecycle statuses reported to callers and on the completion topic.
const (
	StatusAccepted  = "ACCEPTED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Runner executes joins. *simjoin.Engine satisfies it.
type Runner interface {
	Join(ctx context.Context, req simjoin.Request) (*simjoin.Response, error)
	BruteForceJoin(ctx context.Context, req simjoin.Request) (*simjoin.Response, error)
}

// EventPublisher writes events to a Kafka topic. *kafka.Producer satisfies
// it.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// JoinRequest is the body of POST /api/v1/joins and the value of messages on
// the join request topic. Empty optional fields fall back to the service's
// join configuration; a zero threshold means the configured default.
type JoinRequest struct {
	JoinID          string  `json:"join_id,omitempty"`
	LeftCollection  string  `json:"left_collection"`
	RightCollection string  `json:"right_collection,omitempty"`
	LeftKey         string  `json:"left_key"`
	RightKey        string  `json:"right_key,omitempty"`
	LeftAttr        string  `json:"left_attr"`
	RightAttr       string  `json:"right_attr,omitempty"`
	Tokenizer       string  `json:"tokenizer,omitempty"`
	Threshold       float64 `json:"threshold,omitempty"`
	Output          string  `json:"output"`
	LeftPrefix      string  `json:"left_prefix,omitempty"`
	RightPrefix     string  `json:"right_prefix,omitempty"`
	BruteForce      bool    `json:"brute_force,omitempty"`
}

// WithDefaults fills unset optional fields from cfg.
func (r JoinRequest) WithDefaults(cfg config.JoinConfig) JoinRequest {
	if r.Tokenizer == "" {
		r.Tokenizer = cfg.Tokenizer
	}
	if r.Threshold == 0 {
		r.Threshold = cfg.Threshold
	}
	if r.LeftPrefix == "" {
		r.LeftPrefix = cfg.LeftPrefix
	}
	if r.RightPrefix == "" {
		r.RightPrefix = cfg.RightPrefix
	}
	return r
}

// EngineRequest converts r into an engine request, parsing its tokenizer.
func (r JoinRequest) EngineRequest() (simjoin.Request, error) {
	tok, err := tokenizer.Parse(r.Tokenizer)
	if err != nil {
		return simjoin.Request{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return simjoin.Request{
		JoinID:          r.JoinID,
		LeftCollection:  r.LeftCollection,
		RightCollection: r.RightCollection,
		LeftKey:         r.LeftKey,
		RightKey:        r.RightKey,
		LeftAttr:        r.LeftAttr,
		RightAttr:       r.RightAttr,
		Tokenizer:       tok,
		Threshold:       r.Threshold,
		OutputName:      r.Output,
		LeftPrefix:      r.LeftPrefix,
		RightPrefix:     r.RightPrefix,
	}, nil
}

// Run dispatches req to the algorithm it asks for.
func Run(ctx context.Context, runner Runner, req JoinRequest) (*simjoin.Response, error) {
	engineReq, err := req.EngineRequest()
	if err != nil {
		return nil, err
	}
	if req.BruteForce {
		return runner.BruteForceJoin(ctx, engineReq)
	}
	return runner.Join(ctx, engineReq)
}

// JoinResponse is returned by the synchronous join endpoint. Pairs holds at
// most the configured number of pairs; Truncated reports whether more were
// published than returned.
type JoinResponse struct {
	JoinID    string              `json:"join_id"`
	Status    string              `json:"status"`
	Relation  string              `json:"relation"`
	Columns   [2]string           `json:"columns"`
	PairCount int                 `json:"pair_count"`
	Pairs     []simjoin.MatchPair `json:"pairs"`
	Truncated bool                `json:"truncated"`
	Cached    bool                `json:"cached"`
	Stats     simjoin.Stats       `json:"stats"`
}

// NewJoinResponse builds the response body for resp, keeping at most
// maxPairs pairs. maxPairs <= 0 keeps none.
func NewJoinResponse(resp *simjoin.Response, maxPairs int) JoinResponse {
	pairs := resp.Relation.Pairs
	if maxPairs < 0 {
		maxPairs = 0
	}
	truncated := len(pairs) > maxPairs
	if truncated {
		pairs = pairs[:maxPairs]
	}
	if pairs == nil {
		pairs = []simjoin.MatchPair{}
	}
	return JoinResponse{
		JoinID:    resp.JoinID,
		Status:    StatusCompleted,
		Relation:  resp.Relation.Name,
		Columns:   resp.Relation.Columns,
		PairCount: len(resp.Relation.Pairs),
		Pairs:     pairs,
		Truncated: truncated,
		Cached:    resp.Cached,
		Stats:     resp.Stats,
	}
}

// AsyncJoinResponse acknowledges a queued join.
type AsyncJoinResponse struct {
	JoinID string `json:"join_id"`
	Status string `json:"status"`
}

// EvaluateRequest names a ground-truth relation and a computed relation,
// each with its two key columns.
type EvaluateRequest struct {
	Truth         string `json:"truth"`
	TruthLeft     string `json:"truth_left"`
	TruthRight    string `json:"truth_right"`
	Computed      string `json:"computed"`
	ComputedLeft  string `json:"computed_left"`
	ComputedRight string `json:"computed_right"`
}

// JoinCompleteEvent is published on the completion topic once an
// asynchronous join finishes, successfully or not.
type JoinCompleteEvent struct {
	JoinID      string    `json:"join_id"`
	Status      string    `json:"status"`
	Relation    string    `json:"relation,omitempty"`
	Matches     int       `json:"matches"`
	Cached      bool      `json:"cached"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
