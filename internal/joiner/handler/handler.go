// Package handler serves the join API: synchronous and queued joins, pair
// relation evaluation and join cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/evaluate"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner/validator"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/logger"
)

// maxBodyBytes caps request bodies; join requests are small descriptors.
const maxBodyBytes = 1 << 20

// CacheAdmin is the part of the join cache exposed over HTTP.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) (int64, error)
}

// Deps are the collaborators of a Handler. Requests and Cache are optional;
// the endpoints needing them answer 503 when they are nil.
type Deps struct {
	Runner   joiner.Runner
	Pairs    evaluate.PairSource
	Requests joiner.EventPublisher
	Cache    CacheAdmin
}

type Handler struct {
	deps   Deps
	cfg    config.JoinConfig
	logger *slog.Logger
}

func New(deps Deps, cfg config.JoinConfig) *Handler {
	return &Handler{
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default().With("component", "join-handler"),
	}
}

// Join runs a join to completion and returns its published relation.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, ok := h.decodeJoin(w, r)
	if !ok {
		return
	}
	resp, err := joiner.Run(ctx, h.deps.Runner, req)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		log.Error("join failed", "output", req.Output, "error", err)
		h.writeAppError(w, err)
		return
	}
	log.Info("join served",
		"join_id", resp.JoinID,
		"output", resp.Relation.Name,
		"matches", len(resp.Relation.Pairs),
		"cached", resp.Cached,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, joiner.NewJoinResponse(resp, h.cfg.MaxPairsInBody))
}

// JoinAsync queues a join on the request topic and answers 202 with the join
// ID under which its completion event will be published.
func (h *Handler) JoinAsync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Requests == nil {
		h.writeError(w, http.StatusServiceUnavailable, "asynchronous joins are disabled")
		return
	}
	req, ok := h.decodeJoin(w, r)
	if !ok {
		return
	}
	req.JoinID = uuid.NewString()
	if err := h.deps.Requests.Publish(r.Context(), kafka.Event{Key: req.JoinID, Value: req}); err != nil {
		logger.FromContext(r.Context()).Error("queueing join failed", "join_id", req.JoinID, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "failed to queue join")
		return
	}
	logger.FromContext(r.Context()).Info("join queued", "join_id", req.JoinID, "output", req.Output)
	h.writeJSON(w, http.StatusAccepted, joiner.AsyncJoinResponse{JoinID: req.JoinID, Status: joiner.StatusAccepted})
}

// Evaluate scores a computed pair relation against a ground-truth one.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req joiner.EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validator.ValidateEvaluateRequest(&req); err != nil {
		h.writeAppError(w, err)
		return
	}
	result, err := evaluate.EvaluateRelations(r.Context(), h.deps.Pairs,
		req.Truth, evaluate.IDColumns{Left: req.TruthLeft, Right: req.TruthRight},
		req.Computed, evaluate.IDColumns{Left: req.ComputedLeft, Right: req.ComputedRight},
	)
	if err != nil {
		logger.FromContext(r.Context()).Error("evaluation failed", "truth", req.Truth, "computed", req.Computed, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) decodeJoin(w http.ResponseWriter, r *http.Request) (joiner.JoinRequest, bool) {
	var req joiner.JoinRequest
	if !h.decode(w, r, &req) {
		return req, false
	}
	req = req.WithDefaults(h.cfg)
	if err := validator.ValidateJoinRequest(&req); err != nil {
		h.writeAppError(w, err)
		return req, false
	}
	return req, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, status, map[string]any{"error": "validation failed", "fields": verr.Fields})
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
