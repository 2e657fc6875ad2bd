// Package consumer runs queued joins from the join request topic and reports
// each outcome on the completion topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner/validator"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/resilience"
)

// JoinConsumer drives a Kafka consumer whose handler came from
// HandleMessage.
type JoinConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *JoinConsumer {
	return &JoinConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "join-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (jc *JoinConsumer) Start(ctx context.Context) error {
	jc.logger.Info("join consumer starting")
	return jc.consumer.Start(ctx)
}

func (jc *JoinConsumer) Close() error {
	return jc.consumer.Close()
}

// HandleMessage returns a MessageHandler that runs each queued join under
// cfg.RequestTimeout and publishes a JoinCompleteEvent keyed by join ID.
// Undecodable messages are logged and skipped. A message is left uncommitted
// only when its completion event could not be published.
func HandleMessage(runner joiner.Runner, completions joiner.EventPublisher, cfg config.JoinConfig) kafka.MessageHandler {
	log := slog.Default().With("component", "join-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[joiner.JoinRequest](value)
		if err != nil {
			log.Error("failed to decode join request", "error", err, "key", string(key))
			return nil
		}
		if req.JoinID == "" {
			req.JoinID = string(key)
		}
		if req.JoinID == "" {
			req.JoinID = uuid.NewString()
		}
		ctx = logger.WithJoinID(ctx, req.JoinID)
		req = req.WithDefaults(cfg)

		event := joiner.JoinCompleteEvent{JoinID: req.JoinID, Relation: req.Output}
		resp, err := run(ctx, runner, req, cfg.RequestTimeout)
		if err != nil {
			logger.FromContext(ctx).Error("queued join failed", "output", req.Output, "error", err)
			event.Status = joiner.StatusFailed
			event.Error = err.Error()
		} else {
			event.Status = joiner.StatusCompleted
			event.Relation = resp.Relation.Name
			event.Matches = len(resp.Relation.Pairs)
			event.Cached = resp.Cached
		}
		event.CompletedAt = time.Now().UTC()

		if err := completions.Publish(ctx, kafka.Event{Key: event.JoinID, Value: event}); err != nil {
			return fmt.Errorf("publishing completion of join %s: %w", event.JoinID, err)
		}
		logger.FromContext(ctx).Info("queued join finished", "status", event.Status, "matches", event.Matches)
		return nil
	}
}

func run(ctx context.Context, runner joiner.Runner, req joiner.JoinRequest, timeout time.Duration) (*simjoin.Response, error) {
	if err := validator.ValidateJoinRequest(&req); err != nil {
		return nil, err
	}
	var resp *simjoin.Response
	err := resilience.WithTimeout(ctx, timeout, "join "+req.JoinID, func(ctx context.Context) error {
		r, err := joiner.Run(ctx, runner, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
