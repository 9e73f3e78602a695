/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package discoveryconsumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/netdiscovery/pkg/discovery"
	"github.com/carverauto/netdiscovery/pkg/logger"
)

const (
	fetchRetryDelay = time.Second
	maxAckPending   = 1000
)

// pullConsumer is the part of jetstream.Consumer the fetch loop needs.
type pullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// Consumer pulls pass messages from a durable JetStream consumer.
type Consumer struct {
	streamName   string
	consumerName string
	consumer     pullConsumer
	batchSize    int
	fetchWait    time.Duration
	maxDeliver   int
	logger       logger.Logger
}

// NewConsumer creates or updates the durable pull consumer described by cfg.
func NewConsumer(ctx context.Context, js jetstream.JetStream, cfg *Config, log logger.Logger) (*Consumer, error) {
	log.Info().
		Str("stream", cfg.StreamName).
		Str("consumer", cfg.ConsumerName).
		Str("subject", cfg.Subject).
		Msg("Creating/getting pull consumer")

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       time.Duration(cfg.AckWait),
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: maxAckPending,
		FilterSubject: cfg.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", cfg.ConsumerName, err)
	}

	return &Consumer{
		streamName:   cfg.StreamName,
		consumerName: cfg.ConsumerName,
		consumer:     consumer,
		batchSize:    cfg.FetchBatch,
		fetchWait:    time.Duration(cfg.FetchWait),
		maxDeliver:   cfg.MaxDeliver,
		logger:       log,
	}, nil
}

// ProcessMessages fetches and settles messages until ctx is cancelled (nil)
// or the consumer becomes unusable (the error).
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) error {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting pull consumer")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := c.consumer.Fetch(c.batchSize, jetstream.FetchMaxWait(c.fetchWait))
		if err != nil {
			if isFatalFetchErr(err) {
				return err
			}

			c.logger.Warn().Err(err).Msg("Failed to fetch messages")

			if !sleepCtx(ctx, fetchRetryDelay) {
				return nil
			}

			continue
		}

		batch := make([]jetstream.Msg, 0, c.batchSize)
		for msg := range msgs.Messages() {
			batch = append(batch, msg)
		}

		if len(batch) > 0 {
			c.handleBatch(ctx, batch, processor)
		}

		if fetchErr := msgs.Error(); fetchErr != nil && !errors.Is(fetchErr, nats.ErrTimeout) {
			if isFatalFetchErr(fetchErr) {
				return fetchErr
			}

			c.logger.Debug().Err(fetchErr).Msg("Fetch completed with error")
		}
	}
}

func (c *Consumer) handleBatch(ctx context.Context, msgs []jetstream.Msg, processor *Processor) {
	payloads := make([][]byte, len(msgs))
	for i, msg := range msgs {
		payloads[i] = msg.Data()
	}

	c.logger.Debug().Int("messages", len(msgs)).Msg("Processing pass batch")

	results := processor.ProcessBatch(ctx, payloads)

	for i, msg := range msgs {
		c.settle(msg, results[i])
	}
}

// settle acks, naks or drops msg according to the processing outcome.
// Passes are idempotent, so a pass applied with record failures is acked
// and the next pass corrects the state.
func (c *Consumer) settle(msg jetstream.Msg, err error) {
	switch {
	case err == nil:
		c.ack(msg)
	case errors.Is(err, ErrUndecodablePass), errors.Is(err, discovery.ErrMalformedResult):
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping undecodable pass")
		c.ack(msg)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.nak(msg)
	default:
		if md, mdErr := msg.Metadata(); mdErr == nil && md.NumDelivered >= uint64(c.maxDeliver) { //nolint:gosec // positive by validation
			c.logger.Error().
				Err(err).
				Uint64("delivered", md.NumDelivered).
				Msg("Giving up on pass after max deliveries")
			c.ack(msg)

			return
		}

		c.logger.Warn().Err(err).Msg("Pass failed, requesting redelivery")
		c.nak(msg)
	}
}

func (c *Consumer) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to ack message")
	}
}

func (c *Consumer) nak(msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to nak message")
	}
}

func isFatalFetchErr(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrConsumerDeleted) ||
		errors.Is(err, jetstream.ErrConsumerNotFound) ||
		errors.Is(err, context.Canceled)
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
