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
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/netdiscovery/pkg/discovery"
	"github.com/carverauto/netdiscovery/pkg/lifecycle"
	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/natsutil"
)

const (
	defaultRetryDelay = 2 * time.Second
	connectionName    = "discovery-reconciler"
)

// Service implements lifecycle.Service for the discovery pass consumer.
type Service struct {
	cfg       *Config
	logger    logger.Logger
	processor *Processor
	nc        *nats.Conn
	backend   *backend

	// connectFactory creates the pull consumer; it runs again after the
	// consumer fails.
	connectFactory func(ctx context.Context) (*Consumer, error)
	retryDelay     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan error
}

// NewService validates cfg. Connections are opened by Start.
func NewService(cfg *Config, log logger.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		logger:     log,
		retryDelay: defaultRetryDelay,
		done:       make(chan error, 1),
	}, nil
}

// Start connects to NATS, opens the state store and begins consuming.
func (s *Service) Start(ctx context.Context) error {
	if s.done == nil {
		s.done = make(chan error, 1)
	}

	if s.processor == nil {
		if err := s.bootstrap(ctx); err != nil {
			s.release()
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()

	if s.backend != nil && s.cfg.Store.Retention > 0 {
		if p, ok := s.backend.store.(pruner); ok {
			s.wg.Add(1)

			go func() {
				defer s.wg.Done()
				pruneLoop(runCtx, p, time.Duration(s.cfg.Store.Retention), time.Duration(s.cfg.Store.PruneInterval), s.logger)
			}()
		}
	}

	s.logger.Info().
		Str("stream_name", s.cfg.StreamName).
		Str("consumer_name", s.cfg.ConsumerName).
		Str("store", s.cfg.Store.Backend).
		Int("workers", s.cfg.Workers).
		Msg("Discovery reconciler started")

	return nil
}

func (s *Service) bootstrap(ctx context.Context) error {
	nc, err := natsutil.ConnectWithSecurity(&s.cfg.NATS, connectionName, s.logger)
	if err != nil {
		return err
	}

	s.nc = nc

	js, err := natsutil.NewJetStream(nc, s.cfg.NATS.Domain)
	if err != nil {
		return err
	}

	if err := s.ensurePassStream(ctx, js); err != nil {
		return err
	}

	s.backend, err = openStore(ctx, &s.cfg.Store, js, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", s.cfg.Store.Backend, err)
	}

	var sink discovery.EventSink = discovery.NopSink{}

	if s.cfg.Events.Enabled {
		sink, err = natsutil.CreateEventPublisher(ctx, nc, s.cfg.NATS.Domain, &s.cfg.Events, s.logger)
		if err != nil {
			return err
		}
	}

	reconciler, err := discovery.NewReconciler(s.backend.store, s.backend.store,
		discovery.WithEventSink(sink),
		discovery.WithLogger(s.logger),
		discovery.WithMaxValueLength(s.cfg.MaxValueLength),
		discovery.WithMaxDNSLength(s.cfg.MaxDNSLength),
	)
	if err != nil {
		return err
	}

	s.processor = NewProcessor(reconciler, s.cfg.Workers, s.logger)
	s.connectFactory = func(ctx context.Context) (*Consumer, error) {
		return NewConsumer(ctx, js, s.cfg, s.logger)
	}

	return nil
}

// ensurePassStream creates the stream carrying discovery passes when it
// does not exist yet.
func (s *Service) ensurePassStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, s.cfg.StreamName)
	if err == nil {
		return nil
	}

	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream %s: %w", s.cfg.StreamName, err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     s.cfg.StreamName,
		Subjects: []string{s.cfg.Subject},
	}); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", s.cfg.StreamName, err)
	}

	s.logger.Info().Str("stream", s.cfg.StreamName).Str("subject", s.cfg.Subject).Msg("Created pass stream")

	return nil
}

// run keeps a consumer alive until ctx ends, recreating it after fatal
// fetch errors.
func (s *Service) run(ctx context.Context) {
	for {
		consumer, err := s.connectFactory(ctx)
		if err != nil {
			s.logger.Error().Err(err).Dur("retry_in", s.retryDelay).Msg("Failed to create pull consumer")

			if !sleepCtx(ctx, s.retryDelay) {
				return
			}

			continue
		}

		err = consumer.ProcessMessages(ctx, s.processor)

		switch {
		case ctx.Err() != nil:
			return
		case err == nil:
			return
		case errors.Is(err, context.Canceled):
			s.report(err)
			return
		}

		s.logger.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("Pull consumer stopped, recreating")

		if !sleepCtx(ctx, s.retryDelay) {
			return
		}
	}
}

func (s *Service) report(err error) {
	select {
	case s.done <- err:
	default:
	}
}

// Done reports a consumer loop that ended on its own.
func (s *Service) Done() <-chan error {
	return s.done
}

// Stop cancels consumption, waits for in-flight passes and releases
// connections.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	finished := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(finished)
	}()

	var err error

	select {
	case <-finished:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for consumer shutdown: %w", ctx.Err())
	}

	s.release()

	s.logger.Info().Msg("Discovery reconciler stopped")

	return err
}

func (s *Service) release() {
	if s.nc != nil {
		s.nc.Close()
		s.nc = nil
	}

	if s.backend != nil {
		if err := s.backend.close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close state store")
		}

		s.backend = nil
	}
}

var _ lifecycle.Service = (*Service)(nil)
