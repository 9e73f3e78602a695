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
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/netdiscovery/pkg/db"
	"github.com/carverauto/netdiscovery/pkg/discovery"
	"github.com/carverauto/netdiscovery/pkg/kv"
	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/store/memory"
	redisstore "github.com/carverauto/netdiscovery/pkg/store/redis"
)

// stateStore is a backend holding both record kinds.
type stateStore interface {
	discovery.HostStore
	discovery.ServiceStore
}

// pruner is implemented by backends without native expiry.
type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// backend is an opened state store plus its cleanup.
type backend struct {
	store stateStore
	close func() error
}

// openStore opens the configured backend. Retention is applied natively
// where the backend supports expiry (memory sweeper, KV bucket TTL, Redis
// key TTL); the CNPG store is pruned by the service.
func openStore(ctx context.Context, cfg *StoreConfig, js jetstream.JetStream, log logger.Logger) (*backend, error) {
	retention := time.Duration(cfg.Retention)

	switch cfg.Backend {
	case BackendMemory:
		s := memory.NewStore(log, memory.WithRetention(retention))

		return &backend{store: s, close: s.Close}, nil
	case BackendCNPG:
		pool, err := db.NewCNPGPool(ctx, cfg.CNPG, log)
		if err != nil {
			return nil, err
		}

		s, err := db.NewDiscoveryStore(pool, log)
		if err != nil {
			pool.Close()
			return nil, err
		}

		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to migrate discovery schema: %w", err)
		}

		return &backend{store: s, close: func() error { s.Close(); return nil }}, nil
	case BackendNATS:
		kvCfg := *cfg.KV
		if kvCfg.TTL == 0 {
			kvCfg.TTL = cfg.Retention
		}

		s, err := kv.NewNatsStore(ctx, js, &kvCfg, log)
		if err != nil {
			return nil, err
		}

		return &backend{store: s, close: s.Close}, nil
	case BackendRedis:
		redisCfg := *cfg.Redis
		if redisCfg.TTL == 0 {
			redisCfg.TTL = cfg.Retention
		}

		client, err := redisstore.NewClient(&redisCfg)
		if err != nil {
			return nil, err
		}

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", redisCfg.Addr, err)
		}

		s := redisstore.NewStore(client, &redisCfg, log)

		return &backend{store: s, close: s.Close}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// pruneLoop deletes records older than retention every interval.
func pruneLoop(ctx context.Context, p pruner, retention, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := p.Prune(ctx, now.Add(-retention))
			if err != nil {
				log.Warn().Err(err).Msg("Failed to prune discovery records")
				continue
			}

			log.Debug().Int64("removed", removed).Msg("Pruned discovery records")
		}
	}
}
