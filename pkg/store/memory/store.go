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

// Package memory keeps discovery host and service state in process memory.
// It is the default store for single-instance deployments and tests; state
// is lost on restart and rebuilt by the next discovery passes.
package memory

import (
	"context"
	"hash/fnv"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	minShards              = 4
	maxShards              = 16
	defaultCleanupInterval = 10 * time.Minute
)

// Store implements discovery.HostStore and discovery.ServiceStore.
type Store struct {
	// sharded by (rule, identity) so a host and its services share a lock
	shards     []*storeShard
	shardCount int

	retention       time.Duration
	cleanupInterval time.Duration
	cleanupDone     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time

	logger logger.Logger
}

type storeShard struct {
	mu       sync.RWMutex
	hosts    map[models.HostKey]models.DiscoveredHost
	services map[models.ServiceKey]models.DiscoveredService
}

// Option customizes a Store.
type Option func(*Store)

// WithRetention drops records not seen for d. Zero keeps records forever.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithCleanupInterval sets how often retention is enforced.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// NewStore creates a store sized to GOMAXPROCS. A cleanup goroutine runs
// only when a retention is configured; Close stops it.
func NewStore(log logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.NewTestLogger()
	}

	shards := runtime.GOMAXPROCS(0)
	if shards < minShards {
		shards = minShards
	}

	if shards > maxShards {
		shards = maxShards
	}

	s := &Store{
		shards:          make([]*storeShard, shards),
		shardCount:      shards,
		cleanupInterval: defaultCleanupInterval,
		cleanupDone:     make(chan struct{}),
		now:             time.Now,
		logger:          log,
	}

	for i := range s.shards {
		s.shards[i] = &storeShard{
			hosts:    make(map[models.HostKey]models.DiscoveredHost),
			services: make(map[models.ServiceKey]models.DiscoveredService),
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.retention > 0 {
		go s.periodicCleanup()
	}

	return s
}

func (s *Store) shardFor(ruleID uint64, identity string) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatUint(ruleID, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(identity))

	return s.shards[h.Sum32()%uint32(s.shardCount)]
}

// GetHost returns a copy of the stored host, or nil when absent.
func (s *Store) GetHost(_ context.Context, key models.HostKey) (*models.DiscoveredHost, error) {
	sh := s.shardFor(key.RuleID, key.Identity)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	host, ok := sh.hosts[key]
	if !ok {
		return nil, nil
	}

	return &host, nil
}

// UpsertHost stores a copy of host, replacing any previous record.
func (s *Store) UpsertHost(_ context.Context, host *models.DiscoveredHost) error {
	sh := s.shardFor(host.RuleID, host.Identity)

	sh.mu.Lock()
	sh.hosts[host.Key()] = *host
	sh.mu.Unlock()

	return nil
}

// GetService returns a copy of the stored service, or nil when absent.
func (s *Store) GetService(_ context.Context, key models.ServiceKey) (*models.DiscoveredService, error) {
	sh := s.shardFor(key.RuleID, key.Identity)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	svc, ok := sh.services[key]
	if !ok {
		return nil, nil
	}

	return &svc, nil
}

// UpsertService stores a copy of svc, replacing any previous record.
func (s *Store) UpsertService(_ context.Context, svc *models.DiscoveredService) error {
	sh := s.shardFor(svc.RuleID, svc.Identity)

	sh.mu.Lock()
	sh.services[svc.Key()] = *svc
	sh.mu.Unlock()

	return nil
}

// ListHosts returns every host of a rule ordered by identity.
func (s *Store) ListHosts(ruleID uint64) []models.DiscoveredHost {
	var out []models.DiscoveredHost

	for _, sh := range s.shards {
		sh.mu.RLock()
		for key, host := range sh.hosts {
			if key.RuleID == ruleID {
				out = append(out, host)
			}
		}
		sh.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })

	return out
}

// ListServices returns the services recorded for one host, ordered by check
// and port.
func (s *Store) ListServices(key models.HostKey) []models.DiscoveredService {
	sh := s.shardFor(key.RuleID, key.Identity)

	var out []models.DiscoveredService

	sh.mu.RLock()
	for svcKey, svc := range sh.services {
		if svcKey.Host() == key {
			out = append(out, svc)
		}
	}
	sh.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckID != out[j].CheckID {
			return out[i].CheckID < out[j].CheckID
		}

		return out[i].Port < out[j].Port
	})

	return out
}

// Len returns the number of stored hosts and services.
func (s *Store) Len() (hosts, services int) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		hosts += len(sh.hosts)
		services += len(sh.services)
		sh.mu.RUnlock()
	}

	return hosts, services
}

// PruneBefore removes records last seen before cutoff and reports how many
// hosts and services were dropped.
func (s *Store) PruneBefore(cutoff time.Time) (hosts, services int) {
	for _, sh := range s.shards {
		sh.mu.Lock()

		for key, host := range sh.hosts {
			if host.LastSeen.Before(cutoff) {
				delete(sh.hosts, key)
				hosts++
			}
		}

		for key, svc := range sh.services {
			if svc.LastSeen.Before(cutoff) {
				delete(sh.services, key)
				services++
			}
		}

		sh.mu.Unlock()
	}

	return hosts, services
}

// Close stops the cleanup goroutine.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.cleanupDone) })

	return nil
}

func (s *Store) periodicCleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.cleanupDone:
			return
		case <-ticker.C:
			s.logShardMetrics()

			hosts, services := s.PruneBefore(s.now().Add(-s.retention))
			if hosts > 0 || services > 0 {
				s.logger.Debug().
					Int("hosts_removed", hosts).
					Int("services_removed", services).
					Dur("retention", s.retention).
					Msg("Pruned stale discovery records")
			}
		}
	}
}

func (s *Store) logShardMetrics() {
	hostSizes := make([]int, s.shardCount)
	serviceSizes := make([]int, s.shardCount)

	for i, sh := range s.shards {
		sh.mu.RLock()
		hostSizes[i] = len(sh.hosts)
		serviceSizes[i] = len(sh.services)
		sh.mu.RUnlock()
	}

	s.logger.Debug().
		Int("shards", s.shardCount).
		Ints("host_shard_sizes", hostSizes).
		Ints("service_shard_sizes", serviceSizes).
		Msg("Discovery memory store shard metrics")
}
