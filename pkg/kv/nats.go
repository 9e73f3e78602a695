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

// Package kv keeps discovery host and service records in a NATS JetStream
// KeyValue bucket.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

const defaultHistory = 1

// keyValue is the subset of jetstream.KeyValue used by NatsStore.
type keyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	ListKeysFiltered(ctx context.Context, filters ...string) (jetstream.KeyLister, error)
}

// NatsStore implements the discovery host and service stores on a KV
// bucket. A KV Put replaces the value of a key atomically.
type NatsStore struct {
	kv     keyValue
	logger logger.Logger
}

// NewNatsStore creates (or updates) the configured bucket and returns a store
// bound to it. The caller owns the NATS connection behind js.
func NewNatsStore(ctx context.Context, js jetstream.JetStream, cfg *models.KVStoreConfig, log logger.Logger) (*NatsStore, error) {
	if js == nil {
		return nil, errJetStreamRequired
	}

	if cfg == nil || cfg.Bucket == "" {
		return nil, errBucketRequired
	}

	history := cfg.History
	if history == 0 {
		history = defaultHistory
	}

	kvCfg := jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "discovery host and service state",
		History:     history,
		Replicas:    cfg.Replicas,
	}

	if cfg.TTL > 0 {
		kvCfg.TTL = time.Duration(cfg.TTL) // bucket-level TTL
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, kvCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", cfg.Bucket, err)
	}

	log.Info().
		Str("bucket", cfg.Bucket).
		Uint8("history", history).
		Dur("ttl", kvCfg.TTL).
		Msg("discovery KV bucket ready")

	return newNatsStore(bucket, log), nil
}

func newNatsStore(kv keyValue, log logger.Logger) *NatsStore {
	return &NatsStore{kv: kv, logger: log}
}

// GetHost returns the stored host or nil when the key does not exist.
func (n *NatsStore) GetHost(ctx context.Context, key models.HostKey) (*models.DiscoveredHost, error) {
	var host models.DiscoveredHost

	found, err := n.get(ctx, hostKey(key), &host)
	if err != nil || !found {
		return nil, err
	}

	return &host, nil
}

// UpsertHost overwrites the host record.
func (n *NatsStore) UpsertHost(ctx context.Context, host *models.DiscoveredHost) error {
	if host == nil {
		return errHostRecordNil
	}

	return n.put(ctx, hostKey(host.Key()), host)
}

// GetService returns the stored service or nil when the key does not exist.
func (n *NatsStore) GetService(ctx context.Context, key models.ServiceKey) (*models.DiscoveredService, error) {
	var svc models.DiscoveredService

	found, err := n.get(ctx, serviceKey(key), &svc)
	if err != nil || !found {
		return nil, err
	}

	return &svc, nil
}

// UpsertService overwrites the service record.
func (n *NatsStore) UpsertService(ctx context.Context, svc *models.DiscoveredService) error {
	if svc == nil {
		return errServiceRecordNil
	}

	return n.put(ctx, serviceKey(svc.Key()), svc)
}

// ListHosts returns the hosts of a rule. Keys that vanish between listing and
// reading are skipped.
func (n *NatsStore) ListHosts(ctx context.Context, ruleID uint64) ([]*models.DiscoveredHost, error) {
	lister, err := n.kv.ListKeysFiltered(ctx, hostFilter(ruleID))
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list hosts for rule %d: %w", ruleID, err)
	}

	defer func() {
		if stopErr := lister.Stop(); stopErr != nil {
			n.logger.Debug().Err(stopErr).Msg("failed to stop key lister")
		}
	}()

	var hosts []*models.DiscoveredHost

	for raw := range lister.Keys() {
		key, err := parseHostKey(raw)
		if err != nil {
			n.logger.Warn().Err(err).Str("key", raw).Msg("skipping unexpected key in discovery bucket")
			continue
		}

		host, err := n.GetHost(ctx, key)
		if err != nil {
			return nil, err
		}

		if host != nil {
			hosts = append(hosts, host)
		}
	}

	return hosts, nil
}

// Close is a no-op; the NATS connection belongs to the caller.
func (*NatsStore) Close() error {
	return nil
}

func (n *NatsStore) get(ctx context.Context, key string, out interface{}) (bool, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(entry.Value(), out); err != nil {
		return false, fmt.Errorf("failed to decode key %s: %w", key, err)
	}

	return true, nil
}

func (n *NatsStore) put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}

	if _, err := n.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}
