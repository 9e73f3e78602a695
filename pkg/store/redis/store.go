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

// Package redis keeps discovery host and service records as JSON values in
// Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

const (
	defaultKeyPrefix = "netdiscovery"
	scanBatchSize    = 100
)

var (
	errAddrRequired     = errors.New("redis addr is required")
	errHostRecordNil    = errors.New("host record is nil")
	errServiceRecordNil = errors.New("service record is nil")
)

// Store implements the discovery host and service stores. SET replaces a
// key atomically, which gives full-record overwrite per upsert.
type Store struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewClient builds a client for cfg.
func NewClient(cfg *models.RedisConfig) (goredis.UniversalClient, error) {
	if cfg == nil || strings.TrimSpace(cfg.Addr) == "" {
		return nil, errAddrRequired
	}

	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    strings.Split(cfg.Addr, ","),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

// NewStore wraps client. A zero TTL keeps records until they are overwritten.
func NewStore(client goredis.UniversalClient, cfg *models.RedisConfig, log logger.Logger) *Store {
	s := &Store{
		client: client,
		prefix: defaultKeyPrefix,
		logger: log,
	}

	if cfg != nil {
		if cfg.KeyPrefix != "" {
			s.prefix = cfg.KeyPrefix
		}

		s.ttl = time.Duration(cfg.TTL)
	}

	return s
}

func (s *Store) keyHost(key models.HostKey) string {
	return fmt.Sprintf("%s:dhost:%d:%s", s.prefix, key.RuleID, key.Identity)
}

func (s *Store) keyService(key models.ServiceKey) string {
	return fmt.Sprintf("%s:dservice:%d:%d:%s:%d", s.prefix, key.RuleID, key.CheckID, key.Identity, key.Port)
}

// GetHost returns the stored host or nil when the key does not exist.
func (s *Store) GetHost(ctx context.Context, key models.HostKey) (*models.DiscoveredHost, error) {
	var host models.DiscoveredHost

	found, err := s.getJSON(ctx, s.keyHost(key), &host)
	if err != nil || !found {
		return nil, err
	}

	return &host, nil
}

// UpsertHost overwrites the host record.
func (s *Store) UpsertHost(ctx context.Context, host *models.DiscoveredHost) error {
	if host == nil {
		return errHostRecordNil
	}

	return s.setJSON(ctx, s.keyHost(host.Key()), host)
}

// GetService returns the stored service or nil when the key does not exist.
func (s *Store) GetService(ctx context.Context, key models.ServiceKey) (*models.DiscoveredService, error) {
	var svc models.DiscoveredService

	found, err := s.getJSON(ctx, s.keyService(key), &svc)
	if err != nil || !found {
		return nil, err
	}

	return &svc, nil
}

// UpsertService overwrites the service record.
func (s *Store) UpsertService(ctx context.Context, svc *models.DiscoveredService) error {
	if svc == nil {
		return errServiceRecordNil
	}

	return s.setJSON(ctx, s.keyService(svc.Key()), svc)
}

// ListHosts scans the host keys of a rule. Values that fail to decode are
// logged and skipped.
func (s *Store) ListHosts(ctx context.Context, ruleID uint64) ([]*models.DiscoveredHost, error) {
	pattern := fmt.Sprintf("%s:dhost:%d:*", s.prefix, ruleID)
	cursor := uint64(0)

	var hosts []*models.DiscoveredHost

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
		}

		for _, key := range keys {
			var host models.DiscoveredHost

			found, err := s.getJSON(ctx, key, &host)
			if err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("failed to read redis key during scan")
				continue
			}

			if found {
				hosts = append(hosts, &host)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return hosts, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("redis decode %s: %w", key, err)
	}

	return true, nil
}
