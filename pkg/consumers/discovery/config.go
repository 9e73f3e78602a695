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

// Package discoveryconsumer feeds discovery passes published on NATS
// JetStream into the reconciler.
package discoveryconsumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendCNPG   = "cnpg"
	BackendNATS   = "nats"
	BackendRedis  = "redis"
)

const (
	defaultStreamName    = "discovery"
	defaultConsumerName  = "discovery-reconciler"
	defaultSubject       = "discovery.passes.>"
	defaultKVBucket      = "discovery-state"
	defaultWorkers       = 4
	defaultMaxDeliver    = 5
	defaultFetchBatch    = 50
	defaultFetchWait     = 5 * time.Second
	defaultAckWait       = 30 * time.Second
	defaultPruneInterval = 10 * time.Minute
)

// StoreConfig selects and configures the host and service state backend.
type StoreConfig struct {
	Backend string `json:"backend"`
	// Retention drops records not seen for this long. Zero keeps them forever.
	Retention     models.Duration       `json:"retention,omitempty"`
	PruneInterval models.Duration       `json:"prune_interval,omitempty"`
	CNPG          *models.CNPGDatabase  `json:"cnpg,omitempty"`
	KV            *models.KVStoreConfig `json:"kv,omitempty"`
	Redis         *models.RedisConfig   `json:"redis,omitempty"`
}

// Config holds configuration for the discovery pass consumer.
type Config struct {
	NATS           models.NATSConfig   `json:"nats"`
	StreamName     string              `json:"stream_name"`
	ConsumerName   string              `json:"consumer_name"`
	Subject        string              `json:"subject"`
	Events         models.EventsConfig `json:"events"`
	Store          StoreConfig         `json:"store"`
	MaxValueLength int                 `json:"max_value_length,omitempty"`
	MaxDNSLength   int                 `json:"max_dns_length,omitempty"`
	Workers        int                 `json:"workers,omitempty"`
	MaxDeliver     int                 `json:"max_deliver,omitempty"`
	FetchBatch     int                 `json:"fetch_batch,omitempty"`
	FetchWait      models.Duration     `json:"fetch_wait,omitempty"`
	AckWait        models.Duration     `json:"ack_wait,omitempty"`
	Logging        *logger.Config      `json:"logging,omitempty"`
}

// UnmarshalJSON tags decode failures with ErrInvalidJSON.
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config

	var a alias

	if err := json.Unmarshal(data, &a); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}

	*c = Config(a)

	return nil
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.NATS.URL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.StreamName == "" {
		c.StreamName = defaultStreamName
	}

	if c.ConsumerName == "" {
		c.ConsumerName = defaultConsumerName
	}

	if c.Subject == "" {
		c.Subject = defaultSubject
	}

	if c.Workers < 0 {
		errs = append(errs, ErrInvalidWorkers)
	} else if c.Workers == 0 {
		c.Workers = defaultWorkers
	}

	if c.MaxValueLength < 0 || c.MaxDNSLength < 0 {
		errs = append(errs, ErrInvalidLength)
	}

	if c.MaxDeliver <= 0 {
		c.MaxDeliver = defaultMaxDeliver
	}

	if c.FetchBatch <= 0 {
		c.FetchBatch = defaultFetchBatch
	}

	if c.FetchWait <= 0 {
		c.FetchWait = models.Duration(defaultFetchWait)
	}

	if c.AckWait <= 0 {
		c.AckWait = models.Duration(defaultAckWait)
	}

	if err := c.Events.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks the backend selection and its settings.
func (s *StoreConfig) Validate() error {
	if s.Backend == "" {
		s.Backend = BackendMemory
	}

	if s.PruneInterval <= 0 {
		s.PruneInterval = models.Duration(defaultPruneInterval)
	}

	switch s.Backend {
	case BackendMemory:
	case BackendCNPG:
		if s.CNPG == nil {
			return ErrMissingCNPGConfig
		}
	case BackendNATS:
		if s.KV == nil {
			s.KV = &models.KVStoreConfig{}
		}

		if s.KV.Bucket == "" {
			s.KV.Bucket = defaultKVBucket
		}
	case BackendRedis:
		if s.Redis == nil || s.Redis.Addr == "" {
			return ErrMissingRedisConfig
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}

	return nil
}
