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

package models

import (
	"fmt"
	"time"
)

// NATSConfig configures NATS connectivity
type NATSConfig struct {
	URL      string          `json:"url"`
	Domain   string          `json:"domain,omitempty"`
	Security *SecurityConfig `json:"security,omitempty"`
}

// Validate ensures the NATS configuration is valid
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats url is required")
	}

	return nil
}

// EventsConfig configures the event publishing system
type EventsConfig struct {
	Enabled    bool     `json:"enabled"`
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
	// SubjectPrefix is prepended to every published subject, e.g. a site name.
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// Validate ensures the events configuration is valid and fills in defaults.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.StreamName == "" {
		c.StreamName = "events"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{"events.discovery.>"}
	}

	return nil
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DiscoveryEventKind names a state transition reported by the reconciler.
type DiscoveryEventKind string

const (
	EventHostDiscovered       DiscoveryEventKind = "host.discovered"
	EventHostStatusChanged    DiscoveryEventKind = "host.status_changed"
	EventServiceDiscovered    DiscoveryEventKind = "service.discovered"
	EventServiceStatusChanged DiscoveryEventKind = "service.status_changed"
)

// IsHost reports whether the event concerns a host record.
func (k DiscoveryEventKind) IsHost() bool {
	return k == EventHostDiscovered || k == EventHostStatusChanged
}

// DiscoveryEvent is emitted for every first sighting and status change.
type DiscoveryEvent struct {
	Kind           DiscoveryEventKind `json:"kind"`
	RuleID         uint64             `json:"rule_id"`
	CheckID        uint64             `json:"check_id,omitempty"`
	Identity       string             `json:"identity"`
	Address        string             `json:"address,omitempty"`
	DNS            string             `json:"dns,omitempty"`
	Port           int                `json:"port,omitempty"`
	PreviousStatus DiscoveryStatus    `json:"previous_status"`
	Status         DiscoveryStatus    `json:"status"`
	Value          string             `json:"value,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}
