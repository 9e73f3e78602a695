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
	"errors"
	"fmt"
	"strings"
	"time"
)

var errUnknownDiscoveryStatus = errors.New("unknown discovery status")

// DiscoveryStatus is the reconciled state of a discovered host or service.
// The zero value is DiscoveryStatusUnknown, which the reconciler never
// persists; it only shows up for records written by something else.
type DiscoveryStatus uint8

const (
	DiscoveryStatusUnknown DiscoveryStatus = iota
	DiscoveryStatusUp
	DiscoveryStatusDown
)

// StatusFromReachable maps a raw check outcome onto a status.
func StatusFromReachable(reachable bool) DiscoveryStatus {
	if reachable {
		return DiscoveryStatusUp
	}

	return DiscoveryStatusDown
}

func (s DiscoveryStatus) String() string {
	switch s {
	case DiscoveryStatusUp:
		return "up"
	case DiscoveryStatusDown:
		return "down"
	case DiscoveryStatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// IsKnown reports whether s is UP or DOWN.
func (s DiscoveryStatus) IsKnown() bool {
	return s == DiscoveryStatusUp || s == DiscoveryStatusDown
}

// MarshalText implements encoding.TextMarshaler.
func (s DiscoveryStatus) MarshalText() ([]byte, error) {
	switch s {
	case DiscoveryStatusUnknown, DiscoveryStatusUp, DiscoveryStatusDown:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownDiscoveryStatus, uint8(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DiscoveryStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseDiscoveryStatus(string(b))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseDiscoveryStatus parses the textual form produced by String.
func ParseDiscoveryStatus(v string) (DiscoveryStatus, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "up":
		return DiscoveryStatusUp, nil
	case "down":
		return DiscoveryStatusDown, nil
	case "", "unknown":
		return DiscoveryStatusUnknown, nil
	default:
		return DiscoveryStatusUnknown, fmt.Errorf("%w: %q", errUnknownDiscoveryStatus, v)
	}
}

// DiscoveryResult is the outcome of one check run against one target during
// a discovery pass.
type DiscoveryResult struct {
	RuleID        uint64    `json:"rule_id"`
	CheckID       uint64    `json:"check_id"`
	UniqueCheckID uint64    `json:"unique_check_id,omitempty"`
	Address       string    `json:"address"`
	DNS           string    `json:"dns,omitempty"`
	Port          int       `json:"port,omitempty"`
	Reachable     bool      `json:"reachable"`
	Value         string    `json:"value,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Status returns the result's raw reachability as a status.
func (r *DiscoveryResult) Status() DiscoveryStatus {
	return StatusFromReachable(r.Reachable)
}

// HostKey identifies a discovered host within a rule.
type HostKey struct {
	RuleID   uint64 `json:"rule_id"`
	Identity string `json:"identity"`
}

func (k HostKey) String() string {
	return fmt.Sprintf("%d/%s", k.RuleID, k.Identity)
}

// ServiceKey identifies one check's service record on a discovered host.
type ServiceKey struct {
	RuleID   uint64 `json:"rule_id"`
	CheckID  uint64 `json:"check_id"`
	Identity string `json:"identity"`
	Port     int    `json:"port"`
}

func (k ServiceKey) String() string {
	return fmt.Sprintf("%d/%d/%s/%d", k.RuleID, k.CheckID, k.Identity, k.Port)
}

// Host returns the key of the host this service belongs to.
func (k ServiceKey) Host() HostKey {
	return HostKey{RuleID: k.RuleID, Identity: k.Identity}
}

// DiscoveredHost is the persisted state of a host under one discovery rule.
type DiscoveredHost struct {
	RuleID        uint64          `json:"rule_id"`
	Identity      string          `json:"identity"`
	Address       string          `json:"address"`
	Status        DiscoveryStatus `json:"status"`
	StatusChanged time.Time       `json:"status_changed"`
	LastSeen      time.Time       `json:"last_seen"`
	LastUp        time.Time       `json:"last_up,omitzero"`
	LastDown      time.Time       `json:"last_down,omitzero"`
}

// Key returns the store key of the host.
func (h *DiscoveredHost) Key() HostKey {
	return HostKey{RuleID: h.RuleID, Identity: h.Identity}
}

// DiscoveredService is the persisted state of one check's results for a
// discovered host. It refers to its host by rule and identity only.
type DiscoveredService struct {
	RuleID        uint64          `json:"rule_id"`
	CheckID       uint64          `json:"check_id"`
	Identity      string          `json:"identity"`
	Port          int             `json:"port"`
	Address       string          `json:"address"`
	DNS           string          `json:"dns,omitempty"`
	Status        DiscoveryStatus `json:"status"`
	Value         string          `json:"value"`
	StatusChanged time.Time       `json:"status_changed"`
	LastSeen      time.Time       `json:"last_seen"`
	LastUp        time.Time       `json:"last_up,omitzero"`
	LastDown      time.Time       `json:"last_down,omitzero"`
}

// Key returns the store key of the service.
func (s *DiscoveredService) Key() ServiceKey {
	return ServiceKey{RuleID: s.RuleID, CheckID: s.CheckID, Identity: s.Identity, Port: s.Port}
}

// DiscoveryPass is the batch of results one execution of a rule produced. It
// is also the payload carried on the discovery results stream.
type DiscoveryPass struct {
	RuleID        uint64            `json:"rule_id"`
	UniqueCheckID uint64            `json:"unique_check_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Results       []DiscoveryResult `json:"results"`
}

// RecordFailure describes one host or service update that did not complete.
type RecordFailure struct {
	Scope string `json:"scope"` // "result", "host" or "service"
	Key   string `json:"key"`
	Err   error  `json:"-"`
}

// PassReport summarizes a reconciliation pass. A pass with failures is still
// a completed pass.
type PassReport struct {
	RuleID   uint64          `json:"rule_id"`
	Hosts    int             `json:"hosts"`
	Services int             `json:"services"`
	Events   int             `json:"events"`
	Rejected int             `json:"rejected"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

// Failed reports whether any record in the pass failed.
func (r *PassReport) Failed() bool {
	return len(r.Failures) > 0
}

// Err joins all record failures, or returns nil.
func (r *PassReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s %s: %w", f.Scope, f.Key, f.Err))
	}

	return errors.Join(errs...)
}
