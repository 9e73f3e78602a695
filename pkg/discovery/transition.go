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

package discovery

import (
	"time"

	"github.com/carverauto/netdiscovery/pkg/models"
)

type transition uint8

const (
	transitionNone transition = iota
	transitionDiscovered
	transitionChanged
)

func (t transition) outcome() string {
	switch t {
	case transitionDiscovered:
		return outcomeDiscovered
	case transitionChanged:
		return outcomeChanged
	default:
		return outcomeUnchanged
	}
}

func (t transition) hostEvent() models.DiscoveryEventKind {
	if t == transitionDiscovered {
		return models.EventHostDiscovered
	}

	return models.EventHostStatusChanged
}

func (t transition) serviceEvent() models.DiscoveryEventKind {
	if t == transitionDiscovered {
		return models.EventServiceDiscovered
	}

	return models.EventServiceStatusChanged
}

// statusFields is the part of a host or service record the transition
// policy owns.
type statusFields struct {
	Status        models.DiscoveryStatus
	StatusChanged time.Time
	LastSeen      time.Time
	LastUp        time.Time
	LastDown      time.Time
}

func hostStatusFields(h *models.DiscoveredHost) statusFields {
	return statusFields{
		Status:        h.Status,
		StatusChanged: h.StatusChanged,
		LastSeen:      h.LastSeen,
		LastUp:        h.LastUp,
		LastDown:      h.LastDown,
	}
}

func serviceStatusFields(s *models.DiscoveredService) statusFields {
	return statusFields{
		Status:        s.Status,
		StatusChanged: s.StatusChanged,
		LastSeen:      s.LastSeen,
		LastUp:        s.LastUp,
		LastDown:      s.LastDown,
	}
}

// advance applies one observation. A missing record, or a stored status
// different from next (including a stored unknown), is a transition and
// stamps the change time; otherwise only LastSeen moves.
func (f statusFields) advance(exists bool, next models.DiscoveryStatus, now time.Time) (statusFields, transition) {
	f.LastSeen = now

	t := transitionNone

	switch {
	case !exists:
		t = transitionDiscovered
	case f.Status != next:
		t = transitionChanged
	}

	if t == transitionNone {
		return f, t
	}

	f.Status = next
	f.StatusChanged = now

	switch next {
	case models.DiscoveryStatusUp:
		f.LastUp = now
	case models.DiscoveryStatusDown:
		f.LastDown = now
	case models.DiscoveryStatusUnknown:
	}

	return f, t
}
