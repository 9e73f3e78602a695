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

//go:generate mockgen -destination=mock_discovery.go -package=discovery github.com/carverauto/netdiscovery/pkg/discovery HostStore,ServiceStore,EventSink

package discovery

import (
	"context"

	"github.com/carverauto/netdiscovery/pkg/models"
)

// HostStore persists host records keyed by rule and identity. GetHost
// returns nil, nil when no record exists. UpsertHost replaces the whole
// record atomically.
type HostStore interface {
	GetHost(ctx context.Context, key models.HostKey) (*models.DiscoveredHost, error)
	UpsertHost(ctx context.Context, host *models.DiscoveredHost) error
}

// ServiceStore persists service records keyed by rule, check, identity and
// port, with the same absent and overwrite semantics as HostStore.
type ServiceStore interface {
	GetService(ctx context.Context, key models.ServiceKey) (*models.DiscoveredService, error)
	UpsertService(ctx context.Context, svc *models.DiscoveredService) error
}

// EventSink receives discovered and status-changed events.
type EventSink interface {
	Publish(ctx context.Context, event models.DiscoveryEvent) error
}
