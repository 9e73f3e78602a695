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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

// mapStore is a minimal HostStore/ServiceStore for scenario tests.
type mapStore struct {
	mu       sync.Mutex
	hosts    map[models.HostKey]models.DiscoveredHost
	services map[models.ServiceKey]models.DiscoveredService
}

func newMapStore() *mapStore {
	return &mapStore{
		hosts:    make(map[models.HostKey]models.DiscoveredHost),
		services: make(map[models.ServiceKey]models.DiscoveredService),
	}
}

func (s *mapStore) GetHost(_ context.Context, key models.HostKey) (*models.DiscoveredHost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts[key]
	if !ok {
		return nil, nil
	}

	return &h, nil
}

func (s *mapStore) UpsertHost(_ context.Context, host *models.DiscoveredHost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hosts[host.Key()] = *host

	return nil
}

func (s *mapStore) GetService(_ context.Context, key models.ServiceKey) (*models.DiscoveredService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[key]
	if !ok {
		return nil, nil
	}

	return &svc, nil
}

func (s *mapStore) UpsertService(_ context.Context, svc *models.DiscoveredService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services[svc.Key()] = *svc

	return nil
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func newTestReconciler(t *testing.T, store *mapStore, opts ...Option) (*Reconciler, *ChannelSink) {
	t.Helper()

	sink := NewChannelSink(64)
	opts = append([]Option{WithEventSink(sink), WithLogger(logger.NewTestLogger())}, opts...)

	r, err := NewReconciler(store, store, opts...)
	require.NoError(t, err)

	return r, sink
}

func sshPass(ts int64, reachable bool) models.DiscoveryPass {
	return models.DiscoveryPass{
		RuleID:    1,
		Timestamp: at(ts),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 22, Reachable: reachable, Value: "SSH-2.0-OpenSSH_9.6"},
		},
	}
}

func eventKinds(events []models.DiscoveryEvent) []models.DiscoveryEventKind {
	kinds := make([]models.DiscoveryEventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}

	return kinds
}

func TestNewReconcilerRequiresStores(t *testing.T) {
	_, err := NewReconciler(nil, newMapStore())
	require.ErrorIs(t, err, ErrHostStoreRequired)

	_, err = NewReconciler(newMapStore(), nil)
	require.ErrorIs(t, err, ErrServiceStoreRequired)
}

func TestReconcilePassUpDownUp(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	r, sink := newTestReconciler(t, store)

	hostKey := models.HostKey{RuleID: 1, Identity: "10.0.0.5"}
	svcKey := models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "10.0.0.5", Port: 22}

	// pass 1: first sighting
	report, err := r.ReconcilePass(ctx, sshPass(100, true))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Hosts)
	assert.Equal(t, 1, report.Services)
	assert.Equal(t, 2, report.Events)
	assert.False(t, report.Failed())

	host := store.hosts[hostKey]
	assert.Equal(t, models.DiscoveryStatusUp, host.Status)
	assert.Equal(t, at(100), host.StatusChanged)
	assert.Equal(t, at(100), host.LastUp)

	svc := store.services[svcKey]
	assert.Equal(t, models.DiscoveryStatusUp, svc.Status)
	assert.Equal(t, at(100), svc.StatusChanged)
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", svc.Value)

	events := sink.Drain()
	assert.Equal(t, []models.DiscoveryEventKind{models.EventHostDiscovered, models.EventServiceDiscovered}, eventKinds(events))
	assert.Equal(t, models.DiscoveryStatusUnknown, events[0].PreviousStatus)
	assert.Equal(t, models.DiscoveryStatusUp, events[0].Status)

	// pass 2: the check fails
	_, err = r.ReconcilePass(ctx, sshPass(160, false))
	require.NoError(t, err)

	host = store.hosts[hostKey]
	assert.Equal(t, models.DiscoveryStatusDown, host.Status)
	assert.Equal(t, at(160), host.StatusChanged)
	assert.Equal(t, at(160), host.LastDown)
	assert.Equal(t, at(100), host.LastUp)

	svc = store.services[svcKey]
	assert.Equal(t, models.DiscoveryStatusDown, svc.Status)
	assert.Equal(t, at(160), svc.StatusChanged)

	events = sink.Drain()
	assert.Equal(t, []models.DiscoveryEventKind{models.EventHostStatusChanged, models.EventServiceStatusChanged}, eventKinds(events))
	assert.Equal(t, models.DiscoveryStatusUp, events[0].PreviousStatus)
	assert.Equal(t, models.DiscoveryStatusDown, events[0].Status)

	// pass 3: back up
	_, err = r.ReconcilePass(ctx, sshPass(220, true))
	require.NoError(t, err)

	assert.Equal(t, models.DiscoveryStatusUp, store.hosts[hostKey].Status)
	assert.Equal(t, at(220), store.hosts[hostKey].StatusChanged)
	assert.Equal(t, at(220), store.services[svcKey].StatusChanged)
	assert.Len(t, sink.Drain(), 2)

	// pass 4: no change only moves last seen
	report, err = r.ReconcilePass(ctx, sshPass(280, true))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Events)
	assert.Empty(t, sink.Drain())
	assert.Equal(t, at(220), store.hosts[hostKey].StatusChanged)
	assert.Equal(t, at(280), store.hosts[hostKey].LastSeen)
	assert.Equal(t, at(280), store.services[svcKey].LastSeen)
}

func TestReconcilePassIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	r, sink := newTestReconciler(t, store)

	pass := models.DiscoveryPass{
		RuleID:    1,
		Timestamp: at(100),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 22, Reachable: true},
			{RuleID: 1, CheckID: 6, Address: "10.0.0.6", Port: 80},
		},
	}

	_, err := r.ReconcilePass(ctx, pass)
	require.NoError(t, err)

	hosts := make(map[models.HostKey]models.DiscoveredHost)
	for k, v := range store.hosts {
		hosts[k] = v
	}

	services := make(map[models.ServiceKey]models.DiscoveredService)
	for k, v := range store.services {
		services[k] = v
	}

	assert.Len(t, sink.Drain(), 4)

	report, err := r.ReconcilePass(ctx, pass)
	require.NoError(t, err)

	assert.Equal(t, hosts, store.hosts)
	assert.Equal(t, services, store.services)
	assert.Equal(t, 0, report.Events)
	assert.Empty(t, sink.Drain())
}

func TestReconcilePassHostStatusIsOr(t *testing.T) {
	store := newMapStore()
	r, _ := newTestReconciler(t, store)

	_, err := r.ReconcilePass(context.Background(), models.DiscoveryPass{
		RuleID:    1,
		Timestamp: at(100),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 1, Address: "10.0.0.5", Port: 21, Reachable: false},
			{RuleID: 1, CheckID: 2, Address: "10.0.0.5", Port: 22, Reachable: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.DiscoveryStatusUp, store.hosts[models.HostKey{RuleID: 1, Identity: "10.0.0.5"}].Status)
	assert.Equal(t, models.DiscoveryStatusDown, store.services[models.ServiceKey{RuleID: 1, CheckID: 1, Identity: "10.0.0.5", Port: 21}].Status)
	assert.Equal(t, models.DiscoveryStatusUp, store.services[models.ServiceKey{RuleID: 1, CheckID: 2, Identity: "10.0.0.5", Port: 22}].Status)
}

func TestReconcilePassUniquenessCheck(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	r, sink := newTestReconciler(t, store)

	pass := func(ts int64, addr string, agentUp bool) models.DiscoveryPass {
		return models.DiscoveryPass{
			RuleID:        1,
			UniqueCheckID: 9,
			Timestamp:     at(ts),
			Results: []models.DiscoveryResult{
				{RuleID: 1, CheckID: 9, Address: addr, Port: 10050, Reachable: agentUp, Value: "agent-1"},
				{RuleID: 1, CheckID: 5, Address: addr, Port: 22, Reachable: true},
			},
		}
	}

	_, err := r.ReconcilePass(ctx, pass(100, "10.0.0.5", true))
	require.NoError(t, err)

	// the host moved but its agent still answers with the same identifier
	_, err = r.ReconcilePass(ctx, pass(160, "10.0.0.9", true))
	require.NoError(t, err)

	require.Len(t, store.hosts, 1)
	host := store.hosts[models.HostKey{RuleID: 1, Identity: "agent-1"}]
	assert.Equal(t, "10.0.0.9", host.Address)
	assert.Equal(t, at(100), host.StatusChanged)
	assert.Equal(t, at(160), host.LastSeen)

	svc := store.services[models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "agent-1", Port: 22}]
	assert.Equal(t, "10.0.0.9", svc.Address)
	assert.Len(t, sink.Drain(), 3, "one host and two services discovered, nothing changed after the move")

	// agent down: fall back to address identity for this pass
	_, err = r.ReconcilePass(ctx, pass(220, "10.0.0.9", false))
	require.NoError(t, err)

	fallback, ok := store.hosts[models.HostKey{RuleID: 1, Identity: "10.0.0.9"}]
	require.True(t, ok)
	assert.Equal(t, models.DiscoveryStatusUp, fallback.Status)
	assert.Equal(t, at(220), fallback.StatusChanged)
	assert.Equal(t, at(160), store.hosts[models.HostKey{RuleID: 1, Identity: "agent-1"}].LastSeen, "absent hosts are untouched")
}

func TestReconcilePassRejectsMalformedResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	hosts := NewMockHostStore(ctrl)
	services := NewMockServiceStore(ctrl)

	r, err := NewReconciler(hosts, services)
	require.NoError(t, err)

	hosts.EXPECT().GetHost(gomock.Any(), models.HostKey{RuleID: 1, Identity: "10.0.0.5"}).Return(nil, nil)
	hosts.EXPECT().UpsertHost(gomock.Any(), gomock.Any()).Return(nil)
	services.EXPECT().GetService(gomock.Any(), gomock.Any()).Return(nil, nil)
	services.EXPECT().UpsertService(gomock.Any(), gomock.Any()).Return(nil)

	report, err := r.ReconcilePass(context.Background(), models.DiscoveryPass{
		RuleID:    1,
		Timestamp: at(100),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 0, Address: "10.0.0.5"},
			{RuleID: 2, CheckID: 5, Address: "10.0.0.5"},
			{RuleID: 1, CheckID: 5, Address: ""},
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Reachable: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Rejected)
	require.Len(t, report.Failures, 3)

	for _, f := range report.Failures {
		assert.Equal(t, "result", f.Scope)
		require.ErrorIs(t, f.Err, ErrMalformedResult)
	}

	assert.Equal(t, 1, report.Hosts)
	assert.Equal(t, 1, report.Services)
}

func TestReconcilePassRequiresRule(t *testing.T) {
	r, _ := newTestReconciler(t, newMapStore())

	report, err := r.ReconcilePass(context.Background(), models.DiscoveryPass{})

	require.ErrorIs(t, err, ErrMalformedResult)
	assert.Nil(t, report)
}

func TestReconcilePassContinuesAfterWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	hosts := NewMockHostStore(ctrl)
	services := NewMockServiceStore(ctrl)
	writeErr := errors.New("connection reset")

	r, err := NewReconciler(hosts, services)
	require.NoError(t, err)

	hosts.EXPECT().GetHost(gomock.Any(), gomock.Any()).Return(nil, nil)
	hosts.EXPECT().UpsertHost(gomock.Any(), gomock.Any()).Return(nil)
	services.EXPECT().GetService(gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)

	var written []int

	services.EXPECT().UpsertService(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, svc *models.DiscoveredService) error {
			if svc.Port == 443 {
				return writeErr
			}

			written = append(written, svc.Port)

			return nil
		}).Times(3)

	report, err := r.ReconcilePass(context.Background(), models.DiscoveryPass{
		RuleID:    1,
		Timestamp: at(100),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 80, Reachable: true},
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 443, Reachable: true},
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 8080, Reachable: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{80, 8080}, written)
	assert.Equal(t, 2, report.Services)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "service", report.Failures[0].Scope)
	assert.Equal(t, "1/5/10.0.0.5/443", report.Failures[0].Key)
	require.ErrorIs(t, report.Failures[0].Err, ErrStoreWrite)
	require.ErrorIs(t, report.Failures[0].Err, writeErr)
}

func TestReconcilePassHostReadFailureKeepsServices(t *testing.T) {
	ctrl := gomock.NewController(t)
	hosts := NewMockHostStore(ctrl)
	services := NewMockServiceStore(ctrl)

	r, err := NewReconciler(hosts, services)
	require.NoError(t, err)

	hosts.EXPECT().GetHost(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	services.EXPECT().GetService(gomock.Any(), gomock.Any()).Return(nil, nil)
	services.EXPECT().UpsertService(gomock.Any(), gomock.Any()).Return(nil)

	report, err := r.ReconcilePass(context.Background(), sshPass(100, true))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Hosts)
	assert.Equal(t, 1, report.Services)
	require.Len(t, report.Failures, 1)
	require.ErrorIs(t, report.Failures[0].Err, ErrStoreRead)
	require.ErrorIs(t, report.Err(), ErrStoreRead)
}

func TestReconcilePassEventFailureDoesNotFailUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockEventSink(ctrl)
	store := newMapStore()

	r, err := NewReconciler(store, store, WithEventSink(sink))
	require.NoError(t, err)

	sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("nats unavailable")).Times(2)

	report, err := r.ReconcilePass(context.Background(), sshPass(100, true))
	require.NoError(t, err)

	assert.False(t, report.Failed())
	assert.Equal(t, 2, report.Events)
	assert.Len(t, store.hosts, 1)
	assert.Len(t, store.services, 1)
}

func TestReconcilePassCancelled(t *testing.T) {
	store := newMapStore()
	r, _ := newTestReconciler(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.ReconcilePass(ctx, sshPass(100, true))

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Hosts)
	assert.Empty(t, store.hosts)
}

func TestReconcilePassUsesClockWithoutTimestamp(t *testing.T) {
	store := newMapStore()
	r, _ := newTestReconciler(t, store, WithClock(func() time.Time { return at(500) }))

	pass := sshPass(0, true)
	pass.Timestamp = time.Time{}

	_, err := r.ReconcilePass(context.Background(), pass)
	require.NoError(t, err)

	assert.Equal(t, at(500), store.hosts[models.HostKey{RuleID: 1, Identity: "10.0.0.5"}].StatusChanged)
}

func TestUpdateHostFirstSighting(t *testing.T) {
	store := newMapStore()
	r, sink := newTestReconciler(t, store)

	pass := NewHostPass(3, 0, "192.168.1.10").
		Add(models.DiscoveryResult{RuleID: 3, CheckID: 1, Address: "192.168.1.10"})

	require.NoError(t, r.UpdateHost(context.Background(), pass, pass.Status(), at(42)))

	host := store.hosts[models.HostKey{RuleID: 3, Identity: "192.168.1.10"}]
	assert.Equal(t, models.DiscoveryStatusDown, host.Status)
	assert.Equal(t, at(42), host.StatusChanged)
	assert.True(t, host.LastUp.IsZero())

	events := sink.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventHostDiscovered, events[0].Kind)
	assert.Equal(t, models.DiscoveryStatusDown, events[0].Status)
}

func TestUpdateHostRejectsMalformed(t *testing.T) {
	r, _ := newTestReconciler(t, newMapStore())
	ctx := context.Background()

	require.ErrorIs(t, r.UpdateHost(ctx, HostPass{}, models.DiscoveryStatusUp, at(1)), ErrMalformedResult)
	require.ErrorIs(t, r.UpdateHost(ctx, NewHostPass(1, 0, "10.0.0.5"), models.DiscoveryStatusUnknown, at(1)), ErrMalformedResult)
	require.ErrorIs(t, r.UpdateHost(ctx, NewHostPass(1, 0, ""), models.DiscoveryStatusUp, at(1)), ErrMalformedResult)
}

func TestUpdateHostTreatsStoredUnknownAsChange(t *testing.T) {
	store := newMapStore()
	store.hosts[models.HostKey{RuleID: 1, Identity: "10.0.0.5"}] = models.DiscoveredHost{
		RuleID: 1, Identity: "10.0.0.5", StatusChanged: at(10), LastSeen: at(10),
	}

	r, sink := newTestReconciler(t, store)

	require.NoError(t, r.UpdateHost(context.Background(), NewHostPass(1, 0, "10.0.0.5"), models.DiscoveryStatusUp, at(20)))

	assert.Equal(t, at(20), store.hosts[models.HostKey{RuleID: 1, Identity: "10.0.0.5"}].StatusChanged)

	events := sink.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventHostStatusChanged, events[0].Kind)
}

func TestUpdateServiceTruncatesAndOverwritesValue(t *testing.T) {
	store := newMapStore()
	r, sink := newTestReconciler(t, store, WithMaxValueLength(8))
	ctx := context.Background()

	update := ServiceUpdate{
		RuleID:  1,
		CheckID: 5,
		Address: "10.0.0.5",
		DNS:     "db01.example.net",
		Port:    5432,
		Status:  models.DiscoveryStatusUp,
		Value:   "PostgreSQL 17.2 on x86_64",
	}

	require.NoError(t, r.UpdateService(ctx, update, at(100)))

	key := models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "10.0.0.5", Port: 5432}
	assert.Equal(t, "PostgreS", store.services[key].Value)
	assert.Equal(t, "db01.example.net", store.services[key].DNS)

	update.Value = "v2"
	require.NoError(t, r.UpdateService(ctx, update, at(160)))

	assert.Equal(t, "v2", store.services[key].Value, "value is overwritten without a status change")
	assert.Equal(t, at(100), store.services[key].StatusChanged)
	assert.Len(t, sink.Drain(), 1)
}

func TestUpdateServiceResolvesIdentityPerCall(t *testing.T) {
	store := newMapStore()
	r, _ := newTestReconciler(t, store)
	ctx := context.Background()

	agent := ServiceUpdate{RuleID: 1, CheckID: 9, UniqueCheckID: 9, Address: "10.0.0.5", Port: 10050, Status: models.DiscoveryStatusUp, Value: "agent-1"}
	require.NoError(t, r.UpdateService(ctx, agent, at(100)))

	_, ok := store.services[models.ServiceKey{RuleID: 1, CheckID: 9, Identity: "agent-1", Port: 10050}]
	assert.True(t, ok)

	host := NewHostPass(1, 0, "10.0.0.5").
		Add(models.DiscoveryResult{RuleID: 1, CheckID: 9, Address: "10.0.0.5", Port: 10050, Reachable: true, Value: "agent-1"})
	ssh := ServiceUpdate{RuleID: 1, CheckID: 5, UniqueCheckID: 9, Host: host, Address: "10.0.0.5", Port: 22, Status: models.DiscoveryStatusUp}
	require.NoError(t, r.UpdateService(ctx, ssh, at(100)))

	_, ok = store.services[models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "agent-1", Port: 22}]
	assert.True(t, ok)
}

func TestUpdateServiceRejectsMalformed(t *testing.T) {
	r, _ := newTestReconciler(t, newMapStore())
	ctx := context.Background()

	tests := []struct {
		name   string
		update ServiceUpdate
	}{
		{name: "no check", update: ServiceUpdate{RuleID: 1, Address: "a", Status: models.DiscoveryStatusUp}},
		{name: "no rule", update: ServiceUpdate{CheckID: 1, Address: "a", Status: models.DiscoveryStatusUp}},
		{name: "unknown status", update: ServiceUpdate{RuleID: 1, CheckID: 1, Address: "a"}},
		{name: "host from other rule", update: ServiceUpdate{RuleID: 1, CheckID: 1, Address: "a", Status: models.DiscoveryStatusUp, Host: NewHostPass(2, 0, "a")}},
		{name: "no identity", update: ServiceUpdate{RuleID: 1, CheckID: 1, Status: models.DiscoveryStatusUp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.UpdateService(ctx, tt.update, at(1))
			require.ErrorIs(t, err, ErrMalformedResult)
			assert.True(t, strings.HasPrefix(err.Error(), ErrMalformedResult.Error()))
		})
	}
}

func TestLongUniqueValueGivesOneIdentity(t *testing.T) {
	store := newMapStore()
	r, _ := newTestReconciler(t, store)
	ctx := context.Background()

	long := strings.Repeat("a", 300)
	short := long[:DefaultMaxValueLength]

	host := NewHostPass(1, 9, "10.0.0.5").
		Add(models.DiscoveryResult{RuleID: 1, CheckID: 9, Address: "10.0.0.5", Port: 10050, Reachable: true, Value: long})
	require.NoError(t, r.UpdateHost(ctx, host, models.DiscoveryStatusUp, at(100)))

	agent := ServiceUpdate{RuleID: 1, CheckID: 9, UniqueCheckID: 9, Address: "10.0.0.5", Port: 10050, Status: models.DiscoveryStatusUp, Value: long}
	require.NoError(t, r.UpdateService(ctx, agent, at(100)))

	ssh := ServiceUpdate{RuleID: 1, CheckID: 5, UniqueCheckID: 9, Host: host, Address: "10.0.0.5", Port: 22, Status: models.DiscoveryStatusUp}
	require.NoError(t, r.UpdateService(ctx, ssh, at(100)))

	require.Len(t, store.hosts, 1)
	_, ok := store.hosts[models.HostKey{RuleID: 1, Identity: short}]
	assert.True(t, ok, "host stored under the truncated unique value")

	for key := range store.services {
		assert.Equal(t, short, key.Identity)
		_, ok := store.hosts[key.Host()]
		assert.True(t, ok, "service %s refers to a stored host", key)
	}
}

func TestReconcilePassCleansBinaryValues(t *testing.T) {
	store := newMapStore()
	r, sink := newTestReconciler(t, store)

	pass := models.DiscoveryPass{
		RuleID:    1,
		Timestamp: at(100),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 7, Reachable: true, Value: "\xff\x00banner\x00", DNS: "host\x00.lan"},
		},
	}

	report, err := r.ReconcilePass(context.Background(), pass)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	svc := store.services[models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "10.0.0.5", Port: 7}]
	assert.Equal(t, "�banner", svc.Value)
	assert.Equal(t, "host.lan", svc.DNS)

	for _, ev := range sink.Drain() {
		assert.NotContains(t, ev.Value, "\x00")
	}

	require.NoError(t, r.UpdateService(context.Background(), ServiceUpdate{
		RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 7, Status: models.DiscoveryStatusUp, Value: "\xfe\xfe",
	}, at(200)))

	assert.Equal(t, "�", store.services[models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "10.0.0.5", Port: 7}].Value)
}

func TestReconcilePassMergesAddressesSharingUniqueValue(t *testing.T) {
	store := newMapStore()
	r, sink := newTestReconciler(t, store)

	pass := models.DiscoveryPass{
		RuleID:        1,
		UniqueCheckID: 9,
		Timestamp:     at(100),
		Results: []models.DiscoveryResult{
			{RuleID: 1, CheckID: 9, Address: "10.0.0.5", Port: 10050, Reachable: true, Value: "X"},
			{RuleID: 1, CheckID: 5, Address: "10.0.0.5", Port: 22, Reachable: true},
			{RuleID: 1, CheckID: 9, Address: "10.0.0.6", Port: 10050, Reachable: true, Value: "X"},
			{RuleID: 1, CheckID: 5, Address: "10.0.0.6", Port: 22, Reachable: false},
		},
	}

	report, err := r.ReconcilePass(context.Background(), pass)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Hosts)
	assert.Equal(t, 2, report.Services)
	assert.Equal(t, 3, report.Events)

	kinds := eventKinds(sink.Drain())
	assert.NotContains(t, kinds, models.EventServiceStatusChanged)

	svc := store.services[models.ServiceKey{RuleID: 1, CheckID: 5, Identity: "X", Port: 22}]
	assert.Equal(t, models.DiscoveryStatusUp, svc.Status)
	assert.Equal(t, "10.0.0.5", store.hosts[models.HostKey{RuleID: 1, Identity: "X"}].Address)
}
