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

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netdiscovery/pkg/discovery"
	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
	"github.com/carverauto/netdiscovery/pkg/store/memory"
)

var (
	_ discovery.HostStore    = (*memory.Store)(nil)
	_ discovery.ServiceStore = (*memory.Store)(nil)
)

func TestStoreGetAbsent(t *testing.T) {
	s := memory.NewStore(logger.NewTestLogger())
	defer func() { _ = s.Close() }()

	host, err := s.GetHost(context.Background(), models.HostKey{RuleID: 1, Identity: "10.0.0.1"})
	require.NoError(t, err)
	assert.Nil(t, host)

	svc, err := s.GetService(context.Background(), models.ServiceKey{RuleID: 1, CheckID: 2, Identity: "10.0.0.1", Port: 22})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore(nil)

	host := &models.DiscoveredHost{RuleID: 1, Identity: "10.0.0.1", Status: models.DiscoveryStatusUp}
	require.NoError(t, s.UpsertHost(ctx, host))

	host.Status = models.DiscoveryStatusDown

	got, err := s.GetHost(ctx, host.Key())
	require.NoError(t, err)
	assert.Equal(t, models.DiscoveryStatusUp, got.Status)

	got.Status = models.DiscoveryStatusDown

	again, err := s.GetHost(ctx, host.Key())
	require.NoError(t, err)
	assert.Equal(t, models.DiscoveryStatusUp, again.Status)
}

func TestStoreListAndPrune(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore(nil)
	old := time.Unix(100, 0)
	fresh := time.Unix(500, 0)

	for _, h := range []models.DiscoveredHost{
		{RuleID: 1, Identity: "b", LastSeen: fresh},
		{RuleID: 1, Identity: "a", LastSeen: old},
		{RuleID: 2, Identity: "c", LastSeen: fresh},
	} {
		require.NoError(t, s.UpsertHost(ctx, &h))
	}

	require.NoError(t, s.UpsertService(ctx, &models.DiscoveredService{RuleID: 1, CheckID: 7, Identity: "b", Port: 80, LastSeen: fresh}))
	require.NoError(t, s.UpsertService(ctx, &models.DiscoveredService{RuleID: 1, CheckID: 3, Identity: "b", Port: 22, LastSeen: old}))

	hosts := s.ListHosts(1)
	require.Len(t, hosts, 2)
	assert.Equal(t, "a", hosts[0].Identity)
	assert.Equal(t, "b", hosts[1].Identity)

	services := s.ListServices(models.HostKey{RuleID: 1, Identity: "b"})
	require.Len(t, services, 2)
	assert.Equal(t, uint64(3), services[0].CheckID)

	removedHosts, removedServices := s.PruneBefore(time.Unix(300, 0))
	assert.Equal(t, 1, removedHosts)
	assert.Equal(t, 1, removedServices)

	h, svc := s.Len()
	assert.Equal(t, 2, h)
	assert.Equal(t, 1, svc)
}

func TestStoreRetentionCleanup(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore(nil, memory.WithRetention(time.Minute), memory.WithCleanupInterval(10*time.Millisecond))
	defer func() { _ = s.Close() }()

	require.NoError(t, s.UpsertHost(ctx, &models.DiscoveredHost{RuleID: 1, Identity: "stale", LastSeen: time.Now().Add(-time.Hour)}))
	require.NoError(t, s.UpsertHost(ctx, &models.DiscoveredHost{RuleID: 1, Identity: "live", LastSeen: time.Now()}))

	require.Eventually(t, func() bool {
		hosts, _ := s.Len()
		return hosts == 1
	}, time.Second, 10*time.Millisecond)

	live, err := s.GetHost(ctx, models.HostKey{RuleID: 1, Identity: "live"})
	require.NoError(t, err)
	assert.NotNil(t, live)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStoreConcurrentRules(t *testing.T) {
	s := memory.NewStore(nil)
	r, err := discovery.NewReconciler(s, s)
	require.NoError(t, err)

	const rules = 8

	var wg sync.WaitGroup

	errs := make(chan error, rules)

	for rule := uint64(1); rule <= rules; rule++ {
		wg.Add(1)

		go func(rule uint64) {
			defer wg.Done()

			pass := models.DiscoveryPass{RuleID: rule, Timestamp: time.Unix(100, 0)}
			for i := 0; i < 50; i++ {
				pass.Results = append(pass.Results, models.DiscoveryResult{
					RuleID:    rule,
					CheckID:   1,
					Address:   fmt.Sprintf("10.0.%d.%d", rule, i),
					Port:      22,
					Reachable: i%2 == 0,
				})
			}

			report, err := r.ReconcilePass(context.Background(), pass)
			if err != nil {
				errs <- err
				return
			}

			errs <- report.Err()
		}(rule)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	hosts, services := s.Len()
	assert.Equal(t, rules*50, hosts)
	assert.Equal(t, rules*50, services)
	assert.Len(t, s.ListHosts(3), 50)
}
