package discoveryconsumer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
	"github.com/carverauto/netdiscovery/pkg/store/memory"
	redisstore "github.com/carverauto/netdiscovery/pkg/store/redis"
)

func TestOpenStoreMemory(t *testing.T) {
	t.Parallel()

	b, err := openStore(context.Background(), &StoreConfig{Backend: BackendMemory}, nil, logger.NewTestLogger())
	require.NoError(t, err)

	_, ok := b.store.(*memory.Store)
	assert.True(t, ok)
	require.NoError(t, b.close())
}

func TestOpenStoreRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	cfg := &StoreConfig{
		Backend:   BackendRedis,
		Retention: models.Duration(time.Hour),
		Redis:     &models.RedisConfig{Addr: mr.Addr()},
	}

	b, err := openStore(context.Background(), cfg, nil, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { _ = b.close() }()

	_, ok := b.store.(*redisstore.Store)
	require.True(t, ok)

	host := &models.DiscoveredHost{
		RuleID:   1,
		Identity: "10.0.0.1",
		Address:  "10.0.0.1",
		Status:   models.DiscoveryStatusUp,
		LastSeen: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.store.UpsertHost(context.Background(), host))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestOpenStoreRedisUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &StoreConfig{Backend: BackendRedis, Redis: &models.RedisConfig{Addr: addr}}

	_, err := openStore(context.Background(), cfg, nil, logger.NewTestLogger())
	require.Error(t, err)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := openStore(context.Background(), &StoreConfig{Backend: "etcd"}, nil, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrUnknownBackend)
}

type countingPruner struct {
	calls  atomic.Int32
	cutoff atomic.Int64
}

func (p *countingPruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	p.calls.Add(1)
	p.cutoff.Store(cutoff.UnixNano())

	return 2, nil
}

func TestPruneLoop(t *testing.T) {
	t.Parallel()

	p := &countingPruner{}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pruneLoop(ctx, p, time.Hour, 5*time.Millisecond, logger.NewTestLogger())
		close(done)
	}()

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	cutoff := time.Unix(0, p.cutoff.Load())
	assert.WithinDuration(t, time.Now().Add(-time.Hour), cutoff, time.Minute)
}
