package kv

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netdiscovery/pkg/logger"
	"github.com/carverauto/netdiscovery/pkg/models"
)

var errBucketOffline = errors.New("bucket offline")

type fakeEntry struct {
	key   string
	value []byte
	rev   uint64
}

func (e *fakeEntry) Bucket() string                  { return "discovery" }
func (e *fakeEntry) Key() string                     { return e.key }
func (e *fakeEntry) Value() []byte                   { return e.value }
func (e *fakeEntry) Revision() uint64                { return e.rev }
func (e *fakeEntry) Created() time.Time              { return time.Time{} }
func (e *fakeEntry) Delta() uint64                   { return 0 }
func (e *fakeEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

type fakeLister struct {
	keys chan string
}

func (l *fakeLister) Keys() <-chan string { return l.keys }
func (l *fakeLister) Stop() error         { return nil }

type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	rev     uint64
	failGet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet {
		return nil, errBucketOffline
	}

	v, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}

	return &fakeEntry{key: key, value: v, rev: f.rev}, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rev++
	f.data[key] = value

	return f.rev, nil
}

func (f *fakeKV) ListKeysFiltered(_ context.Context, filters ...string) (jetstream.KeyLister, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan string, len(f.data))

	for k := range f.data {
		for _, filter := range filters {
			if strings.HasPrefix(k, strings.TrimSuffix(filter, "*")) {
				ch <- k
			}
		}
	}

	close(ch)

	return &fakeLister{keys: ch}, nil
}

func TestHostKeyEncodesIdentity(t *testing.T) {
	key := hostKey(models.HostKey{RuleID: 4, Identity: "fe80::1"})

	assert.Equal(t, "dhost.4.ZmU4MDo6MQ", key)
	assert.NotContains(t, key[len("dhost.4."):], ":")

	parsed, err := parseHostKey(key)
	require.NoError(t, err)
	assert.Equal(t, models.HostKey{RuleID: 4, Identity: "fe80::1"}, parsed)
}

func TestServiceKeyLayout(t *testing.T) {
	key := serviceKey(models.ServiceKey{RuleID: 4, CheckID: 9, Identity: "10.0.0.1", Port: 443})

	assert.Equal(t, "dservice.4.9.MTAuMC4wLjE.443", key)
}

func TestParseHostKeyRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "dhost.4", "dservice.4.x", "dhost.x.YQ", "dhost.4.%%%"} {
		_, err := parseHostKey(raw)
		require.ErrorIs(t, err, errMalformedKey, raw)
	}
}

func TestNewNatsStoreValidatesArguments(t *testing.T) {
	log := logger.NewTestLogger()

	_, err := NewNatsStore(context.Background(), nil, &models.KVStoreConfig{Bucket: "b"}, log)
	require.ErrorIs(t, err, errJetStreamRequired)
}

func TestNatsStoreHostRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newNatsStore(newFakeKV(), logger.NewTestLogger())

	key := models.HostKey{RuleID: 1, Identity: "2001:db8::7"}

	got, err := store.GetHost(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	host := &models.DiscoveredHost{
		RuleID:        1,
		Identity:      "2001:db8::7",
		Address:       "2001:db8::7",
		Status:        models.DiscoveryStatusUp,
		StatusChanged: now,
		LastSeen:      now,
		LastUp:        now,
	}
	require.NoError(t, store.UpsertHost(ctx, host))

	got, err = store.GetHost(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, host, got)

	host.Status = models.DiscoveryStatusDown
	host.LastDown = now.Add(time.Minute)
	require.NoError(t, store.UpsertHost(ctx, host))

	got, err = store.GetHost(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, models.DiscoveryStatusDown, got.Status)
	assert.Equal(t, now, got.LastUp)
	assert.Equal(t, now.Add(time.Minute), got.LastDown)
}

func TestNatsStoreServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newNatsStore(newFakeKV(), logger.NewTestLogger())

	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := &models.DiscoveredService{
		RuleID:        1,
		CheckID:       3,
		Identity:      "10.0.0.5",
		Port:          161,
		Address:       "10.0.0.5",
		Status:        models.DiscoveryStatusUp,
		Value:         "Linux sw-core-1",
		StatusChanged: now,
		LastSeen:      now,
	}
	require.NoError(t, store.UpsertService(ctx, svc))

	got, err := store.GetService(ctx, svc.Key())
	require.NoError(t, err)
	assert.Equal(t, svc, got)

	other := svc.Key()
	other.Port = 162
	got, err = store.GetService(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNatsStoreNilRecords(t *testing.T) {
	store := newNatsStore(newFakeKV(), logger.NewTestLogger())

	require.ErrorIs(t, store.UpsertHost(context.Background(), nil), errHostRecordNil)
	require.ErrorIs(t, store.UpsertService(context.Background(), nil), errServiceRecordNil)
}

func TestNatsStoreGetErrors(t *testing.T) {
	kv := newFakeKV()
	store := newNatsStore(kv, logger.NewTestLogger())

	kv.failGet = true
	_, err := store.GetHost(context.Background(), models.HostKey{RuleID: 1, Identity: "x"})
	require.ErrorIs(t, err, errBucketOffline)

	kv.failGet = false
	kv.data[hostKey(models.HostKey{RuleID: 1, Identity: "x"})] = []byte("{not json")
	_, err = store.GetHost(context.Background(), models.HostKey{RuleID: 1, Identity: "x"})
	require.Error(t, err)
}

func TestNatsStoreListHosts(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	store := newNatsStore(kv, logger.NewTestLogger())

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.UpsertHost(ctx, &models.DiscoveredHost{
			RuleID: 7, Identity: id, Status: models.DiscoveryStatusUp,
		}))
	}

	require.NoError(t, store.UpsertHost(ctx, &models.DiscoveredHost{
		RuleID: 8, Identity: "c", Status: models.DiscoveryStatusUp,
	}))

	hosts, err := store.ListHosts(ctx, 7)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	ids := []string{hosts[0].Identity, hosts[1].Identity}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
