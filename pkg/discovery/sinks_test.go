package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/netdiscovery/pkg/models"
)

func TestChannelSinkDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := NewChannelSink(1)
	ev := models.DiscoveryEvent{Kind: models.EventHostDiscovered}

	require.NoError(t, sink.Publish(context.Background(), ev))
	require.ErrorIs(t, sink.Publish(context.Background(), ev), ErrSinkFull)

	assert.Len(t, sink.Drain(), 1)
	assert.Empty(t, sink.Drain())
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	failing := NewMockEventSink(ctrl)
	errBroker := errors.New("broker down")

	failing.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBroker)

	local := NewChannelSink(4)
	multi := MultiSink{nil, failing, local, NopSink{}}

	err := multi.Publish(context.Background(), models.DiscoveryEvent{Kind: models.EventServiceDiscovered})
	require.ErrorIs(t, err, errBroker)

	events := local.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventServiceDiscovered, events[0].Kind)
}
