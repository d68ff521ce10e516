package feed

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/mpapenbr/rally-manager-go/pkg/notify"
)

func receive(t *testing.T, ch <-chan *notify.RaceSettled) *notify.RaceSettled {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		require.FailNow(t, "no message received")
		return nil
	}
}

func assertClosed(t *testing.T, ch <-chan *notify.RaceSettled) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		assert.Fail(t, "channel not closed")
	}
}

func TestFeedDelivers(t *testing.T) {
	f := New("test")
	defer f.Close()
	a := f.Subscribe()
	b := f.Subscribe()

	msg := &notify.RaceSettled{RunID: uuid.Must(uuid.NewV4()), RaceID: 3}
	require.NoError(t, f.PublishRaceSettled(context.Background(), msg))

	assert.Equal(t, msg, receive(t, a))
	assert.Equal(t, msg, receive(t, b))
}

func TestFeedCancelSubscription(t *testing.T) {
	f := New("test")
	defer f.Close()
	a := f.Subscribe()
	b := f.Subscribe()
	f.CancelSubscription(a)
	assertClosed(t, a)

	require.NoError(t, f.PublishRaceSettled(context.Background(), &notify.RaceSettled{RaceID: 1}))
	assert.Equal(t, 1, receive(t, b).RaceID)
}

func TestFeedClose(t *testing.T) {
	f := New("test")
	a := f.Subscribe()
	f.Close()
	assertClosed(t, a)

	err := f.PublishRaceSettled(context.Background(), &notify.RaceSettled{})
	assert.ErrorIs(t, err, ErrClosed)
	assertClosed(t, f.Subscribe())
	// must not block
	f.CancelSubscription(a)
}

func TestFeedSkipsSlowListener(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	f := New("test",
		WithSendTimeout(time.Millisecond),
		WithMeter(provider.Meter("test")))
	defer f.Close()
	slow := f.Subscribe()

	total := listenerBuffer + 2
	for i := range total {
		require.NoError(t, f.PublishRaceSettled(context.Background(),
			&notify.RaceSettled{RaceID: i}))
	}
	// the next publish is accepted after the previous one was delivered or skipped
	require.NoError(t, f.PublishRaceSettled(context.Background(), &notify.RaceSettled{RaceID: -1}))

	for i := range listenerBuffer {
		assert.Equal(t, i, receive(t, slow).RaceID)
	}

	collect := func() map[string]int64 {
		rm := metricdata.ResourceMetrics{}
		require.NoError(t, reader.Collect(context.Background(), &rm))
		ret := map[string]int64{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
					ret[m.Name] = g.DataPoints[0].Value
				}
			}
		}
		return ret
	}
	assert.Eventually(t, func() bool {
		return collect()["rally.feed.rcv"] == int64(total+1)
	}, time.Second, 10*time.Millisecond)
	got := collect()
	assert.Equal(t, int64(1), got["rally.feed.listener"])
	assert.GreaterOrEqual(t, got["rally.feed.skip"], int64(2))
}

func TestPublishHonorsContext(t *testing.T) {
	f := New("test")
	defer f.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// serve may still pick up the message, either way Publish must return
	err := f.PublishRaceSettled(ctx, &notify.RaceSettled{})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
