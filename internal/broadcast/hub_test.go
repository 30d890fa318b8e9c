package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbayops/stormdesk/internal/events"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingObserver struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
}

func (o *recordingObserver) Deliver(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("connection gone")
	}
	o.received = append(o.received, data)
	return nil
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.received)
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(16, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func TestPublishReachesAllObservers(t *testing.T) {
	h := startHub(t)

	a := &recordingObserver{}
	b := &recordingObserver{}
	h.Register(a)
	h.Register(b)

	h.Publish(events.Event{Type: events.TypeStoreChanged})
	h.Publish(events.Event{
		Type:    events.TypeActionRecorded,
		Payload: events.ActionRecorded{Kind: "deploy_asset", Message: "deployed"},
	})

	require.Eventually(t, func() bool {
		return a.count() == 2 && b.count() == 2
	}, time.Second, 5*time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.JSONEq(t, `{"type":"store_changed"}`, string(a.received[0]))
	assert.JSONEq(t, `{"type":"action_recorded","action":"deploy_asset","message":"deployed"}`, string(a.received[1]))
}

func TestFailingObserverDoesNotBlockOthers(t *testing.T) {
	h := startHub(t)

	broken := &recordingObserver{fail: true}
	healthy := &recordingObserver{}
	h.Register(broken)
	h.Register(healthy)

	for i := 0; i < 3; i++ {
		h.Publish(events.Event{Type: events.TypeStoreChanged})
	}

	require.Eventually(t, func() bool {
		return healthy.count() == 3
	}, time.Second, 5*time.Millisecond)

	// The failing observer stays registered and receives again once healthy.
	broken.mu.Lock()
	broken.fail = false
	broken.mu.Unlock()

	h.Publish(events.Event{Type: events.TypeStoreChanged})
	require.Eventually(t, func() bool {
		return broken.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := startHub(t)

	o := &recordingObserver{}
	h.Register(o)
	h.Publish(events.Event{Type: events.TypeStoreChanged})
	require.Eventually(t, func() bool { return o.count() == 1 }, time.Second, 5*time.Millisecond)

	h.Unregister(o)
	// Once the unregister drains, publishes stop reaching the observer.
	require.Eventually(t, func() bool {
		before := o.count()
		h.Publish(events.Event{Type: events.TypeStoreChanged})
		time.Sleep(20 * time.Millisecond)
		return o.count() == before
	}, time.Second, 10*time.Millisecond)
}

func TestPublishNeverBlocksWhenHubStopped(t *testing.T) {
	h := NewHub(2, zaptest.NewLogger(t))

	// No Run loop draining; the queue fills and further publishes drop.
	for i := 0; i < 10; i++ {
		h.Publish(events.Event{Type: events.TypeStoreChanged})
	}
}
