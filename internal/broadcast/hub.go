// Package broadcast delivers core events to live observers, best effort and
// at most once per connection. One dedicated goroutine owns the fan-out, so
// publishers never touch the observer set directly.
package broadcast

import (
	"context"

	"github.com/tbayops/stormdesk/internal/events"
	"github.com/tbayops/stormdesk/internal/metrics"
	"go.uber.org/zap"
)

// Observer is one live connection. Deliver must not block; an observer that
// cannot keep up should drop the event and report an error.
type Observer interface {
	Deliver(data []byte) error
}

// Hub fans events out to every registered observer. All mutation of the
// observer set happens on the Run goroutine.
type Hub struct {
	log *zap.Logger

	register   chan Observer
	unregister chan Observer
	outbound   chan events.Event

	observers map[Observer]struct{}
}

// NewHub sizes the outbound queue with buffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		log:        logger.Named("broadcast"),
		register:   make(chan Observer, 8),
		unregister: make(chan Observer, 8),
		outbound:   make(chan events.Event, buffer),
		observers:  make(map[Observer]struct{}),
	}
}

// Run drains the hub's channels until ctx is canceled. Call exactly once.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-h.register:
			h.observers[o] = struct{}{}
			metrics.ConnectedObservers.Set(float64(len(h.observers)))
			h.log.Debug("Observer registered", zap.Int("observers", len(h.observers)))
		case o := <-h.unregister:
			if _, ok := h.observers[o]; ok {
				delete(h.observers, o)
				metrics.ConnectedObservers.Set(float64(len(h.observers)))
				h.log.Debug("Observer unregistered", zap.Int("observers", len(h.observers)))
			}
		case ev := <-h.outbound:
			h.fanOut(ev)
		}
	}
}

// Register adds an observer to the live set.
func (h *Hub) Register(o Observer) { h.register <- o }

// Unregister removes an observer. Safe to call for observers never
// registered or already removed.
func (h *Hub) Unregister(o Observer) { h.unregister <- o }

// Publish enqueues an event for fan-out. It never fails and never blocks;
// when the queue is full the event is dropped and counted.
func (h *Hub) Publish(ev events.Event) {
	select {
	case h.outbound <- ev:
		metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	default:
		metrics.EventsDropped.Inc()
		h.log.Warn("Outbound queue full, event dropped", zap.String("type", string(ev.Type)))
	}
}

// fanOut encodes once and attempts delivery to every observer. A failing
// observer stays registered; removal is its registrar's responsibility.
func (h *Hub) fanOut(ev events.Event) {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error("Failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	for o := range h.observers {
		if err := o.Deliver(data); err != nil {
			h.log.Warn("Delivery failed for one observer",
				zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}
