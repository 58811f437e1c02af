package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
)

// Hub fans events out to in-process subscribers keyed by channel name.
// Delivery is best effort: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Uint64
	logger  *zap.Logger
}

// Subscription receives events for the channels it was opened with.
type Subscription struct {
	id       uint64
	channels map[string]struct{}
	events   chan domain.Event
	hub      *Hub
	once     sync.Once
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe opens a subscription; with no channels it receives nothing.
func (h *Hub) Subscribe(channels ...string) *Subscription {
	sub := &Subscription{
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan domain.Event, h.buffer),
		hub:      h,
	}
	for _, c := range channels {
		if c != "" {
			sub.channels[c] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.events)
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Broadcast delivers ev to every matching subscriber and returns the delivery count.
func (h *Hub) Broadcast(ev domain.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.events <- ev:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Debug("realtime subscriber lagging, event dropped", zap.Uint64("subscription", sub.id))
		}
	}
	return delivered
}

// Publish satisfies usecase.EventPublisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, ev domain.Event) error {
	h.Broadcast(ev)
	return nil
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close terminates all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.events)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.events)
	}
}

// Events is closed when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.id != 0 {
			s.hub.remove(s.id)
		}
	})
}

func (s *Subscription) wants(ev domain.Event) bool {
	for _, c := range ev.Channels {
		if _, ok := s.channels[c]; ok {
			return true
		}
	}
	return false
}
