// Package realtime mirrors store changes to connected clients. Hub fans
// change events out per plan on the server; Reconciler keeps a client's local
// view consistent with them.
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

const (
	defaultSubscriberBuffer = 64
	defaultDedupeWindow     = 512
)

// HubOption customizes Hub construction.
type HubOption func(*Hub)

// WithSubscriberBuffer overrides the buffered channel size per subscriber.
func WithSubscriberBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.buffer = size
		}
	}
}

// WithDedupeWindow controls how many recent event ids are remembered.
func WithDedupeWindow(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.dedupeWindow = size
		}
	}
}

// Hub delivers change events to the subscribers of each plan with bounded
// buffers and event-id deduplication.
type Hub struct {
	mu           sync.RWMutex
	subscribers  map[uuid.UUID]map[*subscriber]struct{}
	recentIDs    map[string]struct{}
	recentOrder  []string
	buffer       int
	dedupeWindow int
	log          zerolog.Logger
}

// NewHub constructs a hub with defaults.
func NewHub(log zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		subscribers:  make(map[uuid.UUID]map[*subscriber]struct{}),
		recentIDs:    make(map[string]struct{}),
		buffer:       defaultSubscriberBuffer,
		dedupeWindow: defaultDedupeWindow,
		log:          log.With().Str("component", "hub").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.recentOrder = make([]string, 0, h.dedupeWindow)
	return h
}

// Subscription is an active plan subscription.
type Subscription struct {
	Events <-chan models.ChangeEvent
	cancel func()
}

// Close terminates the subscription and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Subscribe registers for a plan's events. With tables given, only events on
// those tables are delivered.
func (h *Hub) Subscribe(planID uuid.UUID, tables ...string) Subscription {
	sub := newSubscriber(h.buffer, tables, h.log)
	h.mu.Lock()
	if h.subscribers[planID] == nil {
		h.subscribers[planID] = make(map[*subscriber]struct{})
	}
	h.subscribers[planID][sub] = struct{}{}
	h.mu.Unlock()
	return Subscription{
		Events: sub.ch,
		cancel: func() { h.remove(planID, sub) },
	}
}

// Subscribers counts live subscriptions for a plan.
func (h *Hub) Subscribers(planID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[planID])
}

// Publish routes one event to the plan's subscribers.
func (h *Hub) Publish(ev models.ChangeEvent) {
	if ev.ID != "" && h.isDuplicate(ev.ID) {
		return
	}
	h.mu.RLock()
	live := h.subscribers[ev.PlanID]
	subs := make([]*subscriber, 0, len(live))
	for sub := range live {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// Run feeds the hub from the store until ctx is done.
func (h *Hub) Run(ctx context.Context, feed store.Feed) error {
	h.log.Info().Msg("change feed started")
	err := feed.Listen(ctx, h.Publish)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for planID, subs := range h.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(h.subscribers, planID)
	}
}

func (h *Hub) remove(planID uuid.UUID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subscribers[planID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, planID)
		}
	}
	sub.close()
}

func (h *Hub) isDuplicate(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.recentIDs[id]; ok {
		return true
	}
	h.recentIDs[id] = struct{}{}
	h.recentOrder = append(h.recentOrder, id)
	if len(h.recentOrder) > h.dedupeWindow {
		oldest := h.recentOrder[0]
		h.recentOrder = h.recentOrder[1:]
		delete(h.recentIDs, oldest)
	}
	return false
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan models.ChangeEvent
	tables map[string]bool
	closed bool
	log    zerolog.Logger
}

func newSubscriber(capacity int, tables []string, log zerolog.Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberBuffer
	}
	s := &subscriber{ch: make(chan models.ChangeEvent, capacity), log: log}
	if len(tables) > 0 {
		s.tables = make(map[string]bool, len(tables))
		for _, t := range tables {
			s.tables[t] = true
		}
	}
	return s
}

// deliver never blocks. On overflow the oldest queued event is dropped, so
// the client sees the newest state.
func (s *subscriber) deliver(ev models.ChangeEvent) {
	if s.tables != nil && !s.tables[ev.Table] {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case dropped := <-s.ch:
		s.log.Warn().
			Str("plan_id", dropped.PlanID.String()).
			Str("table", dropped.Table).
			Str("event_id", dropped.ID).
			Msg("subscriber queue overflow, dropped oldest event")
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
