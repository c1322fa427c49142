// Package hub fans out state payloads to live subscribers.
//
// Each subscriber owns a bounded outbox. Publish never waits on a subscriber:
// when an outbox is full its oldest payload is dropped to make room, which is
// safe because every payload is a complete state and the newest one wins.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBuffer is the outbox size used when none is configured
const DefaultBuffer = 16

// Hub is a registry of subscribers sharing one payload stream
type Hub[T any] struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]*Subscription[T]
	latest    T
	hasLatest bool
	closed    bool
	buffer    int
	logger    *slog.Logger
}

// Option configures a Hub
type Option func(*config)

type config struct {
	buffer int
	logger *slog.Logger
}

// WithBuffer sets the per-subscriber outbox size
func WithBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates an empty hub
func New[T any](opts ...Option) *Hub[T] {
	c := &config{buffer: DefaultBuffer, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return &Hub[T]{
		subs:   make(map[uuid.UUID]*Subscription[T]),
		buffer: c.buffer,
		logger: c.logger,
	}
}

// Subscription is one subscriber's handle
type Subscription[T any] struct {
	ID      uuid.UUID
	ch      chan T
	hub     *Hub[T]
	dropped int
}

// C delivers payloads. It is closed on Unsubscribe or when the hub closes.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.hub.Unsubscribe(s.ID)
}

// Subscribe registers a subscriber. The most recently published payload, if
// any, is already waiting in the returned subscription's outbox.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		ID:  uuid.New(),
		ch:  make(chan T, h.buffer),
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	if h.hasLatest {
		sub.ch <- h.latest
	}
	h.subs[sub.ID] = sub

	h.logger.Debug("Subscriber registered", "subscriber", sub.ID, "subscribers", len(h.subs))
	return sub
}

// Publish records payload as the latest state and offers it to every
// subscriber without blocking
func (h *Hub[T]) Publish(payload T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = payload
	h.hasLatest = true

	for _, sub := range h.subs {
		sub.offer(payload, h.logger)
	}
}

// offer enqueues payload, evicting the oldest queued payload if the outbox is
// full. Only the hub sends on ch and it holds h.mu while doing so, so after
// one eviction there is room.
func (s *Subscription[T]) offer(payload T, logger *slog.Logger) {
	select {
	case s.ch <- payload:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped++
		if s.dropped == 1 || s.dropped%100 == 0 {
			logger.Warn("Subscriber is lagging, dropping stale payloads", "subscriber", s.ID, "dropped", s.dropped)
		}
	default:
	}

	select {
	case s.ch <- payload:
	default:
	}
}

// Unsubscribe removes the subscriber and closes its outbox. Unknown or
// already removed ids are ignored.
func (h *Hub[T]) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)

	h.logger.Debug("Subscriber removed", "subscriber", id, "subscribers", len(h.subs))
}

// Len returns the number of subscribers
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes every subscriber. Later Subscribe calls return closed
// subscriptions and Publish does nothing.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.logger.Info("Broadcast hub closed")
}
