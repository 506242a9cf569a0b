package cache

import (
	"sync"

	"supptrace/domain/core"
	"supptrace/internal"
)

// InvalidationReason says why a cached view became stale
type InvalidationReason string

const (
	ReasonReportWritten InvalidationReason = "report_written"
	ReasonPeriodChanged InvalidationReason = "period_changed"
)

// Invalidation is the event emitted when downstream caches must drop
// anything derived from a (user, supplement) pair
type Invalidation struct {
	UserID       core.UserID
	SupplementID core.UserSupplementID
	Reason       InvalidationReason
}

// InvalidationBus fans invalidation events out to subscribers. Explicit
// message passing rather than a shared in-process flag: the dashboard read
// path consumes the same events any other cache would.
type InvalidationBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Invalidation
	nextID int
	log    *internal.Logger
}

// NewInvalidationBus creates an event bus
func NewInvalidationBus(log *internal.Logger) *InvalidationBus {
	return &InvalidationBus{
		subs: make(map[int]chan Invalidation),
		log:  log,
	}
}

// Subscribe registers a consumer. The returned cancel func must be called
// when the consumer goes away.
func (b *InvalidationBus) Subscribe(buffer int) (<-chan Invalidation, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Invalidation, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
// A subscriber with a full buffer misses the event; caches treat events
// as hints and must tolerate that.
func (b *InvalidationBus) Publish(ev Invalidation) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Debug("invalidation subscriber full, dropping event for %s", ev.SupplementID)
		}
	}
}

// SubscriberCount reports the current number of subscribers
func (b *InvalidationBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
