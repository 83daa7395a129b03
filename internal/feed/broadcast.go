package feed

import (
	"log/slog"
	"sync"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Subscription is one subscriber's view of the broadcast. C is closed when
// the subscription ends, either by Unsubscribe or because the subscriber
// fell behind.
type Subscription struct {
	C <-chan ir.Event

	id uint64
	ch chan ir.Event
}

// Broadcaster implements ledger.Publisher.
//
// Publish never blocks: a subscriber whose buffer is full is dropped and
// its channel closed, so a stalled websocket cannot hold up the ledger.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	logger *slog.Logger
}

// NewBroadcaster creates a broadcaster. buffer <= 0 means DefaultBuffer.
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan ir.Event, b.buffer)
	sub := &Subscription{C: ch, id: b.nextID, ch: ch}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe ends sub. Safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.id)
}

// Len returns the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers events to every subscriber in order.
func (b *Broadcaster) Publish(events []ir.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		for _, e := range events {
			select {
			case sub.ch <- e:
				continue
			default:
			}
			b.logger.Warn("feed subscriber too slow, dropped",
				"subscriber", id,
				"seq", e.Seq,
			)
			b.removeLocked(id)
			break
		}
	}
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.subs {
		b.removeLocked(id)
	}
}

func (b *Broadcaster) removeLocked(id uint64) {
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}
