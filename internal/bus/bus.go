// Package bus is the process-wide publish/subscribe channel decoupling
// the cockpit's producers from its consumers.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// Kind identifies an event type on the bus.
type Kind int

const (
	KindEntryAppended Kind = iota
	KindBatchAvailable
	KindAdviceReady
)

// Event is any message carried by the bus.
type Event interface {
	Kind() Kind
}

// EntryAppended is published after a new reading lands in the entry store.
type EntryAppended struct {
	Entry domain.GlucoseEntry
}

func (EntryAppended) Kind() Kind { return KindEntryAppended }

// BatchAvailable is published when a new recommendation batch has been
// appended to the history log.
type BatchAvailable struct {
	Batch domain.RecommendationBatch
}

func (BatchAvailable) Kind() Kind { return KindBatchAvailable }

// AdviceReady is published when an analysis run finished, whether or
// not it produced a suggestion.
type AdviceReady struct {
	Advice *domain.Advice
}

func (AdviceReady) Kind() Kind { return KindAdviceReady }

// Handler receives events synchronously on the publisher's goroutine.
type Handler func(Event)

// Subscription is the handle a subscriber uses to detach.
type Subscription struct {
	bus      *Bus
	kind     Kind
	handler  Handler
	canceled atomic.Bool
}

// Cancel detaches the subscriber. It cannot interrupt a delivery that
// is already in progress but prevents all future ones, and is safe to
// call from any goroutine, including from inside a handler.
func (s *Subscription) Cancel() {
	if s == nil || s.canceled.Swap(true) {
		return
	}
	s.bus.remove(s)
}

// Bus delivers events to subscribers in publish order, synchronously
// with respect to the publisher. Subscribers registered after a
// publish do not see that event.
type Bus struct {
	mu   sync.Mutex
	subs map[Kind][]*Subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]*Subscription)}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) *Subscription {
	sub := &Subscription{bus: b, kind: kind, handler: handler}
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()
	return sub
}

// Publish hands the event to every live subscriber of its kind before
// returning. Handlers run outside the bus lock so they may subscribe
// or cancel during delivery.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	registered := b.subs[event.Kind()]
	snapshot := make([]*Subscription, len(registered))
	copy(snapshot, registered)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.canceled.Load() {
			continue
		}
		sub.handler(event)
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.kind]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.kind] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
