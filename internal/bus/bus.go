// Package bus is the typed in-process pub/sub for orchestration lifecycle
// events. Publish never blocks: a subscriber that falls behind loses events
// rather than stalling the publisher (at-most-once is the contract).
package bus

import (
	"sync"
	"time"

	"conductor/internal/logging"
)

// Kind is the closed set of event kinds.
type Kind string

const (
	TaskCreated        Kind = "TaskCreated"
	TaskCompleted      Kind = "TaskCompleted"
	AgentStatusChanged Kind = "AgentStatusChanged"
	ProposalSubmitted  Kind = "ProposalSubmitted"
	WorkflowStarted    Kind = "WorkflowStarted"
	WorkflowCompleted  Kind = "WorkflowCompleted"
)

// Event is one lifecycle notification.
type Event struct {
	Kind    Kind
	TaskID  string
	AgentID string
	Payload map[string]interface{}
	At      time.Time
}

// Subscription is one reader's filtered view of the stream. Events arrives
// in publish order for the subscribed kinds; the channel closes when either
// the subscription or the bus shuts down.
type Subscription struct {
	Events <-chan Event

	bus   *Bus
	ch    chan Event
	kinds map[Kind]bool
	once  sync.Once
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Bus fans events out to subscribers. The subscriber set is copy-on-write so
// Publish takes no lock beyond a pointer read.
type Bus struct {
	mu     sync.Mutex // guards subs replacement and closed
	subs   []*Subscription
	closed bool

	dropped uint64
}

// subscriberBuffer bounds how far a slow reader can lag before losing events.
const subscriberBuffer = 256

// New creates an event bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe opens a subscription filtered to the given kinds (all kinds when
// none are given). Subscribers opened before a publish receive it; opened
// after, they do not.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	sub := &Subscription{
		bus:   b,
		ch:    make(chan Event, subscriberBuffer),
		kinds: make(map[Kind]bool, len(kinds)),
	}
	sub.Events = sub.ch
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	next := make([]*Subscription, len(b.subs)+1)
	copy(next, b.subs)
	next[len(b.subs)] = sub
	b.subs = next
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if !b.closed {
		next := make([]*Subscription, 0, len(b.subs))
		for _, s := range b.subs {
			if s != sub {
				next = append(next, s)
			}
		}
		b.subs = next
	}
	b.mu.Unlock()

	sub.once.Do(func() { close(sub.ch) })
}

// Publish delivers the event to every current subscriber interested in its
// kind. Never blocks; a full subscriber buffer drops the event for that
// subscriber only.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.mu.Lock()
			b.dropped++
			n := b.dropped
			b.mu.Unlock()
			if n%100 == 1 {
				logging.Get(logging.CategoryBus).Warn("slow subscriber, %d events dropped so far", n)
			}
		}
	}
}

// Close shuts the bus down and closes all subscriber channels; readers then
// observe end-of-stream.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}
