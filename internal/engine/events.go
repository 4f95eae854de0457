package engine

import (
	"sync"
	"time"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Event is a status transition of a document request.
type Event struct {
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"error_code,omitempty"`
	Time      time.Time `json:"time"`
}

// EventBroker fans out per-request status events to subscribers. It is safe
// for concurrent use.
//
// Closed topics are retained as markers so that subscribers arriving after a
// request finished receive a closed channel instead of blocking forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives events for the given request and
// an unsubscribe function. If the request already finished (Close was
// called), the returned channel is immediately closed.
func (b *EventBroker) Subscribe(requestID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[requestID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan Event)}
		b.topics[requestID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of the given request.
// Events are dropped for subscribers whose buffers are full.
func (b *EventBroker) Publish(requestID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[requestID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close signals that no more events will be published for the given request.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *EventBroker) Close(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[requestID]
	if !ok {
		b.topics[requestID] = &eventTopic{subs: make(map[int]chan Event), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
