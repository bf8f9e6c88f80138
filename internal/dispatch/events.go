package dispatch

import (
	"sync"
	"time"
)

type EventType string

const (
	EventCallStarted EventType = "call_started"
	EventUtterance   EventType = "utterance"
	EventAction      EventType = "action"
	EventContext     EventType = "context"
	EventReply       EventType = "reply"
	EventCallEnded   EventType = "call_ended"
)

// CallEvent is one observable step of a dispatch pass, published for the
// live monitor feed.
type CallEvent struct {
	Type   EventType `json:"type"`
	CallID string    `json:"call_id"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// EventBus fans call events out to subscribers. Slow subscribers drop
// events rather than stalling a live call.
type EventBus struct {
	mu   sync.Mutex
	subs map[chan CallEvent]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan CallEvent]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// to release the channel.
func (b *EventBus) Subscribe() (<-chan CallEvent, func()) {
	ch := make(chan CallEvent, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *EventBus) Publish(ev CallEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
