package server

import (
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event types pushed to /ws clients.
const (
	EventRedraw = "redraw"
	EventError  = "error"
)

// Event is one live-update message.
type Event struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
}

// Broker fans out events to all connected WebSocket clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends evt to every subscriber without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
