// Package events is an in-process publish/subscribe bus for session and
// timer changes.
package events

import (
	"sync"
	"time"
)

type Topic string

const (
	SessionStarted Topic = "sessionStarted"
	SessionEnded   Topic = "sessionEnded"
	TimerUpdated   Topic = "timerUpdated"
)

type Event struct {
	Topic     Topic
	SessionID string
	UserID    string
	At        time.Time
}

type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus delivers events synchronously on the publisher's goroutine.
// Handlers must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers fn for each topic and returns a function that
// removes the registration.
func (b *Bus) Subscribe(fn Handler, topics ...Topic) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], subscription{id: id, fn: fn})
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range topics {
				subs := b.subs[t]
				for i, s := range subs {
					if s.id == id {
						b.subs[t] = append(subs[:i:i], subs[i+1:]...)
						break
					}
				}
			}
		})
	}
}

// Publish is safe on a nil Bus.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Topic]))
	for _, s := range b.subs[e.Topic] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
