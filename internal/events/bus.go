// Package events provides a small fan-out bus for in-process notifications.
package events

import (
	"sync"
	"sync/atomic"
)

// Bus delivers each published value to every current subscriber, in
// subscription order. Publish never blocks: a subscriber whose buffer is full
// misses the value and the drop is counted.
type Bus[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    []subscriber[T]
	dropped atomic.Uint64
	onDrop  func(T)
}

type subscriber[T any] struct {
	id uint64
	ch chan T
}

// NewBus returns a bus. onDrop, if non-nil, is called for each dropped value.
func NewBus[T any](onDrop func(T)) *Bus[T] {
	return &Bus[T]{onDrop: onDrop}
}

// Subscribe registers a listener with the given channel buffer. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, ch: ch})
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					close(s.ch)
					return
				}
			}
		})
	}
}

// Publish fans v out to all subscribers.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- v:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop(v)
			}
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }
