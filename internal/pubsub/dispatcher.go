// Package pubsub fans values out to in-process subscribers over buffered
// channels. Publishing never blocks: a subscriber whose buffer is full misses
// the value.
package pubsub

import (
	"context"
	"sync"
)

// DefaultBufferSize is used when NewDispatcher is given a non-positive size.
const DefaultBufferSize = 16

// Dispatcher delivers published values to every accepting subscriber.
type Dispatcher[T any] struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber[T]
	nextID      int64
	bufferSize  int
}

type subscriber[T any] struct {
	accept func(T) bool
	stream chan T
}

// NewDispatcher creates a dispatcher whose subscriber channels hold bufferSize values.
func NewDispatcher[T any](bufferSize int) *Dispatcher[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher[T]{
		subscribers: make(map[int64]*subscriber[T]),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber until ctx ends or cleanup runs. A nil
// accept receives every value. The returned channel is never closed.
func (d *Dispatcher[T]) Subscribe(ctx context.Context, accept func(T) bool) (<-chan T, func()) {
	sub := &subscriber[T]{
		accept: accept,
		stream: make(chan T, d.bufferSize),
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = sub
	d.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return sub.stream, cleanup
}

// Publish offers value to every accepting subscriber without blocking.
func (d *Dispatcher[T]) Publish(value T) {
	d.mu.RLock()
	if len(d.subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	targets := make([]chan T, 0, len(d.subscribers))
	for _, sub := range d.subscribers {
		if sub.accept != nil && !sub.accept(value) {
			continue
		}
		targets = append(targets, sub.stream)
	}
	d.mu.RUnlock()

	for _, stream := range targets {
		select {
		case stream <- value:
		default:
		}
	}
}

// Subscribers reports how many subscribers are registered.
func (d *Dispatcher[T]) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
