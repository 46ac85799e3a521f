// Package events is a small typed publish/subscribe layer. Each event kind
// has its own Channel with a fixed payload type, so listeners never have to
// type-switch on what they receive.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Kind names an event channel. The set is closed: only the constants below
// are emitted.
type Kind string

const (
	// KindExpiration fires when the platform revokes background time for a task.
	KindExpiration Kind = "expiration"
)

// ExpirationEvent is the payload of KindExpiration. TaskID is empty when the
// platform could not attribute the expiration to a task.
type ExpirationEvent struct {
	TaskID string `json:"taskId"`
}

// Subscription identifies one listener on one channel.
type Subscription struct {
	kind Kind
	id   uint64
}

// Kind returns the channel the subscription belongs to.
func (s Subscription) Kind() Kind { return s.kind }

// PanicHandler receives panics recovered from listeners.
type PanicHandler func(kind Kind, recovered any)

var nextID atomic.Uint64

// Channel fans an event out to its listeners in subscription order.
type Channel[T any] struct {
	kind    Kind
	onPanic PanicHandler

	mu        sync.RWMutex
	listeners *linkedhashmap.Map // uint64 -> func(T)
}

// NewChannel creates an empty channel for kind. onPanic may be nil, in which
// case listener panics are swallowed.
func NewChannel[T any](kind Kind, onPanic PanicHandler) *Channel[T] {
	return &Channel[T]{
		kind:      kind,
		onPanic:   onPanic,
		listeners: linkedhashmap.New(),
	}
}

// Kind returns the kind this channel carries.
func (c *Channel[T]) Kind() Kind { return c.kind }

// Subscribe adds fn and returns a handle for Unsubscribe.
func (c *Channel[T]) Subscribe(fn func(T)) Subscription {
	if fn == nil {
		panic(fmt.Sprintf("events: nil listener for %s", c.kind))
	}
	sub := Subscription{kind: c.kind, id: nextID.Add(1)}

	c.mu.Lock()
	c.listeners.Put(sub.id, fn)
	c.mu.Unlock()

	return sub
}

// Unsubscribe removes the listener. It reports false if sub was not
// subscribed to this channel.
func (c *Channel[T]) Unsubscribe(sub Subscription) bool {
	if sub.kind != c.kind {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.listeners.Get(sub.id); !ok {
		return false
	}
	c.listeners.Remove(sub.id)
	return true
}

// Len returns the number of listeners.
func (c *Channel[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listeners.Size()
}

// Publish delivers ev to a snapshot of the current listeners and returns how
// many were called. Listeners run synchronously on the caller's goroutine;
// one listener panicking does not prevent delivery to the rest.
func (c *Channel[T]) Publish(ev T) int {
	c.mu.RLock()
	values := c.listeners.Values()
	c.mu.RUnlock()

	for _, v := range values {
		c.deliver(v.(func(T)), ev)
	}
	return len(values)
}

func (c *Channel[T]) deliver(fn func(T), ev T) {
	defer func() {
		if p := recover(); p != nil && c.onPanic != nil {
			c.onPanic(c.kind, p)
		}
	}()
	fn(ev)
}
