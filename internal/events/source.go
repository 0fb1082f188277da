// Package events provides typed event sources with explicit subscriptions.
//
// A Source delivers every emitted value to its current subscribers,
// synchronously and in subscription order, on the emitting goroutine. Values
// emitted by one goroutine therefore reach a subscriber in the order they were
// emitted. Independent sources carry no ordering relative to each other.
package events

import (
	"sync"
)

// Subscription is the teardown handle returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }

// Source fans a stream of values out to subscribers.
// The zero value is ready to use.
type Source[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []handler[T]
}

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn for every subsequent Emit. The handler stays
// registered until the returned Subscription is unsubscribed.
func (s *Source[T]) Subscribe(fn func(T)) Subscription {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handler[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() { s.remove(id) })
	})
}

func (s *Source[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers v to every subscriber registered at the time of the call.
func (s *Source[T]) Emit(v T) {
	s.mu.RLock()
	snapshot := s.handlers
	s.mu.RUnlock()

	for _, h := range snapshot {
		h.fn(v)
	}
}

// Len returns the number of active subscribers.
func (s *Source[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Group collects subscriptions so they can be torn down together.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

// Add records sub for a later Unsubscribe.
func (g *Group) Add(sub Subscription) {
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
}

// Unsubscribe tears down every collected subscription, newest first.
func (g *Group) Unsubscribe() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Unsubscribe()
	}
}
