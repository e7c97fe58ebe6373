// Package event 提供进程内的发布/订阅机制，让协调器之外的观察者
// （日志、UI、持久化触发器）在不耦合的情况下响应编排事件。
package event

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Event 是一次编排事件。
type Event struct {
	Type string
	Data map[string]any
	At   time.Time
}

// New builds an event stamped with the current time.
func New(eventType string, data map[string]any) Event {
	return Event{Type: eventType, Data: data, At: time.Now().UTC()}
}

// Handler 为立即订阅者：在发布线程内按订阅顺序同步执行。
type Handler func(Event)

// AsyncHandler 为延迟订阅者：同一事件的延迟订阅者彼此并发执行，
// 但一定在全部立即订阅者完成之后开始。
type AsyncHandler func(context.Context, Event)

type subscription struct {
	id string
	h  Handler
}

type asyncSubscription struct {
	id string
	h  AsyncHandler
}

// Bus dispatches events to immediate and deferred subscribers. A failing
// subscriber never prevents the others from running: panics are recovered,
// logged and swallowed.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]subscription
	deferred map[string][]asyncSubscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
		deferred: make(map[string][]asyncSubscription),
	}
}

// Subscribe registers an immediate subscriber for the event type and returns
// a subscription id for Unsubscribe.
func (b *Bus) Subscribe(eventType string, h Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.subscriptionID(eventType)
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, h: h})
	return id
}

// SubscribeAsync registers a deferred subscriber for the event type and
// returns a subscription id for Unsubscribe.
func (b *Bus) SubscribeAsync(eventType string, h AsyncHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.subscriptionID(eventType)
	b.deferred[eventType] = append(b.deferred[eventType], asyncSubscription{id: id, h: h})
	return id
}

// Unsubscribe removes one subscription by id. Unknown ids are a no-op.
// 之后发布的事件不再送达该订阅者；正在进行的投递不受影响。
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
	for eventType, subs := range b.deferred {
		for i, sub := range subs {
			if sub.id == id {
				b.deferred[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish 先按订阅顺序执行立即订阅者，再并发执行延迟订阅者，
// 等全部延迟订阅者结束后返回。
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	immediate := append([]subscription(nil), b.handlers[e.Type]...)
	deferred := append([]asyncSubscription(nil), b.deferred[e.Type]...)
	b.mu.RUnlock()

	for _, sub := range immediate {
		b.invoke(e, sub.h)
	}

	var wg sync.WaitGroup
	for _, sub := range deferred {
		wg.Add(1)
		go func(h AsyncHandler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[event] deferred subscriber panic for %s: %v", e.Type, r)
				}
			}()
			h(ctx, e)
		}(sub.h)
	}
	wg.Wait()
}

// Clear drops every subscription, mainly for tests.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]subscription)
	b.deferred = make(map[string][]asyncSubscription)
}

// subscriptionID 生成订阅标识，调用方需持有写锁。
func (b *Bus) subscriptionID(eventType string) string {
	b.nextID++
	return fmt.Sprintf("%s-%d", eventType, b.nextID)
}

func (b *Bus) invoke(e Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[event] subscriber panic for %s: %v", e.Type, r)
		}
	}()
	h(e)
}
