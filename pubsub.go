package xrpl

import (
	"sync"
	"sync/atomic"
)

// PubSubQueue fans messages out to subscribers. Each subscriber receives
// messages one at a time, in broadcast order, on its own goroutine.
type PubSubQueue[T any] interface {
	On(func(message T)) (cleanup func())
	Broadcast(message T)
	Len() int
	Close()
}

const subscriberBuffer = 100

type subscriber[T any] struct {
	id       int
	messages chan T
	done     chan struct{}
	once     sync.Once
	callback func(message T)
}

func (s *subscriber[T]) stop() {
	s.once.Do(func() { close(s.done) })
}

type queue[T any] struct {
	subscribers      map[int]*subscriber[T]
	nextSubscriberID int
	mu               sync.RWMutex
	closed           atomic.Bool
}

func NewQueue[T any]() PubSubQueue[T] {
	return &queue[T]{
		subscribers: make(map[int]*subscriber[T]),
	}
}

func (q *queue[T]) On(callback func(message T)) (cleanup func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.Load() {
		return func() {}
	}

	id := q.nextSubscriberID
	q.nextSubscriberID++

	sub := &subscriber[T]{
		id:       id,
		messages: make(chan T, subscriberBuffer),
		done:     make(chan struct{}),
		callback: callback,
	}

	q.subscribers[id] = sub

	go func() {
		for {
			select {
			case msg := <-sub.messages:
				select {
				case <-sub.done:
					return
				default:
				}
				sub.callback(msg)
			case <-sub.done:
				return
			}
		}
	}()

	return func() {
		q.mu.Lock()
		delete(q.subscribers, id)
		q.mu.Unlock()
		sub.stop()
	}
}

// Broadcast blocks while a subscriber's buffer is full, so a slow subscriber
// applies back-pressure instead of seeing messages out of order.
func (q *queue[T]) Broadcast(message T) {
	if q.closed.Load() {
		return
	}

	q.mu.RLock()
	subs := make([]*subscriber[T], 0, len(q.subscribers))
	for _, sub := range q.subscribers {
		subs = append(subs, sub)
	}
	q.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.messages <- message:
		case <-sub.done:
		}
	}
}

func (q *queue[T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.subscribers)
}

func (q *queue[T]) Close() {
	if q.closed.Swap(true) {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, sub := range q.subscribers {
		sub.stop()
	}
	q.subscribers = make(map[int]*subscriber[T])
}
