package goch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mileage/mq/mq"
)

type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull   QueueError = "message queue is full"
	ErrQueueClosed QueueError = "message queue is closed"
)

const (
	minSubscriberBuffer = 16
	publishTimeout      = time.Second
)

type subscriber[T any] struct {
	topic uuid.UUID
	ch    chan T
}

// fanOutQueueCore delivers every published message to each subscriber of
// the message's topic. A subscriber that is not keeping up loses messages
// instead of stalling the publisher.
type fanOutQueueCore[T mq.TopicProvider] struct {
	publishChan chan T
	subscribers map[uuid.UUID]subscriber[T]
	mu          sync.RWMutex
	quit        chan struct{}
	stopOnce    sync.Once
	bufferSize  int
}

func newFanOutQueueCore[T mq.TopicProvider](bufferSize int) *fanOutQueueCore[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	q := &fanOutQueueCore[T]{
		publishChan: make(chan T, bufferSize),
		subscribers: make(map[uuid.UUID]subscriber[T]),
		quit:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	go q.fanOutRoutine()
	return q
}

func (q *fanOutQueueCore[T]) fanOutRoutine() {
	for {
		select {
		case msg := <-q.publishChan:
			q.dispatch(msg)
		case <-q.quit:
			q.mu.Lock()
			for id, sub := range q.subscribers {
				close(sub.ch)
				delete(q.subscribers, id)
			}
			q.mu.Unlock()
			return
		}
	}
}

func (q *fanOutQueueCore[T]) dispatch(msg T) {
	topic := msg.GetTopic()
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, sub := range q.subscribers {
		if sub.topic != uuid.Nil && sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

func (q *fanOutQueueCore[T]) Publish(msg T) error {
	select {
	case <-q.quit:
		return ErrQueueClosed
	default:
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case q.publishChan <- msg:
		return nil
	case <-q.quit:
		return ErrQueueClosed
	case <-timer.C:
		return ErrQueueFull
	}
}

func (q *fanOutQueueCore[T]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan T, error) {
	select {
	case <-q.quit:
		return uuid.Nil, nil, ErrQueueClosed
	default:
	}

	size := q.bufferSize
	if size < minSubscriberBuffer {
		size = minSubscriberBuffer
	}
	id := uuid.New()
	ch := make(chan T, size)

	q.mu.Lock()
	q.subscribers[id] = subscriber[T]{topic: topic, ch: ch}
	q.mu.Unlock()
	return id, ch, nil
}

func (q *fanOutQueueCore[T]) DeSubscribe(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, ok := q.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber %s not found", id)
	}
	delete(q.subscribers, id)
	close(sub.ch)
	return nil
}

func (q *fanOutQueueCore[T]) Stop() {
	q.stopOnce.Do(func() { close(q.quit) })
}

func (q *fanOutQueueCore[T]) subscriberCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.subscribers)
}
