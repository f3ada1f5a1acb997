package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"lodging_booking/pkg/events"
)

type RetryItem struct {
	Event      events.BookingEvent
	RetryAt    time.Time
	RetryCount int
	MaxRetries int
}

// Queue holds booking events whose publish failed, in arrival order.
type Queue struct {
	items []*RetryItem
	mu    sync.Mutex
	now   func() time.Time
}

func NewQueue() *Queue {
	return &Queue{
		items: make([]*RetryItem, 0),
		now:   time.Now,
	}
}

func (q *Queue) Enqueue(item *RetryItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Dequeue removes and returns the first item that is due, or nil.
func (q *Queue) Dequeue() *RetryItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for i, item := range q.items {
		if !item.RetryAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item
		}
	}
	return nil
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type Publisher interface {
	Publish(ctx context.Context, event events.BookingEvent) error
}

// RetryingPublisher publishes through inner and parks failures in a Queue
// for Drain to retry with linear backoff.
type RetryingPublisher struct {
	inner      Publisher
	queue      *Queue
	maxRetries int
	backoff    time.Duration
}

func NewRetryingPublisher(inner Publisher, q *Queue, maxRetries int, backoff time.Duration) *RetryingPublisher {
	return &RetryingPublisher{inner: inner, queue: q, maxRetries: maxRetries, backoff: backoff}
}

// Publish never fails: an undeliverable event is queued instead.
func (p *RetryingPublisher) Publish(ctx context.Context, event events.BookingEvent) error {
	if err := p.inner.Publish(ctx, event); err != nil {
		log.Printf("Publish of %s failed, queued for retry: %v", event.Type, err)
		p.queue.Enqueue(&RetryItem{
			Event:      event,
			RetryAt:    p.queue.now().Add(p.backoff),
			RetryCount: 0,
			MaxRetries: p.maxRetries,
		})
	}
	return nil
}

// DrainOnce retries every due item and returns how many were delivered.
func (p *RetryingPublisher) DrainOnce(ctx context.Context) int {
	delivered := 0
	for {
		item := p.queue.Dequeue()
		if item == nil {
			return delivered
		}
		if err := p.inner.Publish(ctx, item.Event); err != nil {
			item.RetryCount++
			if item.RetryCount >= item.MaxRetries {
				log.Printf("Dropping %s for reservation %s after %d retries: %v",
					item.Event.Type, item.Event.ReservationUid, item.RetryCount, err)
				continue
			}
			item.RetryAt = p.queue.now().Add(p.backoff * time.Duration(item.RetryCount+1))
			p.queue.Enqueue(item)
			continue
		}
		delivered++
	}
}

// Drain runs DrainOnce every interval until ctx is done.
func (p *RetryingPublisher) Drain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.DrainOnce(ctx); n > 0 {
				log.Printf("Retried %d queued events", n)
			}
		}
	}
}
