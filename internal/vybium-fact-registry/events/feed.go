package events

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// Feed delivers records to in-process subscribers. Emitting only queues the
// record; a single goroutine hands records to subscribers in emit order, so a
// slow or abandoned subscriber never stalls the caller.
type Feed struct {
	pages      event.Feed
	statements event.Feed
	scope      event.SubscriptionScope

	mu     sync.Mutex
	queue  []any
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewFeed creates a feed with no subscribers. Close stops its delivery
// goroutine.
func NewFeed() *Feed {
	f := &Feed{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go f.loop()
	return f
}

// SubscribePages delivers PageRegistered records to ch
func (f *Feed) SubscribePages(ch chan<- PageRegistered) event.Subscription {
	return f.scope.Track(f.pages.Subscribe(ch))
}

// SubscribeStatements delivers StatementRegistered records to ch
func (f *Feed) SubscribeStatements(ch chan<- StatementRegistered) event.Subscription {
	return f.scope.Track(f.statements.Subscribe(ch))
}

// EmitPage queues ev for page subscribers
func (f *Feed) EmitPage(_ context.Context, ev PageRegistered) error {
	f.enqueue(ev)
	return nil
}

// EmitStatement queues ev for statement subscribers
func (f *Feed) EmitStatement(_ context.Context, ev StatementRegistered) error {
	f.enqueue(ev)
	return nil
}

func (f *Feed) enqueue(ev any) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, ev)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Feed) loop() {
	defer close(f.done)
	for {
		f.mu.Lock()
		batch := f.queue
		f.queue = nil
		closed := f.closed
		f.mu.Unlock()

		for _, ev := range batch {
			switch ev := ev.(type) {
			case PageRegistered:
				f.pages.Send(ev)
			case StatementRegistered:
				f.statements.Send(ev)
			}
		}
		if closed {
			return
		}
		if len(batch) == 0 {
			<-f.wake
		}
	}
}

// Close unsubscribes everyone and stops delivery. Records still queued are
// dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	// Unsubscribing releases a Send blocked on an undrained channel.
	f.scope.Close()
	select {
	case f.wake <- struct{}{}:
	default:
	}
	<-f.done
}
