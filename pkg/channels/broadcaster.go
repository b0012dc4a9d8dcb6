package channels

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Broadcaster copies every published value to a fixed set of subscriber
// channels from a single goroutine, so each subscriber sees values in
// publish order. Subscribers are registered before Start. A subscriber whose
// channel stays full for longer than its timeout misses that value; one whose
// channel was closed is skipped from then on. Subscriber channels are never
// closed by the Broadcaster.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   []*subscriber[T]
	queue  chan T
	closed bool
	done   chan struct{}
}

type subscriber[T any] struct {
	ch      chan<- T
	timeout time.Duration
	gone    atomic.Bool
	missed  atomic.Int64
}

func (s *subscriber[T]) deliver(msg T) {
	if s.gone.Load() {
		s.missed.Add(1)
		return
	}

	err := SendWithin(s.ch, msg, s.timeout)
	if err == nil {
		return
	}

	s.missed.Add(1)

	if errors.Is(err, ErrChannelClosed) {
		s.gone.Store(true)
	}
}

// NewBroadcaster returns an idle Broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{done: make(chan struct{})}
}

// Subscribe registers ch. A zero timeout drops values ch has no room for.
func (b *Broadcaster[T]) Subscribe(ch chan<- T, timeout time.Duration) error {
	if ch == nil {
		return ErrNilChannel
	}

	if timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", timeout)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil || b.closed {
		return errors.New("broadcaster already started")
	}

	b.subs = append(b.subs, &subscriber[T]{ch: ch, timeout: timeout})

	return nil
}

// Start begins delivery. backlog sizes the queue between Publish and the
// delivery goroutine.
func (b *Broadcaster[T]) Start(backlog int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.queue != nil || b.closed:
		return errors.New("broadcaster already started")
	case len(b.subs) == 0:
		return errors.New("no subscribers")
	}

	b.queue = make(chan T, max(backlog, 0))
	subs := b.subs

	go func() {
		defer close(b.done)

		for msg := range b.queue {
			for _, sub := range subs {
				sub.deliver(msg)
			}
		}
	}()

	return nil
}

// Publish queues msg for every subscriber. It blocks while the queue is full.
func (b *Broadcaster[T]) Publish(msg T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		return ErrBroadcasterClosed
	case b.queue == nil:
		return errors.New("broadcaster not started")
	}

	b.queue <- msg

	return nil
}

// Close stops accepting values and waits until everything already published
// has been handed to subscribers. Close is idempotent.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		<-b.done

		return
	}

	b.closed = true
	started := b.queue != nil

	if started {
		close(b.queue)
	} else {
		close(b.done)
	}

	b.mu.Unlock()

	<-b.done
}

// Missed returns how many values each subscriber did not receive, in
// subscription order.
func (b *Broadcaster[T]) Missed() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]int, len(b.subs))
	for i, sub := range b.subs {
		out[i] = int(sub.missed.Load())
	}

	return out
}
