package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultBroadcastCapacity is the number of envelopes the router retains.
const DefaultBroadcastCapacity = 1000

var (
	// ErrEmpty is returned by TryRecv when nothing is pending.
	ErrEmpty = errors.New("no pending envelope")
	// ErrLagged is wrapped by LaggedError.
	ErrLagged = errors.New("subscriber lagged")
)

// LaggedError reports how many envelopes a subscriber missed. The
// subscription has already been moved to the oldest retained envelope.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged: %d envelopes skipped", e.Skipped)
}

func (e *LaggedError) Unwrap() error {
	return ErrLagged
}

// Router is a bounded single-channel broadcast. Every subscriber observes
// envelopes in publish order. Publishers never block: the ring overwrites
// its oldest slot and slow subscribers are resynchronized on their next
// receive.
type Router struct {
	mu     sync.Mutex
	ring   []Envelope
	head   uint64 // sequence number of the next publish
	notify chan struct{}
}

// NewRouter creates a router retaining up to capacity envelopes.
func NewRouter(capacity int) *Router {
	if capacity <= 0 {
		capacity = DefaultBroadcastCapacity
	}
	return &Router{
		ring:   make([]Envelope, capacity),
		notify: make(chan struct{}),
	}
}

// Publish appends env and wakes all waiting subscribers.
func (r *Router) Publish(env Envelope) {
	r.mu.Lock()
	r.ring[r.head%uint64(len(r.ring))] = env
	r.head++
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Subscribe returns a subscription that starts after the latest publish.
func (r *Router) Subscribe() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Subscription{router: r, next: r.head}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Subscription is a read cursor into a Router. It is not safe for
// concurrent use.
type Subscription struct {
	router *Router
	next   uint64
}

// Ready returns a channel that is closed once an envelope is available.
// The channel must be fetched again after each wake-up.
func (s *Subscription) Ready() <-chan struct{} {
	r := s.router
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.next < r.head {
		return closedChan
	}
	return r.notify
}

// TryRecv returns the next envelope without blocking. It returns ErrEmpty
// when nothing is pending and a *LaggedError when envelopes were dropped.
func (s *Subscription) TryRecv() (Envelope, error) {
	r := s.router
	r.mu.Lock()
	defer r.mu.Unlock()

	size := uint64(len(r.ring))
	if r.head > size && s.next < r.head-size {
		oldest := r.head - size
		skipped := oldest - s.next
		s.next = oldest
		return Envelope{}, &LaggedError{Skipped: skipped}
	}
	if s.next == r.head {
		return Envelope{}, ErrEmpty
	}
	env := r.ring[s.next%size]
	s.next++
	return env, nil
}

// Recv blocks until an envelope is available or ctx is done.
func (s *Subscription) Recv(ctx context.Context) (Envelope, error) {
	for {
		env, err := s.TryRecv()
		if !errors.Is(err, ErrEmpty) {
			return env, err
		}
		select {
		case <-s.Ready():
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}
