// Package observe holds continuously updated state with replay-on-subscribe.
package observe

import "sync"

// Value holds the current state of one output stream. Every subscriber first
// receives the value current at subscription time, then every later Set, in order.
// Set never blocks on slow subscribers.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	subs   map[*Subscription[T]]struct{}
	closed bool
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[*Subscription[T]]struct{}),
	}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = x
	for s := range v.subs {
		s.push(x)
	}
}

// Subscribe starts a subscription. On a closed Value the subscription delivers
// the final value and then closes.
func (v *Value[T]) Subscribe() *Subscription[T] {
	s := newSubscription[T]()
	v.mu.Lock()
	s.push(v.cur)
	if v.closed {
		s.finish()
	} else {
		v.subs[s] = struct{}{}
		s.detach = func() {
			v.mu.Lock()
			delete(v.subs, s)
			v.mu.Unlock()
		}
	}
	v.mu.Unlock()
	go s.pump()
	return s
}

// Close ends every subscription after its pending values are delivered.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for s := range v.subs {
		s.finish()
		delete(v.subs, s)
	}
}

// Subscribers reports the number of live subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

type Subscription[T any] struct {
	c chan T

	mu       sync.Mutex
	pending  []T
	draining bool
	wake     chan struct{}
	quit     chan struct{}
	once     sync.Once
	detach   func()
}

func newSubscription[T any]() *Subscription[T] {
	return &Subscription[T]{
		c:    make(chan T),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// C delivers values; it is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T { return s.c }

// Cancel stops delivery immediately, dropping undelivered values.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		if s.detach != nil {
			s.detach()
		}
		close(s.quit)
	})
}

func (s *Subscription[T]) push(x T) {
	s.mu.Lock()
	s.pending = append(s.pending, x)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription[T]) finish() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.c)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		draining := s.draining
		s.mu.Unlock()

		for _, x := range batch {
			select {
			case s.c <- x:
			case <-s.quit:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if draining {
			return
		}
		select {
		case <-s.wake:
		case <-s.quit:
			return
		}
	}
}
