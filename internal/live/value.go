// Package live provides push-updated values that consumers observe through
// explicit subscription handles.
package live

import "sync"

// Value holds the latest published T and fans every publication out to its
// subscribers in order.
type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	set  bool
	subs map[*Subscription[T]]struct{}
}

func New[T any]() *Value[T] {
	return &Value[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Of returns a Value already holding v.
func Of[T any](v T) *Value[T] {
	lv := New[T]()
	lv.Set(v)
	return lv
}

// Set publishes v to every subscriber.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = x
	v.set = true
	for s := range v.subs {
		s.push(x)
	}
}

// SetIfUnset publishes x only if nothing has been published yet, and reports
// whether it did.
func (v *Value[T]) SetIfUnset(x T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set {
		return false
	}
	v.cur = x
	v.set = true
	for s := range v.subs {
		s.push(x)
	}
	return true
}

// Get returns the latest value and whether anything was published yet.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur, v.set
}

// Subscribe registers a new subscriber. It first receives the current value,
// if there is one, then every later Set. Release it with Cancel.
func (v *Value[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		parent: v,
		ch:     make(chan T),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	v.mu.Lock()
	v.subs[s] = struct{}{}
	if v.set {
		s.push(v.cur)
	}
	v.mu.Unlock()

	go s.pump()
	return s
}

// Subscribers reports how many subscriptions are still attached.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

func (v *Value[T]) detach(s *Subscription[T]) {
	v.mu.Lock()
	delete(v.subs, s)
	v.mu.Unlock()
}

// Subscription is one consumer's view of a Value. Emissions arrive on C in
// publication order until Cancel is called, after which C is closed.
type Subscription[T any] struct {
	parent *Value[T]
	ch     chan T

	mu     sync.Mutex
	queue  []T
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel detaches the subscription and closes C. Safe to call repeatedly.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.parent.detach(s)
		close(s.done)
	})
}

func (s *Subscription[T]) push(x T) {
	s.mu.Lock()
	s.queue = append(s.queue, x)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		x := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- x:
		case <-s.done:
			return
		}
	}
}
