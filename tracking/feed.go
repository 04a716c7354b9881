package tracking

import "sync"

// Feed fans a value out to any number of subscribers and keeps the most
// recent one so new subscribers start with a current value. Every
// subscriber receives its own copy made by clone.
//
// A subscriber that falls behind only ever misses intermediate values: the
// stale value in its buffer is replaced by the newest one.
type Feed[T any] struct {
	mu       sync.RWMutex
	subs     map[int]chan T
	nextID   int
	last     T
	haveLast bool
	clone    func(T) T
}

func NewFeed[T any](clone func(T) T) *Feed[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Feed[T]{
		subs:  make(map[int]chan T),
		clone: clone,
	}
}

func (f *Feed[T]) Subscribe(buffer int) (int, <-chan T) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan T, buffer)

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	if f.haveLast {
		ch <- f.clone(f.last)
	}
	return id, ch
}

func (f *Feed[T]) Unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = v
	f.haveLast = true
	for _, ch := range f.subs {
		offer(ch, f.clone(v))
	}
}

func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Value returns a copy of the latest published value.
func (f *Feed[T]) Value() (T, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.haveLast {
		var zero T
		return zero, false
	}
	return f.clone(f.last), true
}

func (f *Feed[T]) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
