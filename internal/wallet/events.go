package wallet

import "sync"

// Emitter fans events out to listeners synchronously, in subscription order.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu        sync.Mutex
	next      int
	order     []int
	listeners map[int]func(T)
}

func (e *Emitter[T]) On(listener func(T)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.listeners[id] = listener
	e.order = append(e.order, id)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Emit snapshots the listeners so a listener may unsubscribe during delivery.
func (e *Emitter[T]) Emit(ev T) {
	e.mu.Lock()
	snapshot := make([]func(T), 0, len(e.order))
	for _, id := range e.order {
		snapshot = append(snapshot, e.listeners[id])
	}
	e.mu.Unlock()

	for _, l := range snapshot {
		l(ev)
	}
}

func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Clear drops every listener.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
	e.order = nil
}
