// File: internal/concurrency/eventloop.go
// Package concurrency implements the agent's serializing event loop.
// Events are kept in an unbounded-by-default FIFO and handed to every
// registered handler in order.

package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

type Event struct {
	Data interface{}
}

type EventHandler interface {
	HandleEvent(ev Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ev Event)

// HandleEvent calls f(ev).
func (f EventHandlerFunc) HandleEvent(ev Event) { f(ev) }

type EventLoop struct {
	mu         sync.Mutex
	queue      *queue.Queue
	maxPending int
	handlersMu sync.Mutex
	handlers   atomic.Value // []EventHandler, replaced wholesale under handlersMu
	wake       chan struct{}
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopOnce   sync.Once
	running    atomic.Bool
	stopped    atomic.Bool
	processed  atomic.Uint64
}

// NewEventLoop creates a new EventLoop. maxPending <= 0 means unbounded.
func NewEventLoop(maxPending int) *EventLoop {
	loop := &EventLoop{
		queue:      queue.New(),
		maxPending: maxPending,
		wake:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	loop.handlers.Store([]EventHandler{})
	return loop
}

// Pending returns the number of queued events.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.queue.Length()
}

// Processed returns how many events have been dispatched.
func (el *EventLoop) Processed() uint64 {
	return el.processed.Load()
}

// RegisterHandler appends h. Slices are not comparable, so the copy is
// published with Store under handlersMu instead of CompareAndSwap.
func (el *EventLoop) RegisterHandler(h EventHandler) {
	el.handlersMu.Lock()
	defer el.handlersMu.Unlock()
	old := el.handlers.Load().([]EventHandler)
	next := make([]EventHandler, len(old), len(old)+1)
	copy(next, old)
	el.handlers.Store(append(next, h))
}

// Post enqueues ev. It returns false once the loop is stopped or when the
// queue is full.
func (el *EventLoop) Post(ev Event) bool {
	el.mu.Lock()
	if el.stopped.Load() || (el.maxPending > 0 && el.queue.Length() >= el.maxPending) {
		el.mu.Unlock()
		return false
	}
	el.queue.Add(ev)
	el.mu.Unlock()

	select {
	case el.wake <- struct{}{}:
	default:
	}
	return true
}

// Run dispatches events until Stop is called. Only the first call runs.
func (el *EventLoop) Run() {
	if !el.running.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		// clear handlers on stop
		el.handlersMu.Lock()
		el.handlers.Store([]EventHandler{})
		el.handlersMu.Unlock()
		close(el.doneCh)
	}()
	for {
		select {
		case <-el.stopCh:
			return
		default:
		}
		ev, ok := el.pop()
		if ok {
			el.dispatch(ev)
			continue
		}
		select {
		case <-el.stopCh:
			return
		case <-el.wake:
		}
	}
}

// Stop rejects further posts and waits for Run to return. Queued events
// that were not dispatched yet are dropped.
func (el *EventLoop) Stop() {
	el.stopOnce.Do(func() {
		el.mu.Lock()
		el.stopped.Store(true)
		el.mu.Unlock()
		close(el.stopCh)
	})
	if el.running.Load() {
		<-el.doneCh
	}
}

// Done is closed when Run returns.
func (el *EventLoop) Done() <-chan struct{} {
	return el.doneCh
}

func (el *EventLoop) pop() (Event, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.queue.Length() == 0 {
		return Event{}, false
	}
	return el.queue.Remove().(Event), true
}

func (el *EventLoop) dispatch(ev Event) {
	handlers := el.handlers.Load().([]EventHandler)
	for _, h := range handlers {
		h.HandleEvent(ev)
	}
	el.processed.Add(1)
}
