package notify

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

// Dispatcher publishes events from a single background worker, so request
// handling never waits on a broker and events leave in the order they were
// dispatched. Failures are logged and dropped.
type Dispatcher struct {
	pub     Publisher
	queue   chan Event
	done    chan struct{}
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(pub Publisher) *Dispatcher {
	if pub == nil {
		pub = Noop{}
	}
	d := &Dispatcher{
		pub:   pub,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.publish(ev)
		d.pending.Done()
	}
}

func (d *Dispatcher) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := d.pub.Publish(ctx, ev); err != nil {
		log.Warnj(log.JSON{"action": "notify.dispatch", "event": ev.Type, "order_id": ev.OrderID, "error": err.Error()})
	}
}

// Dispatch stamps the event time when unset and queues the event. It never
// blocks: a full queue or a closed dispatcher drops the event.
func (d *Dispatcher) Dispatch(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warnj(log.JSON{"action": "notify.dispatch", "event": ev.Type, "order_id": ev.OrderID, "error": "dispatcher closed"})
		return
	}
	d.pending.Add(1)
	select {
	case d.queue <- ev:
	default:
		d.pending.Done()
		log.Warnj(log.JSON{"action": "notify.dispatch", "event": ev.Type, "order_id": ev.OrderID, "error": "queue full"})
	}
}

// Wait blocks until every queued event has been handed off.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close drains the queue, stops the worker and closes the publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return d.pub.Close()
}
