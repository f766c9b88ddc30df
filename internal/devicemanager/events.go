package devicemanager

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rokutools/rokuscan/internal/discovery"
)

// EventType names a manager event
type EventType int

const (
	// EventDeviceFound is sent for every device a round reports
	EventDeviceFound EventType = iota + 1
	// EventDeviceExpired is sent when a device's cache entry times out
	EventDeviceExpired
)

// String returns the wire name of the event
func (t EventType) String() string {
	switch t {
	case EventDeviceFound:
		return "device-found"
	case EventDeviceExpired:
		return "device-expired"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the wire name
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Event is delivered to subscribers
type Event struct {
	Type   EventType         `json:"type"`
	Device *discovery.Device `json:"device"`

	// New is true when the device was not in the cache before (found only)
	New bool `json:"new,omitempty"`

	notify bool
}

// Handler receives manager events
type Handler func(Event)

// dispatcher delivers events in order on one goroutine. Publish never blocks,
// so it may be called with other locks held, and handlers may call back into
// the manager.
type dispatcher struct {
	mu       sync.Mutex
	queue    []Event
	handlers map[int]Handler
	nextID   int
	closed   bool

	signal chan struct{}
	done   chan struct{}

	// deliver runs before subscribers for every event
	deliver func(Event)
}

func newDispatcher(deliver func(Event)) *dispatcher {
	d := &dispatcher{
		handlers: make(map[int]Handler),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		deliver:  deliver,
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers, id)
		})
	}
}

func (d *dispatcher) publish(ev Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// close delivers what is queued and stops the dispatcher
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)

	for range d.signal {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, ev := range batch {
			if d.deliver != nil {
				d.deliver(ev)
			}
			for _, h := range d.snapshot() {
				h(ev)
			}
		}

		if closed {
			return
		}
	}
}

func (d *dispatcher) snapshot() []Handler {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = d.handlers[id]
	}
	return handlers
}
