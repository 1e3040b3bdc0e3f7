// Package dispatch is the event bus between the host client and the
// ingestion pipeline: a bounded in-memory queue drained by a single worker,
// so handlers interleave at suspension points but never run in parallel.
package dispatch

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"msgvault/pkg/logger"
)

// EventType identifies a message-lifecycle event.
type EventType string

const (
	MessageCreate     EventType = "MESSAGE_CREATE"
	MessageUpdate     EventType = "MESSAGE_UPDATE"
	MessageDelete     EventType = "MESSAGE_DELETE"
	MessageDeleteBulk EventType = "MESSAGE_DELETE_BULK"
	MessagesLoaded    EventType = "LOAD_MESSAGES_SUCCESS"
)

// ErrQueueFull is returned by Publish when the queue is at capacity. Events
// are fire-and-forget: the host is never blocked or retried.
var ErrQueueFull = errors.New("dispatch queue full")

// Event is one queued occurrence. Payload may be backed by a pooled buffer;
// the bus releases it after the handlers return.
type Event struct {
	Type    EventType
	Payload []byte
}

type item struct {
	ev   Event
	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

var itemPool = sync.Pool{New: func() any { return &item{} }}

func (it *item) done(maxPooled int) {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) > maxPooled {
				// drop oversized buffers so GC reclaims the array
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		it.ev.Payload = nil
		*it = item{}
		itemPool.Put(it)
	})
}

// Bus is a bounded queue of events with per-type handlers. Safe for
// concurrent producers; consumption is strictly sequential.
type Bus struct {
	ch        chan *item
	capacity  int
	maxPooled int
	dropped   uint64

	mu       sync.RWMutex
	handlers map[EventType][]func(payload []byte)
}

// New creates a bus with the given queue capacity. maxPooledBuffer bounds
// the payload buffers returned to the pool; <= 0 uses 256 KiB.
func New(capacity int, maxPooledBuffer int) *Bus {
	if capacity <= 0 {
		capacity = 4096
	}
	if maxPooledBuffer <= 0 {
		maxPooledBuffer = 256 * 1024
	}
	return &Bus{
		ch:        make(chan *item, capacity),
		capacity:  capacity,
		maxPooled: maxPooledBuffer,
		handlers:  make(map[EventType][]func(payload []byte)),
	}
}

// Subscribe registers a handler for an event type. Handlers run on the
// worker goroutine in subscription order.
func (b *Bus) Subscribe(t EventType, h func(payload []byte)) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
}

// Publish marshals v and enqueues it without blocking. When the queue is
// full the event is counted as dropped and ErrQueueFull returned.
func (b *Bus) Publish(t EventType, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.PublishRaw(t, payload)
}

// PublishRaw enqueues a pre-encoded payload, copying it into a pooled
// buffer so the caller's slice is not retained.
func (b *Bus) PublishRaw(t EventType, payload []byte) error {
	it := itemPool.Get().(*item)
	*it = item{ev: Event{Type: t}}
	if len(payload) > 0 {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], payload...)
		it.buf = bb
		it.ev.Payload = bb.B[:len(payload)]
	}
	select {
	case b.ch <- it:
		return nil
	default:
		it.done(b.maxPooled)
		atomic.AddUint64(&b.dropped, 1)
		logger.Warn("dispatch_queue_full", "type", string(t))
		return ErrQueueFull
	}
}

// Run drains the queue until stop is closed or the queue is closed. Each
// event's handlers run to completion before the next event is dequeued.
func (b *Bus) Run(stop <-chan struct{}) {
	for {
		select {
		case it, ok := <-b.ch:
			if !ok {
				return
			}
			b.deliver(it)
		case <-stop:
			return
		}
	}
}

func (b *Bus) deliver(it *item) {
	defer it.done(b.maxPooled)
	b.mu.RLock()
	hs := b.handlers[it.ev.Type]
	b.mu.RUnlock()
	for _, h := range hs {
		h(it.ev.Payload)
	}
}

// CloseAndDrain closes the queue and delivers remaining events.
func (b *Bus) CloseAndDrain() {
	close(b.ch)
	for it := range b.ch {
		b.deliver(it)
	}
}

// Len returns the number of queued events.
func (b *Bus) Len() int { return len(b.ch) }

// Cap returns the configured capacity.
func (b *Bus) Cap() int { return b.capacity }

// Dropped returns the number of events dropped due to a full queue.
func (b *Bus) Dropped() uint64 { return atomic.LoadUint64(&b.dropped) }
