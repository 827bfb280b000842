// Package delivery pushes recognition results and streamed frames to the
// registered consumer without ever blocking the producer.
package delivery

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
	"github.com/GriffinCanCode/screen-ocr/internal/syncx"
)

// Event is one outbound delivery: a recognition result, or a streamed frame.
type Event struct {
	Result *recognition.Result
	// Frame is a PNG-encoded crop, set only for frame events.
	Frame      []byte
	CapturedAt time.Time
}

// IsFrame reports whether the event carries a frame rather than a result.
func (e Event) IsFrame() bool { return e.Result == nil }

// Consumer receives events on the channel's delivery goroutine, one at a time.
type Consumer func(Event)

type registration struct{ fn Consumer }

// Stats are channel counters.
type Stats struct {
	Emitted    uint64 `json:"emitted"`
	Delivered  uint64 `json:"delivered"`
	Superseded uint64 `json:"superseded"`
	Dropped    uint64 `json:"dropped"`
}

// Channel hands events to a single consumer goroutine. Results and frames
// each have a one-slot mailbox: an event not yet consumed is replaced by a
// newer one of the same kind.
type Channel struct {
	consumer *syncx.Guard[*registration]
	results  *syncx.Mailbox[Event]
	frames   *syncx.Mailbox[Event]

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	emitted    atomic.Uint64
	delivered  atomic.Uint64
	superseded atomic.Uint64
	dropped    atomic.Uint64
}

// New starts a channel. Close stops it.
func New() *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		consumer: syncx.NewGuard[*registration](nil),
		results:  syncx.NewMailbox[Event](),
		frames:   syncx.NewMailbox[Event](),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// OnResult registers the consumer, replacing any previous one. The returned
// func unregisters it if it is still the registered one.
func (c *Channel) OnResult(fn Consumer) (unregister func()) {
	if fn == nil {
		c.consumer.Set(nil)
		return func() {}
	}
	reg := &registration{fn: fn}
	if prev := c.consumer.Swap(reg); prev != nil {
		slog.Debug("delivery consumer replaced")
	}
	return func() {
		c.consumer.Update(func(cur *registration) (*registration, bool) {
			return nil, cur == reg
		})
	}
}

// Registered reports whether a consumer is attached.
func (c *Channel) Registered() bool { return c.consumer.Get() != nil }

// Emit queues ev for the consumer and returns immediately. With no consumer
// registered the event is dropped.
func (c *Channel) Emit(ev Event) {
	c.emitted.Add(1)
	if !c.Registered() {
		c.dropped.Add(1)
		return
	}
	box := c.results
	if ev.IsFrame() {
		box = c.frames
	}
	if box.Put(ev) {
		c.superseded.Add(1)
	}
}

// EmitResult implements recognition.Emitter.
func (c *Channel) EmitResult(r recognition.Result) {
	c.Emit(Event{Result: &r, CapturedAt: r.CapturedAt})
}

// EmitFrame queues a PNG-encoded frame.
func (c *Channel) EmitFrame(png []byte, capturedAt time.Time) {
	c.Emit(Event{Frame: png, CapturedAt: capturedAt})
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.results.Ready():
			c.deliver(c.results)
		case <-c.frames.Ready():
			c.deliver(c.frames)
		}
	}
}

func (c *Channel) deliver(box *syncx.Mailbox[Event]) {
	ev, ok := box.Take()
	if !ok {
		return
	}
	reg := c.consumer.Get()
	if reg == nil {
		c.dropped.Add(1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("delivery consumer panicked", "panic", r)
		}
	}()
	reg.fn(ev)
	c.delivered.Add(1)
}

// Stats returns a snapshot of the counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Emitted:    c.emitted.Load(),
		Delivered:  c.delivered.Load(),
		Superseded: c.superseded.Load(),
		Dropped:    c.dropped.Load(),
	}
}

// Close stops the delivery goroutine. Pending events are dropped.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
	})
}
