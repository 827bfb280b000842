package results

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

// Batcher defaults
const (
	DefaultBatchMaxSize    = 20
	DefaultBatchFlushDelay = 2 * time.Second
	batchWriteTimeout      = 5 * time.Second
)

// BatchWriter persists results in bulk, such as history.DB.
type BatchWriter interface {
	SaveBatch(ctx context.Context, rs []recognition.Result) (int, error)
}

// Batcher accumulates results and writes them in batches, off the
// recognition path.
type Batcher struct {
	writer     BatchWriter
	maxSize    int
	flushDelay time.Duration
	mu         sync.Mutex
	items      []recognition.Result
	timer      *time.Timer
	wg         sync.WaitGroup
}

// NewBatcher creates a result batcher.
func NewBatcher(writer BatchWriter, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatchMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatchFlushDelay
	}
	return &Batcher{
		writer:     writer,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]recognition.Result, 0, maxSize),
	}
}

// Add queues a result for batched storage.
func (b *Batcher) Add(r recognition.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, r)

	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return
	}

	// Start or reset timer for delayed flush
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.items
	b.items = make([]recognition.Result, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), batchWriteTimeout)
		defer cancel()
		ctx, span := trace.StartSpan(ctx, "result_batch_flush")
		defer span.End()
		span.SetAttr("count", len(items))

		log := trace.Logger(ctx)
		stored, err := b.writer.SaveBatch(ctx, items)
		if err != nil {
			span.SetAttr("error", err.Error())
			log.Warn("result batch store failed", "error", err, "count", len(items))
		} else {
			log.Debug("result batch stored", "stored", stored, "submitted", len(items))
		}
	}()
}

// Flush forces immediate flush of pending items.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes remaining items and waits for in-progress writes.
func (b *Batcher) Stop() {
	b.Flush()
	b.wg.Wait()
}
