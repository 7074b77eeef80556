package strand

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

// A strand is a named serialization key. The engine guarantees that at most
// one task per strand is executing at any moment and that tasks within one
// strand run in enqueue order. Tasks on different strands run concurrently
// across the worker pool.

// Default and configuration values.
const defaultCapacity = 64 * 1024
const fallbackCapacity = 1024

// Counters for instrumentation.
var (
	enqueueTotal     uint64
	enqueueFailTotal uint64
	enqSeq           uint64
)

// ErrQueueFull is returned by TryEnqueue when the engine is at capacity.
var ErrQueueFull = errors.New("strand queue full")

// ErrQueueClosed is returned when enqueue operations are attempted after the
// engine has closed.
var ErrQueueClosed = errors.New("strand queue closed")

// Task is a lightweight in-memory representation of a deferred unit of work.
// Payload may be backed by a pooled ByteBuffer; the engine releases it after
// the handler returns.
type Task struct {
	// Strand is the serialization key (e.g. "add_message_<conversation_id>").
	Strand string
	// ID identifies the entity the task applies to.
	ID string
	// Payload holds the raw bytes for the operation (may be nil).
	Payload []byte
	// TS is an optional submission timestamp (nanoseconds).
	TS int64
	// EnqSeq is a monotonic enqueue sequence assigned when the task is
	// accepted. It is used for deterministic ordering inside a strand.
	EnqSeq uint64
	// Extras holds small metadata extracted from the submitting request.
	Extras map[string]string
}

type item struct {
	task *Task
	buf  *bytebufferpool.ByteBuffer
	once sync.Once
	e    *Engine
}

// done releases pooled resources back to their pools.
func (it *item) done() {
	it.once.Do(func() {
		if it.e != nil {
			atomic.AddInt64(&it.e.inFlight, -1)
			it.e = nil
		}
		if it.buf != nil {
			if cap(it.buf.B) > maxPooledBuffer {
				// drop the buffer so GC can reclaim the underlying array
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.task != nil {
			it.task.Payload = nil
			it.task.Extras = nil
			taskPool.Put(it.task)
			it.task = nil
		}
		itemPool.Put(it)
	})
}

var taskPool = sync.Pool{New: func() any { return &Task{} }}
var itemPool = sync.Pool{New: func() any { return &item{} }}

// maxPooledBuffer controls the largest buffer size that will be returned to
// the pool. Larger buffers are dropped to avoid unbounded resident memory.
var maxPooledBuffer = 256 * 1024 // 256 KiB

// SetMaxPooledBuffer overrides the pooled buffer cap when positive.
func SetMaxPooledBuffer(n int) {
	if n > 0 {
		maxPooledBuffer = n
	}
}

// Engine is a bounded multi-strand queue with single-flight-per-strand
// execution.
type Engine struct {
	mu       sync.Mutex
	pending  map[string][]*item
	active   map[string]bool
	ready    chan string
	capacity int
	size     int
	closed   bool

	dropped  uint64
	inFlight int64
}

// DefaultEngine is the global engine for handlers; can be overridden.
var DefaultEngine = NewEngine(defaultCapacity)

// NewEngine creates a bounded Engine of given total capacity (>0).
func NewEngine(capacity int) *Engine {
	if capacity <= 0 {
		capacity = fallbackCapacity
	}
	return &Engine{
		pending:  make(map[string][]*item),
		active:   make(map[string]bool),
		ready:    make(chan string, capacity),
		capacity: capacity,
	}
}

// SetDefaultEngine sets the package default if e is non-nil.
func SetDefaultEngine(e *Engine) {
	if e != nil {
		DefaultEngine = e
	}
}

// TryEnqueue enqueues a task without blocking; returns ErrQueueFull when the
// engine is at capacity.
func (e *Engine) TryEnqueue(t *Task) error {
	atomic.AddUint64(&enqueueTotal, 1)

	newTask := taskPool.Get().(*Task)
	*newTask = *t
	if t.Extras != nil {
		newMap := make(map[string]string, len(t.Extras))
		for k, v := range t.Extras {
			newMap[k] = v
		}
		newTask.Extras = newMap
	}

	var bb *bytebufferpool.ByteBuffer
	if len(t.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], t.Payload...)
		newTask.Payload = bb.B[:len(t.Payload)]
	}
	it := itemPool.Get().(*item)
	it.task = newTask
	it.buf = bb
	it.e = e
	it.once = sync.Once{}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		it.done()
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ErrQueueClosed
	}
	if e.size >= e.capacity {
		e.mu.Unlock()
		it.done()
		atomic.AddUint64(&e.dropped, 1)
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ErrQueueFull
	}
	newTask.EnqSeq = atomic.AddUint64(&enqSeq, 1)
	wasIdle := len(e.pending[newTask.Strand]) == 0 && !e.active[newTask.Strand]
	e.pending[newTask.Strand] = append(e.pending[newTask.Strand], it)
	e.size++
	atomic.AddInt64(&e.inFlight, 1)
	if wasIdle {
		// a strand appears in ready at most once, so this never blocks
		e.ready <- newTask.Strand
	}
	e.mu.Unlock()
	return nil
}

// Enqueue blocks until the task is accepted or ctx is cancelled.
func (e *Engine) Enqueue(ctx context.Context, t *Task) error {
	for {
		err := e.TryEnqueue(t)
		if err != ErrQueueFull {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// EnqueueTask is a convenience wrapper that constructs a Task and enqueues it
// (non-blocking).
func (e *Engine) EnqueueTask(strandKey, id string, payload []byte, ts int64, extras map[string]string) error {
	return e.TryEnqueue(&Task{Strand: strandKey, ID: id, Payload: payload, TS: ts, Extras: extras})
}

// RunWorker dequeues strands and executes their tasks one at a time per
// strand. Exits when stop is closed or the engine closes.
func (e *Engine) RunWorker(stop <-chan struct{}, handler func(*Task) error) {
	for {
		select {
		case key, ok := <-e.ready:
			if !ok {
				return
			}
			e.runStrandHead(key, handler)
		case <-stop:
			return
		}
	}
}

// runStrandHead executes the oldest pending task of a strand, then re-arms
// the strand when more work remains.
func (e *Engine) runStrandHead(key string, handler func(*Task) error) {
	e.mu.Lock()
	list := e.pending[key]
	if len(list) == 0 {
		e.mu.Unlock()
		return
	}
	it := list[0]
	if len(list) == 1 {
		delete(e.pending, key)
	} else {
		e.pending[key] = list[1:]
	}
	e.active[key] = true
	e.size--
	e.mu.Unlock()

	func() {
		defer it.done()
		_ = handler(it.task)
	}()

	e.mu.Lock()
	delete(e.active, key)
	if len(e.pending[key]) > 0 && !e.closed {
		e.ready <- key
	}
	e.mu.Unlock()
}

// CloseAndDrain closes the engine and releases remaining items without
// executing them.
func (e *Engine) CloseAndDrain() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	var rest []*item
	for k, list := range e.pending {
		rest = append(rest, list...)
		delete(e.pending, k)
	}
	e.size = 0
	close(e.ready)
	e.mu.Unlock()
	for _, it := range rest {
		it.done()
	}
}

// Len returns the current number of queued tasks across all strands.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

// Cap returns the configured total capacity of the engine.
func (e *Engine) Cap() int { return e.capacity }

// ActiveStrands returns the number of strands currently executing a task.
func (e *Engine) ActiveStrands() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Dropped returns the number of tasks rejected due to a full queue.
func (e *Engine) Dropped() uint64 { return atomic.LoadUint64(&e.dropped) }

// EnqueuedTotal returns total attempted enqueues.
func EnqueuedTotal() uint64 { return atomic.LoadUint64(&enqueueTotal) }

// FailedTotal returns total enqueue failures.
func FailedTotal() uint64 { return atomic.LoadUint64(&enqueueFailTotal) }
