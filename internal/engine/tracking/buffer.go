package tracking

import "sync"

// DefaultHistorySize is the default number of recent edits kept for
// diagnostics.
const DefaultHistorySize = 256

// BufferOption configures a Buffer.
type BufferOption func(*Buffer)

// WithHistorySize sets how many recent edits are retained.
// It must only be used during Buffer creation via NewBuffer.
func WithHistorySize(n int) BufferOption {
	return func(b *Buffer) {
		if n > 0 {
			b.maxHistory = n
			b.history = make([]Edit, n)
		}
	}
}

// Buffer accumulates edits between render cycles.
// All operations are thread-safe.
type Buffer struct {
	mu sync.Mutex

	span    Span
	pending bool
	folded  int // edits folded into the current span

	// Recent edits in a ring buffer
	history    []Edit
	head       int // Index of oldest entry
	count      int // Number of entries
	maxHistory int
	total      uint64
}

// NewBuffer creates an empty change buffer.
func NewBuffer(opts ...BufferOption) *Buffer {
	b := &Buffer{
		maxHistory: DefaultHistorySize,
		history:    make([]Edit, DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Apply folds an edit into the pending span. Edits that change nothing are
// recorded in the history but leave the span untouched.
func (b *Buffer) Apply(e Edit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recordLocked(e)
	if e.Type() == EditNone {
		return
	}

	if b.pending {
		b.span = b.span.Merge(e)
	} else {
		b.span = SpanOf(e)
		b.pending = true
	}
	b.folded++
}

// TakeSpan atomically returns and clears the pending span.
// It returns false when no edits occurred since the last take.
func (b *Buffer) TakeSpan() (Span, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.pending {
		return Span{}, false
	}
	s := b.span
	b.span = Span{}
	b.pending = false
	b.folded = 0
	return s, true
}

// Peek returns the pending span without clearing it.
func (b *Buffer) Peek() (Span, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.span, b.pending
}

// Pending returns the number of edits folded into the current span.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.folded
}

// Total returns the number of edits applied over the buffer's lifetime.
func (b *Buffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Recent returns up to n of the most recent edits in chronological order.
func (b *Buffer) Recent(n int) []Edit {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]Edit, n)
	for i := 0; i < n; i++ {
		idx := (b.head + b.count - n + i) % b.maxHistory
		result[i] = b.history[idx]
	}
	return result
}

// recordLocked adds an edit to the ring buffer (must hold lock).
func (b *Buffer) recordLocked(e Edit) {
	idx := (b.head + b.count) % b.maxHistory
	if b.count < b.maxHistory {
		b.count++
	} else {
		// Ring buffer is full, advance head
		b.head = (b.head + 1) % b.maxHistory
	}
	b.history[idx] = e
	b.total++
}
