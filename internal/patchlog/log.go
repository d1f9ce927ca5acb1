package patchlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dshills/marksync/internal/event"
	"github.com/dshills/marksync/internal/event/events"
	"github.com/dshills/marksync/internal/view"
)

// maxLine bounds the length of a record. A patch replacing a large
// document is one line.
const maxLine = 64 << 20

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	written int
}

// NewWriter creates a writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	b, err := Encode(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("writing patch %d: %w", rec.Patch.Seq, err)
	}
	w.written++
	return nil
}

// Written returns the number of records written.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Record subscribes the writer to the patches published on bus. Records
// are written asynchronously, after the synchronous subscribers ran.
func (w *Writer) Record(bus event.Bus) (event.Subscription, error) {
	return bus.SubscribeFunc(events.TopicPreviewPatch, func(_ context.Context, ev any) error {
		e, ok := ev.(event.Event[events.PatchPublished])
		if !ok {
			return nil
		}
		return w.Write(Record{
			Revision: e.Payload.Revision,
			Time:     e.Metadata.Timestamp,
			Patch:    e.Payload.Patch,
		})
	}, event.WithPriority(event.PriorityLow), event.WithDeliveryMode(event.DeliveryAsync))
}

// Reader reads records from a stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader creates a reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF at the end of the stream. Blank
// lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := Decode(line)
		if err != nil {
			var derr *DecodeError
			if errors.As(err, &derr) {
				derr.Line = r.line
			}
			return Record{}, err
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("reading patch log: %w", err)
	}
	return Record{}, io.EOF
}

// ReplayStats summarizes a replay.
type ReplayStats struct {
	Records  int
	Applied  int
	Skipped  int
	Revision uint64
	Span     time.Duration // time between the first and last record
}

// Replay applies every record of r to v, in order.
func Replay(r *Reader, v *view.View) (ReplayStats, error) {
	var st ReplayStats
	var first time.Time
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, err
		}
		res := v.Apply(rec.Patch)
		st.Records++
		st.Applied += res.Applied
		st.Skipped += res.Skipped
		st.Revision = rec.Revision
		if !rec.Time.IsZero() {
			if first.IsZero() {
				first = rec.Time
			}
			st.Span = rec.Time.Sub(first)
		}
	}
}
