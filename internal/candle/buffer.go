package candle

import "vegasstrategy/internal/corerr"

// DefaultCapacity is the typical bound used across the engine (N in the
// design doc); callers may size a Buffer differently per stream.
const DefaultCapacity = 10_000

// Buffer is a bounded, strictly time-ordered sequence of Candle for one
// (instrument, period) stream. It is not safe for concurrent use; callers
// serialize access per stream (see the execution package).
type Buffer struct {
	capacity int
	items    []Candle
}

// NewBuffer creates an empty Buffer bounded at capacity candles.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, items: make([]Candle, 0, capacity)}
}

// Append pushes a new candle onto the tail, or replaces an unconfirmed tail
// sharing the same timestamp. Rejects monotonicity violations and attempts
// to overwrite a confirmed tail.
func (b *Buffer) Append(c Candle) error {
	if len(b.items) == 0 {
		b.items = append(b.items, c)
		return nil
	}
	tail := &b.items[len(b.items)-1]
	switch {
	case c.TsMillis > tail.TsMillis:
		b.items = append(b.items, c)
	case c.TsMillis == tail.TsMillis:
		if tail.Confirm {
			return corerr.New(corerr.DataIntegrity, "cannot overwrite a confirmed candle")
		}
		*tail = c
	default:
		return corerr.New(corerr.DataIntegrity, "monotonicity violation: candle ts older than buffer tail")
	}
	b.evictOverflow()
	return nil
}

func (b *Buffer) evictOverflow() {
	if len(b.items) <= b.capacity {
		return
	}
	excess := len(b.items) - b.capacity
	b.items = append(b.items[:0:0], b.items[excess:]...)
}

// SnapshotLast returns a read-only copy of the last k candles, oldest first.
// If k exceeds the buffer's length, the whole buffer is returned.
func (b *Buffer) SnapshotLast(k int) []Candle {
	if k <= 0 {
		return nil
	}
	if k > len(b.items) {
		k = len(b.items)
	}
	out := make([]Candle, k)
	copy(out, b.items[len(b.items)-k:])
	return out
}

// Len returns the number of candles currently held.
func (b *Buffer) Len() int { return len(b.items) }

// Back returns the most recent candle and whether the buffer is non-empty.
func (b *Buffer) Back() (Candle, bool) {
	if len(b.items) == 0 {
		return Candle{}, false
	}
	return b.items[len(b.items)-1], true
}

// Front returns the oldest candle currently retained.
func (b *Buffer) Front() (Candle, bool) {
	if len(b.items) == 0 {
		return Candle{}, false
	}
	return b.items[0], true
}

// Capacity returns the configured maximum length.
func (b *Buffer) Capacity() int { return b.capacity }
