// Package timeline keeps a time-sorted view of a chat replay and answers
// "how many events happened at or before T" with a binary search.
package timeline

import (
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/onnwee/vod-danmaku/danmaku"
)

// Index is an immutable, stable-sorted copy of an event list. Events that
// share a timestamp keep their document order.
type Index struct {
	sorted []danmaku.Event
}

// New sorts a copy of events by timestamp. The input is not modified.
func New(events []danmaku.Event) *Index {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b danmaku.Event) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return &Index{sorted: sorted}
}

// Len returns the number of indexed events.
func (x *Index) Len() int { return len(x.sorted) }

// At returns the i-th event in time order.
func (x *Index) At(i int) danmaku.Event { return x.sorted[i] }

// Events returns a copy of the time-sorted events.
func (x *Index) Events() []danmaku.Event { return slices.Clone(x.sorted) }

// Slice returns a copy of sorted[start:end], clamped to the index bounds.
func (x *Index) Slice(start, end int) []danmaku.Event {
	start = max(0, min(start, len(x.sorted)))
	end = max(start, min(end, len(x.sorted)))
	return slices.Clone(x.sorted[start:end])
}

// UpperBound returns the number of events with Timestamp <= t, which is also
// the insertion point for t. NaN yields 0.
func (x *Index) UpperBound(t float64) int {
	if math.IsNaN(t) {
		return 0
	}
	return sort.Search(len(x.sorted), func(i int) bool {
		return x.sorted[i].Timestamp > t
	})
}

// Bounds returns the range [start, end) of the most recent events at or
// before t, holding at most limit of them. A limit <= 0 means no cap.
func (x *Index) Bounds(t float64, limit int) (start, end int) {
	end = x.UpperBound(t)
	if limit > 0 && end > limit {
		start = end - limit
	}
	return start, end
}

// Window is Bounds plus a copy of the events in range.
func (x *Index) Window(t float64, limit int) (start, end int, events []danmaku.Event) {
	start, end = x.Bounds(t, limit)
	return start, end, x.Slice(start, end)
}

// Memo caches the last Index built, keyed on the identity of the input slice
// (its backing array and length). Safe for concurrent use.
type Memo struct {
	mu    sync.Mutex
	first *danmaku.Event
	n     int
	idx   *Index
}

// Get returns the cached Index when events is the same slice as the previous
// call, building a new one otherwise.
func (m *Memo) Get(events []danmaku.Event) *Index {
	var first *danmaku.Event
	if len(events) > 0 {
		first = &events[0]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idx != nil && m.first == first && m.n == len(events) {
		return m.idx
	}
	m.idx = New(events)
	m.first = first
	m.n = len(events)
	return m.idx
}
