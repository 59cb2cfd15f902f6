// Package perf keeps a bounded in-process window of request and query
// timings and aggregates it for /api/admin/perf.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes request vs query entries.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
)

// Entry is a single timing record.
type Entry struct {
	Kind       EntryKind
	Path       string // "METHOD /route" for requests, SQL operation for queries
	StatusCode int    // 0 for queries
	Failed     bool   // 5xx response or query error
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer of timing entries.
// Writes never block on readers for longer than one struct copy; when the
// buffer is full the oldest entry is overwritten.
type Collector struct {
	mu       sync.Mutex
	entries  []Entry
	pos      int
	requests atomic.Int64
	queries  atomic.Int64
}

// NewCollector creates a collector holding at most size entries.
// PRE: size > 0, otherwise DefaultRingSize is used
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record stores e, overwriting the oldest entry when full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()

	if e.Kind == KindQuery {
		c.queries.Add(1)
	} else {
		c.requests.Add(1)
	}
}

// TotalRecorded returns the number of entries ever recorded, of both kinds.
func (c *Collector) TotalRecorded() int64 {
	return c.requests.Load() + c.queries.Load()
}

// Snapshot is the aggregated view served to operators.
type Snapshot struct {
	TotalRequests  int64      `json:"totalRequests"`
	TotalQueries   int64      `json:"totalQueries"`
	RequestP50Ms   float64    `json:"requestP50Ms"`
	RequestP95Ms   float64    `json:"requestP95Ms"`
	RequestP99Ms   float64    `json:"requestP99Ms"`
	QueryP95Ms     float64    `json:"queryP95Ms"`
	SlowestPaths   []PathStat `json:"slowestPaths"`
	SlowestQueries []PathStat `json:"slowestQueries"`
}

// PathStat aggregates timings for one route or SQL operation.
type PathStat struct {
	Path    string  `json:"path"`
	Count   int     `json:"count"`
	Errors  int     `json:"errors"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
	TotalMs float64 `json:"totalMs"`
}

// window accumulates one kind of entry.
type window struct {
	durations []float64
	stats     map[string]*PathStat
}

func newWindow() *window {
	return &window{stats: make(map[string]*PathStat)}
}

func (w *window) add(e Entry) {
	w.durations = append(w.durations, e.DurationMs)
	s, ok := w.stats[e.Path]
	if !ok {
		s = &PathStat{Path: e.Path}
		w.stats[e.Path] = s
	}
	s.Count++
	s.TotalMs += e.DurationMs
	s.MaxMs = max(s.MaxMs, e.DurationMs)
	if e.Failed {
		s.Errors++
	}
}

// top returns the n slowest paths by average duration.
func (w *window) top(n int) []PathStat {
	list := make([]PathStat, 0, len(w.stats))
	for _, s := range w.stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b PathStat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}

// Snapshot aggregates entries recorded at or after since.
// It sorts, so call it per operator request, not per traffic request.
// POST: Returns percentiles and the topN slowest paths of each kind
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.entries)
	c.mu.Unlock()

	requests, queries := newWindow(), newWindow()
	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		if e.Kind == KindQuery {
			queries.add(e)
		} else {
			requests.add(e)
		}
	}

	slices.Sort(requests.durations)
	slices.Sort(queries.durations)
	return Snapshot{
		TotalRequests:  c.requests.Load(),
		TotalQueries:   c.queries.Load(),
		RequestP50Ms:   percentile(requests.durations, 50),
		RequestP95Ms:   percentile(requests.durations, 95),
		RequestP99Ms:   percentile(requests.durations, 99),
		QueryP95Ms:     percentile(queries.durations, 95),
		SlowestPaths:   requests.top(topN),
		SlowestQueries: queries.top(topN),
	}
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower, upper := int(math.Floor(idx)), int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
