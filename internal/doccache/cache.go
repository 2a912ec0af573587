// Package doccache holds parsed documents keyed by path and content
// fingerprint, so unchanged files are not parsed again.
//
// The cache is bounded by an item count and a byte budget and evicts the
// least recently accessed entry first. Concurrent requests for the same
// file revision share one parse.
package doccache

import (
	"container/list"
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/metrics"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// ParseFunc turns a file into a document.
type ParseFunc func(source.File) (*parser.Document, error)

// Options configures a Cache. Zero or negative budgets are unlimited.
type Options struct {
	MaxItems int
	MaxBytes int64
	Recorder metrics.Recorder
}

// Stats are cumulative cache counters plus the current residency.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Shared    int64 `json:"shared"`
	Evictions int64 `json:"evictions"`
	Items     int   `json:"items"`
	Bytes     int64 `json:"bytes"`
}

type entry struct {
	path string
	fp   source.Fingerprint
	doc  *parser.Document
	size int64
}

// Cache is a bounded LRU of parsed documents. It is safe for concurrent use.
type Cache struct {
	parse    ParseFunc
	maxItems int
	maxBytes int64
	recorder metrics.Recorder

	mu    sync.Mutex
	order *list.List // front is most recently used; values are *entry
	index map[string]*list.Element
	bytes int64

	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	shared    atomic.Int64
	evictions atomic.Int64
}

// New creates an empty cache that parses misses with parse.
func New(parse ParseFunc, opts Options) *Cache {
	c := &Cache{
		parse:    parse,
		maxItems: opts.MaxItems,
		maxBytes: opts.MaxBytes,
		recorder: opts.Recorder,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	if c.maxItems <= 0 {
		c.maxItems = math.MaxInt
	}
	if c.maxBytes <= 0 {
		c.maxBytes = math.MaxInt64
	}
	if c.recorder == nil {
		c.recorder = metrics.NoopRecorder{}
	}
	return c
}

// GetOrParse returns the document for f. When an entry for f.Path with the
// same fingerprint is resident the parser is not called. Otherwise the file
// is parsed once, even with concurrent callers, and the result replaces any
// stale entry. Parse errors are returned and not cached.
func (c *Cache) GetOrParse(ctx context.Context, f source.File) (*parser.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc, ok := c.lookup(f); ok {
		c.hit()
		return doc, nil
	}

	var parsed, found bool
	v, err, _ := c.group.Do(f.Path+"\x00"+f.Fingerprint.Key(), func() (any, error) {
		// A flight that finished between lookup and Do may have stored it.
		if doc, ok := c.lookup(f); ok {
			found = true
			return doc, nil
		}
		parsed = true
		doc, err := c.parse(f)
		if err != nil {
			return nil, err
		}
		c.put(f.Path, f.Fingerprint, doc)
		return doc, nil
	})

	switch {
	case found:
		c.hit()
	case parsed:
		c.misses.Add(1)
		c.recorder.IncCacheLookup(metrics.CacheMiss)
	default:
		c.shared.Add(1)
		c.recorder.IncCacheLookup(metrics.CacheShared)
	}
	if err != nil {
		return nil, err
	}
	return v.(*parser.Document), nil
}

func (c *Cache) hit() {
	c.hits.Add(1)
	c.recorder.IncCacheLookup(metrics.CacheHit)
}

// lookup returns the resident document for f and marks it used. A resident
// entry with a different fingerprint is dropped.
func (c *Cache) lookup(f source.File) (*parser.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[f.Path]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if e.fp != f.Fingerprint {
		c.removeLocked(el)
		c.reportResidentLocked()
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.doc, true
}

func (c *Cache) put(path string, fp source.Fingerprint, doc *parser.Document) {
	size := doc.EstimatedSize()
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[path]; ok {
		c.removeLocked(el)
	}
	if size > c.maxBytes {
		slog.Debug("Document exceeds cache byte budget, not cached",
			logfields.Path(path), slog.Int64("size", size))
		c.reportResidentLocked()
		return
	}
	for c.order.Len() > 0 && (c.order.Len() >= c.maxItems || c.bytes+size > c.maxBytes) {
		c.evictLocked()
	}
	c.index[path] = c.order.PushFront(&entry{path: path, fp: fp, doc: doc, size: size})
	c.bytes += size
	c.reportResidentLocked()
}

// Invalidate drops the entry for path. It reports whether one was resident.
func (c *Cache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[path]
	if !ok {
		return false
	}
	c.removeLocked(el)
	c.reportResidentLocked()
	return true
}

// EvictIfOverBudget evicts least recently used entries until both budgets
// hold and returns how many were evicted.
func (c *Cache) EvictIfOverBudget() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for c.order.Len() > 0 && (c.order.Len() > c.maxItems || c.bytes > c.maxBytes) {
		c.evictLocked()
		n++
	}
	if n > 0 {
		c.reportResidentLocked()
	}
	return n
}

// Resize changes the budgets and evicts down to them.
func (c *Cache) Resize(maxItems int, maxBytes int64) int {
	c.mu.Lock()
	c.maxItems, c.maxBytes = maxItems, maxBytes
	if c.maxItems <= 0 {
		c.maxItems = math.MaxInt
	}
	if c.maxBytes <= 0 {
		c.maxBytes = math.MaxInt64
	}
	c.mu.Unlock()
	return c.EvictIfOverBudget()
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
	c.bytes = 0
	c.reportResidentLocked()
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Contains reports whether path is resident, without touching its recency.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[path]
	return ok
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	items, bytes := c.order.Len(), c.bytes
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Shared:    c.shared.Load(),
		Evictions: c.evictions.Load(),
		Items:     items,
		Bytes:     bytes,
	}
}

// Entries returns the resident entries, most recently used first.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		out = append(out, Entry{Path: e.path, Fingerprint: e.fp, Doc: e.doc})
	}
	return out
}

func (c *Cache) evictLocked() {
	el := c.order.Back()
	e := el.Value.(*entry)
	c.removeLocked(el)
	c.evictions.Add(1)
	c.recorder.IncCacheEviction()
	slog.Debug("Evicted cached document", logfields.Path(e.path))
}

func (c *Cache) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.index, e.path)
	c.bytes -= e.size
}

func (c *Cache) reportResidentLocked() {
	c.recorder.SetCacheResident(c.order.Len(), c.bytes)
}
