// File: pool/pagepool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PagePool: fixed set of pages selected round-robin, with graceful
// fallback to standalone allocation. Allocate never fails the caller:
// when no page holds a contiguous run of the requested size the pool
// trades pooling for correctness and returns an unpooled handle.

package pool

import (
	"sync/atomic"
	"time"
)

const (
	// DefaultPageSize is the backing size of one page.
	DefaultPageSize = 1 << 20
	// DefaultPageCount is the number of pages per pool.
	DefaultPageCount = 2
)

// PagePool is the arena allocator shared by a runtime instance.
type PagePool struct {
	pages  []*Page
	cursor atomic.Uint32
	done   chan struct{}
	closed atomic.Bool
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Pages     int
	PageSize  int
	FreeBytes int
}

// NewPagePool builds a pool of pageCount pages of pageSize bytes each.
// Non-positive arguments fall back to the defaults. idleReclaim, when
// positive, starts a background sweep that compacts pages at that
// interval; zero or negative disables it.
func NewPagePool(pageSize, pageCount int, idleReclaim time.Duration) *PagePool {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageCount <= 0 {
		pageCount = DefaultPageCount
	}
	p := &PagePool{
		pages: make([]*Page, pageCount),
		done:  make(chan struct{}),
	}
	for i := range p.pages {
		p.pages[i] = newPage(pageSize)
	}
	if idleReclaim > 0 {
		go p.sweep(idleReclaim)
	}
	return p
}

// Allocate returns a handle over exactly size usable bytes. Pages are
// probed round-robin; a request no page can satisfy degrades to a
// standalone heap allocation. No allocation spans two pages.
func (p *PagePool) Allocate(size int) *Handle {
	if size <= len(p.pages[0].buf) {
		start := int(p.cursor.Add(1))
		for i := 0; i < len(p.pages); i++ {
			page := p.pages[(start+i)%len(p.pages)]
			if h := page.allocate(size); h != nil {
				return h
			}
		}
	}
	// unpooled fallback
	return &Handle{buf: make([]byte, size)}
}

// Compact merges pending releases on every page immediately.
func (p *PagePool) Compact() {
	for _, page := range p.pages {
		page.compact()
	}
}

// Stats reports current occupancy across all pages.
func (p *PagePool) Stats() Stats {
	s := Stats{Pages: len(p.pages), PageSize: len(p.pages[0].buf)}
	for _, page := range p.pages {
		s.FreeBytes += page.freeBytes()
	}
	return s
}

// Close stops the idle-reclaim sweep. In-flight handles stay valid; the
// pages are reclaimed by the GC once the last handle is dropped.
func (p *PagePool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.done)
	}
}

// sweep periodically folds pending releases back into the free lists so
// long-idle pages return to one contiguous range. A page is only fully
// reclaimed once its free list equals its whole range, which can never
// race with an in-flight handle.
func (p *PagePool) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			for _, page := range p.pages {
				page.compact()
			}
		}
	}
}
