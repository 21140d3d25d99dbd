// File: pool/page.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Page: one contiguous slab carved into first-fit ranges. Released
// ranges land on a cheap pending list and are merged back into the
// sorted free list lazily, either when a first-fit scan comes up empty
// or by the pool's idle-reclaim sweep. All free-list mutation is
// synchronized per page.

package pool

import "sync"

// span is a half-open [off, end) range within a page.
type span struct {
	off int
	end int
}

// Page owns a slice of the pool's backing region. Invariant: the union
// of issued handles, free spans and pending spans always equals the
// page's full range.
type Page struct {
	mu      sync.Mutex
	buf     []byte
	free    []span // sorted by off, coalesced
	pending []span // released ranges awaiting merge
}

func newPage(size int) *Page {
	return &Page{
		buf:  make([]byte, size),
		free: []span{{0, size}},
	}
}

// allocate carves a first-fit range of exactly size bytes and returns a
// handle over it, or nil when no contiguous run is large enough even
// after compaction.
func (p *Page) allocate(size int) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h := p.takeLocked(size); h != nil {
		return h
	}
	if len(p.pending) == 0 {
		return nil
	}
	p.compactLocked()
	return p.takeLocked(size)
}

func (p *Page) takeLocked(size int) *Handle {
	for i := range p.free {
		s := p.free[i]
		if s.end-s.off < size {
			continue
		}
		off := s.off
		if s.end-s.off == size {
			p.free = append(p.free[:i], p.free[i+1:]...)
		} else {
			p.free[i].off += size
		}
		return &Handle{
			page: p,
			buf:  p.buf[off : off+size : off+size],
			off:  off,
		}
	}
	return nil
}

// release returns a range to the page. Called exactly once per handle;
// the handle's release guard enforces that.
func (p *Page) release(off, size int) {
	p.mu.Lock()
	p.pending = append(p.pending, span{off, off + size})
	p.mu.Unlock()
}

// compact merges pending releases into the free list.
func (p *Page) compact() {
	p.mu.Lock()
	if len(p.pending) > 0 {
		p.compactLocked()
	}
	p.mu.Unlock()
}

func (p *Page) compactLocked() {
	merged := make([]span, 0, len(p.free)+len(p.pending))
	merged = append(merged, p.free...)
	merged = append(merged, p.pending...)
	p.pending = p.pending[:0]

	// insertion sort: both inputs are short and mostly ordered
	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j].off < merged[j-1].off; j-- {
			merged[j], merged[j-1] = merged[j-1], merged[j]
		}
	}

	out := merged[:1]
	for _, s := range merged[1:] {
		last := &out[len(out)-1]
		if s.off == last.end {
			last.end = s.end
		} else {
			out = append(out, s)
		}
	}
	p.free = out
}

// idle reports whether the page's free list covers its full range, i.e.
// no handle from this page is in flight.
func (p *Page) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) == 0 &&
		len(p.free) == 1 &&
		p.free[0].off == 0 && p.free[0].end == len(p.buf)
}

// freeBytes returns the number of bytes currently reclaimable.
func (p *Page) freeBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.free {
		n += s.end - s.off
	}
	for _, s := range p.pending {
		n += s.end - s.off
	}
	return n
}
