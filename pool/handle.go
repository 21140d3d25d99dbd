// File: pool/handle.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle: a scoped lease over one page range with independent read and
// write cursors. Every code path that allocates a handle must release
// it exactly once; double release and use-after-release are programming
// errors and panic.

package pool

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/momentics/hioload-udp/api"
)

// Handle is a lease over a page sub-range, or over a standalone buffer
// when the pool fell back to an unpooled allocation.
type Handle struct {
	page     *Page // nil for unpooled handles
	buf      []byte
	off      int
	rpos     int
	wpos     int
	released atomic.Bool
}

// Pooled reports whether the handle is backed by a page.
func (h *Handle) Pooled() bool { return h.page != nil }

// Cap returns the handle's capacity in bytes.
func (h *Handle) Cap() int { return len(h.buf) }

// Len returns the number of bytes written so far.
func (h *Handle) Len() int { return h.wpos }

// Raw exposes the full capacity slice for a socket read. Pair with
// SetLen to record how many bytes the read produced.
func (h *Handle) Raw() []byte {
	h.check()
	return h.buf
}

// SetLen sets the write cursor after an external fill via Raw.
func (h *Handle) SetLen(n int) {
	h.check()
	if n < 0 || n > len(h.buf) {
		panic("pool: SetLen out of range")
	}
	h.wpos = n
	h.rpos = 0
}

// Bytes returns the written region.
func (h *Handle) Bytes() []byte {
	h.check()
	return h.buf[:h.wpos]
}

// Reset rewinds both cursors, keeping the lease.
func (h *Handle) Reset() {
	h.check()
	h.rpos, h.wpos = 0, 0
}

// Write appends p at the write cursor. A write that does not fit fails
// whole with api.ErrCapacityExceeded; the cursor does not move.
func (h *Handle) Write(p []byte) (int, error) {
	h.check()
	if h.wpos+len(p) > len(h.buf) {
		return 0, api.ErrCapacityExceeded
	}
	copy(h.buf[h.wpos:], p)
	h.wpos += len(p)
	return len(p), nil
}

// WriteUint32 appends v in big-endian byte order.
func (h *Handle) WriteUint32(v uint32) error {
	h.check()
	if h.wpos+4 > len(h.buf) {
		return api.ErrCapacityExceeded
	}
	binary.BigEndian.PutUint32(h.buf[h.wpos:], v)
	h.wpos += 4
	return nil
}

// WriteLengthPrefixed appends a 4-byte big-endian length followed by p.
// The handle is untouched unless the whole record fits.
func (h *Handle) WriteLengthPrefixed(p []byte) error {
	h.check()
	if h.wpos+4+len(p) > len(h.buf) {
		return api.ErrCapacityExceeded
	}
	binary.BigEndian.PutUint32(h.buf[h.wpos:], uint32(len(p)))
	copy(h.buf[h.wpos+4:], p)
	h.wpos += 4 + len(p)
	return nil
}

// ReadableBytes returns the unread region between the cursors.
func (h *Handle) ReadableBytes() []byte {
	h.check()
	return h.buf[h.rpos:h.wpos]
}

// Skip advances the read cursor by n.
func (h *Handle) Skip(n int) {
	h.check()
	if h.rpos+n > h.wpos {
		panic("pool: skip past write cursor")
	}
	h.rpos += n
}

// Release returns the range to its owning page. Releasing twice panics.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		panic("pool: handle released twice")
	}
	if h.page != nil {
		h.page.release(h.off, len(h.buf))
		h.buf = nil
	}
}

func (h *Handle) check() {
	if h.released.Load() {
		panic("pool: handle used after release")
	}
}
