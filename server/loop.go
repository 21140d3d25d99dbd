// File: server/loop.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The reactor run loop. Exactly one goroutine per bootstrap executes
// this; it is the sole reader of the multiplexer and the only thread
// that creates sessions. The single read handle is leased once for the
// loop's lifetime and reset per datagram.

package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/momentics/hioload-udp/api"
	"github.com/momentics/hioload-udp/pool"
	"github.com/momentics/hioload-udp/reactor"
	"github.com/momentics/hioload-udp/transport"
)

const (
	// maxReadsPerWake bounds successive non-blocking receives on one
	// channel per readiness pass, so a noisy peer cannot starve the
	// other channels.
	maxReadsPerWake = 16

	maxEventsPerWait = 64
)

func (b *Bootstrap) runLoop() {
	defer close(b.loopDone)

	readBuf := b.pool.Allocate(b.cfg.ReadBufferSize)
	defer readBuf.Release()

	events := make([]reactor.Event, maxEventsPerWait)
	for {
		n, err := b.rx.Wait(events)
		if err != nil {
			// multiplexer failure is unrecoverable for this runtime
			b.fatal = err
			b.logger.Error("multiplexer wait failed", slog.String("error", err.Error()))
			b.state.Store(stateStopped)
			return
		}

		for i := 0; i < n; i++ {
			ch := b.channel(events[i].FD)
			if ch == nil {
				continue
			}
			if ch.Closed() {
				b.dropChannel(ch)
				continue
			}
			mask := events[i].Mask
			if mask&reactor.EventError != 0 {
				b.failChannel(ch, fmt.Errorf("socket error condition on %s", ch.LocalAddr()))
				continue
			}
			if mask&reactor.EventRead != 0 {
				if err := b.readChannel(ch, readBuf); err != nil {
					b.logger.Warn("read pass aborted",
						slog.String("addr", ch.LocalAddr().String()),
						slog.String("error", err.Error()))
				}
			}
			if mask&reactor.EventWrite != 0 {
				if err := ch.DrainWrites(); err != nil {
					b.failChannel(ch, err)
				}
			}
		}

		if b.state.Load() == stateStopping {
			break
		}
	}
	b.state.Store(stateStopped)
}

// readChannel drains up to maxReadsPerWake datagrams from one channel.
// A decode error closes the offending peer's session and aborts the
// remainder of this channel's pass; it is never fatal to the reactor.
func (b *Bootstrap) readChannel(ch *transport.Channel, readBuf *pool.Handle) error {
	for i := 0; i < maxReadsPerWake; i++ {
		readBuf.Reset()
		n, from, err := ch.ReadFrom(readBuf.Raw())
		if errors.Is(err, transport.ErrAgain) {
			return nil
		}
		if err != nil {
			b.failChannel(ch, err)
			return err
		}
		readBuf.SetLen(n)

		s, fresh, ok := ch.Session(from)
		if !ok {
			// peer rejected by an accept gate
			continue
		}
		if fresh {
			b.metrics.SessionOpened()
			b.pipeline.StateEvent(s, api.StateNewSession, nil)
		}

		b.pipeline.BeforeRead(s)
		b.pipeline.AfterRead(s, n)
		b.metrics.ObserveReceive(n)

		msg, err := b.codec.Decode(readBuf.Bytes(), s)
		if err != nil {
			b.metrics.ObserveDecodeError()
			b.pipeline.StateEvent(s, api.StateDecodeError, err)
			s.Close()
			return fmt.Errorf("decode from %s: %w", from, err)
		}
		if msg == nil {
			// a datagram is one complete message; an empty decode is a
			// protocol violation but does not close the session
			b.metrics.ObserveDecodeError()
			b.pipeline.StateEvent(s, api.StateDecodeError, api.ErrEmptyDecode)
			continue
		}

		if err := b.workers.Dispatch(s, msg); err != nil {
			return err
		}
	}
	return nil
}

// failChannel scopes an I/O failure to one channel: the state event
// fires, the channel closes, the reactor keeps running.
func (b *Bootstrap) failChannel(ch *transport.Channel, cause error) {
	b.logger.Error("channel failed",
		slog.String("addr", ch.LocalAddr().String()),
		slog.String("error", cause.Error()))
	b.pipeline.StateEvent(nil, api.StateChannelError, cause)
	b.dropChannel(ch)
}
