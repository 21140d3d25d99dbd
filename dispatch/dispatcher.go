// File: dispatch/dispatcher.go
// Package dispatch implements the fixed worker pool that fans decoded
// messages out by peer address.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One queue per worker; a session maps to a worker by fnv32a of its
// peer address, fixed for the session's lifetime. That single-consumer
// assignment is what gives per-peer in-order processing and keeps
// per-session state lock-free from the workers' perspective.

package dispatch

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-udp/api"
)

// item is a tagged task-or-shutdown value carried on a worker queue.
type item struct {
	session  api.Session
	msg      any
	shutdown bool
}

// Pool is the fixed set of dispatch workers.
type Pool struct {
	proc    api.Processor
	queues  []chan item
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
	queued  atomic.Int64
	handled atomic.Int64
}

const defaultQueueDepth = 1024

// NewPool starts workers goroutines, each draining its own queue.
func NewPool(workers int, proc api.Processor, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		proc:   proc,
		queues: make([]chan item, workers),
		logger: logger,
	}
	for i := range p.queues {
		p.queues[i] = make(chan item, defaultQueueDepth)
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// WorkerIndex maps a peer address to its worker. Deterministic and
// stable, so two peers may collide onto one worker; there is no
// ordering requirement across peers.
func WorkerIndex(peer netip.AddrPort, workers int) int {
	h := fnv.New32a()
	b, _ := peer.MarshalBinary()
	h.Write(b)
	return int(h.Sum32()&0x7fffffff) % workers
}

// Dispatch enqueues one decoded message on the worker owning the
// session's peer. Blocks when that worker's queue is full, which
// back-pressures the reactor rather than dropping or reordering.
func (p *Pool) Dispatch(session api.Session, msg any) error {
	if p.closed.Load() {
		return api.ErrDispatcherClosed
	}
	p.queues[WorkerIndex(session.Peer(), len(p.queues))] <- item{session: session, msg: msg}
	p.queued.Add(1)
	return nil
}

// Shutdown enqueues one sentinel per worker. Workers drain everything
// already queued before exiting; graceful, not immediate.
func (p *Pool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for _, q := range p.queues {
		q <- item{shutdown: true}
	}
}

// Wait blocks until every worker has drained and exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Handled returns the number of processed messages.
func (p *Pool) Handled() int64 {
	return p.handled.Load()
}

// Dispatched returns the number of messages accepted onto queues.
func (p *Pool) Dispatched() int64 {
	return p.queued.Load()
}

func (p *Pool) run(idx int) {
	defer p.wg.Done()
	q := p.queues[idx]
	for it := range q {
		if it.shutdown {
			// drain whatever raced in behind the sentinel
			for {
				select {
				case it := <-q:
					if !it.shutdown {
						p.process(it)
					}
				default:
					return
				}
			}
		}
		p.process(it)
	}
}

// process invokes the processor, surfacing errors and panics through
// the state-event pipeline instead of crashing the worker.
func (p *Pool) process(it item) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processor panic",
				slog.String("peer", it.session.Peer().String()),
				slog.Any("panic", r))
			p.proc.StateEvent(it.session, api.StateProcessError, recoveredError(r))
		}
		p.handled.Add(1)
	}()
	if err := p.proc.Process(it.session, it.msg); err != nil {
		p.proc.StateEvent(it.session, api.StateProcessError, err)
	}
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
