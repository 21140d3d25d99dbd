// File: server/bootstrap.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bootstrap: the per-instance runtime. One reactor goroutine owns the
// multiplexer and drives every bound channel; a fixed worker pool
// processes decoded messages keyed by peer address. There is no hidden
// process-wide state: two bootstraps never share a pool or a reactor.

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-udp/api"
	"github.com/momentics/hioload-udp/control"
	"github.com/momentics/hioload-udp/dispatch"
	"github.com/momentics/hioload-udp/plugins"
	"github.com/momentics/hioload-udp/pool"
	"github.com/momentics/hioload-udp/reactor"
	"github.com/momentics/hioload-udp/transport"
)

type runState = int32

const (
	stateInit runState = iota
	stateRunning
	stateStopping
	stateStopped
)

// ErrShutdown is returned by Open after Shutdown was called.
var ErrShutdown = errors.New("server: bootstrap has been shut down")

// Bootstrap wires codec, processor, pool, reactor and workers into one
// UDP runtime instance.
type Bootstrap struct {
	cfg      *Config
	codec    api.Codec
	plugins  []*plugins.Plugin
	pipeline *plugins.Pipeline
	logger   *slog.Logger
	metrics  *control.Metrics

	// newSocket builds bound sockets; swappable so tests can inject
	// failing transports.
	newSocket func(host string, port int) (transport.PacketSocket, error)

	mu       sync.Mutex // guards lazy start and open
	state    atomic.Int32
	pool     *pool.PagePool
	rx       reactor.EventReactor
	workers  *dispatch.Pool
	loopDone chan struct{}
	fatal    error // multiplexer failure, read before loopDone closes

	chmu     sync.RWMutex
	channels map[uintptr]*transport.Channel

	teardown sync.Once
}

// New builds a bootstrap around a codec and a processor. Nothing is
// bound or started until the first Open call.
func New(codec api.Codec, proc api.Processor, opts ...Option) *Bootstrap {
	b := &Bootstrap{
		cfg:       DefaultConfig(),
		codec:     codec,
		logger:    slog.Default(),
		newSocket: transport.NewPacketSocket,
		channels:  make(map[uintptr]*transport.Channel),
	}
	for _, o := range opts {
		o(b)
	}
	b.cfg.normalize()
	if b.metrics != nil {
		b.plugins = append(b.plugins, &plugins.Plugin{
			StateEvent: func(ev api.StateEvent, _ api.Session, _ error) {
				if ev == api.StateProcessError {
					b.metrics.ObserveProcessError()
				}
			},
		})
	}
	b.pipeline = plugins.NewPipeline(proc, b.plugins...)
	return b
}

// Open binds a channel on a random ephemeral port.
func (b *Bootstrap) Open() (*transport.Channel, error) {
	return b.OpenAddr("", 0)
}

// OpenPort binds a channel on the given port on the wildcard address.
func (b *Bootstrap) OpenPort(port int) (*transport.Channel, error) {
	return b.OpenAddr("", port)
}

// OpenAddr binds a channel on host:port and registers it with the
// reactor. The first successful open lazily starts the runtime.
func (b *Bootstrap) OpenAddr(host string, port int) (*transport.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.Load() {
	case stateStopping, stateStopped:
		return nil, ErrShutdown
	case stateInit:
		if err := b.start(); err != nil {
			return nil, err
		}
	}

	sock, err := b.newSocket(host, port)
	if err != nil {
		return nil, err
	}

	var ch *transport.Channel
	ch = transport.NewChannel(sock, b.pool, b.cfg.WriteBufferSize, transport.Hooks{
		SetWriteInterest: func(c *transport.Channel, enable bool) error {
			mask := reactor.EventRead
			if enable {
				mask |= reactor.EventWrite
			}
			return b.rx.Modify(c.FD(), mask)
		},
		Accept: b.pipeline.Accept,
		StateEvent: func(s *transport.Session, ev api.StateEvent, cause error) {
			if ev == api.StateSessionClosed {
				b.metrics.SessionClosed()
			}
			b.pipeline.StateEvent(s, ev, cause)
		},
		AfterWrite: func(to netip.AddrPort, n int) {
			b.metrics.ObserveSend(n)
			s, _ := ch.Lookup(to)
			if s != nil {
				b.pipeline.AfterWrite(s, n)
			} else {
				b.pipeline.AfterWrite(nil, n)
			}
		},
		WriteQueued:   b.metrics.WriteQueued,
		WriteReleased: b.metrics.WriteReleased,
	})

	fd := ch.FD()
	b.chmu.Lock()
	b.channels[fd] = ch
	b.chmu.Unlock()

	if err := b.rx.Register(fd, reactor.EventRead); err != nil {
		b.chmu.Lock()
		delete(b.channels, fd)
		b.chmu.Unlock()
		ch.Close()
		return nil, fmt.Errorf("register channel: %w", err)
	}

	b.logger.Info("channel opened", slog.String("addr", ch.LocalAddr().String()))
	return ch, nil
}

// start brings up pool, reactor and workers. Caller holds b.mu.
func (b *Bootstrap) start() error {
	rx, err := reactor.NewReactor()
	if err != nil {
		return err
	}
	b.rx = rx
	b.pool = pool.NewPagePool(b.cfg.PoolPageSize, b.cfg.PoolPageCount, b.cfg.IdleReclaimInterval)
	b.workers = dispatch.NewPool(b.cfg.WorkerCount, b.pipeline, b.logger)
	b.loopDone = make(chan struct{})

	if b.cfg.BannerEnabled {
		fmt.Printf("%s\r\n :: hioload-udp ::\t(%s)\n", banner, Version)
	}

	b.state.Store(stateRunning)
	go b.runLoop()
	return nil
}

// Shutdown requests a cooperative stop: the reactor is woken and one
// sentinel is enqueued per worker queue. Best-effort asynchronous; use
// Wait to join.
func (b *Bootstrap) Shutdown() {
	b.mu.Lock()
	switch b.state.Load() {
	case stateInit:
		// never started, nothing to stop
		b.state.Store(stateStopped)
		b.mu.Unlock()
		return
	case stateStopping, stateStopped:
		b.mu.Unlock()
		return
	}
	b.state.Store(stateStopping)
	b.mu.Unlock()

	if err := b.rx.Wakeup(); err != nil {
		b.logger.Warn("reactor wakeup failed", slog.String("error", err.Error()))
	}
	b.workers.Shutdown()
}

// Wait blocks until the reactor loop has exited and every worker has
// drained, then releases all resources. It returns the multiplexer
// error when the loop died fatally, nil on a clean shutdown.
func (b *Bootstrap) Wait() error {
	if b.state.Load() == stateInit {
		return api.ErrNotRunning
	}
	if b.loopDone == nil {
		return nil
	}
	<-b.loopDone
	b.workers.Shutdown() // idempotent; covers the fatal-loop path
	b.workers.Wait()

	b.teardown.Do(func() {
		b.chmu.Lock()
		for fd, ch := range b.channels {
			if err := b.rx.Unregister(fd); err != nil {
				b.logger.Debug("unregister on teardown", slog.String("error", err.Error()))
			}
			if err := ch.Close(); err != nil {
				b.logger.Warn("channel close", slog.String("error", err.Error()))
			}
		}
		b.channels = make(map[uintptr]*transport.Channel)
		b.chmu.Unlock()
		if err := b.rx.Close(); err != nil {
			b.logger.Warn("reactor close", slog.String("error", err.Error()))
		}
		b.pool.Close()
	})
	return b.fatal
}

// Dispatched reports how many decoded messages have been handed to the
// worker pool since start.
func (b *Bootstrap) Dispatched() int64 {
	if b.workers == nil {
		return 0
	}
	return b.workers.Dispatched()
}

func (b *Bootstrap) channel(fd uintptr) *transport.Channel {
	b.chmu.RLock()
	defer b.chmu.RUnlock()
	return b.channels[fd]
}

func (b *Bootstrap) dropChannel(ch *transport.Channel) {
	fd := ch.FD()
	b.chmu.Lock()
	if b.channels[fd] == ch {
		delete(b.channels, fd)
	}
	b.chmu.Unlock()
	if err := b.rx.Unregister(fd); err != nil {
		b.logger.Debug("unregister channel", slog.String("error", err.Error()))
	}
	if err := ch.Close(); err != nil {
		b.logger.Warn("channel close", slog.String("error", err.Error()))
	}
}
