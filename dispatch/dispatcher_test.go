package dispatch_test

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-udp/api"
	"github.com/momentics/hioload-udp/dispatch"
)

type stubSession struct {
	peer netip.AddrPort
}

func (s *stubSession) Peer() netip.AddrPort         { return s.peer }
func (s *stubSession) LocalAddr() netip.AddrPort    { return netip.AddrPort{} }
func (s *stubSession) WriteBuffer() api.WriteBuffer { return nil }
func (s *stubSession) Close()                       {}
func (s *stubSession) Closed() bool                 { return false }

type recordingProcessor struct {
	mu      sync.Mutex
	msgs    []any
	events  []api.StateEvent
	process func(api.Session, any) error
}

func (p *recordingProcessor) Process(s api.Session, msg any) error {
	if p.process != nil {
		if err := p.process(s, msg); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	return nil
}

func (p *recordingProcessor) StateEvent(_ api.Session, ev api.StateEvent, _ error) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func TestPerPeerOrdering(t *testing.T) {
	proc := &recordingProcessor{}
	pool := dispatch.NewPool(4, proc, nil)
	s := &stubSession{peer: netip.MustParseAddrPort("10.1.1.1:7000")}

	const n = 200
	for i := 0; i < n; i++ {
		if err := pool.Dispatch(s, i); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	pool.Shutdown()
	pool.Wait()

	if len(proc.msgs) != n {
		t.Fatalf("handled %d messages, want %d", len(proc.msgs), n)
	}
	for i, m := range proc.msgs {
		if m != i {
			t.Fatalf("message %d out of order: got %v", i, m)
		}
	}
}

// pickDistinctWorkers returns two peers assigned to different workers.
func pickDistinctWorkers(t *testing.T, workers int) (a, b *stubSession) {
	t.Helper()
	a = &stubSession{peer: netip.MustParseAddrPort("10.2.0.1:7000")}
	for port := 7001; port < 7200; port++ {
		p := netip.MustParseAddrPort(fmt.Sprintf("10.2.0.2:%d", port))
		if dispatch.WorkerIndex(p, workers) != dispatch.WorkerIndex(a.peer, workers) {
			return a, &stubSession{peer: p}
		}
	}
	t.Fatal("no peer pair with distinct workers found")
	return nil, nil
}

func TestSlowPeerDoesNotBlockOtherWorker(t *testing.T) {
	const workers = 4
	slow, fast := pickDistinctWorkers(t, workers)

	release := make(chan struct{})
	fastDone := make(chan struct{})
	proc := &recordingProcessor{
		process: func(s api.Session, msg any) error {
			switch s.(*stubSession) {
			case slow:
				<-release
			case fast:
				close(fastDone)
			}
			return nil
		},
	}
	pool := dispatch.NewPool(workers, proc, nil)

	pool.Dispatch(slow, "stall")
	pool.Dispatch(fast, "quick")

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("fast peer blocked behind slow peer on another worker")
	}
	close(release)
	pool.Shutdown()
	pool.Wait()
}

func TestProcessorErrorSurfacesAsStateEvent(t *testing.T) {
	boom := errors.New("boom")
	proc := &recordingProcessor{
		process: func(api.Session, any) error { return boom },
	}
	pool := dispatch.NewPool(1, proc, nil)
	s := &stubSession{peer: netip.MustParseAddrPort("10.3.0.1:7000")}

	pool.Dispatch(s, "first")
	pool.Dispatch(s, "second")
	pool.Shutdown()
	pool.Wait()

	if len(proc.events) != 2 {
		t.Fatalf("events = %v, want two PROCESS_ERROR", proc.events)
	}
	for _, ev := range proc.events {
		if ev != api.StateProcessError {
			t.Fatalf("event = %v, want PROCESS_ERROR", ev)
		}
	}
}

func TestProcessorPanicKeepsWorkerAlive(t *testing.T) {
	proc := &recordingProcessor{
		process: func(_ api.Session, msg any) error {
			if msg == "bad" {
				panic("handler exploded")
			}
			return nil
		},
	}
	pool := dispatch.NewPool(1, proc, nil)
	s := &stubSession{peer: netip.MustParseAddrPort("10.4.0.1:7000")}

	pool.Dispatch(s, "bad")
	pool.Dispatch(s, "good")
	pool.Shutdown()
	pool.Wait()

	if len(proc.msgs) != 1 || proc.msgs[0] != "good" {
		t.Fatalf("msgs = %v, want [good]", proc.msgs)
	}
	if len(proc.events) != 1 || proc.events[0] != api.StateProcessError {
		t.Fatalf("events = %v, want one PROCESS_ERROR", proc.events)
	}
}

func TestShutdownDrainsQueuedWork(t *testing.T) {
	gate := make(chan struct{})
	proc := &recordingProcessor{
		process: func(api.Session, any) error {
			<-gate
			return nil
		},
	}
	pool := dispatch.NewPool(2, proc, nil)

	const n = 50
	sessions := []*stubSession{
		{peer: netip.MustParseAddrPort("10.5.0.1:7000")},
		{peer: netip.MustParseAddrPort("10.5.0.2:7000")},
	}
	for i := 0; i < n; i++ {
		if err := pool.Dispatch(sessions[i%2], i); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	pool.Shutdown()
	close(gate)
	pool.Wait()

	if got := pool.Handled(); got != n {
		t.Fatalf("handled = %d, want %d (graceful drain)", got, n)
	}
	if err := pool.Dispatch(sessions[0], "late"); !errors.Is(err, api.ErrDispatcherClosed) {
		t.Fatalf("dispatch after shutdown err = %v", err)
	}
}
