//go:build linux

package server_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-udp/api"
	"github.com/momentics/hioload-udp/server"
	"github.com/momentics/hioload-udp/transport"
)

// stringCodec treats every datagram as one complete text message.
// Payloads starting with '!' fail the decode; "empty" decodes to nil.
var stringCodec = api.CodecFunc(func(data []byte, _ api.Session) (any, error) {
	s := string(data)
	if len(s) > 0 && s[0] == '!' {
		return nil, errors.New("malformed payload")
	}
	if s == "empty" {
		return nil, nil
	}
	return s, nil
})

// echoProcessor records traffic and echoes every message back through
// the session's output handle.
type echoProcessor struct {
	mu       sync.Mutex
	msgs     []string
	sessions []api.Session
	events   []api.StateEvent
	causes   []error
	block    chan struct{} // when set, Process waits on it
}

func (p *echoProcessor) Process(s api.Session, msg any) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, msg.(string))
	p.mu.Unlock()

	wb := s.WriteBuffer()
	if _, err := wb.Write([]byte(msg.(string))); err != nil {
		return err
	}
	return wb.Flush()
}

func (p *echoProcessor) StateEvent(s api.Session, ev api.StateEvent, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	p.causes = append(p.causes, cause)
	if s != nil && ev == api.StateNewSession {
		p.sessions = append(p.sessions, s)
	}
}

func (p *echoProcessor) snapshot() ([]string, []api.StateEvent, []error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.msgs...),
		append([]api.StateEvent(nil), p.events...),
		append([]error(nil), p.causes...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBootstrap(t *testing.T, proc api.Processor, opts ...server.Option) *server.Bootstrap {
	t.Helper()
	opts = append([]server.Option{
		server.WithBanner(false),
		server.WithLogger(quietLogger()),
		server.WithWorkerCount(4),
	}, opts...)
	b := server.New(stringCodec, proc, opts...)
	t.Cleanup(func() {
		b.Shutdown()
		_ = b.Wait()
	})
	return b
}

func dialChannel(t *testing.T, ch *transport.Channel) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: int(ch.LocalAddr().Port()),
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEchoEndToEnd(t *testing.T) {
	proc := &echoProcessor{}
	b := newTestBootstrap(t, proc)

	ch, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn := dialChannel(t, ch)

	if _, err := conn.Write([]byte("PING")); err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("reply read: %v", err)
	}
	if string(buf[:n]) != "PING" {
		t.Fatalf("reply = %q, want PING", buf[:n])
	}

	msgs, _, _ := proc.snapshot()
	if len(msgs) != 1 || msgs[0] != "PING" {
		t.Fatalf("handled = %v, want [PING]", msgs)
	}
}

func TestPerPeerOrderAcrossTheWire(t *testing.T) {
	proc := &echoProcessor{}
	b := newTestBootstrap(t, proc)

	ch, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn := dialChannel(t, ch)

	want := []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6", "m7"}
	for _, m := range want {
		if _, err := conn.Write([]byte(m)); err != nil {
			t.Fatalf("send %s: %v", m, err)
		}
	}

	waitUntil(t, "all messages handled", func() bool {
		msgs, _, _ := proc.snapshot()
		return len(msgs) == len(want)
	})
	msgs, _, _ := proc.snapshot()
	for i := range want {
		if msgs[i] != want[i] {
			t.Fatalf("order broken at %d: got %v", i, msgs)
		}
	}
}

func TestDecodeErrorClosesSessionFreshOnNext(t *testing.T) {
	proc := &echoProcessor{}
	b := newTestBootstrap(t, proc)

	ch, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn := dialChannel(t, ch)

	conn.Write([]byte("hello"))
	waitUntil(t, "first message", func() bool {
		msgs, _, _ := proc.snapshot()
		return len(msgs) == 1
	})

	conn.Write([]byte("!broken"))
	waitUntil(t, "decode error event", func() bool {
		_, events, _ := proc.snapshot()
		for _, ev := range events {
			if ev == api.StateDecodeError {
				return true
			}
		}
		return false
	})

	proc.mu.Lock()
	first := proc.sessions[0]
	proc.mu.Unlock()
	waitUntil(t, "session closed", first.Closed)
	if got := ch.SessionCount(); got != 0 {
		t.Fatalf("session count after decode error = %d, want 0", got)
	}

	// the reconnecting peer gets a fresh session
	conn.Write([]byte("again"))
	waitUntil(t, "fresh session", func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return len(proc.sessions) == 2 && proc.sessions[1] != first
	})
}

func TestEmptyDecodeKeepsSessionOpen(t *testing.T) {
	proc := &echoProcessor{}
	b := newTestBootstrap(t, proc)

	ch, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn := dialChannel(t, ch)

	conn.Write([]byte("empty"))
	waitUntil(t, "empty-decode event", func() bool {
		_, events, causes := proc.snapshot()
		for i, ev := range events {
			if ev == api.StateDecodeError && errors.Is(causes[i], api.ErrEmptyDecode) {
				return true
			}
		}
		return false
	})

	if got := ch.SessionCount(); got != 1 {
		t.Fatalf("session count after empty decode = %d, want 1 (stays open)", got)
	}
	_, events, _ := proc.snapshot()
	decodeEvents := 0
	for _, ev := range events {
		if ev == api.StateDecodeError {
			decodeEvents++
		}
	}
	if decodeEvents != 1 {
		t.Fatalf("decode error events = %d, want exactly 1", decodeEvents)
	}

	// the same session keeps receiving
	conn.Write([]byte("still here"))
	waitUntil(t, "followup message", func() bool {
		msgs, _, _ := proc.snapshot()
		return len(msgs) == 1 && msgs[0] == "still here"
	})
	proc.mu.Lock()
	sessionCount := len(proc.sessions)
	proc.mu.Unlock()
	if sessionCount != 1 {
		t.Fatalf("sessions created = %d, want 1", sessionCount)
	}
}

func TestShutdownDrainsQueuedDatagrams(t *testing.T) {
	proc := &echoProcessor{block: make(chan struct{})}
	b := newTestBootstrap(t, proc)

	ch, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn := dialChannel(t, ch)

	const n = 10
	for i := 0; i < n; i++ {
		if _, err := conn.Write([]byte{'a' + byte(i)}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	// every datagram must be decoded and enqueued before shutdown
	waitUntil(t, "all datagrams dispatched", func() bool {
		_, events, _ := proc.snapshot()
		newSessions := 0
		for _, ev := range events {
			if ev == api.StateNewSession {
				newSessions++
			}
		}
		return newSessions == 1 && b.Dispatched() >= n
	})

	b.Shutdown()
	close(proc.block)
	if err := b.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	msgs, _, _ := proc.snapshot()
	if len(msgs) != n {
		t.Fatalf("handled %d of %d queued messages before worker exit", len(msgs), n)
	}
}

// failingSendSocket reads normally but every send fails at the syscall
// layer, as a full or broken kernel path would.
type failingSendSocket struct {
	transport.PacketSocket
}

var errKernelSend = errors.New("sendto: no buffer space available")

func (f *failingSendSocket) WriteTo(p []byte, to netip.AddrPort) (int, error) {
	return 0, errKernelSend
}

func TestSendFailureScopedToChannel(t *testing.T) {
	proc := &echoProcessor{}
	b := newTestBootstrap(t, proc)
	b.SetSocketFactory(func(host string, port int) (transport.PacketSocket, error) {
		sock, err := transport.NewPacketSocket(host, port)
		if err != nil {
			return nil, err
		}
		return &failingSendSocket{PacketSocket: sock}, nil
	})

	ch, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn := dialChannel(t, ch)

	// the echo reply's send fails, which must close this channel only
	if _, err := conn.Write([]byte("PING")); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitUntil(t, "channel error event", func() bool {
		_, events, causes := proc.snapshot()
		for i, ev := range events {
			if ev == api.StateChannelError && errors.Is(causes[i], errKernelSend) {
				return true
			}
		}
		return false
	})
	waitUntil(t, "failed channel closed", ch.Closed)
	if got := ch.SessionCount(); got != 0 {
		t.Fatalf("failed channel still caches %d sessions", got)
	}

	// the reactor survives: a healthy channel opened afterwards echoes
	b.SetSocketFactory(transport.NewPacketSocket)
	ch2, err := b.OpenAddr("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("open second channel: %v", err)
	}
	conn2 := dialChannel(t, ch2)
	if _, err := conn2.Write([]byte("STILL-UP")); err != nil {
		t.Fatalf("send: %v", err)
	}
	conn2.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 128)
	n, err := conn2.Read(buf)
	if err != nil {
		t.Fatalf("reply read on healthy channel: %v", err)
	}
	if string(buf[:n]) != "STILL-UP" {
		t.Fatalf("reply = %q, want STILL-UP", buf[:n])
	}
}

func TestOpenAfterShutdownFails(t *testing.T) {
	proc := &echoProcessor{}
	b := newTestBootstrap(t, proc)

	if _, err := b.OpenAddr("127.0.0.1", 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	b.Shutdown()
	if err := b.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if _, err := b.Open(); !errors.Is(err, server.ErrShutdown) {
		t.Fatalf("open after shutdown err = %v, want ErrShutdown", err)
	}
}
