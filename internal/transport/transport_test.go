package transport

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/mpdctl/internal/protocol/session"
	"github.com/danmuck/mpdctl/internal/testutil/mpdtest"
	"github.com/danmuck/mpdctl/internal/testutil/testlog"
	"github.com/danmuck/mpdctl/internal/testutil/tlstest"
)

type collector struct {
	mu   sync.Mutex
	buf  strings.Builder
	wake chan struct{}
}

func newCollector() *collector {
	return &collector{wake: make(chan struct{}, 1)}
}

func (c *collector) receive(chunk string) {
	c.mu.Lock()
	c.buf.WriteString(chunk)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *collector) waitFor(t *testing.T, want string) {
	t.Helper()
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	for !strings.Contains(c.String(), want) {
		select {
		case <-c.wake:
		case <-timer.C:
			t.Fatalf("timed out waiting for %q, got=%q", want, c.String())
		}
	}
}

func statusServer() *mpdtest.Server {
	return mpdtest.NewServer(mpdtest.Static(map[string][]string{
		"status": {"volume: 50", "state: play"},
	}))
}

func exchange(t *testing.T, tr Transport) {
	t.Helper()
	c := newCollector()
	if err := tr.Connect(context.Background(), c.receive); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.waitFor(t, "OK MPD 0.23.5\n")
	if err := tr.Send("status\n"); err != nil {
		t.Fatalf("send: %v", err)
	}
	c.waitFor(t, "volume: 50\nstate: play\nOK\n")
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("read side did not end after close")
	}
	if err := tr.Err(); err != nil {
		t.Fatalf("expected nil error after local close, got %v", err)
	}
}

func TestTCPExchange(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	addr := srv.ListenTCP(t)
	exchange(t, NewTCP(addr, Options{ConnectTimeout: time.Second}))
}

func TestUnixExchange(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	path := srv.ListenUnix(t)
	exchange(t, NewUnix(path, Options{}))
}

func TestTLSExchange(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t)
	srv := statusServer()
	addr := srv.ListenTLS(t, ca.ServerConfig(t, false, "127.0.0.1"))
	exchange(t, NewTLS(addr, Options{TLS: TLSConfig{CAFile: ca.CAFile()}}))
}

func TestMutualTLSExchange(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t)
	srv := statusServer()
	addr := srv.ListenTLS(t, ca.ServerConfig(t, true, "127.0.0.1"))
	certFile, keyFile := ca.ClientFiles(t)
	exchange(t, NewTLS(addr, Options{TLS: TLSConfig{
		CAFile:   ca.CAFile(),
		CertFile: certFile,
		KeyFile:  keyFile,
	}}))
}

func TestTLSRejectsUntrustedServer(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t)
	srv := statusServer()
	addr := srv.ListenTLS(t, ca.ServerConfig(t, false, "127.0.0.1"))
	tr := NewTLS(addr, Options{ConnectTimeout: time.Second})
	if err := tr.Connect(context.Background(), func(string) {}); err == nil {
		t.Fatalf("expected certificate verification failure")
	}
}

func TestTLSConfigValidate(t *testing.T) {
	testlog.Start(t)
	if err := (TLSConfig{Enabled: true, CertFile: "c.pem"}).Validate(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}
	if err := (TLSConfig{Enabled: true, KeyFile: "c.key"}).Validate(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}
	if err := (TLSConfig{CertFile: "c.pem"}).Validate(); err != nil {
		t.Fatalf("disabled config must validate, got %v", err)
	}
	cfg, err := (TLSConfig{Enabled: true}).ClientConfig("music.local:6600")
	if err != nil {
		t.Fatalf("client config: %v", err)
	}
	if cfg.ServerName != "music.local" {
		t.Fatalf("unexpected server name: %q", cfg.ServerName)
	}
}

func TestWebSocketExchange(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	hs := httptest.NewServer(srv.WebSocketHandler())
	t.Cleanup(hs.Close)
	t.Cleanup(srv.Close)
	exchange(t, NewWebSocket("ws"+strings.TrimPrefix(hs.URL, "http"), Options{ConnectTimeout: time.Second}))
}

func TestSendBeforeConnect(t *testing.T) {
	testlog.Start(t)
	for _, tr := range []Transport{NewTCP("127.0.0.1:1", Options{}), NewWebSocket("ws://127.0.0.1:1/", Options{})} {
		if err := tr.Send("status\n"); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected, got %v", err)
		}
		if err := tr.Close(); err != nil {
			t.Fatalf("close unconnected: %v", err)
		}
		select {
		case <-tr.Done():
		default:
			t.Fatalf("closing an unconnected transport must end it")
		}
	}
}

func TestPeerHangupEndsReadSide(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	addr := srv.ListenTCP(t)
	tr := NewTCP(addr, Options{})
	c := newCollector()
	if err := tr.Connect(context.Background(), c.receive); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.waitFor(t, "OK MPD")
	srv.Close()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("read side did not end after hangup")
	}
	_ = tr.Close()
}

func TestFromAddress(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		addr string
		want string
	}{
		{addr: "localhost", want: "tcp://localhost:6600"},
		{addr: "music.local:6601", want: "tcp://music.local:6601"},
		{addr: "tcp://10.0.0.2", want: "tcp://10.0.0.2:6600"},
		{addr: "tls://music.local:6697", want: "tls://music.local:6697"},
		{addr: "/run/mpd/socket", want: "unix:///run/mpd/socket"},
		{addr: "unix:///run/mpd/socket", want: "unix:///run/mpd/socket"},
		{addr: "ws://music.local:8800/mpd", want: "ws://music.local:8800/mpd"},
		{addr: "wss://music.local/mpd", want: "wss://music.local/mpd"},
		{addr: "[::1]", want: "tcp://[::1]:6600"},
	}
	for _, tc := range cases {
		tr, err := FromAddress(tc.addr, Options{})
		if err != nil {
			t.Fatalf("%s: %v", tc.addr, err)
		}
		got := tr.(interface{ String() string }).String()
		if got != tc.want {
			t.Fatalf("%s: got=%q want=%q", tc.addr, got, tc.want)
		}
	}

	if _, err := FromAddress("  ", Options{}); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
	if _, err := FromAddress("http://music.local", Options{}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	if _, err := FromAddress("tcp://", Options{}); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}

type flakyTransport struct {
	Transport
	failures int
	attempts int
}

func (f *flakyTransport) Connect(ctx context.Context, onReceive func(string)) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("connection refused")
	}
	return f.Transport.Connect(ctx, onReceive)
}

var fastBackoff = session.BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}

func TestRetryConnectsAfterFailures(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	addr := srv.ListenTCP(t)
	flaky := &flakyTransport{Transport: NewTCP(addr, Options{}), failures: 2}
	tr := WithRetry(flaky, fastBackoff, 5)
	c := newCollector()
	if err := tr.Connect(context.Background(), c.receive); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if flaky.attempts != 3 {
		t.Fatalf("unexpected attempts: %d", flaky.attempts)
	}
	c.waitFor(t, "OK MPD")
	_ = tr.Close()
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	flaky := &flakyTransport{Transport: NewTCP("127.0.0.1:1", Options{}), failures: 10}
	tr := WithRetry(flaky, fastBackoff, 3)
	if err := tr.Connect(context.Background(), func(string) {}); err == nil {
		t.Fatalf("expected failure")
	}
	if flaky.attempts != 3 {
		t.Fatalf("unexpected attempts: %d", flaky.attempts)
	}
}

func TestRetryStopsOnContext(t *testing.T) {
	testlog.Start(t)
	flaky := &flakyTransport{Transport: NewTCP("127.0.0.1:1", Options{}), failures: 1000}
	tr := WithRetry(flaky, session.BackoffConfig{InitialDelay: time.Hour}, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tr.Connect(ctx, func(string) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEngineOverSplitTCPStream(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	srv.ChunkSize = 1
	addr := srv.ListenTCP(t)

	e, err := session.New(NewTCP(addr, Options{}), session.DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if v, _ := e.Version(); v.Minor != 23 {
		t.Fatalf("unexpected version: %+v", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	first := e.Submit("status")
	second := e.Submit("status")
	for _, call := range []*session.Call{first, second} {
		resp, err := call.Wait(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if resp.Map()["state"] != "play" {
			t.Fatalf("unexpected response: %v", resp.Map())
		}
	}
	if _, err := e.Do(ctx, "bogus"); err == nil {
		t.Fatalf("expected ACK for unknown command")
	}
	if srv.Count("noidle") > srv.Count("idle") {
		t.Fatalf("more noidle than idle: received=%q", srv.Received())
	}
}

func TestEngineClosesWhenPeerHangsUp(t *testing.T) {
	testlog.Start(t)
	srv := statusServer()
	addr := srv.ListenTCP(t)
	e, err := session.New(NewTCP(addr, Options{}), session.DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Close()
	deadline := time.Now().Add(2 * time.Second)
	for e.Phase() != session.PhaseClosed {
		if time.Now().After(deadline) {
			t.Fatalf("engine still %s after hangup", e.Phase())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := e.Do(context.Background(), "status"); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
