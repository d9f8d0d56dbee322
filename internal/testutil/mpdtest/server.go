package mpdtest

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/mpdctl/internal/protocol"
	"github.com/gorilla/websocket"
)

// Handler answers one command with its data lines or an error. A
// protocol.ProtocolError is written as an ACK with its code; any other error
// becomes ACK code 5.
type Handler func(cmd string) ([]string, error)

// Static answers commands from a fixed table and rejects everything else.
func Static(responses map[string][]string) Handler {
	return func(cmd string) ([]string, error) {
		lines, ok := responses[cmd]
		if !ok {
			return nil, protocol.ProtocolError{
				Code:    protocol.AckErrorUnknown,
				Message: fmt.Sprintf("unknown command %q", commandName(cmd)),
			}
		}
		return lines, nil
	}
}

// Server is a scripted in-process MPD daemon. It implements the greeting,
// single commands, command_list_ok_begin lists (list_OK per member then OK),
// and idle/noidle with queued change events.
type Server struct {
	// Version is announced in the greeting.
	Version string
	// ChunkSize, when positive, splits every response into writes of at
	// most that many bytes.
	ChunkSize int

	handler Handler

	mu       sync.Mutex
	conns    map[*serverConn]struct{}
	received []string
	closers  []io.Closer
	wg       sync.WaitGroup
}

func NewServer(h Handler) *Server {
	return &Server{
		Version: "0.23.5",
		handler: h,
		conns:   make(map[*serverConn]struct{}),
	}
}

// ListenTCP serves on a loopback TCP port until the test ends.
func (s *Server) ListenTCP(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen tcp: %v", err)
	}
	s.serve(t, ln)
	return ln.Addr().String()
}

// ListenUnix serves on a socket in a temp dir until the test ends.
func (s *Server) ListenUnix(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mpd.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	s.serve(t, ln)
	return path
}

// ListenTLS serves TLS on a loopback TCP port until the test ends.
func (s *Server) ListenTLS(t testing.TB, cfg *tls.Config) string {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("listen tls: %v", err)
	}
	s.serve(t, ln)
	return ln.Addr().String()
}

func (s *Server) serve(t testing.TB, ln net.Listener) {
	s.track(ln)
	t.Cleanup(s.Close)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.track(conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				s.serveConn(conn, conn)
			}()
		}
	}()
}

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"base64"},
	CheckOrigin:  func(*http.Request) bool { return true },
}

// WebSocketHandler serves the protocol over a WebSocket using base64 text
// frames, the way websockify-style bridges expose MPD.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.track(ws)
		defer ws.Close()
		s.serveConn(&wsReader{ws: ws}, &wsWriter{ws: ws})
	})
}

// Notify records subsystem changes for every connection. Idle connections are
// woken immediately; others see the changes on their next idle.
func (s *Server) Notify(subsystems ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.queue(subsystems)
	}
}

// Received returns every line the server read, in order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Count returns how many received lines equal line.
func (s *Server) Count(line string) int {
	n := 0
	for _, got := range s.Received() {
		if got == line {
			n++
		}
	}
	return n
}

func (s *Server) Close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	s.wg.Wait()
}

func (s *Server) track(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

func (s *Server) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, line)
}

type serverConn struct {
	srv *Server
	w   io.Writer

	mu      sync.Mutex
	changes []string
	wake    chan struct{}
}

func (c *serverConn) queue(subsystems []string) {
	c.mu.Lock()
	for _, sub := range subsystems {
		dup := false
		for _, have := range c.changes {
			if have == sub {
				dup = true
				break
			}
		}
		if !dup {
			c.changes = append(c.changes, sub)
		}
	}
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *serverConn) takeChanges() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.changes
	c.changes = nil
	return out
}

func (s *Server) serveConn(r io.Reader, w io.Writer) {
	c := &serverConn{srv: s, w: w, wake: make(chan struct{}, 1)}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	if err := c.write("OK MPD " + s.Version + "\n"); err != nil {
		return
	}
	for line := range lines {
		s.record(line)
		var err error
		switch line {
		case protocol.CommandIdle:
			err = c.idle(lines)
		case protocol.CommandNoIdle:
		case protocol.CommandListBegin, "command_list_begin":
			err = c.list(lines, line == protocol.CommandListBegin)
		default:
			err = c.write(c.single(line))
		}
		if err != nil {
			return
		}
	}
}

func (c *serverConn) single(cmd string) string {
	var b bytes.Buffer
	body, err := c.srv.handler(cmd)
	if err != nil {
		writeAck(&b, 0, cmd, err)
		return b.String()
	}
	writeLines(&b, body)
	b.WriteString("OK\n")
	return b.String()
}

func (c *serverConn) list(lines <-chan string, withListOK bool) error {
	var cmds []string
	for line := range lines {
		c.srv.record(line)
		if line == protocol.CommandListEnd {
			break
		}
		cmds = append(cmds, line)
	}
	var b bytes.Buffer
	for i, cmd := range cmds {
		body, err := c.srv.handler(cmd)
		if err != nil {
			writeAck(&b, i, cmd, err)
			return c.write(b.String())
		}
		writeLines(&b, body)
		if withListOK {
			b.WriteString("list_OK\n")
		}
	}
	b.WriteString("OK\n")
	return c.write(b.String())
}

var errIdleViolation = errors.New("mpdtest: command other than noidle during idle")

func (c *serverConn) idle(lines <-chan string) error {
	for {
		if changes := c.takeChanges(); len(changes) > 0 {
			var b bytes.Buffer
			for _, sub := range changes {
				b.WriteString("changed: " + sub + "\n")
			}
			b.WriteString("OK\n")
			return c.write(b.String())
		}
		select {
		case line, ok := <-lines:
			if !ok {
				return io.EOF
			}
			c.srv.record(line)
			if line != protocol.CommandNoIdle {
				return errIdleViolation
			}
			return c.write("OK\n")
		case <-c.wake:
		}
	}
}

func (c *serverConn) write(s string) error {
	size := c.srv.ChunkSize
	if size <= 0 {
		size = len(s)
	}
	for len(s) > 0 {
		n := min(size, len(s))
		if _, err := io.WriteString(c.w, s[:n]); err != nil {
			return err
		}
		s = s[n:]
	}
	return nil
}

func writeLines(b *bytes.Buffer, lines []string) {
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

func writeAck(b *bytes.Buffer, pos int, cmd string, err error) {
	var perr protocol.ProtocolError
	if !errors.As(err, &perr) {
		perr = protocol.ProtocolError{Code: protocol.AckErrorUnknown, Message: err.Error()}
	}
	fmt.Fprintf(b, "ACK [%d@%d] {%s} %s\n", perr.Code, pos, commandName(cmd), perr.Message)
}

func commandName(cmd string) string {
	name, _, _ := strings.Cut(cmd, " ")
	return name
}

type wsReader struct {
	ws  *websocket.Conn
	buf []byte
}

func (r *wsReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		_, msg, err := r.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		decoded, err := base64.StdEncoding.DecodeString(string(msg))
		if err != nil {
			return 0, err
		}
		r.buf = decoded
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

type wsWriter struct {
	ws *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	enc := base64.StdEncoding.EncodeToString(p)
	if err := w.ws.WriteMessage(websocket.TextMessage, []byte(enc)); err != nil {
		return 0, err
	}
	return len(p), nil
}
