package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/rs/zerolog"
)

// Stream carries the protocol over a net.Conn: TCP, a Unix socket, or TCP
// wrapped in TLS.
type Stream struct {
	lifecycle

	network string
	address string
	opts    Options
	log     zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
}

func NewTCP(address string, opts Options) *Stream {
	return newStream("tcp", address, opts)
}

func NewUnix(path string, opts Options) *Stream {
	return newStream("unix", path, opts)
}

// NewTLS dials TCP and runs a TLS client handshake before any protocol
// traffic, for daemons fronted by a TLS-terminating proxy.
func NewTLS(address string, opts Options) *Stream {
	opts.TLS.Enabled = true
	return newStream("tcp", address, opts)
}

func newStream(network, address string, opts Options) *Stream {
	return &Stream{
		lifecycle: newLifecycle(),
		network:   network,
		address:   address,
		opts:      opts,
		log:       logging.Component("transport").With().Str("network", network).Str("addr", address).Logger(),
	}
}

func (s *Stream) String() string {
	if s.opts.TLS.Enabled {
		return "tls://" + s.address
	}
	return s.network + "://" + s.address
}

// Connect dials the daemon and starts delivering reads to onReceive. A failed
// Connect may be retried.
func (s *Stream) Connect(ctx context.Context, onReceive func(chunk string)) error {
	if s.address == "" {
		return ErrAddressRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrAlreadyConnected
	}
	if s.isClosed() {
		return net.ErrClosed
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.conn = conn
	s.log.Debug().Msg("connected")
	go s.readLoop(conn, onReceive)
	return nil
}

func (s *Stream) dial(ctx context.Context) (net.Conn, error) {
	if s.opts.TLS.Enabled {
		if err := s.opts.TLS.Validate(); err != nil {
			return nil, err
		}
	}
	dialer := net.Dialer{Timeout: s.opts.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, s.network, s.address)
	if err != nil {
		return nil, err
	}
	if !s.opts.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := s.opts.TLS.ClientConfig(s.address)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *Stream) readLoop(conn net.Conn, onReceive func(string)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			onReceive(string(buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug().Msg("connection closed by peer")
			} else if !s.isClosed() {
				s.log.Warn().Err(err).Msg("read failed")
			}
			s.finish(err)
			return
		}
	}
}

func (s *Stream) Send(text string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := io.WriteString(conn, text)
	return err
}

// Close shuts the connection; the read loop ends on its own. Close never
// waits for it, so it is safe to call from onReceive.
func (s *Stream) Close() error {
	if s.markClosed() {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.finish(nil)
		return nil
	}
	return conn.Close()
}
