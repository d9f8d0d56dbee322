package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrAddressRequired   = errors.New("transport: address required")
	ErrUnsupportedScheme = errors.New("transport: unsupported scheme")
	ErrNotConnected      = errors.New("transport: not connected")
	ErrAlreadyConnected  = errors.New("transport: already connected")
)

// Transport is a duplex text stream to the daemon. Deliveries to onReceive
// carry arbitrary slices of the byte stream; callers reassemble lines.
type Transport interface {
	Connect(ctx context.Context, onReceive func(chunk string)) error
	Send(text string) error
	Close() error
	// Done is closed when the read side ends; Err reports why. A transport
	// closed locally ends with a nil error.
	Done() <-chan struct{}
	Err() error
}

// Options apply to every transport kind.
type Options struct {
	ConnectTimeout time.Duration
	TLS            TLSConfig
}

const readBufferSize = 4096

// lifecycle tracks the end of a transport's read side.
type lifecycle struct {
	once sync.Once
	done chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

func newLifecycle() lifecycle {
	return lifecycle{done: make(chan struct{})}
}

func (l *lifecycle) finish(err error) {
	l.once.Do(func() {
		l.mu.Lock()
		if l.closed {
			err = nil
		}
		l.err = err
		l.mu.Unlock()
		close(l.done)
	})
}

func (l *lifecycle) markClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	already := l.closed
	l.closed = true
	return already
}

func (l *lifecycle) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
