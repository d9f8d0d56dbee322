package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/observability"
	"github.com/danmuck/mpdctl/internal/protocol"
	"github.com/rs/zerolog"
)

var (
	ErrTransportRequired = errors.New("session: transport required")
	ErrHandshake         = errors.New("session: handshake failed")
	ErrClosed            = errors.New("session: closed")
	ErrAlreadyStarted    = errors.New("session: already started")
)

// Transport is the duplex byte stream the engine drives. Connect registers
// the delivery callback; deliveries carry no framing guarantees.
type Transport interface {
	Connect(ctx context.Context, onReceive func(chunk string)) error
	Send(text string) error
}

// doneNotifier is implemented by transports that can report the end of the
// read side.
type doneNotifier interface {
	Done() <-chan struct{}
	Err() error
}

// Phase is what the connection is currently waiting on.
type Phase int

const (
	PhaseHandshaking Phase = iota
	PhaseIdling
	PhaseBusy
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseHandshaking:
		return "handshaking"
	case PhaseIdling:
		return "idling"
	case PhaseBusy:
		return "busy"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is a point-in-time view of the engine.
type State struct {
	Phase    Phase
	Version  protocol.Version
	Pending  int
	InFlight int
	Err      error
}

// Engine is the protocol engine for one connection. Submit and transport
// deliveries are serialized by mu; at most one batch is in flight.
type Engine struct {
	cfg       Config
	transport Transport
	log       zerolog.Logger

	mu       sync.Mutex
	started  bool
	phase    Phase
	version  protocol.Version
	lines    protocol.LineReassembler
	body     []protocol.Field
	pending  callQueue
	inflight callQueue
	noidle   bool
	// idleRefused is set when the daemon rejected idle; the engine then
	// waits for the next submitted command instead of asking again.
	idleRefused       bool
	idleRefusalLogged bool
	observers         []Observer
	closeErr          error
	released          bool
	ready             chan struct{}
	readyOnce         sync.Once
	done              chan struct{}
}

func New(t Transport, cfg Config) (*Engine, error) {
	if t == nil {
		return nil, ErrTransportRequired
	}
	return &Engine{
		cfg:       cfg.WithDefaults(),
		transport: t,
		log:       logging.Component("session"),
		phase:     PhaseHandshaking,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start connects the transport and waits for the greeting, bounded by ctx and
// HandshakeTimeout.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	if err := e.transport.Connect(ctx, e.receive); err != nil {
		e.closeWith(fmt.Errorf("%w: connect: %v", ErrClosed, err))
		return err
	}
	if dn, ok := e.transport.(doneNotifier); ok {
		go e.watchTransport(dn)
	}

	waitCtx := ctx
	if e.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.HandshakeTimeout)
		defer cancel()
	}
	select {
	case <-e.ready:
	case <-waitCtx.Done():
		err := fmt.Errorf("%w: %v", ErrHandshake, waitCtx.Err())
		_ = e.closeWith(err)
		return err
	}
	e.mu.Lock()
	err := e.closeErr
	e.mu.Unlock()
	if err != nil {
		_ = e.releaseTransport()
	}
	return err
}

// Ready is closed once the greeting was handled or the engine closed.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Done is closed when the engine closes. Err reports the cause.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns the close cause, or nil while the engine is open.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeErr
}

// Version returns the daemon protocol version once the greeting was parsed.
func (e *Engine) Version() (protocol.Version, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, e.phase != PhaseHandshaking && e.closeErr == nil
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	inflight := e.inflight.Len()
	if e.inflight.Idle() {
		inflight = 0
	}
	return State{
		Phase:    e.phase,
		Version:  e.version,
		Pending:  e.pending.Len(),
		InFlight: inflight,
		Err:      e.closeErr,
	}
}

// Submit enqueues cmd and returns its call. The call is never resolved before
// Submit returns except when the command is rejected outright.
func (e *Engine) Submit(cmd string) *Call {
	call := newCall(cmd)
	if err := protocol.ValidateCommand(cmd); err != nil {
		call.resolve(protocol.Response{}, err)
		return call
	}

	e.mu.Lock()
	if e.phase == PhaseClosed {
		err := e.closeErr
		e.mu.Unlock()
		call.resolve(protocol.Response{}, err)
		return call
	}
	e.pending.PushBack(call)
	switch {
	case e.phase == PhaseIdling:
		e.breakIdleLocked()
	case e.phase == PhaseBusy && e.inflight.Len() == 0:
		e.dispatchLocked()
	}
	closed := e.phase == PhaseClosed
	e.mu.Unlock()
	if closed {
		_ = e.releaseTransport()
	}
	return call
}

// Do submits cmd and waits for its response. When ctx has no deadline the
// configured CommandTimeout bounds the wait.
func (e *Engine) Do(ctx context.Context, cmd string) (protocol.Response, error) {
	call := e.Submit(cmd)
	if _, ok := ctx.Deadline(); !ok && e.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CommandTimeout)
		defer cancel()
	}
	return call.Wait(ctx)
}

// Close fails every outstanding call with ErrClosed and closes the transport
// when it supports it.
func (e *Engine) Close() error {
	return e.closeWith(ErrClosed)
}

func (e *Engine) closeWith(cause error) error {
	e.mu.Lock()
	e.closeLocked(cause)
	e.mu.Unlock()
	return e.releaseTransport()
}

// releaseTransport closes the transport once after the engine closed. Callers
// must not hold mu.
func (e *Engine) releaseTransport() error {
	e.mu.Lock()
	if e.phase != PhaseClosed || e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	e.mu.Unlock()
	if c, ok := e.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Engine) closeLocked(cause error) {
	if e.phase == PhaseClosed {
		return
	}
	if cause == nil {
		cause = ErrClosed
	}
	e.phase = PhaseClosed
	e.closeErr = cause
	failed := append(e.inflight.Drain(), e.pending.Drain()...)
	for _, call := range failed {
		if call.idle {
			continue
		}
		if call.resolve(protocol.Response{}, cause) {
			observability.RecordCommand("closed", time.Since(call.submitted))
		}
	}
	e.body = nil
	e.lines.Reset()
	e.readyOnce.Do(func() { close(e.ready) })
	close(e.done)
	e.log.Debug().Err(cause).Int("failed", len(failed)).Msg("session closed")
}

func (e *Engine) watchTransport(dn doneNotifier) {
	<-dn.Done()
	cause := ErrClosed
	if err := dn.Err(); err != nil && !errors.Is(err, io.EOF) {
		cause = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	e.mu.Lock()
	e.closeLocked(cause)
	e.mu.Unlock()
	_ = e.releaseTransport()
}

// send writes one wire message; a write failure closes the session.
func (e *Engine) sendLocked(kind, text string) bool {
	if err := e.transport.Send(text); err != nil {
		e.log.Error().Err(err).Str("kind", kind).Msg("transport send failed")
		e.closeLocked(fmt.Errorf("%w: send: %v", ErrClosed, err))
		return false
	}
	observability.RecordDispatch(kind)
	return true
}
