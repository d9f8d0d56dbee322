package mpdtest

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrFakeClosed = errors.New("mpdtest: fake transport closed")

// FakeTransport is an in-memory transport. Tests deliver server bytes with
// Deliver and inspect what the engine wrote with Sent/TakeSent.
type FakeTransport struct {
	// Greeting, when set, is delivered synchronously from Connect.
	Greeting   string
	ConnectErr error
	SendErr    error

	mu      sync.Mutex
	recv    func(string)
	sent    []string
	closed  bool
	done    chan struct{}
	doneErr error
}

func NewFakeTransport(greeting string) *FakeTransport {
	return &FakeTransport{
		Greeting: greeting,
		done:     make(chan struct{}),
	}
}

func (f *FakeTransport) Connect(_ context.Context, onReceive func(chunk string)) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.recv = onReceive
	f.mu.Unlock()
	if f.Greeting != "" {
		onReceive(f.Greeting)
	}
	return nil
}

func (f *FakeTransport) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFakeClosed
	}
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return nil
}

// Deliver hands chunk to the registered receive callback.
func (f *FakeTransport) Deliver(chunk string) {
	f.mu.Lock()
	recv := f.recv
	f.mu.Unlock()
	if recv != nil {
		recv(chunk)
	}
}

// Hangup ends the read side, as a dropped connection would.
func (f *FakeTransport) Hangup(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
	}
	f.doneErr = err
	close(f.done)
}

func (f *FakeTransport) Done() <-chan struct{} {
	return f.done
}

func (f *FakeTransport) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doneErr
}

func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Sent returns every message written so far.
func (f *FakeTransport) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// TakeSent returns and forgets the messages written so far.
func (f *FakeTransport) TakeSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

// SentWire returns everything written so far as one string.
func (f *FakeTransport) SentWire() string {
	return strings.Join(f.Sent(), "")
}
