package session

import (
	"context"
	"time"

	"github.com/danmuck/mpdctl/internal/protocol"
)

// Call is one submitted command. It is resolved exactly once: Response is
// set on success, Err on failure, then the call is sent on Done.
type Call struct {
	Command  string
	Response protocol.Response
	Err      error
	Done     chan *Call

	submitted time.Time
	idle      bool
	resolved  bool
}

func newCall(cmd string) *Call {
	return &Call{
		Command:   cmd,
		Done:      make(chan *Call, 1),
		submitted: time.Now(),
	}
}

// Wait blocks until the call resolves or ctx ends. Giving up on the wait
// does not withdraw the command.
func (c *Call) Wait(ctx context.Context) (protocol.Response, error) {
	select {
	case <-c.Done:
		return c.Response, c.Err
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

// resolve records the outcome and reports whether this was the first
// resolution. Done is buffered, so resolve never blocks.
func (c *Call) resolve(resp protocol.Response, err error) bool {
	if c.resolved {
		return false
	}
	c.resolved = true
	c.Response = resp
	c.Err = err
	c.Done <- c
	return true
}
