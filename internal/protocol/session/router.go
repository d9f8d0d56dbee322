package session

import (
	"fmt"
	"time"

	"github.com/danmuck/mpdctl/internal/observability"
	"github.com/danmuck/mpdctl/internal/protocol"
)

// receive is the transport delivery callback. Observers are notified after
// the lock is released so they may submit commands.
func (e *Engine) receive(chunk string) {
	e.mu.Lock()
	changes := e.handleChunkLocked(chunk)
	var observers []Observer
	if len(changes) > 0 {
		observers = e.snapshotObserversLocked()
	}
	closed := e.phase == PhaseClosed
	e.mu.Unlock()

	if closed {
		_ = e.releaseTransport()
	}

	for _, subsystems := range changes {
		notify(observers, subsystems)
	}
}

// handleChunkLocked routes every complete line of chunk and dispatches the
// next batch once nothing is in flight and the chunk ended on a line
// boundary. It returns the subsystem lists of idle waits resolved by this
// chunk.
func (e *Engine) handleChunkLocked(chunk string) [][]string {
	if e.phase == PhaseClosed {
		return nil
	}
	lines := e.lines.Feed(chunk)
	if len(lines) == 0 {
		return nil
	}

	greeted := false
	if e.phase == PhaseHandshaking {
		if !e.handshakeLocked(lines[0]) {
			return nil
		}
		lines = lines[1:]
		greeted = true
	}

	var changes [][]string
	settled := false
	for _, line := range lines {
		kind, subsystems := e.routeLineLocked(line)
		if len(subsystems) > 0 {
			changes = append(changes, subsystems)
		}
		if e.phase == PhaseClosed {
			return changes
		}
		if kind.Terminator() {
			settled = true
		}
	}

	// A malformed line after the last terminator does not hold back the
	// next batch.
	if greeted || (settled && e.inflight.Len() == 0 && e.lines.Pending() == "") {
		e.dispatchLocked()
	}
	return changes
}

func (e *Engine) handshakeLocked(line string) bool {
	v, err := protocol.ParseGreeting(line)
	if err != nil {
		e.log.Error().Err(err).Msg("handshake failed")
		e.closeLocked(fmt.Errorf("%w: %v", ErrHandshake, err))
		return false
	}
	e.version = v
	e.phase = PhaseBusy
	e.readyOnce.Do(func() { close(e.ready) })
	e.log.Info().Str("version", v.String()).Msg("connected")
	return true
}

// routeLineLocked applies one line to the in-flight batch. It returns the line
// kind and, for a resolved idle wait with changes, the changed subsystems.
func (e *Engine) routeLineLocked(line string) (protocol.LineKind, []string) {
	kind := protocol.Classify(line)
	switch kind {
	case protocol.LineOK, protocol.LineListOK:
		call, ok := e.inflight.PopFront()
		if !ok {
			// The daemon closes a command list with OK after the last
			// list_OK; nothing is waiting for it.
			if kind == protocol.LineListOK || len(e.body) > 0 {
				e.log.Warn().Str("line", line).Msg("terminator without in-flight command")
			}
			e.body = nil
			return kind, nil
		}
		resp := protocol.Response{Fields: e.body}
		e.body = nil
		if call.idle {
			return kind, e.idleResolvedLocked(resp)
		}
		if call.resolve(resp, nil) {
			observability.RecordCommand("ok", time.Since(call.submitted))
		}
		return kind, nil

	case protocol.LineAck:
		call, ok := e.inflight.PopFront()
		e.body = nil
		if !ok {
			e.log.Warn().Str("line", line).Msg("ACK without in-flight command")
			return kind, nil
		}
		perr, err := protocol.ParseAck(line)
		if err != nil {
			// The call stays unresolved; remaining members are requeued as
			// the daemon aborted the list either way.
			e.log.Warn().Err(err).Str("command", call.Command).Msg("unparseable ACK")
			observability.RecordMalformedLine("ack")
		} else {
			observability.RecordProtocolError(perr.Code)
			e.log.Debug().Int("code", perr.Code).Str("command", call.Command).Str("message", perr.Message).Msg("command failed")
			if call.idle {
				e.idleFailedLocked(perr)
			} else if call.resolve(protocol.Response{}, perr) {
				observability.RecordCommand("ack", time.Since(call.submitted))
			}
		}
		e.requeueLocked()
		return kind, nil

	case protocol.LineData:
		if f, ok := protocol.ParseField(line); ok {
			e.body = append(e.body, f)
			return kind, nil
		}
		fallthrough

	default:
		e.log.Warn().Err(protocol.ErrMalformedLine).Str("line", line).Msg("dropping malformed line")
		observability.RecordMalformedLine("data")
		return protocol.LineMalformed, nil
	}
}

// requeueLocked moves in-flight members that never ran back to the front of
// the pending queue, keeping their order.
func (e *Engine) requeueLocked() {
	rest := e.inflight.Drain()
	if len(rest) == 0 {
		return
	}
	e.pending.PushFront(rest)
	observability.RecordRequeued(len(rest))
	e.log.Debug().Int("requeued", len(rest)).Msg("command list aborted")
}
