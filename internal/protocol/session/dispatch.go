package session

import "github.com/danmuck/mpdctl/internal/protocol"

// dispatchLocked flushes the pending queue as one wire message, or enters
// idle when nothing is pending and the daemon has not refused idle. It does
// nothing while a batch is in flight.
func (e *Engine) dispatchLocked() {
	if e.phase == PhaseClosed || e.inflight.Len() > 0 {
		return
	}
	if e.pending.Len() == 0 {
		if !e.idleRefused {
			e.enterIdleLocked()
		}
		return
	}

	batch := e.pending.Drain()
	for _, call := range batch {
		e.inflight.PushBack(call)
	}
	e.phase = PhaseBusy
	e.noidle = false
	e.idleRefused = false

	kind := "command"
	if len(batch) > 1 {
		kind = "list"
	}
	e.log.Debug().Int("commands", len(batch)).Str("kind", kind).Msg("dispatch")
	e.sendLocked(kind, protocol.EncodeBatch(e.inflight.Commands()))
}
