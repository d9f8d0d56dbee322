package session

import (
	"github.com/danmuck/mpdctl/internal/observability"
	"github.com/danmuck/mpdctl/internal/protocol"
)

const changedKey = "changed"

func (e *Engine) enterIdleLocked() {
	call := newCall(protocol.CommandIdle)
	call.idle = true
	e.inflight.PushBack(call)
	e.phase = PhaseIdling
	e.noidle = false
	e.log.Trace().Msg("idle")
	e.sendLocked("idle", protocol.EncodeCommand(protocol.CommandIdle))
}

// breakIdleLocked interrupts the outstanding idle wait once. The phase stays
// Idling until the idle terminator is routed.
func (e *Engine) breakIdleLocked() {
	if e.noidle {
		return
	}
	e.noidle = true
	e.log.Trace().Msg("noidle")
	e.sendLocked("noidle", protocol.EncodeCommand(protocol.CommandNoIdle))
}

// idleResolvedLocked returns the changed subsystems of a terminated idle
// wait, or nil when it ended without changes.
func (e *Engine) idleResolvedLocked(resp protocol.Response) []string {
	e.phase = PhaseBusy
	e.noidle = false
	subsystems := resp.Values(changedKey)
	if len(subsystems) == 0 {
		return nil
	}
	observability.RecordSubsystemChanges(subsystems)
	e.log.Debug().Strs("subsystems", subsystems).Msg("subsystems changed")
	return subsystems
}

// idleFailedLocked leaves the engine Busy with nothing in flight. Idle is
// only retried after the next dispatched batch.
func (e *Engine) idleFailedLocked(perr protocol.ProtocolError) {
	e.phase = PhaseBusy
	e.noidle = false
	if !e.idleRefusalLogged {
		e.log.Warn().Int("code", perr.Code).Str("message", perr.Message).Msg("idle rejected")
	}
	e.idleRefusalLogged = true
	e.idleRefused = true
}
