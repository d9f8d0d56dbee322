// Package session owns the client side of one MPD connection.
//
// Ownership boundary:
// - handshake (greeting/version)
// - request pipelining: pending queue, single in-flight batch, command lists
// - idle/noidle coordination and subsystem observers
// - routing of terminated responses to calls in FIFO order
// - retry/backoff primitives used by transports when dialing
//
// The engine never touches domain objects; command text comes from callers
// (see internal/mpd) and bytes come from a Transport (see internal/transport).
package session
