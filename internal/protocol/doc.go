// Package protocol owns MPD wire contract and parsing primitives.
//
// Ownership boundary:
// - line framing (LineReassembler)
// - line classification: greeting, OK/list_OK, ACK, key/value data
// - command and command-list encoding, argument quoting
// - response bodies (ordered fields, record splitting)
package protocol
