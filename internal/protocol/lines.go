package protocol

import "strings"

// LineReassembler rebuilds complete lines from arbitrarily split chunks.
// It keeps the unterminated tail of the last chunk until the next Feed.
type LineReassembler struct {
	tail string
}

// Feed appends chunk to the stored tail and returns every complete line in
// arrival order, without terminators.
func (r *LineReassembler) Feed(chunk string) []string {
	data := r.tail + chunk
	parts := strings.Split(data, "\n")
	r.tail = parts[len(parts)-1]
	return parts[:len(parts)-1]
}

// Pending returns the unterminated tail. It is empty exactly when the last
// chunk ended on a line terminator.
func (r *LineReassembler) Pending() string {
	return r.tail
}

// Reset drops the stored tail.
func (r *LineReassembler) Reset() {
	r.tail = ""
}
