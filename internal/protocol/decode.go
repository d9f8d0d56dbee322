package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	okLine     = "OK"
	listOKLine = "list_OK"
	ackPrefix  = "ACK "

	fieldSeparator = ": "
)

var (
	ackPattern      = regexp.MustCompile(`^ACK \[([0-9]+)@([0-9]+)\] \{([^}]*)\} ?(.*)$`)
	greetingPattern = regexp.MustCompile(`^OK MPD ([0-9]+)\.([0-9]+)\.([0-9]+)`)
)

// Classify returns the kind of one complete line (without its newline).
func Classify(line string) LineKind {
	switch {
	case line == okLine:
		return LineOK
	case line == listOKLine:
		return LineListOK
	case strings.HasPrefix(line, ackPrefix):
		return LineAck
	case strings.Contains(line, fieldSeparator):
		return LineData
	default:
		return LineMalformed
	}
}

// ParseAck extracts the structured failure from an ACK line.
func ParseAck(line string) (ProtocolError, error) {
	m := ackPattern.FindStringSubmatch(line)
	if m == nil {
		return ProtocolError{}, fmt.Errorf("%w: %q", ErrMalformedAck, line)
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return ProtocolError{}, fmt.Errorf("%w: code %q", ErrMalformedAck, m[1])
	}
	pos, err := strconv.Atoi(m[2])
	if err != nil {
		return ProtocolError{}, fmt.Errorf("%w: position %q", ErrMalformedAck, m[2])
	}
	return ProtocolError{
		Code:     code,
		Position: pos,
		Command:  m[3],
		Message:  m[4],
	}, nil
}

// ParseGreeting extracts the protocol version from the connect banner.
func ParseGreeting(line string) (Version, error) {
	line = strings.TrimSuffix(line, "\r")
	m := greetingPattern.FindStringSubmatch(line)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrMalformedGreeting, line)
	}
	var parts [3]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrMalformedGreeting, line)
		}
		parts[i] = n
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// ParseField splits a data line on the first ": " separator.
func ParseField(line string) (Field, bool) {
	key, value, ok := strings.Cut(line, fieldSeparator)
	if !ok || key == "" {
		return Field{}, false
	}
	return Field{Key: key, Value: value}, true
}
