package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedLine     = errors.New("protocol: malformed data line")
	ErrMalformedAck      = errors.New("protocol: malformed ACK line")
	ErrMalformedGreeting = errors.New("protocol: malformed greeting")
	ErrInvalidCommand    = errors.New("protocol: invalid command")
)

// ACK codes sent by the daemon (src/protocol/Ack.hxx upstream).
const (
	AckErrorNotList       = 1
	AckErrorArg           = 2
	AckErrorPassword      = 3
	AckErrorPermission    = 4
	AckErrorUnknown       = 5
	AckErrorNoExist       = 50
	AckErrorPlaylistMax   = 51
	AckErrorSystem        = 52
	AckErrorPlaylistLoad  = 53
	AckErrorUpdateAlready = 54
	AckErrorPlayerSync    = 55
	AckErrorExist         = 56
)

// ProtocolError is a structured failure parsed from an ACK line.
type ProtocolError struct {
	Code     int
	Position int
	Command  string
	Message  string
}

func (e ProtocolError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("mpd: ack code=%d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mpd: ack code=%d command=%q: %s", e.Code, e.Command, e.Message)
}

// IsAck reports whether err carries a ProtocolError with the given code.
func IsAck(err error, code int) bool {
	var perr ProtocolError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Code == code
}
