package protocol

import "fmt"

// Version is the daemon protocol version announced in the greeting.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is the same as or newer than major.minor.patch.
func (v Version) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// LineKind classifies one complete response line.
type LineKind int

const (
	LineData LineKind = iota
	LineOK
	LineListOK
	LineAck
	LineMalformed
)

func (k LineKind) String() string {
	switch k {
	case LineData:
		return "data"
	case LineOK:
		return "ok"
	case LineListOK:
		return "list_ok"
	case LineAck:
		return "ack"
	case LineMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

// Terminator reports whether the kind ends one response unit.
func (k LineKind) Terminator() bool {
	return k == LineOK || k == LineListOK || k == LineAck
}
