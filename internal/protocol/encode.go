package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	CommandIdle      = "idle"
	CommandNoIdle    = "noidle"
	CommandListBegin = "command_list_ok_begin"
	CommandListEnd   = "command_list_end"
)

// ValidateCommand rejects command text that would break line framing.
func ValidateCommand(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return fmt.Errorf("%w: line break in %q", ErrInvalidCommand, cmd)
	}
	return nil
}

// EncodeCommand returns the wire form of one command.
func EncodeCommand(cmd string) string {
	return cmd + "\n"
}

// EncodeBatch returns the wire form of cmds. A single command is sent bare;
// several are wrapped in command_list_ok_begin/command_list_end so the daemon
// answers each member with list_OK.
func EncodeBatch(cmds []string) string {
	if len(cmds) == 1 {
		return EncodeCommand(cmds[0])
	}
	var b strings.Builder
	b.WriteString(CommandListBegin)
	b.WriteByte('\n')
	for _, cmd := range cmds {
		b.WriteString(cmd)
		b.WriteByte('\n')
	}
	b.WriteString(CommandListEnd)
	b.WriteByte('\n')
	return b.String()
}

// Quote wraps an argument in double quotes, escaping quotes and backslashes.
func Quote(arg string) string {
	var b strings.Builder
	b.Grow(len(arg) + 2)
	b.WriteByte('"')
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// Command joins a command name and its arguments. Arguments are quoted;
// integer arguments are formatted verbatim.
func Command(name string, args ...any) string {
	if len(args) == 0 {
		return name
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		switch v := arg.(type) {
		case int:
			parts = append(parts, strconv.Itoa(v))
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		case string:
			parts = append(parts, Quote(v))
		default:
			parts = append(parts, Quote(fmt.Sprint(v)))
		}
	}
	return strings.Join(parts, " ")
}
