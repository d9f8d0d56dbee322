package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
)

const historySize = 500

// lineEditor reads shell input with readline on a terminal and line by line
// from anything else.
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
}

func newLineEditor(in *os.File) *lineEditor {
	if !isTerminal(in) {
		return &lineEditor{scanner: bufio.NewScanner(in)}
	}
	var history string
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".mpdctl_history")
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            history,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpdctl: readline unavailable (%v), using basic input\n", err)
		return &lineEditor{scanner: bufio.NewScanner(in)}
	}
	return &lineEditor{rl: rl}
}

func (le *lineEditor) readLine(prompt string) (string, error) {
	if le.rl == nil {
		if !le.scanner.Scan() {
			if err := le.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return le.scanner.Text(), nil
	}
	le.rl.SetPrompt(prompt)
	line, err := le.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		_ = le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *lineEditor) close() {
	if le.rl != nil {
		_ = le.rl.Close()
	}
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands over one connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.inShell {
				return errors.New("already in a shell")
			}
			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			a.inShell = true
			defer func() { a.inShell = false }()

			le := newLineEditor(os.Stdin)
			defer le.close()
			prompt := "mpd> "
			if v, ok := c.Version(); ok {
				prompt = fmt.Sprintf("mpd %s> ", v)
			}
			for {
				line, err := le.readLine(prompt)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				args, err := splitArgs(line)
				if err != nil {
					fmt.Fprintf(a.out, "error: %v\n", err)
					continue
				}
				if len(args) == 0 {
					continue
				}
				if args[0] == "exit" || args[0] == "quit" {
					return nil
				}
				if err := a.runLine(cmd, args); err != nil {
					fmt.Fprintf(a.out, "error: %v\n", err)
				}
				select {
				case <-c.Engine().Done():
					return fmt.Errorf("connection lost: %w", c.Engine().Err())
				default:
				}
			}
		},
	}
}

// runLine executes args on a fresh command tree bound to the same app, so
// the connection and loaded configuration carry over.
func (a *app) runLine(parent *cobra.Command, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(parent.Context())
}

// splitArgs splits a shell line on whitespace, honouring double and single
// quotes and backslash escapes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped, inArg = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inArg = r, true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 || escaped {
		return nil, errors.New("unterminated quote or escape")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
