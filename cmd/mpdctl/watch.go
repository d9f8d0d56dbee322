package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/spf13/cobra"
)

// changePrinter prints change notifications. It runs on the engine's reader
// goroutine, so it only queues events for the printing loop.
// Events are dropped when the loop falls behind.
type changePrinter struct {
	events chan []string
}

func (p *changePrinter) SubsystemsChanged(subsystems []string) {
	select {
	case p.events <- subsystems:
	default:
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		only       []string
		showStatus bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print subsystem changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := &changePrinter{events: make(chan []string, 64)}
			c.RegisterObserver(p)
			defer c.UnregisterObserver(p)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-c.Engine().Done():
					return fmt.Errorf("connection lost: %w", c.Engine().Err())
				case changed := <-p.events:
					if len(only) > 0 {
						changed = slices.DeleteFunc(changed, func(s string) bool {
							return !slices.Contains(only, s)
						})
						if len(changed) == 0 {
							continue
						}
					}
					a.printChanges(ctx, c, changed, showStatus)
				}
			}
		}),
	}
	cmd.Flags().StringSliceVar(&only, "subsystem", nil, "only report these subsystems")
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the player status after player and mixer changes")
	return cmd
}

func (a *app) printChanges(ctx context.Context, c *mpd.Client, changed []string, showStatus bool) {
	event := struct {
		Time    time.Time   `json:"time" yaml:"time"`
		Changed []string    `json:"changed" yaml:"changed"`
		Status  *mpd.Status `json:"status,omitempty" yaml:"status,omitempty"`
	}{Time: time.Now(), Changed: changed}

	if showStatus && (slices.Contains(changed, "player") || slices.Contains(changed, "mixer")) {
		if st, err := c.Status(ctx); err == nil {
			event.Status = &st
		}
	}
	_ = a.render(event, func(w io.Writer) {
		fmt.Fprintf(w, "%s\tchanged: %s\n", event.Time.Format(time.TimeOnly), strings.Join(changed, " "))
		if event.Status != nil {
			writeStatus(w, *event.Status)
		}
	})
}
