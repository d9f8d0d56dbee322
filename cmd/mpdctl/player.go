package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/spf13/cobra"
)

func addPlayerCmds(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the player status",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, _ []string) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return a.render(st, func(w io.Writer) { writeStatus(w, st) })
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "play [position]",
		Short: "Start playback, optionally at a 1-based playlist position",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			if len(args) == 0 {
				return c.Play(ctx)
			}
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return c.Jump(ctx, pos)
		}),
	})

	simple := []struct {
		use, short string
		fn         func(*mpd.Client, context.Context) error
	}{
		{"pause", "Toggle pause", (*mpd.Client).Pause},
		{"stop", "Stop playback", (*mpd.Client).Stop},
		{"next", "Play the next song", (*mpd.Client).Next},
		{"prev", "Play the previous song", (*mpd.Client).Previous},
	}
	for _, s := range simple {
		fn := s.fn
		root.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: a.withClient(func(ctx context.Context, c *mpd.Client, _ []string) error {
				return fn(c, ctx)
			}),
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek within the current song",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			secs, err := strconv.ParseFloat(args[0], 64)
			if err != nil || secs < 0 {
				return fmt.Errorf("invalid seek position %q", args[0])
			}
			return c.Seek(ctx, secs)
		}),
	})
}

// parsePosition converts a 1-based position argument to a 0-based index.
func parsePosition(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q", raw)
	}
	return n - 1, nil
}
