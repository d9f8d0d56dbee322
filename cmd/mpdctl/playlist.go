package main

import (
	"context"
	"fmt"
	"io"

	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/spf13/cobra"
)

func addPlaylistCmds(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:     "playlist",
		Aliases: []string{"queue"},
		Short:   "Show the current playlist",
		Args:    cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, _ []string) error {
			items, err := c.CurrentPlaylist(ctx)
			if err != nil {
				return err
			}
			current := -1
			if st, err := c.Status(ctx); err == nil {
				current = st.Song
			}
			return a.render(items, func(w io.Writer) { writeQueue(w, items, current) })
		}),
	})

	var at int
	add := &cobra.Command{
		Use:   "add <path>...",
		Short: "Add songs to the current playlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			index := -1
			if at > 0 {
				index = at - 1
			}
			for _, path := range args {
				id, err := c.AddToCurrentPlaylist(ctx, path, index)
				if err != nil {
					return err
				}
				if index >= 0 {
					index++
				}
				fmt.Fprintf(a.out, "added %s (id %d)\n", path, id)
			}
			return nil
		}),
	}
	add.Flags().IntVar(&at, "at", 0, "1-based position to insert at (default: append)")
	root.AddCommand(add)

	root.AddCommand(&cobra.Command{
		Use:   "delete <position>",
		Short: "Remove a song from the current playlist",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return c.RemoveFromCurrentPlaylist(ctx, pos)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "move <to> <from>...",
		Short: "Move songs so they start at a position, keeping their order",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			target, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			sources := make([]int, 0, len(args)-1)
			for _, raw := range args[1:] {
				pos, err := parsePosition(raw)
				if err != nil {
					return err
				}
				sources = append(sources, pos)
			}
			return c.MoveInCurrentPlaylist(ctx, sources, target)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the current playlist",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, _ []string) error {
			return c.ClearCurrentPlaylist(ctx)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "playlists [name]",
		Short: "List stored playlists, or the songs of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			if len(args) == 1 {
				files, err := c.Playlist(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(files, func(w io.Writer) { writeFiles(w, files) })
			}
			lists, err := c.StoredPlaylists(ctx)
			if err != nil {
				return err
			}
			return a.render(lists, func(w io.Writer) { writeStoredPlaylists(w, lists) })
		}),
	})

	stored := []struct {
		use, short string
		fn         func(*mpd.Client, context.Context, string) error
	}{
		{"load <name>", "Append a stored playlist to the current playlist", (*mpd.Client).LoadStoredPlaylist},
		{"save <name>", "Store the current playlist", (*mpd.Client).StoreCurrentPlaylist},
		{"rm <name>", "Delete a stored playlist", (*mpd.Client).RemoveStoredPlaylist},
	}
	for _, s := range stored {
		fn := s.fn
		root.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.ExactArgs(1),
			RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
				return fn(c, ctx, args[0])
			}),
		})
	}
}
