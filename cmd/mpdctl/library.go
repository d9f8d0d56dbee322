package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/spf13/cobra"
)

func addLibraryCmds(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:   "ls [path]",
		Short: "List a music database directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			entries, err := c.Directory(ctx, pathArg(args))
			if err != nil {
				return err
			}
			return a.render(viewEntries(entries), func(w io.Writer) { writeEntries(w, entries) })
		}),
	})

	var depth int
	files := &cobra.Command{
		Use:   "files [path]",
		Short: "List songs under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			found, err := c.FilesInDirectory(ctx, pathArg(args), depth)
			if err != nil {
				return err
			}
			return a.render(found, func(w io.Writer) { writeFiles(w, found) })
		}),
	}
	files.Flags().IntVarP(&depth, "depth", "d", -1, "directory levels to descend (-1: unlimited)")
	root.AddCommand(files)

	root.AddCommand(&cobra.Command{
		Use:   "search <text>...",
		Short: "Find songs with any tag containing text",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			found, err := c.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.render(found, func(w io.Writer) { writeFiles(w, found) })
		}),
	})

	jobs := []struct {
		use, short string
		fn         func(*mpd.Client, context.Context, string) (int, error)
	}{
		{"update [path]", "Update the music database", (*mpd.Client).Update},
		{"rescan [path]", "Update the database, rereading unmodified files", (*mpd.Client).Rescan},
	}
	for _, j := range jobs {
		fn := j.fn
		root.AddCommand(&cobra.Command{
			Use:   j.use,
			Short: j.short,
			Args:  cobra.MaximumNArgs(1),
			RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
				job, err := fn(c, ctx, pathArg(args))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "updating_db: %d\n", job)
				return nil
			}),
		})
	}
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.Trim(args[0], "/")
}
