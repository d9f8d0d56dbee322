package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/danmuck/mpdctl/internal/config"
	"github.com/danmuck/mpdctl/internal/mpd"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// render writes v in the configured format. text is used for the text
// format and receives a writer that aligns tab-separated columns.
func (a *app) render(v any, text func(w io.Writer)) error {
	switch a.cfg.Output {
	case config.OutputJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, s)
}

func songLabel(f mpd.MusicFile) string {
	if f.Artist != "" {
		return f.Artist + " - " + f.Title
	}
	return f.Title
}

func writeStatus(w io.Writer, st mpd.Status) {
	fmt.Fprintf(w, "state:\t%s\n", st.State)
	if st.Song >= 0 {
		fmt.Fprintf(w, "song:\t%d/%d (id %d)\n", st.Song+1, st.PlaylistLength, st.SongID)
		fmt.Fprintf(w, "elapsed:\t%s\n", formatDuration(st.Elapsed))
	}
	fmt.Fprintf(w, "volume:\t%d%%\n", st.Volume)
	var modes []string
	for _, m := range []struct {
		on   bool
		name string
	}{{st.Repeat, "repeat"}, {st.Random, "random"}, {st.Single, "single"}, {st.Consume, "consume"}} {
		if m.on {
			modes = append(modes, m.name)
		}
	}
	if len(modes) > 0 {
		fmt.Fprintf(w, "modes:\t%s\n", strings.Join(modes, " "))
	}
	if st.Audio != "" {
		fmt.Fprintf(w, "audio:\t%s @ %dkbps\n", st.Audio, st.Bitrate)
	}
}

// writeQueue marks the current song with '>' when current is a valid
// position.
func writeQueue(w io.Writer, items []mpd.PlaylistItem, current int) {
	for _, it := range items {
		mark := " "
		if it.Pos == current {
			mark = ">"
		}
		fmt.Fprintf(w, "%s%d\t%s\t%s\n", mark, it.Pos+1, songLabel(it.MusicFile), formatDuration(it.Duration))
	}
}

func writeFiles(w io.Writer, files []mpd.MusicFile) {
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\n", songLabel(f), formatDuration(f.Duration), f.Path())
	}
}

func writeEntries(w io.Writer, entries []mpd.DirectoryEntry) {
	for _, e := range entries {
		name := e.Name()
		if e.Kind() == mpd.KindDirectory {
			name += "/"
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Kind(), name)
	}
}

func writeStoredPlaylists(w io.Writer, lists []mpd.StoredPlaylist) {
	for _, p := range lists {
		modified := "-"
		if !p.LastModified.IsZero() {
			modified = p.LastModified.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\n", p.Name, modified)
	}
}

// entriesView gives database objects a kind field in structured output.
type entriesView struct {
	Kind  string             `json:"kind" yaml:"kind"`
	Entry mpd.DirectoryEntry `json:"entry" yaml:"entry"`
}

func viewEntries(entries []mpd.DirectoryEntry) []entriesView {
	out := make([]entriesView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entriesView{Kind: e.Kind().String(), Entry: e})
	}
	return out
}
