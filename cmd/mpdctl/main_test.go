package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/mpdctl/internal/testutil/mpdtest"
	"github.com/danmuck/mpdctl/internal/testutil/testlog"
	"gopkg.in/yaml.v3"
)

func startDaemon(t *testing.T) (*mpdtest.Server, string) {
	t.Helper()
	t.Setenv("MPD_HOST", "")
	t.Setenv("MPD_PORT", "")
	t.Setenv("MPDCTL_CONFIG", "")
	srv := mpdtest.NewServer(mpdtest.Static(map[string][]string{
		"status":           {"state: play", "song: 1", "songid: 12", "playlistlength: 3", "volume: 80", "elapsed: 65.2", "random: 1"},
		"playlistinfo":     {"file: a.mp3", "Pos: 0", "Id: 11", "file: b.mp3", "Artist: B", "Title: Bee", "Pos: 1", "Id: 12"},
		"play 2":           nil,
		"pause":            nil,
		`addid "x.flac" 0`: {"Id: 40"},
		`addid "y.flac" 1`: {"Id: 41"},
		"move 2 0":         nil,
		`lsinfo "music"`:   {"directory: music/jazz", "file: music/intro.mp3", "Time: 30"},
		"update":           {"updating_db: 9"},
		"listplaylists":    {"playlist: mix"},
	}))
	return srv, srv.ListenTCP(t)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestStatusFormats(t *testing.T) {
	testlog.Start(t)
	_, addr := startDaemon(t)

	text, err := runCLI(t, "-a", addr, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"play", "2/3", "1:05", "80%", "random"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text status missing %q:\n%s", want, text)
		}
	}

	raw, err := runCLI(t, "-a", addr, "-o", "json", "status")
	if err != nil {
		t.Fatalf("status json: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st["song_id"] != float64(12) {
		t.Fatalf("unexpected json status: %v %s", err, raw)
	}

	raw, err = runCLI(t, "-a", addr, "--output=yaml", "status")
	if err != nil {
		t.Fatalf("status yaml: %v", err)
	}
	var ys map[string]any
	if err := yaml.Unmarshal([]byte(raw), &ys); err != nil || ys["volume"] != 80 {
		t.Fatalf("unexpected yaml status: %v %s", err, raw)
	}

	if _, err := runCLI(t, "-a", addr, "-o", "xml", "status"); err == nil {
		t.Fatalf("expected invalid output error")
	}
}

func TestPlaylistCommands(t *testing.T) {
	testlog.Start(t)
	srv, addr := startDaemon(t)

	out, err := runCLI(t, "-a", addr, "playlist")
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], ">2") || !strings.Contains(lines[1], "B - Bee") {
		t.Fatalf("unexpected playlist output:\n%s", out)
	}

	if _, err := runCLI(t, "-a", addr, "play", "3"); err != nil {
		t.Fatalf("play 3: %v", err)
	}
	if _, err := runCLI(t, "-a", addr, "play", "0"); err == nil {
		t.Fatalf("expected invalid position")
	}
	out, err = runCLI(t, "-a", addr, "add", "--at", "1", "x.flac", "y.flac")
	if err != nil || !strings.Contains(out, "id 41") {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if _, err := runCLI(t, "-a", addr, "move", "1", "3"); err != nil {
		t.Fatalf("move: %v", err)
	}
	for _, cmd := range []string{"play 2", `addid "x.flac" 0`, `addid "y.flac" 1`, "move 2 0"} {
		if srv.Count(cmd) != 1 {
			t.Fatalf("%q sent %d times", cmd, srv.Count(cmd))
		}
	}
	if _, err := runCLI(t, "-a", addr, "clear"); err == nil || !strings.Contains(err.Error(), "clear") {
		t.Fatalf("expected ACK for unknown command, got %v", err)
	}
}

func TestLibraryCommands(t *testing.T) {
	testlog.Start(t)
	_, addr := startDaemon(t)

	out, err := runCLI(t, "-a", addr, "ls", "/music/")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "jazz/") || !strings.Contains(out, "intro.mp3") {
		t.Fatalf("unexpected ls output:\n%s", out)
	}

	raw, err := runCLI(t, "-a", addr, "-o", "json", "ls", "music")
	if err != nil {
		t.Fatalf("ls json: %v", err)
	}
	var entries []struct {
		Kind  string         `json:"kind"`
		Entry map[string]any `json:"entry"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil || len(entries) != 2 {
		t.Fatalf("unexpected json entries: %v %s", err, raw)
	}
	if entries[1].Kind != "file" || entries[1].Entry["path"] != "music/intro.mp3" {
		t.Fatalf("unexpected file entry: %+v", entries[1])
	}

	out, err = runCLI(t, "-a", addr, "update")
	if err != nil || strings.TrimSpace(out) != "updating_db: 9" {
		t.Fatalf("update: %v %q", err, out)
	}
	out, err = runCLI(t, "-a", addr, "playlists")
	if err != nil || !strings.HasPrefix(out, "mix") {
		t.Fatalf("playlists: %v %q", err, out)
	}
}

func TestRawCommand(t *testing.T) {
	testlog.Start(t)
	srv, addr := startDaemon(t)
	out, err := runCLI(t, "-a", addr, "raw", "status")
	if err != nil || !strings.Contains(out, "state: play") || !strings.Contains(out, "songid: 12") {
		t.Fatalf("raw status: %v\n%s", err, out)
	}
	if srv.Count("status") != 1 {
		t.Fatalf("status sent %d times", srv.Count("status"))
	}
}

func TestConfigCommands(t *testing.T) {
	testlog.Start(t)
	t.Setenv("MPD_HOST", "")
	t.Setenv("MPD_PORT", "")
	t.Setenv("MPDCTL_CONFIG", "")
	path := filepath.Join(t.TempDir(), "mpdctl.toml")

	if _, err := runCLI(t, "config", "init", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := runCLI(t, "config", "init", path); err == nil {
		t.Fatalf("expected init to refuse overwriting")
	}
	if _, err := runCLI(t, "config", "init", "--force", path); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
	out, err := runCLI(t, "config", "validate", path)
	if err != nil || !strings.Contains(out, path) {
		t.Fatalf("config validate: %v %q", err, out)
	}
	out, err = runCLI(t, "-c", path, "-a", "box:6601", "config", "show")
	if err != nil || !strings.Contains(out, `address = 'box:6601'`) && !strings.Contains(out, `address = "box:6601"`) {
		t.Fatalf("config show: %v\n%s", err, out)
	}

	if err := os.WriteFile(path, []byte(`output = "xml"`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCLI(t, "config", "validate", path); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestSplitArgs(t *testing.T) {
	testlog.Start(t)
	cases := map[string][]string{
		`add "Miles Davis/So What.flac"`: {"add", "Miles Davis/So What.flac"},
		`search it\'s   here`:            {"search", "it's", "here"},
		`  play  `:                       {"play"},
		`save 'a "quoted" name'`:         {"save", `a "quoted" name`},
		``:                               nil,
	}
	for line, want := range cases {
		got, err := splitArgs(line)
		if err != nil {
			t.Fatalf("split %q: %v", line, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split %q got=%q want=%q", line, got, want)
		}
	}
	if _, err := splitArgs(`play "open`); err == nil {
		t.Fatalf("expected unterminated quote error")
	}
}
