package mpd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/protocol"
	"github.com/danmuck/mpdctl/internal/protocol/session"
	"github.com/danmuck/mpdctl/internal/transport"
	"github.com/rs/zerolog"
)

var (
	ErrEngineRequired = errors.New("mpd: engine required")
	ErrNoStatus       = errors.New("mpd: empty status response")
	ErrNoSongID       = errors.New("mpd: addid returned no song id")
)

// Client implements the daemon's command set on top of a protocol engine.
// Every method is safe for concurrent use; concurrent calls are batched into
// command lists by the engine.
type Client struct {
	engine *session.Engine
	log    zerolog.Logger
}

func New(e *session.Engine) (*Client, error) {
	if e == nil {
		return nil, ErrEngineRequired
	}
	return &Client{engine: e, log: logging.Component("mpd")}, nil
}

// DialOptions configure Dial.
type DialOptions struct {
	Session            session.Config
	TLS                transport.TLSConfig
	MaxConnectAttempts int
	// Password, when set, is sent right after the greeting.
	Password string
}

// Dial connects to addr (see transport.FromAddress), retrying with backoff,
// and waits for the daemon's greeting.
func Dial(ctx context.Context, addr string, opts DialOptions) (*Client, error) {
	cfg := opts.Session.WithDefaults()
	t, err := transport.FromAddress(addr, transport.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		TLS:            opts.TLS,
	})
	if err != nil {
		return nil, err
	}
	e, err := session.New(transport.WithRetry(t, cfg.Backoff, opts.MaxConnectAttempts), cfg)
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		return nil, fmt.Errorf("mpd: connect %s: %w", addr, err)
	}
	c, err := New(e)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	if opts.Password != "" {
		if err := c.exec(ctx, protocol.Command("password", opts.Password)); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("mpd: authenticate: %w", err)
		}
	}
	v, _ := e.Version()
	c.log.Info().Str("addr", addr).Str("version", v.String()).Msg("dialed")
	return c, nil
}

func (c *Client) Engine() *session.Engine {
	return c.engine
}

func (c *Client) Close() error {
	return c.engine.Close()
}

// Version is the protocol version the daemon announced.
func (c *Client) Version() (protocol.Version, bool) {
	return c.engine.Version()
}

func (c *Client) RegisterObserver(o session.Observer) {
	c.engine.RegisterObserver(o)
}

func (c *Client) UnregisterObserver(o session.Observer) {
	c.engine.UnregisterObserver(o)
}

// Raw sends cmd verbatim and returns the response body.
func (c *Client) Raw(ctx context.Context, cmd string) (protocol.Response, error) {
	return c.engine.Do(ctx, cmd)
}

func (c *Client) exec(ctx context.Context, cmd string) error {
	_, err := c.engine.Do(ctx, cmd)
	return err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, err := c.engine.Do(ctx, "status")
	if err != nil {
		return Status{}, err
	}
	if resp.Len() == 0 {
		return Status{}, ErrNoStatus
	}
	return newStatus(resp.Single()), nil
}

func (c *Client) CurrentPlaylist(ctx context.Context) ([]PlaylistItem, error) {
	resp, err := c.engine.Do(ctx, "playlistinfo")
	if err != nil {
		return nil, err
	}
	records := resp.Records("file")
	out := make([]PlaylistItem, 0, len(records))
	for _, r := range records {
		out = append(out, newPlaylistItem(r))
	}
	return out, nil
}

// AddToCurrentPlaylist adds the song at path at index, or appends it when
// index is negative. It returns the new playlist song id.
func (c *Client) AddToCurrentPlaylist(ctx context.Context, path string, index int) (int, error) {
	cmd := protocol.Command("addid", path)
	if index >= 0 {
		cmd = protocol.Command("addid", path, index)
	}
	resp, err := c.engine.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, ok := resp.Get("Id")
	if !ok {
		return 0, ErrNoSongID
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoSongID, v)
	}
	return id, nil
}

func (c *Client) RemoveFromCurrentPlaylist(ctx context.Context, index int) error {
	return c.exec(ctx, protocol.Command("delete", index))
}

// MoveInCurrentPlaylist moves the songs at sources so they start at target,
// keeping their current relative order. The moves are submitted back to back
// so the engine can send them as one command list.
func (c *Client) MoveInCurrentPlaylist(ctx context.Context, sources []int, target int) error {
	moves := planMoves(sources, target)
	calls := make([]*session.Call, 0, len(moves))
	for _, m := range moves {
		calls = append(calls, c.engine.Submit(protocol.Command("move", m[0], m[1])))
	}
	var firstErr error
	for _, call := range calls {
		if _, err := call.Wait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// planMoves turns a multi-song move into single "move from to" steps. Each
// step accounts for the positions shifted by the steps before it.
func planMoves(sources []int, target int) [][2]int {
	sorted := append([]int(nil), sources...)
	sort.Ints(sorted)
	out := make([][2]int, 0, len(sorted))
	for i, src := range sorted {
		if src < target {
			src -= i
			target--
		}
		out = append(out, [2]int{src, target})
		target++
	}
	return out
}

func (c *Client) ClearCurrentPlaylist(ctx context.Context) error {
	return c.exec(ctx, "clear")
}

func (c *Client) Play(ctx context.Context) error {
	return c.exec(ctx, "play")
}

// Pause toggles pause.
func (c *Client) Pause(ctx context.Context) error {
	return c.exec(ctx, "pause")
}

func (c *Client) Stop(ctx context.Context) error {
	return c.exec(ctx, "stop")
}

func (c *Client) Previous(ctx context.Context) error {
	return c.exec(ctx, "previous")
}

func (c *Client) Next(ctx context.Context) error {
	return c.exec(ctx, "next")
}

// Jump starts playing the song at index in the current playlist.
func (c *Client) Jump(ctx context.Context, index int) error {
	return c.exec(ctx, protocol.Command("play", index))
}

// Seek moves to seconds within the current song.
func (c *Client) Seek(ctx context.Context, seconds float64) error {
	return c.exec(ctx, protocol.Command("seekcur", seconds))
}

// Search finds songs with any tag containing what, ignoring case.
func (c *Client) Search(ctx context.Context, what string) ([]MusicFile, error) {
	resp, err := c.engine.Do(ctx, "search any "+protocol.Quote(what))
	if err != nil {
		return nil, err
	}
	return musicFiles(resp), nil
}

// Directory lists the database objects directly under path.
func (c *Client) Directory(ctx context.Context, path string) ([]DirectoryEntry, error) {
	resp, err := c.engine.Do(ctx, protocol.Command("lsinfo", path))
	if err != nil {
		return nil, err
	}
	records := resp.Records("file", "directory", "playlist")
	out := make([]DirectoryEntry, 0, len(records))
	for _, r := range records {
		if entry, ok := directoryEntry(r); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// FilesInDirectory returns the songs under path, descending recurseLevels
// directory levels. Zero lists only path itself; a negative value recurses
// without limit. Files of a directory precede those of its subdirectories.
func (c *Client) FilesInDirectory(ctx context.Context, path string, recurseLevels int) ([]MusicFile, error) {
	entries, err := c.Directory(ctx, path)
	if err != nil {
		return nil, err
	}
	var files []MusicFile
	var subdirs []string
	for _, entry := range entries {
		switch e := entry.(type) {
		case MusicFile:
			files = append(files, e)
		case Directory:
			if recurseLevels != 0 {
				subdirs = append(subdirs, e.Path())
			}
		}
	}
	if len(subdirs) == 0 {
		return files, nil
	}

	results := make([][]MusicFile, len(subdirs))
	errs := make([]error, len(subdirs))
	var wg sync.WaitGroup
	for i, dir := range subdirs {
		i, dir := i, dir
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.FilesInDirectory(ctx, dir, recurseLevels-1)
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	for _, more := range results {
		files = append(files, more...)
	}
	return files, nil
}

// Playlist returns the songs of a stored playlist or a playlist file in the
// music database.
func (c *Client) Playlist(ctx context.Context, nameOrPath string) ([]MusicFile, error) {
	resp, err := c.engine.Do(ctx, protocol.Command("listplaylistinfo", nameOrPath))
	if err != nil {
		return nil, err
	}
	return musicFiles(resp), nil
}

func (c *Client) StoredPlaylists(ctx context.Context) ([]StoredPlaylist, error) {
	resp, err := c.engine.Do(ctx, "listplaylists")
	if err != nil {
		return nil, err
	}
	records := resp.Records("playlist")
	out := make([]StoredPlaylist, 0, len(records))
	for _, r := range records {
		out = append(out, newStoredPlaylist(r))
	}
	return out, nil
}

func (c *Client) RemoveStoredPlaylist(ctx context.Context, name string) error {
	return c.exec(ctx, protocol.Command("rm", name))
}

// LoadStoredPlaylist appends a stored playlist to the current playlist.
func (c *Client) LoadStoredPlaylist(ctx context.Context, name string) error {
	return c.exec(ctx, protocol.Command("load", name))
}

func (c *Client) StoreCurrentPlaylist(ctx context.Context, name string) error {
	return c.exec(ctx, protocol.Command("save", name))
}

// Update starts a database update of path ("" for everything) and returns
// the update job id.
func (c *Client) Update(ctx context.Context, path string) (int, error) {
	return c.updateJob(ctx, "update", path)
}

// Rescan is Update that also rereads unmodified files.
func (c *Client) Rescan(ctx context.Context, path string) (int, error) {
	return c.updateJob(ctx, "rescan", path)
}

func (c *Client) updateJob(ctx context.Context, name, path string) (int, error) {
	cmd := name
	if path != "" {
		cmd = protocol.Command(name, path)
	}
	resp, err := c.engine.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, _ := resp.Get("updating_db")
	job, _ := strconv.Atoi(v)
	return job, nil
}

func musicFiles(resp protocol.Response) []MusicFile {
	records := resp.Records("file")
	out := make([]MusicFile, 0, len(records))
	for _, r := range records {
		out = append(out, newMusicFile(r))
	}
	return out
}
