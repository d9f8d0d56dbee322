// Package live keeps daemon state current by re-fetching it whenever the
// daemon reports a change to a relevant subsystem.
package live

import (
	"context"
	"slices"
	"sync"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/danmuck/mpdctl/internal/protocol/session"
	"github.com/rs/zerolog"
)

// Client is the part of mpd.Client the views use.
type Client interface {
	RegisterObserver(session.Observer)
	UnregisterObserver(session.Observer)
	Status(ctx context.Context) (mpd.Status, error)
	CurrentPlaylist(ctx context.Context) ([]mpd.PlaylistItem, error)
	StoredPlaylists(ctx context.Context) ([]mpd.StoredPlaylist, error)
	Directory(ctx context.Context, path string) ([]mpd.DirectoryEntry, error)
}

// View holds the latest value of one fetch and refreshes it when any of its
// subsystems changes.
type View[T any] struct {
	name       string
	client     Client
	fetch      func(context.Context) (T, error)
	subsystems []string
	ctx        context.Context
	cancel     context.CancelFunc
	log        zerolog.Logger
	listeners  listeners[func()]

	mu      sync.RWMutex
	value   T
	valid   bool
	err     error
	seq     uint64
	applied uint64
}

func newView[T any](ctx context.Context, c Client, name string, fetch func(context.Context) (T, error), subsystems ...string) *View[T] {
	ctx, cancel := context.WithCancel(ctx)
	v := &View[T]{
		name:       name,
		client:     c,
		fetch:      fetch,
		subsystems: subsystems,
		ctx:        ctx,
		cancel:     cancel,
		log:        logging.Component("live").With().Str("view", name).Logger(),
	}
	c.RegisterObserver(v)
	go v.Refresh(ctx)
	return v
}

// NewStatus tracks the player status.
func NewStatus(ctx context.Context, c Client) *View[mpd.Status] {
	return newView(ctx, c, "status", c.Status, "player", "options", "mixer", "playlist")
}

// NewCurrentPlaylist tracks the current playlist.
func NewCurrentPlaylist(ctx context.Context, c Client) *View[[]mpd.PlaylistItem] {
	return newView(ctx, c, "playlist", c.CurrentPlaylist, "playlist")
}

// NewStoredPlaylists tracks the stored playlists.
func NewStoredPlaylists(ctx context.Context, c Client) *View[[]mpd.StoredPlaylist] {
	return newView(ctx, c, "stored_playlists", c.StoredPlaylists, "stored_playlist")
}

// SubsystemsChanged runs on the engine's delivery path, so the refetch is
// started in the background.
func (v *View[T]) SubsystemsChanged(subsystems []string) {
	if !relevant(subsystems, v.subsystems) {
		return
	}
	go v.Refresh(v.ctx)
}

// Refresh fetches the value now. A fetch that finishes after a newer one
// is discarded. Listeners run after a successful fetch.
func (v *View[T]) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.mu.Unlock()

	value, err := v.fetch(ctx)

	v.mu.Lock()
	if seq <= v.applied {
		v.mu.Unlock()
		return err
	}
	v.applied = seq
	if err != nil {
		v.err = err
		v.mu.Unlock()
		v.log.Warn().Err(err).Msg("refresh failed")
		return err
	}
	v.value, v.valid, v.err = value, true, nil
	v.mu.Unlock()

	for _, fn := range v.listeners.snapshot() {
		fn()
	}
	return nil
}

// Get returns the latest value and whether any fetch succeeded yet.
func (v *View[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.valid
}

// Err is the error of the latest fetch, if it failed.
func (v *View[T]) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Subscribe calls fn after every successful refresh until the returned
// function is called.
func (v *View[T]) Subscribe(fn func()) func() {
	return v.listeners.add(fn)
}

// Close stops tracking changes.
func (v *View[T]) Close() {
	v.client.UnregisterObserver(v)
	v.cancel()
}

func relevant(changed, watched []string) bool {
	for _, s := range changed {
		if slices.Contains(watched, s) {
			return true
		}
	}
	return false
}

// listeners is a registration list. Removal is by handle, so the same
// function may be registered twice.
type listeners[F any] struct {
	mu      sync.Mutex
	next    int
	entries []listener[F]
}

type listener[F any] struct {
	id int
	fn F
}

func (l *listeners[F]) add(fn F) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.entries = append(l.entries, listener[F]{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = slices.DeleteFunc(slices.Clone(l.entries), func(e listener[F]) bool { return e.id == id })
	}
}

func (l *listeners[F]) snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]F, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.fn)
	}
	return out
}
