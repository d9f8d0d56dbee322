package live

import (
	"context"
	"sort"
	"sync"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/rs/zerolog"
)

// Cause tells directory listeners what changed.
type Cause string

const (
	CauseWatch   Cause = "watch"
	CauseUnwatch Cause = "unwatch"
	CauseUpdate  Cause = "update"
)

// Directories keeps listings of watched directories current across
// database changes. Directories that can no longer be listed are dropped.
type Directories struct {
	client    Client
	ctx       context.Context
	cancel    context.CancelFunc
	log       zerolog.Logger
	listeners listeners[func(Cause)]

	mu      sync.RWMutex
	watched map[string][]mpd.DirectoryEntry
}

func NewDirectories(ctx context.Context, c Client) *Directories {
	ctx, cancel := context.WithCancel(ctx)
	d := &Directories{
		client:  c,
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.Component("live").With().Str("view", "directories").Logger(),
		watched: make(map[string][]mpd.DirectoryEntry),
	}
	c.RegisterObserver(d)
	return d
}

func (d *Directories) SubsystemsChanged(subsystems []string) {
	if !relevant(subsystems, []string{"database"}) {
		return
	}
	go d.Refetch(d.ctx)
}

func (d *Directories) IsWatching(path string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.watched[path]
	return ok
}

// Watch starts tracking path and returns its listing. Watching a path that
// is already tracked returns the cached listing without a fetch.
func (d *Directories) Watch(ctx context.Context, path string) ([]mpd.DirectoryEntry, error) {
	if entries, ok := d.Watched(path); ok {
		return entries, nil
	}
	entries, err := d.client.Directory(ctx, path)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.watched[path] = entries
	d.mu.Unlock()
	d.notify(CauseWatch)
	return entries, nil
}

func (d *Directories) Unwatch(path string) {
	d.mu.Lock()
	_, ok := d.watched[path]
	delete(d.watched, path)
	d.mu.Unlock()
	if ok {
		d.notify(CauseUnwatch)
	}
}

// ToggleWatch unwatches a watched path and watches any other.
func (d *Directories) ToggleWatch(ctx context.Context, path string) error {
	if d.IsWatching(path) {
		d.Unwatch(path)
		return nil
	}
	_, err := d.Watch(ctx, path)
	return err
}

// Watched returns the cached listing of path.
func (d *Directories) Watched(path string) ([]mpd.DirectoryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries, ok := d.watched[path]
	return entries, ok
}

// Paths lists the watched paths in order.
func (d *Directories) Paths() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.watched))
	for p := range d.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Refetch lists every watched directory again. Paths that fail to list are
// dropped; paths watched or unwatched meanwhile keep their new state.
func (d *Directories) Refetch(ctx context.Context) {
	paths := d.Paths()
	listings := make([][]mpd.DirectoryEntry, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			listings[i], errs[i] = d.client.Directory(ctx, p)
		}()
	}
	wg.Wait()

	d.mu.Lock()
	for i, p := range paths {
		if _, still := d.watched[p]; !still {
			continue
		}
		if errs[i] != nil {
			d.log.Debug().Err(errs[i]).Str("path", p).Msg("dropping directory")
			delete(d.watched, p)
			continue
		}
		d.watched[p] = listings[i]
	}
	d.mu.Unlock()
	d.notify(CauseUpdate)
}

// Subscribe calls fn with the cause of every change until the returned
// function is called.
func (d *Directories) Subscribe(fn func(Cause)) func() {
	return d.listeners.add(fn)
}

func (d *Directories) Close() {
	d.client.UnregisterObserver(d)
	d.cancel()
}

func (d *Directories) notify(cause Cause) {
	for _, fn := range d.listeners.snapshot() {
		fn(cause)
	}
}
