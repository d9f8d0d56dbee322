package mpd

import (
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/mpdctl/internal/protocol"
)

// Status is the player state reported by "status". Song and SongID are -1
// when no song is selected.
type Status struct {
	State           string  `json:"state" yaml:"state"`
	Song            int     `json:"song" yaml:"song"`
	SongID          int     `json:"song_id" yaml:"song_id"`
	Elapsed         float64 `json:"elapsed" yaml:"elapsed"`
	Volume          int     `json:"volume" yaml:"volume"`
	PlaylistVersion int     `json:"playlist_version" yaml:"playlist_version"`
	PlaylistLength  int     `json:"playlist_length" yaml:"playlist_length"`
	Repeat          bool    `json:"repeat" yaml:"repeat"`
	Random          bool    `json:"random" yaml:"random"`
	Single          bool    `json:"single" yaml:"single"`
	Consume         bool    `json:"consume" yaml:"consume"`
	Bitrate         int     `json:"bitrate" yaml:"bitrate"`
	Audio           string  `json:"audio,omitempty" yaml:"audio,omitempty"`
}

func newStatus(r protocol.Record) Status {
	return Status{
		State:           r["state"],
		Song:            intOr(r, "song", -1),
		SongID:          intOr(r, "songid", -1),
		Elapsed:         floatOr(r, "elapsed", 0),
		Volume:          intOr(r, "volume", 0),
		PlaylistVersion: intOr(r, "playlist", 0),
		PlaylistLength:  intOr(r, "playlistlength", 0),
		Repeat:          r["repeat"] == "1",
		Random:          r["random"] == "1",
		Single:          r["single"] == "1",
		Consume:         r["consume"] == "1",
		Bitrate:         intOr(r, "bitrate", 0),
		Audio:           r["audio"],
	}
}

// EntryKind is the kind of a music database object.
type EntryKind int

const (
	KindDirectory EntryKind = iota
	KindMusicFile
	KindPlaylist
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindMusicFile:
		return "file"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// DirectoryEntry is an object in the music database.
type DirectoryEntry interface {
	Path() string
	// Name is the last path element.
	Name() string
	// BasePath is the path without its last element, or "" at the root.
	BasePath() string
	Kind() EntryKind
	Modified() time.Time
}

// Entry carries the fields every database object has.
type Entry struct {
	Location     string    `json:"path" yaml:"path"`
	LastModified time.Time `json:"last_modified,omitzero" yaml:"last_modified,omitempty"`
}

func (e Entry) Path() string        { return e.Location }
func (e Entry) Modified() time.Time { return e.LastModified }

func (e Entry) Name() string {
	if i := strings.LastIndexByte(e.Location, '/'); i >= 0 {
		return e.Location[i+1:]
	}
	return e.Location
}

func (e Entry) BasePath() string {
	if i := strings.LastIndexByte(e.Location, '/'); i >= 0 {
		return e.Location[:i]
	}
	return ""
}

// MusicFile is song metadata. Title falls back to the file name without its
// extension when the file has no title tag.
type MusicFile struct {
	Entry       `yaml:",inline"`
	Title       string  `json:"title,omitempty" yaml:"title,omitempty"`
	Artist      string  `json:"artist,omitempty" yaml:"artist,omitempty"`
	Album       string  `json:"album,omitempty" yaml:"album,omitempty"`
	AlbumArtist string  `json:"album_artist,omitempty" yaml:"album_artist,omitempty"`
	Date        string  `json:"date,omitempty" yaml:"date,omitempty"`
	Genre       string  `json:"genre,omitempty" yaml:"genre,omitempty"`
	Duration    float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (MusicFile) Kind() EntryKind { return KindMusicFile }

func newMusicFile(r protocol.Record) MusicFile {
	f := MusicFile{
		Entry:       newEntry(r, "file"),
		Title:       r["Title"],
		Artist:      r["Artist"],
		Album:       r["Album"],
		AlbumArtist: r["AlbumArtist"],
		Date:        r["Date"],
		Genre:       r["Genre"],
		Duration:    floatOr(r, "duration", floatOr(r, "Time", 0)),
	}
	if f.Title == "" && f.Location != "" {
		name := f.Name()
		if i := strings.LastIndexByte(name, '.'); i > 0 {
			name = name[:i]
		}
		f.Title = name
	}
	return f
}

type Directory struct {
	Entry `yaml:",inline"`
}

func (Directory) Kind() EntryKind { return KindDirectory }

// PlaylistFile is a playlist stored in the music directory.
type PlaylistFile struct {
	Entry `yaml:",inline"`
}

func (PlaylistFile) Kind() EntryKind { return KindPlaylist }

func newEntry(r protocol.Record, pathKey string) Entry {
	e := Entry{Location: r[pathKey]}
	if ts, ok := r["Last-Modified"]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.LastModified = t
		}
	}
	return e
}

// directoryEntry builds the object a record describes, keyed on which path
// field it carries.
func directoryEntry(r protocol.Record) (DirectoryEntry, bool) {
	switch {
	case r["file"] != "":
		return newMusicFile(r), true
	case r["directory"] != "":
		return Directory{Entry: newEntry(r, "directory")}, true
	case r["playlist"] != "":
		return PlaylistFile{Entry: newEntry(r, "playlist")}, true
	default:
		return nil, false
	}
}

// PlaylistItem is an entry of the current playlist.
type PlaylistItem struct {
	MusicFile `yaml:",inline"`
	ID        int `json:"id" yaml:"id"`
	Pos       int `json:"pos" yaml:"pos"`
}

func newPlaylistItem(r protocol.Record) PlaylistItem {
	return PlaylistItem{
		MusicFile: newMusicFile(r),
		ID:        intOr(r, "Id", -1),
		Pos:       intOr(r, "Pos", -1),
	}
}

// StoredPlaylist is a playlist saved with StoreCurrentPlaylist.
type StoredPlaylist struct {
	Name         string    `json:"name" yaml:"name"`
	LastModified time.Time `json:"last_modified,omitzero" yaml:"last_modified,omitempty"`
}

func newStoredPlaylist(r protocol.Record) StoredPlaylist {
	e := newEntry(r, "playlist")
	return StoredPlaylist{Name: e.Location, LastModified: e.LastModified}
}

func intOr(r protocol.Record, key string, def int) int {
	v, ok := r[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatOr(r protocol.Record, key string, def float64) float64 {
	v, ok := r[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
