// Package types provides shared type definitions used across vizplayer.
package types

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// TrackMetadata contains display metadata for a track.
// Every field has an explicit default, see DefaultMetadata.
type TrackMetadata struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	TrackNumber int    `json:"trackNumber,omitempty"`
	ArtPath     string `json:"artPath,omitempty"`
	ArtMIME     string `json:"artMime,omitempty"`
	Art         []byte `json:"-"`
}

// HasArt reports whether the track has embedded or folder artwork.
func (m TrackMetadata) HasArt() bool {
	return len(m.Art) > 0 || m.ArtPath != ""
}

// Track is one playable audio file. Path is its identifier.
type Track struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration,omitempty"` // 0 when unknown until decoded
	Metadata TrackMetadata `json:"metadata"`
}

// NewTrack builds a track with default metadata derived from the path.
func NewTrack(path string) Track {
	return Track{Path: path, Metadata: DefaultMetadata(path)}
}

// Name returns the display name of the track.
func (t Track) Name() string {
	if t.Metadata.Title != "" {
		return t.Metadata.Title
	}
	return DisplayName(t.Path)
}

var trackNumberPrefix = regexp.MustCompile(`^\d+[\.\-\s]+`)

// DisplayName returns the filename stem with any leading "07 - " or "1. "
// track numbering removed.
func DisplayName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if trimmed := trackNumberPrefix.ReplaceAllString(stem, ""); trimmed != "" {
		return trimmed
	}
	return stem
}

// DefaultMetadata returns the metadata used when a file carries no tags.
func DefaultMetadata(path string) TrackMetadata {
	return TrackMetadata{
		Title:  DisplayName(path),
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}
}

// WithDefaults fills any empty field from DefaultMetadata.
func (m TrackMetadata) WithDefaults(path string) TrackMetadata {
	def := DefaultMetadata(path)
	if strings.TrimSpace(m.Title) == "" {
		m.Title = def.Title
	}
	if strings.TrimSpace(m.Artist) == "" {
		m.Artist = def.Artist
	}
	if strings.TrimSpace(m.Album) == "" {
		m.Album = def.Album
	}
	return m
}

// TransportState represents the playback state
type TransportState string

const (
	StateStopped TransportState = "stopped"
	StatePlaying TransportState = "playing"
	StatePaused  TransportState = "paused"
)

// RepeatMode represents the repeat behavior
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the string representation of the repeat mode
func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// Next cycles off -> all -> one -> off.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses a string into a RepeatMode
func ParseRepeatMode(s string) RepeatMode {
	switch strings.ToLower(s) {
	case "one":
		return RepeatOne
	case "all":
		return RepeatAll
	default:
		return RepeatOff
	}
}

// SortKey selects the playlist sort order.
type SortKey string

const (
	SortName   SortKey = "name"
	SortArtist SortKey = "artist"
	SortAlbum  SortKey = "album"
)

// ParseSortKey parses a sort key, defaulting to SortName.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(s)) {
	case SortArtist:
		return SortArtist
	case SortAlbum:
		return SortAlbum
	default:
		return SortName
	}
}

// FormatTime formats a duration as M:SS.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
