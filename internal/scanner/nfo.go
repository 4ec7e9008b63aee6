package scanner

import (
	"encoding/xml"
	"os"
	"path/filepath"
)

// AlbumNFO is the per-folder album descriptor written by media managers.
const AlbumNFO = "album.nfo"

// AlbumInfo represents the fields of an album.nfo file used to fill in
// untagged tracks.
type AlbumInfo struct {
	Title     string   `xml:"title" json:"title"`
	Artist    string   `xml:"artist" json:"artist,omitempty"`
	Year      int      `xml:"year" json:"year,omitempty"`
	Genre     []string `xml:"genre" json:"genres,omitempty"`
	Path      string   `xml:"-" json:"path"`
	AlbumPath string   `xml:"-" json:"albumPath"`
}

// ParseAlbumNFO parses an album.nfo file
func ParseAlbumNFO(path string) (*AlbumInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var album AlbumInfo
	if err := xml.Unmarshal(data, &album); err != nil {
		return nil, err
	}

	album.Path = path
	album.AlbumPath = filepath.Dir(path)
	return &album, nil
}
