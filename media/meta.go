package media

import "time"

// Meta carries container-level metadata reported by a demuxer. Fields the
// container does not provide are left empty; Extra holds format-specific
// entries that have no dedicated field.
type Meta struct {
	Title   string
	Artist  string
	Album   string
	Genre   string
	Date    string
	Comment string
	Extra   map[string]string
}

// Attachment is an auxiliary file embedded in a container, such as a font
// or cover art.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// Title is a track-like navigation unit exposed by some containers
// (DVD titles, Matroska editions). Seekpoints are its chapter marks.
type Title struct {
	Name       string
	Length     time.Duration
	Seekpoints []Seekpoint
}

// Seekpoint is a chapter-like position within a Title.
type Seekpoint struct {
	Name   string
	Offset time.Duration
}
