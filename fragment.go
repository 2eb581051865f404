package carve

import (
	"fmt"
	"strings"
)

// Fragment is a read-only window of a disk image starting at a candidate
// file header. Data is shared with the page it was cut from.
type Fragment struct {
	Data []byte
	// Path is the image the fragment was read from.
	Path string
	// BaseOffset is the image offset of the page, Offset the fragment offset
	// inside the page.
	BaseOffset uint64
	Offset     uint64
}

// Position is the absolute image offset, the key recorders write.
func (f *Fragment) Position() string {
	return fmt.Sprint(f.BaseOffset + f.Offset)
}

// SanitizedPath is Path with separators and spaces replaced so it can be
// part of a file name.
func (f *Fragment) SanitizedPath() string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '\t':
			return '_'
		}
		return r
	}, strings.TrimLeft(f.Path, "/"))
}
