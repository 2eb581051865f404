package carve

import (
	"encoding/binary"
	"slices"
	"testing"
)

func ftypAt(size uint32, brand string) []byte {
	b := binary.BigEndian.AppendUint32(nil, size)
	b = append(b, "ftyp"...)
	return append(b, brand...)
}

func TestFindCandidates(t *testing.T) {
	pad := make([]byte, 10)
	tests := []struct {
		name  string
		page  []byte
		limit int
		want  []int
	}{
		{"at start", ftypAt(20, "isom0000"), 100, []int{0}},
		{"after padding", append(pad, ftypAt(24, "3gp5")...), 100, []int{10}},
		{"two", append(ftypAt(20, "isom"), ftypAt(20, "mp42")...), 100, []int{0, 12}},
		{"size too large", ftypAt(4096, "isom"), 100, nil},
		{"size too small", ftypAt(4, "isom"), 100, nil},
		{"unprintable brand", ftypAt(20, "is\x00m"), 100, nil},
		{"past limit", append(pad, ftypAt(20, "isom")...), 10, nil},
		{"brand cut off", ftypAt(20, "is"), 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindCandidates(tt.page, tt.limit); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFragment(t *testing.T) {
	f := &Fragment{Path: "/cases/12 a/disk.E01", BaseOffset: 1 << 24, Offset: 42}
	if f.Position() != "16777258" {
		t.Errorf("position %s", f.Position())
	}
	if p := f.SanitizedPath(); p != "cases_12_a_disk.E01" {
		t.Errorf("path %s", p)
	}
}
