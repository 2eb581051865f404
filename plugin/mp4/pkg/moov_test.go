package mp4

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/simsong/bulk-extractor-sub001/pkg"
	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
	"github.com/simsong/bulk-extractor-sub001/plugin/mp4/pkg/box"
)

// largeHeader is a box header with a 64-bit size.
func largeHeader(typ string, size uint64) []byte {
	return binary.BigEndian.AppendUint64(header(typ, 1), size)
}

func TestLocateAtoms(t *testing.T) {
	mdat := atom("mdat", annexBFrames(2, 50))
	tests := []struct {
		name string
		data []byte
		ok   bool
	}{
		{"mdat then moov", concat(ftyp, mdat, atom("moov", atom("mvhd", make([]byte, 100)))), true},
		{"no moov", concat(ftyp, mdat), false},
		{"no mdat", concat(ftyp, atom("moov")), false},
		{"moov first", concat(ftyp, atom("moov"), mdat), false},
		{"mdat overlaps moov", concat(ftyp, header("mdat", 200), annexBFrames(1, 50), atom("moov")), false},
		{"mdat size wraps", concat(ftyp, largeHeader("mdat", math.MaxUint64-7), annexBFrames(1, 50), header("moov", 4096)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moov, md, err := LocateAtoms(tt.data)
			if tt.ok {
				if err != nil {
					t.Fatal(err)
				}
				if md.Offset != uint64(len(ftyp)) || moov.Offset != md.End() || moov.Truncated {
					t.Errorf("moov %+v mdat %+v", moov, md)
				}
				return
			}
			if !errors.Is(err, pkg.ErrStructure) {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestIdentifyMoovTree(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		data := truncatedFragment(annexBFrames(2, 50), 320, 240)
		moov, _, err := LocateAtoms(data)
		if err != nil {
			t.Fatal(err)
		}
		if !moov.Truncated || !moov.IdentifyMoovTree(data) {
			t.Fatal("truncated moov with a trak")
		}
		if moov.NumTracks != 1 || !moov.Mvhd.Present {
			t.Fatalf("%d tracks", moov.NumTracks)
		}
		trak := moov.Traks[0]
		for name, ref := range map[string]BoxRef{"tkhd": trak.Tkhd, "mdia": trak.Mdia, "mdhd": trak.Mdhd, "hdlr": trak.Hdlr} {
			if !ref.Present {
				t.Errorf("%s not recorded", name)
			}
		}
		if trak.Minf.Present || trak.Stbl.Present {
			t.Error("boxes past the cut recorded")
		}
		if trak.Hdlr.Content(data) != nil {
			t.Error("cut off hdlr has content")
		}
		if moov.Complete() || moov.TruncatedAt != uint64(len(data)) {
			t.Errorf("walk stopped at %d", moov.TruncatedAt)
		}
	})
	t.Run("unknown atom", func(t *testing.T) {
		trak := concat(header("trak", 4096), atom("tkhd", tkhdContent(1, 1)), atom("zzzz", make([]byte, 8)), atom("mdia"))
		data := concat(ftyp, atom("mdat", annexBFrames(1, 50)), header("moov", 8192), trak)
		moov, _, _ := LocateAtoms(data)
		moov.IdentifyMoovTree(data)
		if len(moov.Traks) != 1 || !moov.Traks[0].Tkhd.Present || moov.Traks[0].Mdia.Present {
			t.Error("walk went past an unknown atom")
		}
	})
	t.Run("stsd codec", func(t *testing.T) {
		tree := box.NewTree()
		stbl := tree.Add(box.NoParent, box.TypeSTBL, nil)
		tree.Mp4vStsd(stbl, 176, 144)
		minf := concat(header("minf", 4096), tree.Bytes(stbl))
		mdia := concat(header("mdia", 4096), atom("mdhd", mdhdContent(600, 6000)), minf)
		trak := concat(header("trak", 8192), atom("tkhd", tkhdContent(176, 144)), mdia)
		data := concat(ftyp, atom("mdat", annexBFrames(1, 50)), header("moov", 16384), trak)
		moov, _, _ := LocateAtoms(data)
		if !moov.IdentifyMoovTree(data) {
			t.Fatal("no trak")
		}
		got := moov.Traks[0]
		if got.Codec != codec.CodecMp4v || got.CodecName != box.TypeMP4V || got.Stsd.Content(data) == nil {
			t.Errorf("codec %s name %q", got.Codec, got.CodecName)
		}
	})
	t.Run("child size wraps", func(t *testing.T) {
		trak := concat(header("trak", 4096), atom("free"), largeHeader("free", math.MaxUint64-7), make([]byte, 16))
		data := concat(ftyp, atom("mdat", annexBFrames(1, 50)), header("moov", 8192), trak)
		moov, _, err := LocateAtoms(data)
		if err != nil {
			t.Fatal(err)
		}
		if !moov.IdentifyMoovTree(data) || len(moov.Traks) != 1 {
			t.Fatal("trak before the wrapping box lost")
		}
		if moov.Complete() {
			t.Error("walk past a box running beyond the fragment")
		}
	})
	t.Run("no trak", func(t *testing.T) {
		data := concat(ftyp, atom("mdat", annexBFrames(1, 50)), header("moov", 4096), atom("mvhd", make([]byte, 100)))
		moov, _, _ := LocateAtoms(data)
		if moov.IdentifyMoovTree(data) {
			t.Error("moov without trak accepted")
		}
	})
}

func TestKnownAtom(t *testing.T) {
	for _, typ := range [][4]byte{box.TypeMOOV, box.TypeSTSD, box.TypeAVCC, box.TypeURL} {
		if !KnownAtom(typ) {
			t.Errorf("%q unknown", typ)
		}
	}
	if KnownAtom([4]byte{'z', 'z', 'z', 'z'}) || KnownAtom([4]byte{}) {
		t.Error("garbage accepted")
	}
}
