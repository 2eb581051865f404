package mp4

import (
	"bytes"
	"encoding/binary"
	"slices"
	"testing"

	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
)

// avccFrames builds length prefixed units: an SPS, a PPS, then n slices.
func avccFrames(n, size int) []byte {
	unit := func(body []byte) []byte {
		return append(binary.BigEndian.AppendUint32(nil, uint32(len(body))), body...)
	}
	b := concat(unit([]byte{0x67, 0x42, 0xC0, 0x1E, 0x11}), unit([]byte{0x68, 0xCE, 0x3C, 0x80}))
	for iter := 0; iter < n; iter++ {
		slice := bytes.Repeat([]byte{0x11}, size)
		slice[0], slice[1] = 0x65, 0x88
		b = append(b, unit(slice)...)
	}
	return b
}

// annexBSlices builds Annex-B slice units of size bytes whose first two bytes
// after the start code come from heads.
func annexBSlices(size int, heads ...[2]byte) []byte {
	var b []byte
	for _, h := range heads {
		unit := bytes.Repeat([]byte{0x11}, size)
		copy(unit, []byte{0, 0, 0, 1, h[0], h[1]})
		b = append(b, unit...)
	}
	return b
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		video, audio codec.CodecType
		starts       []int
	}{
		{"annexb", annexBFrames(3, 50), codec.CodecAvc, codec.CodecNone, []int{0, 50, 100}},
		{"non idr slices", annexBSlices(100, [2]byte{0x41, 0x11}, [2]byte{0x41, 0x11}, [2]byte{0x41, 0x11}, [2]byte{0x41, 0x11}, [2]byte{0x41, 0x11}), codec.CodecAvc, codec.CodecNone, []int{0, 100, 200, 300, 400}},
		{"idr slices not at mb 0", annexBSlices(100, [2]byte{0x65, 0x11}, [2]byte{0x65, 0x11}, [2]byte{0x65, 0x11}), codec.CodecAvc, codec.CodecNone, []int{0, 100, 200}},
		{"two slices per picture", annexBSlices(50, [2]byte{0x65, 0x88}, [2]byte{0x65, 0x11}, [2]byte{0x41, 0x88}, [2]byte{0x41, 0x11}), codec.CodecAvc, codec.CodecNone, []int{0, 100}},
		{"avcc", avccFrames(2, 40), codec.CodecAvc, codec.CodecNone, []int{0, 61}},
		{"mjpeg", concat([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{1}, 60), []byte{0xFF, 0xD8, 0xFF, 0xDB}, bytes.Repeat([]byte{1}, 60)), codec.CodecMjpg, codec.CodecNone, []int{0, 64}},
		{"mpeg4 visual", concat([]byte{0, 0, 1, 0xB0, 1}, bytes.Repeat([]byte{7}, 20), []byte{0, 0, 1, 0xB6, 0x10}, bytes.Repeat([]byte{7}, 30), []byte{0, 0, 1, 0xB6, 0x50}, bytes.Repeat([]byte{7}, 30)), codec.CodecMp4v, codec.CodecNone, []int{0, 60}},
		{"h263", concat([]byte{0, 0, 0x80, 0x02, 0x08, 0x11, 0x22, 0x33, 0x44}, bytes.Repeat([]byte{9}, 40), []byte{0, 0, 0x82, 0x02, 0x08, 0x11, 0x22, 0x33, 0x44}, bytes.Repeat([]byte{9}, 40)), codec.CodecS263, codec.CodecNone, []int{0, 49}},
		{"adts", concat(adtsFrame(80), adtsFrame(80), adtsFrame(80)), codec.CodecNone, codec.CodecMp4a, []int{0, 80, 160}},
		{"libfaac", concat(bytes.Repeat([]byte{3}, 30), []byte("libfaac 1.28"), bytes.Repeat([]byte{3}, 30)), codec.CodecNone, codec.CodecMp4a, []int{30}},
		{"amr", concat([]byte("#!AMR\n"), []byte{0x3C}, bytes.Repeat([]byte{5}, 31), []byte{0x3C}, bytes.Repeat([]byte{5}, 31)), codec.CodecNone, codec.CodecAmr, []int{6, 38}},
		{"nothing", bytes.Repeat([]byte{0x11}, 500), codec.CodecNone, codec.CodecNone, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Identify(tt.data)
			if d.Video != tt.video || d.Audio != tt.audio {
				t.Fatalf("got video %s audio %s", d.Video, d.Audio)
			}
			if got := d.Positions(d.Primary()); !slices.Equal(got, tt.starts) {
				t.Errorf("starts %v, want %v", got, tt.starts)
			}
			if d.Found() != (tt.starts != nil) {
				t.Error("Found disagrees with the positions")
			}
		})
	}
}

func TestH263ZeroRun(t *testing.T) {
	data := concat([]byte{0, 0, 0x80, 0x02, 0x08}, make([]byte, 64))
	if starts := scanH263(data); len(starts) != 0 {
		t.Errorf("zero padding matched at %v", starts)
	}
}

func TestPrimarySecondary(t *testing.T) {
	var data []byte
	for iter := 0; iter < 3; iter++ {
		data = concat(data, annexBFrames(1, 100), adtsFrame(40), adtsFrame(40))
	}
	d := Identify(data)
	if d.Primary() != codec.CodecAvc || d.Secondary() != codec.CodecMp4a {
		t.Fatalf("primary %s secondary %s", d.Primary(), d.Secondary())
	}
	audioOnly := Identify(concat(adtsFrame(40), adtsFrame(40)))
	if audioOnly.Primary() != codec.CodecMp4a || audioOnly.Secondary() != codec.CodecNone {
		t.Error("audio becomes primary without video")
	}
}

func TestFindParameterSets(t *testing.T) {
	sps, _ := codec.DefaultSPS().Marshal()
	pps, _ := codec.DefaultPPS().Marshal()
	t.Run("annexb", func(t *testing.T) {
		data := concat([]byte{0x11, 0, 0, 0, 1}, sps, []byte{0, 0, 0, 1}, pps, annexBFrames(1, 40))
		ps, ok := FindParameterSets(data)
		if !ok {
			t.Fatal("not found")
		}
		if !bytes.Equal(ps.SPS, sps) || !bytes.Equal(ps.PPS, pps) || ps.Width != 640 || ps.Height != 480 {
			t.Errorf("got %+v", ps)
		}
	})
	t.Run("length prefixed", func(t *testing.T) {
		data := concat(binary.BigEndian.AppendUint32(nil, uint32(len(sps))), sps, binary.BigEndian.AppendUint32(nil, uint32(len(pps))), pps)
		ps, ok := FindParameterSets(data)
		if !ok || !bytes.Equal(ps.SPS, sps) || !bytes.Equal(ps.PPS, pps) {
			t.Fatal("length prefixed sets not found")
		}
	})
	t.Run("sps without pps", func(t *testing.T) {
		if _, ok := FindParameterSets(concat([]byte{0, 0, 0, 1}, sps, bytes.Repeat([]byte{0x11}, 100))); ok {
			t.Error("unpaired SPS accepted")
		}
	})
}
