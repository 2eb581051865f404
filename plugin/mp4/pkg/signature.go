package mp4

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4video"
	"github.com/deepch/vdk/codec/aacparser"

	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

// A scanner returns the offsets where samples of one codec start.
type scanner func(data []byte) []int

type signature struct {
	codec codec.CodecType
	scan  scanner
}

// Probe order decides ties between codecs whose first sample sits at the
// same offset.
var (
	videoSignatures = []signature{
		{codec.CodecAvc, scanAVC},
		{codec.CodecMjpg, scanMJPG},
		{codec.CodecMp4v, scanMP4V},
		{codec.CodecS263, scanH263},
	}
	audioSignatures = []signature{
		{codec.CodecMp4a, scanAAC},
		{codec.CodecAmr, scanAMR},
	}
)

// Bytes of a NAL unit handed to the splitter, enough for first_mb_in_slice.
const sliceHeaderPeek = 8

var (
	faacMarker = []byte("libfaac")
	amrMagic   = []byte("#!AMR\n")
)

// Detection is the outcome of scanning mdat for codec signatures.
type Detection struct {
	Video, Audio codec.CodecType
	positions    map[codec.CodecType][]int
}

// Identify scans data for every known signature. The codec whose first
// sample comes earliest wins per media kind.
func Identify(data []byte) *Detection {
	d := &Detection{positions: make(map[codec.CodecType][]int)}
	d.Video = d.earliest(data, videoSignatures)
	d.Audio = d.earliest(data, audioSignatures)
	return d
}

func (d *Detection) earliest(data []byte, sigs []signature) (found codec.CodecType) {
	first := len(data)
	for _, sig := range sigs {
		pos := sig.scan(data)
		if len(pos) == 0 {
			continue
		}
		d.positions[sig.codec] = pos
		if pos[0] < first {
			first, found = pos[0], sig.codec
		}
	}
	return
}

func (d *Detection) Found() bool {
	return d.Video != codec.CodecNone || d.Audio != codec.CodecNone
}

// Primary is the codec the sample tables describe: video when present.
func (d *Detection) Primary() codec.CodecType {
	if d.Video != codec.CodecNone {
		return d.Video
	}
	return d.Audio
}

// Secondary is the interleaved audio of a video fragment.
func (d *Detection) Secondary() codec.CodecType {
	if d.Video != codec.CodecNone {
		return d.Audio
	}
	return codec.CodecNone
}

func (d *Detection) Positions(c codec.CodecType) []int {
	return d.positions[c]
}

// auSplitter groups units into access units. A header unit (parameter
// sets, delimiters, group headers) opens a new access unit when the
// previous one already holds a picture, a picture unit opens one unless
// headers already did.
type auSplitter struct {
	open, hasPicture bool
	starts           []int
	// lastMB is first_mb_in_slice of the previous AVC slice, -1 before any
	lastMB int
}

func newAUSplitter() *auSplitter {
	return &auSplitter{lastMB: -1}
}

func (s *auSplitter) header(pos int) {
	if !s.open || s.hasPicture {
		s.starts = append(s.starts, pos)
		s.open, s.hasPicture = true, false
	}
}

// first is false for the second and later slices of one picture. A slice
// seen before any access unit was opened always opens one.
func (s *auSplitter) picture(pos int, first bool) {
	if !s.open || first && s.hasPicture {
		s.starts = append(s.starts, pos)
		s.open = true
	}
	s.hasPicture = true
}

func avcHeaderValid(nalu []byte) bool {
	h := nalu[0]
	if h&0x80 != 0 {
		return false
	}
	ref := h >> 5 & 0x03
	switch t := codec.ParseH264NALUType(h); t {
	case codec.NALU_SEI, codec.NALU_Access_Unit_Delimiter:
		return ref == 0
	case codec.NALU_SPS, codec.NALU_PPS, codec.NALU_IDR_Picture:
		return ref != 0
	case codec.NALU_Non_IDR_Picture:
		return len(nalu) >= 2
	case codec.NALU_Data_Partition_A, codec.NALU_Data_Partition_B, codec.NALU_Data_Partition_C,
		codec.NALU_Sequence_End, codec.NALU_Stream_End, codec.NALU_Filler_Data:
		return true
	}
	return false
}

func (s *auSplitter) avcUnit(pos int, nalu []byte) {
	switch t := codec.ParseH264NALUType(nalu[0]); t {
	case codec.NALU_SEI, codec.NALU_Access_Unit_Delimiter, codec.NALU_SPS, codec.NALU_PPS:
		s.header(pos)
	case codec.NALU_Non_IDR_Picture, codec.NALU_IDR_Picture:
		// first_mb_in_slice grows within a picture, a slice that does not
		// continue the previous one starts the next picture
		mb, err := util.NewBitReader(nalu[1:]).ReadUE()
		first := err != nil || mb == 0 || int64(mb) <= int64(s.lastMB)
		s.lastMB = -1
		if err == nil && mb <= math.MaxInt32 {
			s.lastMB = int(mb)
		}
		s.picture(pos, first)
	}
}

// scanAVC prefers 4-byte length prefixed units, as muxers store them, and
// falls back to Annex-B start codes.
func scanAVC(data []byte) []int {
	if starts := scanAVCC(data); len(starts) > 0 {
		return starts
	}
	s := newAUSplitter()
	for i := 0; i+4 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		start := i
		if i > 0 && data[i-1] == 0 {
			start = i - 1
		}
		if avcHeaderValid(data[i+3 : i+5]) {
			s.avcUnit(start, data[i+3:min(len(data), i+3+sliceHeaderPeek)])
		}
		i += 2
	}
	return s.starts
}

// avccUnit returns the length of a plausible length prefixed unit at p.
func avccUnit(data []byte, p int) (int, bool) {
	if p+5 > len(data) {
		return 0, false
	}
	l := int(binary.BigEndian.Uint32(data[p:]))
	if l == 0 || l > len(data)-p-4 || !avcHeaderValid(data[p+4:p+4+min(l, 2)]) {
		return 0, false
	}
	return l, true
}

// scanAVCC follows the length prefix chain, resynchronizing past
// interleaved audio on the first position where two units chain up.
func scanAVCC(data []byte) []int {
	s := newAUSplitter()
	covered, linked := 0, false
	for p := 0; p+5 <= len(data); {
		if l, ok := avccUnit(data, p); ok {
			next := p + 4 + l
			if _, chained := avccUnit(data, next); chained || linked || next == len(data) {
				s.avcUnit(p, data[p+4:p+4+min(l, sliceHeaderPeek)])
				covered += 4 + l
				p, linked = next, true
				continue
			}
		}
		p, linked = p+1, false
	}
	if covered < len(data)/2 {
		return nil
	}
	return s.starts
}

func scanMJPG(data []byte) (starts []int) {
	for i := 0; i+4 <= len(data); i++ {
		if data[i] != 0xFF || data[i+1] != 0xD8 || data[i+2] != 0xFF {
			continue
		}
		switch data[i+3] {
		case 0xDB, 0xE0, 0xE1, 0xC4:
			starts = append(starts, i)
			i += 3
		}
	}
	return
}

func scanMP4V(data []byte) []int {
	s := newAUSplitter()
	for i := 0; i+4 <= len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		switch mpeg4video.StartCode(data[i+3]) {
		case mpeg4video.VisualObjectSequenceStartCode, mpeg4video.GroupOfVOPStartCode:
			s.header(i)
		case mpeg4video.VOPStartCode:
			s.picture(i, true)
		}
		i += 3
	}
	return s.starts
}

// scanH263 looks for the 22 bit picture start code followed by the fixed
// PTYPE bits and a defined source format. Zero filled runs would otherwise
// match everywhere, so a start code must be followed by some non zero data.
func scanH263(data []byte) (starts []int) {
	for i := 0; i+9 <= len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2]&0xFC != 0x80 {
			continue
		}
		if data[i+3]&0x03 != 0x02 {
			continue
		}
		if format := data[i+4] >> 2 & 0x07; format == 0 || format == 6 {
			continue
		}
		if binary.BigEndian.Uint32(data[i+5:]) == 0 {
			continue
		}
		starts = append(starts, i)
		i += 2
	}
	return
}

func adtsSync(b []byte) bool {
	return len(b) >= 7 && b[0] == 0xFF && b[1]&0xF6 == 0xF0
}

// scanAAC finds ADTS frames whose length lands on another ADTS header, or
// failing that the marker libfaac leaves in its first raw frame.
func scanAAC(data []byte) (starts []int) {
	for i := 0; i+7 <= len(data); i++ {
		if !adtsSync(data[i:]) {
			continue
		}
		_, hdrlen, framelen, _, err := aacparser.ParseADTSHeader(data[i:])
		if err != nil || framelen <= hdrlen || framelen > len(data)-i {
			continue
		}
		if next := i + framelen; next != len(data) && !adtsSync(data[next:]) {
			continue
		}
		starts = append(starts, i)
		i += framelen - 1
	}
	if len(starts) > 0 {
		return
	}
	for off := 0; ; {
		j := bytes.Index(data[off:], faacMarker)
		if j < 0 {
			return
		}
		starts = append(starts, off+j)
		off += j + len(faacMarker)
	}
}

// AMR-NB frame body sizes by frame type, 15 is NO_DATA.
var amrFrameSize = [16]int{12, 13, 15, 17, 19, 20, 26, 31, 5, -1, -1, -1, -1, -1, -1, 0}

func scanAMR(data []byte) (starts []int) {
	m := bytes.Index(data, amrMagic)
	if m < 0 {
		return
	}
	for p := m + len(amrMagic); p < len(data); {
		size := amrFrameSize[data[p]>>3&0x0F]
		if size < 0 || data[p]&0x83 != 0 || p+1+size > len(data) {
			break
		}
		starts = append(starts, p)
		p += 1 + size
	}
	return
}
