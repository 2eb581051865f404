package mp4

import (
	"bytes"
	"encoding/binary"

	"github.com/deepch/vdk/codec/h264parser"

	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
)

// Parameter sets larger than this are not plausible for the streams
// carved here.
const maxParameterSetLen = 512

// ParameterSets is an SPS/PPS pair found inside mdat.
type ParameterSets struct {
	SPS, PPS      []byte
	Width, Height int
	Profile       uint8
}

// FindParameterSets looks for the first SPS in data, in Annex-B or length
// prefixed framing, that parses and pairs with a following PPS.
func FindParameterSets(data []byte) (*ParameterSets, bool) {
	for p := 1; p < len(data); p++ {
		if codec.ParseH264NALUType(data[p]) != codec.NALU_SPS || data[p]&0x80 != 0 || data[p]&0x60 == 0 {
			continue
		}
		sps := nalAt(data, p)
		if sps == nil {
			continue
		}
		s, err := codec.ParseSPSNALU(sps)
		if err != nil {
			continue
		}
		if ps, ok := pairPPS(data, p+len(sps), sps, s); ok {
			return ps, true
		}
	}
	return nil, false
}

func pairPPS(data []byte, from int, sps []byte, s *codec.SPS) (*ParameterSets, bool) {
	limit := min(len(data), from+maxParameterSetLen)
	for p := from; p < limit; p++ {
		if codec.ParseH264NALUType(data[p]) != codec.NALU_PPS || data[p]&0x80 != 0 {
			continue
		}
		pps := nalAt(data, p)
		if pps == nil {
			continue
		}
		if _, err := codec.ParsePPSNALU(pps, s.ChromaFormat); err != nil {
			continue
		}
		cd, err := h264parser.NewCodecDataFromSPSAndPPS(sps, pps)
		if err != nil {
			continue
		}
		w, h := s.Width(), s.Height()
		if w == 0 || h == 0 {
			w, h = cd.Width(), cd.Height()
		}
		return &ParameterSets{SPS: sps, PPS: pps, Width: w, Height: h, Profile: s.ProfileIdc}, true
	}
	return nil, false
}

// nalAt returns the unit whose header byte is at p when p is preceded by a
// start code or by a length prefix that fits.
func nalAt(data []byte, p int) []byte {
	if p >= 4 {
		if l := int(binary.BigEndian.Uint32(data[p-4:])); l >= 2 && l <= maxParameterSetLen && p+l <= len(data) {
			return data[p : p+l]
		}
	}
	if p >= 3 && bytes.Equal(data[p-3:p], codec.NALU_Delimiter1) {
		end := min(len(data), p+maxParameterSetLen)
		if i := bytes.Index(data[p:end], codec.NALU_Delimiter1); i >= 0 {
			end = p + i
		}
		nalu := bytes.TrimRight(data[p:end], "\x00")
		if len(nalu) >= 2 {
			return nalu
		}
	}
	return nil
}
