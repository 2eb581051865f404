package mp4

import (
	"fmt"
	"math"

	"github.com/simsong/bulk-extractor-sub001/pkg"
	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
	"github.com/simsong/bulk-extractor-sub001/pkg/util"
	"github.com/simsong/bulk-extractor-sub001/plugin/mp4/pkg/box"
)

// BoxRef locates a box inside the fragment. Offset is where its header
// starts, Size is the declared size which may run past the fragment end.
type BoxRef struct {
	Present   bool
	Offset    uint64
	Size      uint64
	HeaderLen int
}

// End saturates at math.MaxUint64 when a 64-bit size would wrap.
func (r BoxRef) End() uint64 {
	if r.Size > math.MaxUint64-r.Offset {
		return math.MaxUint64
	}
	return r.Offset + r.Size
}

// Content returns the box body, or nil when the box is absent or cut off.
func (r BoxRef) Content(data []byte) []byte {
	if !r.Present || r.End() > uint64(len(data)) {
		return nil
	}
	return data[r.Offset+uint64(r.HeaderLen) : r.End()]
}

type TrakInfo struct {
	Trak, Tkhd, Mdia, Mdhd, Hdlr, Minf BoxRef
	Vmhd, Smhd, Dinf, Dref             BoxRef
	Stbl, Stsd, Stts, Stss, Stsc, Stsz BoxRef
	Stco                               BoxRef
	Codec                              codec.CodecType
	// CodecName is the first sample entry format found in stsd
	CodecName     [4]byte
	Width, Height uint32
	Version       uint8
	Size          uint64
}

// ref maps a box type to the BoxRef of the track that records it.
func (t *TrakInfo) ref(typ [4]byte) *BoxRef {
	switch typ {
	case box.TypeTKHD:
		return &t.Tkhd
	case box.TypeMDIA:
		return &t.Mdia
	case box.TypeMDHD:
		return &t.Mdhd
	case box.TypeHDLR:
		return &t.Hdlr
	case box.TypeMINF:
		return &t.Minf
	case box.TypeVMHD:
		return &t.Vmhd
	case box.TypeSMHD:
		return &t.Smhd
	case box.TypeDINF:
		return &t.Dinf
	case box.TypeDREF:
		return &t.Dref
	case box.TypeSTBL:
		return &t.Stbl
	case box.TypeSTSD:
		return &t.Stsd
	case box.TypeSTTS:
		return &t.Stts
	case box.TypeSTSS:
		return &t.Stss
	case box.TypeSTSC:
		return &t.Stsc
	case box.TypeSTSZ:
		return &t.Stsz
	case box.TypeSTCO, box.TypeCO64:
		return &t.Stco
	}
	return nil
}

type MoovInfo struct {
	BoxRef
	NumTracks int
	Mvhd      BoxRef
	Traks     []TrakInfo
	// Truncated is set when the declared moov size runs past the fragment.
	Truncated bool
	// TruncatedAt is the offset where the walk stopped early, 0 when the
	// tree was walked to the end.
	TruncatedAt uint64
}

type MdatInfo struct {
	BoxRef
}

// Payload is the mdat body, clamped to the fragment.
func (m MdatInfo) Payload(data []byte) []byte {
	return data[m.Offset+uint64(m.HeaderLen) : min(m.End(), uint64(len(data)))]
}

// LocateAtoms walks the top level boxes and records the first moov and mdat.
// Repair is only defined for an intact mdat followed by a moov.
func LocateAtoms(data []byte) (moov MoovInfo, mdat MdatInfo, err error) {
	r := util.NewByteReader(data)
	for r.Available() >= box.BasicBoxLen {
		start := uint64(r.ReadCount())
		var h box.Header
		if h, err = box.ReadHeader(r); err != nil {
			break
		}
		ref := BoxRef{Present: true, Offset: start, Size: h.Size, HeaderLen: h.HeaderLen}
		if h.ToEnd {
			ref.Size = uint64(len(data)) - start
		}
		switch h.Type {
		case box.TypeMOOV:
			if !moov.Present {
				moov.BoxRef = ref
			}
		case box.TypeMDAT:
			if !mdat.Present {
				mdat.BoxRef = ref
			}
		}
		if ref.End() > uint64(len(data)) {
			break
		}
		r.Skip(int(ref.Size) - h.HeaderLen)
	}
	err = nil
	switch {
	case !moov.Present:
		err = fmt.Errorf("%w: moov not found", pkg.ErrStructure)
	case !mdat.Present:
		err = fmt.Errorf("%w: mdat not found", pkg.ErrStructure)
	case mdat.Offset > moov.Offset:
		err = fmt.Errorf("%w: mdat at %d follows moov at %d", pkg.ErrStructure, mdat.Offset, moov.Offset)
	case mdat.End() > moov.Offset:
		err = fmt.Errorf("%w: mdat overlaps moov", pkg.ErrStructure)
	}
	moov.Truncated = moov.Present && moov.End() > uint64(len(data))
	return
}

// IdentifyMoovTree walks a truncated moov as far as the bytes allow and
// reports whether any track was found. A complete moov is not walked, its
// file needs no repair and the later steps find no boxes to rebuild from.
func (m *MoovInfo) IdentifyMoovTree(data []byte) bool {
	if !m.Truncated {
		return true
	}
	m.Traks = m.Traks[:0]
	w := moovWalker{data: data, moov: m}
	w.walk(m.Offset+uint64(m.HeaderLen), uint64(len(data)), 0)
	m.NumTracks = len(m.Traks)
	return m.NumTracks > 0
}

// Complete reports whether the walk reached the end of the available bytes.
func (m *MoovInfo) Complete() bool {
	return m.TruncatedAt == 0
}

type moovWalker struct {
	data []byte
	moov *MoovInfo
	trak int
}

const maxDepth = 16

func (w *moovWalker) stop(at uint64) {
	if w.moov.TruncatedAt == 0 {
		w.moov.TruncatedAt = at
	}
}

// walk records the children in [pos, end). A child that cannot be read
// ends this level, siblings already recorded are kept.
func (w *moovWalker) walk(pos, end uint64, depth int) {
	if depth > maxDepth {
		w.stop(pos)
		return
	}
	for pos < end {
		if end-pos < box.BasicBoxLen {
			w.stop(pos)
			return
		}
		h, err := box.PeekHeader(w.data[pos:end])
		if err != nil || h.ToEnd || !KnownAtom(h.Type) {
			w.stop(pos)
			return
		}
		ref := BoxRef{Present: true, Offset: pos, Size: h.Size, HeaderLen: h.HeaderLen}
		w.record(h.Type, ref)
		if containers[h.Type] {
			w.walk(pos+uint64(h.HeaderLen), min(ref.End(), end), depth+1)
		}
		if ref.End() > end {
			w.stop(end)
			return
		}
		if ref.End() < pos+uint64(h.HeaderLen) {
			w.stop(pos)
			return
		}
		pos = ref.End()
	}
}

func (w *moovWalker) record(typ [4]byte, ref BoxRef) {
	switch typ {
	case box.TypeMVHD:
		w.moov.Mvhd = ref
		return
	case box.TypeTRAK:
		w.moov.Traks = append(w.moov.Traks, TrakInfo{Trak: ref, Size: ref.Size})
		w.trak = len(w.moov.Traks) - 1
		return
	}
	if len(w.moov.Traks) == 0 {
		return
	}
	t := &w.moov.Traks[w.trak]
	if r := t.ref(typ); r != nil {
		*r = ref
	}
	if typ == box.TypeSTSD {
		w.sampleEntry(t, ref)
	}
}

func (w *moovWalker) sampleEntry(t *TrakInfo, ref BoxRef) {
	content := ref.Content(w.data)
	if content == nil {
		return
	}
	types, _ := box.SampleEntryTypes(content)
	if len(types) == 0 {
		return
	}
	t.CodecName = types[0]
	t.Codec = codec.ParseSampleEntry(codec.FourCC(types[0]))
}
