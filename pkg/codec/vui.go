package codec

import (
	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

const ExtendedSAR = 255

type HRD struct {
	CpbCntMinus1                       uint64
	BitRateScale                       uint8
	CpbSizeScale                       uint8
	BitRateValueMinus1                 []uint64
	CpbSizeValueMinus1                 []uint64
	CbrFlag                            []bool
	InitialCpbRemovalDelayLengthMinus1 uint8
	CpbRemovalDelayLengthMinus1        uint8
	DpbOutputDelayLengthMinus1         uint8
	TimeOffsetLength                   uint8
}

// at most 32 schedules are allowed
const maxCpbCnt = 32

func (h *HRD) Parse(r *util.BitReader) (n int, err error) {
	start := r.BitsRead()
	defer func() { n = r.BitsRead() - start }()
	if h.CpbCntMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if h.CpbCntMinus1 >= maxCpbCnt {
		return 0, ErrSyntax
	}
	if h.BitRateScale, err = r.ReadUint8(4); err != nil {
		return
	}
	if h.CpbSizeScale, err = r.ReadUint8(4); err != nil {
		return
	}
	cnt := int(h.CpbCntMinus1) + 1
	h.BitRateValueMinus1 = make([]uint64, cnt)
	h.CpbSizeValueMinus1 = make([]uint64, cnt)
	h.CbrFlag = make([]bool, cnt)
	for i := 0; i < cnt; i++ {
		if h.BitRateValueMinus1[i], err = r.ReadUE(); err != nil {
			return
		}
		if h.CpbSizeValueMinus1[i], err = r.ReadUE(); err != nil {
			return
		}
		if h.CbrFlag[i], err = r.ReadFlag(); err != nil {
			return
		}
	}
	for _, f := range []*uint8{&h.InitialCpbRemovalDelayLengthMinus1, &h.CpbRemovalDelayLengthMinus1, &h.DpbOutputDelayLengthMinus1, &h.TimeOffsetLength} {
		if *f, err = r.ReadUint8(5); err != nil {
			return
		}
	}
	return
}

func (h *HRD) Write(w *util.BitWriter) (n int, err error) {
	start := w.BitsWritten()
	defer func() { n = w.BitsWritten() - start }()
	cnt := int(h.CpbCntMinus1) + 1
	if len(h.BitRateValueMinus1) < cnt || len(h.CpbSizeValueMinus1) < cnt || len(h.CbrFlag) < cnt {
		return 0, ErrSyntax
	}
	if err = w.WriteUE(h.CpbCntMinus1); err != nil {
		return
	}
	if err = w.WriteBits(uint64(h.BitRateScale), 4); err != nil {
		return
	}
	if err = w.WriteBits(uint64(h.CpbSizeScale), 4); err != nil {
		return
	}
	for i := 0; i < cnt; i++ {
		if err = w.WriteUE(h.BitRateValueMinus1[i]); err != nil {
			return
		}
		if err = w.WriteUE(h.CpbSizeValueMinus1[i]); err != nil {
			return
		}
		if err = w.WriteFlag(h.CbrFlag[i]); err != nil {
			return
		}
	}
	for _, f := range []uint8{h.InitialCpbRemovalDelayLengthMinus1, h.CpbRemovalDelayLengthMinus1, h.DpbOutputDelayLengthMinus1, h.TimeOffsetLength} {
		if err = w.WriteBits(uint64(f), 5); err != nil {
			return
		}
	}
	return
}

type BitstreamRestriction struct {
	MotionVectorsOverPicBoundaries bool
	MaxBytesPerPicDenom            uint64
	MaxBitsPerMbDenom              uint64
	Log2MaxMvLengthHorizontal      uint64
	Log2MaxMvLengthVertical        uint64
	MaxNumReorderFrames            uint64
	MaxDecFrameBuffering           uint64
}

func (b *BitstreamRestriction) Parse(r *util.BitReader) (n int, err error) {
	start := r.BitsRead()
	defer func() { n = r.BitsRead() - start }()
	if b.MotionVectorsOverPicBoundaries, err = r.ReadFlag(); err != nil {
		return
	}
	for _, f := range b.fields() {
		if *f, err = r.ReadUE(); err != nil {
			return
		}
	}
	return
}

func (b *BitstreamRestriction) Write(w *util.BitWriter) (n int, err error) {
	start := w.BitsWritten()
	defer func() { n = w.BitsWritten() - start }()
	if err = w.WriteFlag(b.MotionVectorsOverPicBoundaries); err != nil {
		return
	}
	for _, f := range b.fields() {
		if err = w.WriteUE(*f); err != nil {
			return
		}
	}
	return
}

func (b *BitstreamRestriction) fields() []*uint64 {
	return []*uint64{
		&b.MaxBytesPerPicDenom,
		&b.MaxBitsPerMbDenom,
		&b.Log2MaxMvLengthHorizontal,
		&b.Log2MaxMvLengthVertical,
		&b.MaxNumReorderFrames,
		&b.MaxDecFrameBuffering,
	}
}

// VUI is vui_parameters() of Annex E. Optional groups are nil or false when
// their presence flag is cleared.
type VUI struct {
	AspectRatioInfoPresent bool
	AspectRatioIdc         uint8
	SarWidth, SarHeight    uint16

	OverscanInfoPresent bool
	OverscanAppropriate bool

	VideoSignalTypePresent   bool
	VideoFormat              uint8
	VideoFullRange           bool
	ColourDescriptionPresent bool
	ColourPrimaries          uint8
	TransferCharacteristics  uint8
	MatrixCoefficients       uint8

	ChromaLocInfoPresent           bool
	ChromaSampleLocTypeTopField    uint64
	ChromaSampleLocTypeBottomField uint64

	TimingInfoPresent bool
	NumUnitsInTick    uint32
	TimeScale         uint32
	FixedFrameRate    bool

	NalHRD *HRD
	VclHRD *HRD

	LowDelayHRD          bool
	PicStructPresent     bool
	BitstreamRestriction *BitstreamRestriction
}

func (v *VUI) Parse(r *util.BitReader) (n int, err error) {
	start := r.BitsRead()
	defer func() { n = r.BitsRead() - start }()
	if v.AspectRatioInfoPresent, err = r.ReadFlag(); err != nil {
		return
	}
	if v.AspectRatioInfoPresent {
		if v.AspectRatioIdc, err = r.ReadUint8(8); err != nil {
			return
		}
		if v.AspectRatioIdc == ExtendedSAR {
			if v.SarWidth, err = r.ReadUint16(16); err != nil {
				return
			}
			if v.SarHeight, err = r.ReadUint16(16); err != nil {
				return
			}
		}
	}
	if v.OverscanInfoPresent, err = r.ReadFlag(); err != nil {
		return
	}
	if v.OverscanInfoPresent {
		if v.OverscanAppropriate, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if v.VideoSignalTypePresent, err = r.ReadFlag(); err != nil {
		return
	}
	if v.VideoSignalTypePresent {
		if v.VideoFormat, err = r.ReadUint8(3); err != nil {
			return
		}
		if v.VideoFullRange, err = r.ReadFlag(); err != nil {
			return
		}
		if v.ColourDescriptionPresent, err = r.ReadFlag(); err != nil {
			return
		}
		if v.ColourDescriptionPresent {
			for _, f := range []*uint8{&v.ColourPrimaries, &v.TransferCharacteristics, &v.MatrixCoefficients} {
				if *f, err = r.ReadUint8(8); err != nil {
					return
				}
			}
		}
	}
	if v.ChromaLocInfoPresent, err = r.ReadFlag(); err != nil {
		return
	}
	if v.ChromaLocInfoPresent {
		if v.ChromaSampleLocTypeTopField, err = r.ReadUE(); err != nil {
			return
		}
		if v.ChromaSampleLocTypeBottomField, err = r.ReadUE(); err != nil {
			return
		}
	}
	if v.TimingInfoPresent, err = r.ReadFlag(); err != nil {
		return
	}
	if v.TimingInfoPresent {
		if v.NumUnitsInTick, err = r.ReadUint32(32); err != nil {
			return
		}
		if v.TimeScale, err = r.ReadUint32(32); err != nil {
			return
		}
		if v.FixedFrameRate, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if v.NalHRD, err = parseOptionalHRD(r); err != nil {
		return
	}
	if v.VclHRD, err = parseOptionalHRD(r); err != nil {
		return
	}
	if v.NalHRD != nil || v.VclHRD != nil {
		if v.LowDelayHRD, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if v.PicStructPresent, err = r.ReadFlag(); err != nil {
		return
	}
	var restricted bool
	if restricted, err = r.ReadFlag(); err != nil || !restricted {
		return
	}
	v.BitstreamRestriction = &BitstreamRestriction{}
	_, err = v.BitstreamRestriction.Parse(r)
	return
}

func parseOptionalHRD(r *util.BitReader) (*HRD, error) {
	present, err := r.ReadFlag()
	if err != nil || !present {
		return nil, err
	}
	var h HRD
	_, err = h.Parse(r)
	return &h, err
}

func writeOptionalHRD(w *util.BitWriter, h *HRD) error {
	if err := w.WriteFlag(h != nil); err != nil || h == nil {
		return err
	}
	_, err := h.Write(w)
	return err
}

func (v *VUI) Write(w *util.BitWriter) (n int, err error) {
	start := w.BitsWritten()
	defer func() { n = w.BitsWritten() - start }()
	if err = w.WriteFlag(v.AspectRatioInfoPresent); err != nil {
		return
	}
	if v.AspectRatioInfoPresent {
		if err = w.WriteBits(uint64(v.AspectRatioIdc), 8); err != nil {
			return
		}
		if v.AspectRatioIdc == ExtendedSAR {
			if err = w.WriteBits(uint64(v.SarWidth), 16); err != nil {
				return
			}
			if err = w.WriteBits(uint64(v.SarHeight), 16); err != nil {
				return
			}
		}
	}
	if err = w.WriteFlag(v.OverscanInfoPresent); err != nil {
		return
	}
	if v.OverscanInfoPresent {
		if err = w.WriteFlag(v.OverscanAppropriate); err != nil {
			return
		}
	}
	if err = w.WriteFlag(v.VideoSignalTypePresent); err != nil {
		return
	}
	if v.VideoSignalTypePresent {
		if err = w.WriteBits(uint64(v.VideoFormat), 3); err != nil {
			return
		}
		if err = w.WriteFlag(v.VideoFullRange); err != nil {
			return
		}
		if err = w.WriteFlag(v.ColourDescriptionPresent); err != nil {
			return
		}
		if v.ColourDescriptionPresent {
			for _, f := range []uint8{v.ColourPrimaries, v.TransferCharacteristics, v.MatrixCoefficients} {
				if err = w.WriteBits(uint64(f), 8); err != nil {
					return
				}
			}
		}
	}
	if err = w.WriteFlag(v.ChromaLocInfoPresent); err != nil {
		return
	}
	if v.ChromaLocInfoPresent {
		if err = w.WriteUE(v.ChromaSampleLocTypeTopField); err != nil {
			return
		}
		if err = w.WriteUE(v.ChromaSampleLocTypeBottomField); err != nil {
			return
		}
	}
	if err = w.WriteFlag(v.TimingInfoPresent); err != nil {
		return
	}
	if v.TimingInfoPresent {
		if err = w.WriteBits(uint64(v.NumUnitsInTick), 32); err != nil {
			return
		}
		if err = w.WriteBits(uint64(v.TimeScale), 32); err != nil {
			return
		}
		if err = w.WriteFlag(v.FixedFrameRate); err != nil {
			return
		}
	}
	if err = writeOptionalHRD(w, v.NalHRD); err != nil {
		return
	}
	if err = writeOptionalHRD(w, v.VclHRD); err != nil {
		return
	}
	if v.NalHRD != nil || v.VclHRD != nil {
		if err = w.WriteFlag(v.LowDelayHRD); err != nil {
			return
		}
	}
	if err = w.WriteFlag(v.PicStructPresent); err != nil {
		return
	}
	if err = w.WriteFlag(v.BitstreamRestriction != nil); err != nil || v.BitstreamRestriction == nil {
		return
	}
	_, err = v.BitstreamRestriction.Write(w)
	return
}

// FrameRate is derived from timing info, 0 when absent.
func (v *VUI) FrameRate() float64 {
	if !v.TimingInfoPresent || v.NumUnitsInTick == 0 {
		return 0
	}
	return float64(v.TimeScale) / float64(2*v.NumUnitsInTick)
}
