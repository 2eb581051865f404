package codec

import (
	"errors"
	"fmt"

	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

var (
	ErrSyntax       = errors.New("h264: syntax element out of range")
	ErrTrailingBits = errors.New("h264: missing rbsp_stop_one_bit")
	ErrNALUType     = errors.New("h264: unexpected nal unit type")
)

type ChromaFormat uint8

const (
	ChromaMonochrome ChromaFormat = iota
	Chroma420
	Chroma422
	Chroma444
)

func (c ChromaFormat) String() string {
	switch c {
	case ChromaMonochrome:
		return "4:0:0"
	case Chroma420:
		return "4:2:0"
	case Chroma422:
		return "4:2:2"
	case Chroma444:
		return "4:4:4"
	}
	return "unknown"
}

// scalingListCount is the number of lists in an SPS scaling matrix.
func (c ChromaFormat) scalingListCount() int {
	if c == Chroma444 {
		return 12
	}
	return 8
}

type Cropping struct {
	Left, Right, Top, Bottom uint64
}

// SPS is seq_parameter_set_data() without the NAL header byte.
type SPS struct {
	ProfileIdc      uint8
	ConstraintFlags uint8
	LevelIdc        uint8
	ID              uint64

	ChromaFormat                ChromaFormat
	SeparateColourPlane         bool
	BitDepthLumaMinus8          uint64
	BitDepthChromaMinus8        uint64
	QpprimeYZeroTransformBypass bool
	ScalingMatrix               *ScalingMatrix

	Log2MaxFrameNumMinus4       uint64
	PicOrderCntType             uint64
	Log2MaxPicOrderCntLsbMinus4 uint64
	DeltaPicOrderAlwaysZero     bool
	OffsetForNonRefPic          int64
	OffsetForTopToBottomField   int64
	OffsetForRefFrame           []int64

	MaxNumRefFrames           uint64
	GapsInFrameNumAllowed     bool
	PicWidthInMbsMinus1       uint64
	PicHeightInMapUnitsMinus1 uint64
	FrameMbsOnly              bool
	MbAdaptiveFrameField      bool
	Direct8x8Inference        bool
	Cropping                  *Cropping
	VUI                       *VUI
}

// HighProfile reports whether the profile carries the chroma/bit depth block.
func HighProfile(profile uint8) bool {
	switch profile {
	case 100, 110, 122, 144, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		return true
	}
	return false
}

func (s *SPS) Parse(r *util.BitReader) (n int, err error) {
	start := r.BitsRead()
	defer func() { n = r.BitsRead() - start }()
	if s.ProfileIdc, err = r.ReadUint8(8); err != nil {
		return
	}
	if s.ConstraintFlags, err = r.ReadUint8(8); err != nil {
		return
	}
	if s.LevelIdc, err = r.ReadUint8(8); err != nil {
		return
	}
	if s.ID, err = r.ReadUE(); err != nil {
		return
	}
	if s.ID > 31 {
		return 0, fmt.Errorf("%w: seq_parameter_set_id %d", ErrSyntax, s.ID)
	}
	s.ChromaFormat = Chroma420
	if HighProfile(s.ProfileIdc) {
		var idc uint64
		if idc, err = r.ReadUE(); err != nil {
			return
		}
		if idc > uint64(Chroma444) {
			return 0, fmt.Errorf("%w: chroma_format_idc %d", ErrSyntax, idc)
		}
		s.ChromaFormat = ChromaFormat(idc)
		if s.ChromaFormat == Chroma444 {
			if s.SeparateColourPlane, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if s.BitDepthLumaMinus8, err = r.ReadUE(); err != nil {
			return
		}
		if s.BitDepthChromaMinus8, err = r.ReadUE(); err != nil {
			return
		}
		if s.QpprimeYZeroTransformBypass, err = r.ReadFlag(); err != nil {
			return
		}
		var present bool
		if present, err = r.ReadFlag(); err != nil {
			return
		}
		if present {
			s.ScalingMatrix = &ScalingMatrix{}
			if err = s.ScalingMatrix.Read(r, s.ChromaFormat.scalingListCount()); err != nil {
				return
			}
		}
	}
	if s.Log2MaxFrameNumMinus4, err = r.ReadUE(); err != nil {
		return
	}
	if s.PicOrderCntType, err = r.ReadUE(); err != nil {
		return
	}
	switch s.PicOrderCntType {
	case 0:
		if s.Log2MaxPicOrderCntLsbMinus4, err = r.ReadUE(); err != nil {
			return
		}
	case 1:
		if s.DeltaPicOrderAlwaysZero, err = r.ReadFlag(); err != nil {
			return
		}
		if s.OffsetForNonRefPic, err = r.ReadSE(); err != nil {
			return
		}
		if s.OffsetForTopToBottomField, err = r.ReadSE(); err != nil {
			return
		}
		var cnt uint64
		if cnt, err = r.ReadUE(); err != nil {
			return
		}
		if cnt > 255 {
			return 0, fmt.Errorf("%w: num_ref_frames_in_pic_order_cnt_cycle %d", ErrSyntax, cnt)
		}
		s.OffsetForRefFrame = make([]int64, cnt)
		for i := range s.OffsetForRefFrame {
			if s.OffsetForRefFrame[i], err = r.ReadSE(); err != nil {
				return
			}
		}
	}
	if s.MaxNumRefFrames, err = r.ReadUE(); err != nil {
		return
	}
	if s.GapsInFrameNumAllowed, err = r.ReadFlag(); err != nil {
		return
	}
	if s.PicWidthInMbsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if s.PicHeightInMapUnitsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if s.FrameMbsOnly, err = r.ReadFlag(); err != nil {
		return
	}
	if !s.FrameMbsOnly {
		if s.MbAdaptiveFrameField, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if s.Direct8x8Inference, err = r.ReadFlag(); err != nil {
		return
	}
	var flag bool
	if flag, err = r.ReadFlag(); err != nil {
		return
	}
	if flag {
		s.Cropping = &Cropping{}
		for _, f := range []*uint64{&s.Cropping.Left, &s.Cropping.Right, &s.Cropping.Top, &s.Cropping.Bottom} {
			if *f, err = r.ReadUE(); err != nil {
				return
			}
		}
	}
	if flag, err = r.ReadFlag(); err != nil {
		return
	}
	if flag {
		s.VUI = &VUI{}
		if _, err = s.VUI.Parse(r); err != nil {
			return
		}
	}
	err = readTrailingBits(r)
	return
}

func (s *SPS) Write(w *util.BitWriter) (n int, err error) {
	start := w.BitsWritten()
	defer func() { n = w.BitsWritten() - start }()
	if err = w.WriteBits(uint64(s.ProfileIdc), 8); err != nil {
		return
	}
	if err = w.WriteBits(uint64(s.ConstraintFlags), 8); err != nil {
		return
	}
	if err = w.WriteBits(uint64(s.LevelIdc), 8); err != nil {
		return
	}
	if err = w.WriteUE(s.ID); err != nil {
		return
	}
	if HighProfile(s.ProfileIdc) {
		if err = w.WriteUE(uint64(s.ChromaFormat)); err != nil {
			return
		}
		if s.ChromaFormat == Chroma444 {
			if err = w.WriteFlag(s.SeparateColourPlane); err != nil {
				return
			}
		}
		if err = w.WriteUE(s.BitDepthLumaMinus8); err != nil {
			return
		}
		if err = w.WriteUE(s.BitDepthChromaMinus8); err != nil {
			return
		}
		if err = w.WriteFlag(s.QpprimeYZeroTransformBypass); err != nil {
			return
		}
		if err = w.WriteFlag(s.ScalingMatrix != nil); err != nil {
			return
		}
		if s.ScalingMatrix != nil {
			if err = s.ScalingMatrix.Write(w); err != nil {
				return
			}
		}
	}
	if err = w.WriteUE(s.Log2MaxFrameNumMinus4); err != nil {
		return
	}
	if err = w.WriteUE(s.PicOrderCntType); err != nil {
		return
	}
	switch s.PicOrderCntType {
	case 0:
		if err = w.WriteUE(s.Log2MaxPicOrderCntLsbMinus4); err != nil {
			return
		}
	case 1:
		if err = w.WriteFlag(s.DeltaPicOrderAlwaysZero); err != nil {
			return
		}
		if err = w.WriteSE(s.OffsetForNonRefPic); err != nil {
			return
		}
		if err = w.WriteSE(s.OffsetForTopToBottomField); err != nil {
			return
		}
		if err = w.WriteUE(uint64(len(s.OffsetForRefFrame))); err != nil {
			return
		}
		for _, o := range s.OffsetForRefFrame {
			if err = w.WriteSE(o); err != nil {
				return
			}
		}
	}
	if err = w.WriteUE(s.MaxNumRefFrames); err != nil {
		return
	}
	if err = w.WriteFlag(s.GapsInFrameNumAllowed); err != nil {
		return
	}
	if err = w.WriteUE(s.PicWidthInMbsMinus1); err != nil {
		return
	}
	if err = w.WriteUE(s.PicHeightInMapUnitsMinus1); err != nil {
		return
	}
	if err = w.WriteFlag(s.FrameMbsOnly); err != nil {
		return
	}
	if !s.FrameMbsOnly {
		if err = w.WriteFlag(s.MbAdaptiveFrameField); err != nil {
			return
		}
	}
	if err = w.WriteFlag(s.Direct8x8Inference); err != nil {
		return
	}
	if err = w.WriteFlag(s.Cropping != nil); err != nil {
		return
	}
	if c := s.Cropping; c != nil {
		for _, f := range []uint64{c.Left, c.Right, c.Top, c.Bottom} {
			if err = w.WriteUE(f); err != nil {
				return
			}
		}
	}
	if err = w.WriteFlag(s.VUI != nil); err != nil {
		return
	}
	if s.VUI != nil {
		if _, err = s.VUI.Write(w); err != nil {
			return
		}
	}
	err = w.WriteTrailingBits()
	return
}

func readTrailingBits(r *util.BitReader) error {
	stop, err := r.ReadBit()
	if err != nil {
		return err
	}
	if stop != 1 {
		return ErrTrailingBits
	}
	return nil
}

func (s *SPS) cropUnits() (x, y uint64) {
	x, y = 1, 2
	if s.FrameMbsOnly {
		y = 1
	}
	if s.ChromaFormat == ChromaMonochrome || s.SeparateColourPlane {
		return
	}
	switch s.ChromaFormat {
	case Chroma420:
		x, y = 2, y*2
	case Chroma422:
		x = 2
	}
	return
}

// Width is the cropped luma width in pixels.
func (s *SPS) Width() int {
	w := (s.PicWidthInMbsMinus1 + 1) * 16
	if s.Cropping != nil {
		x, _ := s.cropUnits()
		w -= x * (s.Cropping.Left + s.Cropping.Right)
	}
	return int(w)
}

// Height is the cropped luma height in pixels.
func (s *SPS) Height() int {
	fields := uint64(2)
	if s.FrameMbsOnly {
		fields = 1
	}
	h := fields * (s.PicHeightInMapUnitsMinus1 + 1) * 16
	if s.Cropping != nil {
		_, y := s.cropUnits()
		h -= y * (s.Cropping.Top + s.Cropping.Bottom)
	}
	return int(h)
}

// ParseSPSNALU parses a complete SPS NAL unit (header byte included, no start code).
func ParseSPSNALU(nalu []byte) (*SPS, error) {
	if len(nalu) < 4 {
		return nil, util.ErrBitsExhausted
	}
	if ParseH264NALUType(nalu[0]) != NALU_SPS {
		return nil, ErrNALUType
	}
	var s SPS
	if _, err := s.Parse(util.NewBitReader(trimTrailingZeros(RBSP(nalu[1:])))); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal renders the SPS as a NAL unit with header byte and emulation prevention.
func (s *SPS) Marshal() ([]byte, error) {
	buf := make([]byte, 1024)
	w := util.NewBitWriter(buf)
	if _, err := s.Write(w); err != nil {
		return nil, err
	}
	return WrapNALU(NALU_SPS, w.Bytes()), nil
}

// DefaultSPS is a baseline 4:2:0 frame-only parameter set decodable by most players.
// Picture size is nominal, containers carry the real geometry.
func DefaultSPS() *SPS {
	return &SPS{
		ProfileIdc:                66,
		ConstraintFlags:           0xC0,
		LevelIdc:                  30,
		ChromaFormat:              Chroma420,
		Log2MaxFrameNumMinus4:     0,
		PicOrderCntType:           2,
		MaxNumRefFrames:           1,
		PicWidthInMbsMinus1:       39,
		PicHeightInMapUnitsMinus1: 29,
		FrameMbsOnly:              true,
		Direct8x8Inference:        true,
	}
}
