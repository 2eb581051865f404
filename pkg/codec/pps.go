package codec

import (
	"fmt"
	"math/bits"

	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

// PPSExtension holds the fields that follow redundant_pic_cnt_present_flag
// when more_rbsp_data() is true.
type PPSExtension struct {
	Transform8x8Mode          bool
	ScalingMatrix             *ScalingMatrix
	SecondChromaQpIndexOffset int64
}

// PPS is pic_parameter_set_rbsp() without the NAL header byte.
type PPS struct {
	ID                         uint64
	SPSID                      uint64
	EntropyCodingMode          bool
	BottomFieldPicOrderPresent bool
	NumSliceGroupsMinus1       uint64
	SliceGroupMapType          uint64
	RunLengthMinus1            []uint64
	TopLeft, BottomRight       []uint64
	SliceGroupChangeDirection  bool
	SliceGroupChangeRateMinus1 uint64
	PicSizeInMapUnitsMinus1    uint64
	SliceGroupID               []uint64
	NumRefIdxL0DefaultMinus1   uint64
	NumRefIdxL1DefaultMinus1   uint64
	WeightedPred               bool
	WeightedBipredIdc          uint8
	PicInitQpMinus26           int64
	PicInitQsMinus26           int64
	ChromaQpIndexOffset        int64
	DeblockingFilterControl    bool
	ConstrainedIntraPred       bool
	RedundantPicCntPresent     bool
	Extension                  *PPSExtension

	// ChromaFormat of the referenced SPS, it decides the 8x8 list count.
	ChromaFormat ChromaFormat
}

func (p *PPS) sliceGroupIDBits() int {
	return bits.Len64(p.NumSliceGroupsMinus1)
}

func (p *PPS) Parse(r *util.BitReader) (n int, err error) {
	start := r.BitsRead()
	defer func() { n = r.BitsRead() - start }()
	if p.ID, err = r.ReadUE(); err != nil {
		return
	}
	if p.ID > 255 {
		return 0, fmt.Errorf("%w: pic_parameter_set_id %d", ErrSyntax, p.ID)
	}
	if p.SPSID, err = r.ReadUE(); err != nil {
		return
	}
	if p.EntropyCodingMode, err = r.ReadFlag(); err != nil {
		return
	}
	if p.BottomFieldPicOrderPresent, err = r.ReadFlag(); err != nil {
		return
	}
	if p.NumSliceGroupsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if p.NumSliceGroupsMinus1 > 7 {
		return 0, fmt.Errorf("%w: num_slice_groups_minus1 %d", ErrSyntax, p.NumSliceGroupsMinus1)
	}
	if p.NumSliceGroupsMinus1 > 0 {
		if err = p.parseSliceGroups(r); err != nil {
			return
		}
	}
	if p.NumRefIdxL0DefaultMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if p.NumRefIdxL1DefaultMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if p.WeightedPred, err = r.ReadFlag(); err != nil {
		return
	}
	if p.WeightedBipredIdc, err = r.ReadUint8(2); err != nil {
		return
	}
	if p.PicInitQpMinus26, err = r.ReadSE(); err != nil {
		return
	}
	if p.PicInitQsMinus26, err = r.ReadSE(); err != nil {
		return
	}
	if p.ChromaQpIndexOffset, err = r.ReadSE(); err != nil {
		return
	}
	if p.DeblockingFilterControl, err = r.ReadFlag(); err != nil {
		return
	}
	if p.ConstrainedIntraPred, err = r.ReadFlag(); err != nil {
		return
	}
	if p.RedundantPicCntPresent, err = r.ReadFlag(); err != nil {
		return
	}
	if r.MoreRBSPData() {
		ext := &PPSExtension{}
		if ext.Transform8x8Mode, err = r.ReadFlag(); err != nil {
			return
		}
		var present bool
		if present, err = r.ReadFlag(); err != nil {
			return
		}
		if present {
			ext.ScalingMatrix = &ScalingMatrix{}
			if err = ext.ScalingMatrix.Read(r, p.scalingListCount(ext.Transform8x8Mode)); err != nil {
				return
			}
		}
		if ext.SecondChromaQpIndexOffset, err = r.ReadSE(); err != nil {
			return
		}
		p.Extension = ext
	}
	err = readTrailingBits(r)
	return
}

func (p *PPS) scalingListCount(t8x8 bool) int {
	if !t8x8 {
		return 6
	}
	if p.ChromaFormat == Chroma444 {
		return 12
	}
	return 8
}

func (p *PPS) parseSliceGroups(r *util.BitReader) (err error) {
	if p.SliceGroupMapType, err = r.ReadUE(); err != nil {
		return
	}
	groups := int(p.NumSliceGroupsMinus1) + 1
	switch p.SliceGroupMapType {
	case 0:
		p.RunLengthMinus1 = make([]uint64, groups)
		for i := range p.RunLengthMinus1 {
			if p.RunLengthMinus1[i], err = r.ReadUE(); err != nil {
				return
			}
		}
	case 2:
		p.TopLeft = make([]uint64, groups-1)
		p.BottomRight = make([]uint64, groups-1)
		for i := range p.TopLeft {
			if p.TopLeft[i], err = r.ReadUE(); err != nil {
				return
			}
			if p.BottomRight[i], err = r.ReadUE(); err != nil {
				return
			}
		}
	case 3, 4, 5:
		if p.SliceGroupChangeDirection, err = r.ReadFlag(); err != nil {
			return
		}
		if p.SliceGroupChangeRateMinus1, err = r.ReadUE(); err != nil {
			return
		}
	case 6:
		if p.PicSizeInMapUnitsMinus1, err = r.ReadUE(); err != nil {
			return
		}
		if p.PicSizeInMapUnitsMinus1 >= 1<<20 {
			return fmt.Errorf("%w: pic_size_in_map_units_minus1 %d", ErrSyntax, p.PicSizeInMapUnitsMinus1)
		}
		p.SliceGroupID = make([]uint64, p.PicSizeInMapUnitsMinus1+1)
		nbits := p.sliceGroupIDBits()
		for i := range p.SliceGroupID {
			if p.SliceGroupID[i], err = r.ReadBits(nbits); err != nil {
				return
			}
		}
	}
	return
}

func (p *PPS) writeSliceGroups(w *util.BitWriter) (err error) {
	if err = w.WriteUE(p.SliceGroupMapType); err != nil {
		return
	}
	switch p.SliceGroupMapType {
	case 0:
		for _, v := range p.RunLengthMinus1 {
			if err = w.WriteUE(v); err != nil {
				return
			}
		}
	case 2:
		for i := range p.TopLeft {
			if err = w.WriteUE(p.TopLeft[i]); err != nil {
				return
			}
			if err = w.WriteUE(p.BottomRight[i]); err != nil {
				return
			}
		}
	case 3, 4, 5:
		if err = w.WriteFlag(p.SliceGroupChangeDirection); err != nil {
			return
		}
		if err = w.WriteUE(p.SliceGroupChangeRateMinus1); err != nil {
			return
		}
	case 6:
		if err = w.WriteUE(uint64(len(p.SliceGroupID) - 1)); err != nil {
			return
		}
		nbits := p.sliceGroupIDBits()
		for _, v := range p.SliceGroupID {
			if err = w.WriteBits(v, nbits); err != nil {
				return
			}
		}
	}
	return
}

func (p *PPS) Write(w *util.BitWriter) (n int, err error) {
	start := w.BitsWritten()
	defer func() { n = w.BitsWritten() - start }()
	if err = w.WriteUE(p.ID); err != nil {
		return
	}
	if err = w.WriteUE(p.SPSID); err != nil {
		return
	}
	if err = w.WriteFlag(p.EntropyCodingMode); err != nil {
		return
	}
	if err = w.WriteFlag(p.BottomFieldPicOrderPresent); err != nil {
		return
	}
	if err = w.WriteUE(p.NumSliceGroupsMinus1); err != nil {
		return
	}
	if p.NumSliceGroupsMinus1 > 0 {
		if err = p.writeSliceGroups(w); err != nil {
			return
		}
	}
	if err = w.WriteUE(p.NumRefIdxL0DefaultMinus1); err != nil {
		return
	}
	if err = w.WriteUE(p.NumRefIdxL1DefaultMinus1); err != nil {
		return
	}
	if err = w.WriteFlag(p.WeightedPred); err != nil {
		return
	}
	if err = w.WriteBits(uint64(p.WeightedBipredIdc), 2); err != nil {
		return
	}
	for _, v := range []int64{p.PicInitQpMinus26, p.PicInitQsMinus26, p.ChromaQpIndexOffset} {
		if err = w.WriteSE(v); err != nil {
			return
		}
	}
	for _, f := range []bool{p.DeblockingFilterControl, p.ConstrainedIntraPred, p.RedundantPicCntPresent} {
		if err = w.WriteFlag(f); err != nil {
			return
		}
	}
	if ext := p.Extension; ext != nil {
		if err = w.WriteFlag(ext.Transform8x8Mode); err != nil {
			return
		}
		if err = w.WriteFlag(ext.ScalingMatrix != nil); err != nil {
			return
		}
		if ext.ScalingMatrix != nil {
			if err = ext.ScalingMatrix.Write(w); err != nil {
				return
			}
		}
		if err = w.WriteSE(ext.SecondChromaQpIndexOffset); err != nil {
			return
		}
	}
	err = w.WriteTrailingBits()
	return
}

// ParsePPSNALU parses a complete PPS NAL unit. chroma comes from the referenced SPS.
func ParsePPSNALU(nalu []byte, chroma ChromaFormat) (*PPS, error) {
	if len(nalu) < 2 {
		return nil, util.ErrBitsExhausted
	}
	if ParseH264NALUType(nalu[0]) != NALU_PPS {
		return nil, ErrNALUType
	}
	p := PPS{ChromaFormat: chroma}
	if _, err := p.Parse(util.NewBitReader(trimTrailingZeros(RBSP(nalu[1:])))); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *PPS) Marshal() ([]byte, error) {
	buf := make([]byte, 4096)
	w := util.NewBitWriter(buf)
	if _, err := p.Write(w); err != nil {
		return nil, err
	}
	return WrapNALU(NALU_PPS, w.Bytes()), nil
}

// DefaultPPS is a CAVLC parameter set with deblocking control enabled.
func DefaultPPS() *PPS {
	return &PPS{
		DeblockingFilterControl: true,
		ChromaFormat:            Chroma420,
	}
}
