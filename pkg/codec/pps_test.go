package codec

import (
	"reflect"
	"testing"

	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

func TestPPSRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pps  *PPS
	}{
		{"default", DefaultPPS()},
		{"interleaved", &PPS{ID: 1, NumSliceGroupsMinus1: 2, SliceGroupMapType: 0, RunLengthMinus1: []uint64{10, 20, 30}, ChromaFormat: Chroma420}},
		{"foreground", &PPS{NumSliceGroupsMinus1: 2, SliceGroupMapType: 2, TopLeft: []uint64{0, 5}, BottomRight: []uint64{40, 80}, ChromaFormat: Chroma420}},
		{"box out", &PPS{NumSliceGroupsMinus1: 1, SliceGroupMapType: 4, SliceGroupChangeDirection: true, SliceGroupChangeRateMinus1: 9, ChromaFormat: Chroma420}},
		{"explicit", &PPS{NumSliceGroupsMinus1: 3, SliceGroupMapType: 6, PicSizeInMapUnitsMinus1: 7, SliceGroupID: []uint64{0, 1, 2, 3, 3, 2, 1, 0}, ChromaFormat: Chroma420}},
		{"high", &PPS{
			EntropyCodingMode:        true,
			NumRefIdxL0DefaultMinus1: 2,
			WeightedBipredIdc:        2,
			PicInitQpMinus26:         -4,
			ChromaQpIndexOffset:      -2,
			DeblockingFilterControl:  true,
			Extension: &PPSExtension{
				Transform8x8Mode:          true,
				ScalingMatrix:             scalingMatrix(8),
				SecondChromaQpIndexOffset: -2,
			},
			ChromaFormat: Chroma420,
		}},
		{"high 4:4:4", &PPS{
			Extension: &PPSExtension{
				Transform8x8Mode: true,
				ScalingMatrix:    scalingMatrix(12),
			},
			ChromaFormat: Chroma444,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nalu, err := tt.pps.Marshal()
			if err != nil {
				t.Fatal(err)
			}
			got, err := ParsePPSNALU(nalu, tt.pps.ChromaFormat)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.pps) {
				t.Errorf("got %+v\nwant %+v", got, tt.pps)
			}
		})
	}
}

func TestPPSWithoutExtension(t *testing.T) {
	buf := make([]byte, 16)
	w := util.NewBitWriter(buf)
	n, err := DefaultPPS().Write(w)
	if err != nil {
		t.Fatal(err)
	}
	// pps id, sps id, 3 flags/ue(0), l0, l1, weighted 3 bits, 3 x se(0), 3 flags, stop + align
	if n != 24 {
		t.Errorf("default pps is %d bits", n)
	}
	var p PPS
	if _, err = p.Parse(util.NewBitReader(w.Bytes())); err != nil {
		t.Fatal(err)
	}
	if p.Extension != nil {
		t.Error("extension must only be read when more rbsp data follows")
	}
}
