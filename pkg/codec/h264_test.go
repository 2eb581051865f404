package codec

import (
	"bytes"
	"testing"
)

func TestEmulationPrevention(t *testing.T) {
	tests := []struct {
		rbsp, ebsp []byte
	}{
		{[]byte{0x00, 0x00, 0x01}, []byte{0x00, 0x00, 0x03, 0x01}},
		{[]byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00, 0x03, 0x00, 0x00}},
		{[]byte{0x00, 0x00, 0x04}, []byte{0x00, 0x00, 0x04}},
		{[]byte{0x12, 0x00, 0x00, 0x03, 0x80}, []byte{0x12, 0x00, 0x00, 0x03, 0x03, 0x80}},
	}
	for _, tt := range tests {
		if got := EBSP(tt.rbsp); !bytes.Equal(got, tt.ebsp) {
			t.Errorf("EBSP(% x) = % x want % x", tt.rbsp, got, tt.ebsp)
		}
		if got := RBSP(tt.ebsp); !bytes.Equal(got, tt.rbsp) {
			t.Errorf("RBSP(% x) = % x want % x", tt.ebsp, got, tt.rbsp)
		}
	}
}

func TestSplitH264(t *testing.T) {
	sps, _ := DefaultSPS().Marshal()
	pps, _ := DefaultPPS().Marshal()
	var stream []byte
	stream = append(stream, NALU_Delimiter2...)
	stream = append(stream, sps...)
	stream = append(stream, NALU_Delimiter1...)
	stream = append(stream, pps...)
	nalus := SplitH264(stream)
	if len(nalus) != 2 {
		t.Fatalf("got %d nalus", len(nalus))
	}
	if ParseH264NALUType(nalus[0][0]) != NALU_SPS || ParseH264NALUType(nalus[1][0]) != NALU_PPS {
		t.Errorf("types %d %d", nalus[0][0]&0x1F, nalus[1][0]&0x1F)
	}
	if !NALU_IDR_Picture.IsVCL() || NALU_SEI.IsVCL() {
		t.Error("vcl classification")
	}
}
