package codec

import (
	"bytes"
)

// Start Code + NAL Unit -> NALU Header + NALU Body
// NALU Body -> RBSP with emulation prevention bytes
type H264NALUType byte

func (b H264NALUType) Or(b2 byte) byte {
	return byte(b) | b2
}

func (b H264NALUType) Byte() byte {
	return byte(b)
}

func ParseH264NALUType(b byte) H264NALUType {
	return H264NALUType(b & 0x1F)
}

// IsVCL reports whether the unit carries coded slice data.
func (b H264NALUType) IsVCL() bool {
	return b >= NALU_Non_IDR_Picture && b <= NALU_IDR_Picture
}

const (
	// NALU Type
	NALU_Unspecified           H264NALUType = iota
	NALU_Non_IDR_Picture                    // 1
	NALU_Data_Partition_A                   // 2
	NALU_Data_Partition_B                   // 3
	NALU_Data_Partition_C                   // 4
	NALU_IDR_Picture                        // 5
	NALU_SEI                                // 6
	NALU_SPS                                // 7
	NALU_PPS                                // 8
	NALU_Access_Unit_Delimiter              // 9
	NALU_Sequence_End                       // 10
	NALU_Stream_End                         // 11
	NALU_Filler_Data                        // 12
)

var (
	NALU_Delimiter1 = []byte{0x00, 0x00, 0x01}
	NALU_Delimiter2 = []byte{0x00, 0x00, 0x00, 0x01}
)

// SplitH264 splits Annex-B data on 0x00000001 and 0x000001 start codes.
func SplitH264(payload []byte) (nalus [][]byte) {
	for _, v := range bytes.SplitN(payload, NALU_Delimiter2, -1) {
		if len(v) == 0 {
			continue
		}
		for _, n := range bytes.SplitN(v, NALU_Delimiter1, -1) {
			if len(n) > 0 {
				nalus = append(nalus, n)
			}
		}
	}
	return
}

// RBSP strips emulation prevention bytes (00 00 03 -> 00 00).
func RBSP(ebsp []byte) []byte {
	out := make([]byte, 0, len(ebsp))
	zeros := 0
	for i := 0; i < len(ebsp); i++ {
		b := ebsp[i]
		if zeros >= 2 && b == 0x03 && (i+1 == len(ebsp) || ebsp[i+1] <= 0x03) {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// EBSP inserts emulation prevention bytes so the payload never contains a start code.
func EBSP(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/64+1)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// trimTrailingZeros drops cabac_zero_words and stuffing after the stop bit.
func trimTrailingZeros(rbsp []byte) []byte {
	n := len(rbsp)
	for n > 0 && rbsp[n-1] == 0 {
		n--
	}
	return rbsp[:n]
}

// WrapNALU prefixes a header byte (nal_ref_idc 3) and applies emulation prevention.
func WrapNALU(t H264NALUType, rbsp []byte) []byte {
	return append([]byte{t.Or(0x60)}, EBSP(rbsp)...)
}
