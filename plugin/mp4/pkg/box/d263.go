package box

import "encoding/binary"

// 3GPP TS 26.244 H263SpecificBox and AMRSpecificBox.

// D263 is the d263 box of an s263 sample entry.
type D263 struct {
	Vendor         [4]byte
	DecoderVersion uint8
	Level          uint8
	Profile        uint8
}

func (d *D263) contentSize() uint64 { return 7 }

func (d *D263) putContent(buf []byte) int {
	copy(buf, d.Vendor[:])
	buf[4] = d.DecoderVersion
	buf[5] = d.Level
	buf[6] = d.Profile
	return 7
}

func (d *D263) decodeContent(b []byte) error {
	if len(b) < 7 {
		return ErrBoxShort
	}
	copy(d.Vendor[:], b)
	d.DecoderVersion, d.Level, d.Profile = b[4], b[5], b[6]
	return nil
}

// AmrSpecific is the damr box of a samr sample entry.
type AmrSpecific struct {
	Vendor           [4]byte
	DecoderVersion   uint8
	ModeSet          uint16
	ModeChangePeriod uint8
	FramesPerSample  uint8
}

func (d *AmrSpecific) contentSize() uint64 { return 9 }

func (d *AmrSpecific) putContent(buf []byte) int {
	copy(buf, d.Vendor[:])
	buf[4] = d.DecoderVersion
	binary.BigEndian.PutUint16(buf[5:], d.ModeSet)
	buf[7] = d.ModeChangePeriod
	buf[8] = d.FramesPerSample
	return 9
}

func (d *AmrSpecific) decodeContent(b []byte) error {
	if len(b) < 9 {
		return ErrBoxShort
	}
	copy(d.Vendor[:], b)
	d.DecoderVersion = b[4]
	d.ModeSet = binary.BigEndian.Uint16(b[5:])
	d.ModeChangePeriod, d.FramesPerSample = b[7], b[8]
	return nil
}
