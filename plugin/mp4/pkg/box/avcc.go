package box

import (
	"encoding/binary"
)

// aligned(8) class AVCDecoderConfigurationRecord {
// 	unsigned int(8) configurationVersion = 1;
// 	unsigned int(8) AVCProfileIndication;
// 	unsigned int(8) profile_compatibility;
// 	unsigned int(8) AVCLevelIndication;
// 	bit(6) reserved = '111111'b;
// 	unsigned int(2) lengthSizeMinusOne;
// 	bit(3) reserved = '111'b;
// 	unsigned int(5) numOfSequenceParameterSets;
// 	for (i=0; i< numOfSequenceParameterSets; i++) {
// 		unsigned int(16) sequenceParameterSetLength ;
// 		bit(8*sequenceParameterSetLength) sequenceParameterSetNALUnit;
// 	}
// 	unsigned int(8) numOfPictureParameterSets;
// 	for (i=0; i< numOfPictureParameterSets; i++) {
// 		unsigned int(16) pictureParameterSetLength;
// 		bit(8*pictureParameterSetLength) pictureParameterSetNALUnit;
// 	}
// }

type AvcConfiguration struct {
	ConfigurationVersion uint8
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	LengthSizeMinusOne   uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

// NewAvcConfiguration takes profile, compatibility and level from the first SPS.
func NewAvcConfiguration(sps, pps [][]byte) *AvcConfiguration {
	c := &AvcConfiguration{
		ConfigurationVersion: 1,
		LengthSizeMinusOne:   3,
		SPS:                  sps,
		PPS:                  pps,
	}
	if len(sps) > 0 && len(sps[0]) >= 4 {
		c.Profile, c.ProfileCompatibility, c.Level = sps[0][1], sps[0][2], sps[0][3]
	}
	return c
}

func (c *AvcConfiguration) contentSize() uint64 {
	n := 7
	for _, s := range c.SPS {
		n += 2 + len(s)
	}
	for _, p := range c.PPS {
		n += 2 + len(p)
	}
	return uint64(n)
}

func putParameterSets(buf []byte, sets [][]byte) int {
	offset := 0
	for _, s := range sets {
		binary.BigEndian.PutUint16(buf[offset:], uint16(len(s)))
		offset += 2
		offset += copy(buf[offset:], s)
	}
	return offset
}

func (c *AvcConfiguration) putContent(buf []byte) int {
	buf[0] = c.ConfigurationVersion
	buf[1] = c.Profile
	buf[2] = c.ProfileCompatibility
	buf[3] = c.Level
	buf[4] = c.LengthSizeMinusOne | 0xFC
	buf[5] = uint8(len(c.SPS)) | 0xE0
	offset := 6
	offset += putParameterSets(buf[offset:], c.SPS)
	buf[offset] = uint8(len(c.PPS))
	offset++
	offset += putParameterSets(buf[offset:], c.PPS)
	return offset
}

func readParameterSets(b []byte, count int) (sets [][]byte, n int, err error) {
	for i := 0; i < count; i++ {
		if len(b) < n+2 {
			return nil, 0, ErrBoxShort
		}
		l := int(binary.BigEndian.Uint16(b[n:]))
		n += 2
		if len(b) < n+l {
			return nil, 0, ErrBoxShort
		}
		sets = append(sets, b[n:n+l])
		n += l
	}
	return
}

func (c *AvcConfiguration) decodeContent(b []byte) (err error) {
	if len(b) < 7 {
		return ErrBoxShort
	}
	c.ConfigurationVersion, c.Profile, c.ProfileCompatibility, c.Level = b[0], b[1], b[2], b[3]
	c.LengthSizeMinusOne = b[4] & 0x03
	offset := 6
	var n int
	if c.SPS, n, err = readParameterSets(b[offset:], int(b[5]&0x1F)); err != nil {
		return
	}
	offset += n
	if len(b) <= offset {
		return ErrBoxShort
	}
	count := int(b[offset])
	offset++
	c.PPS, _, err = readParameterSets(b[offset:], count)
	return
}
