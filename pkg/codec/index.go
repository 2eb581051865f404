package codec

import "encoding/binary"

type FourCC [4]byte

var (
	FourCC_H264 = FourCC{'a', 'v', 'c', '1'}
	FourCC_MP4V = FourCC{'m', 'p', '4', 'v'}
	FourCC_S263 = FourCC{'s', '2', '6', '3'}
	FourCC_JPEG = FourCC{'j', 'p', 'e', 'g'}
	FourCC_SAMR = FourCC{'s', 'a', 'm', 'r'}
	FourCC_MP4A = FourCC{'m', 'p', '4', 'a'}
)

func (f FourCC) String() string {
	return string(f[:])
}

func (f FourCC) Uint32() uint32 {
	return binary.BigEndian.Uint32(f[:])
}

// CodecType identifies an elementary stream found inside mdat.
type CodecType uint8

const (
	CodecNone CodecType = iota
	CodecAvc
	CodecMp4v
	CodecS263
	CodecMjpg
	CodecAmr
	CodecMp4a
)

var codecNames = [...]string{"none", "avc", "mp4v", "s263", "mjpg", "amr", "mp4a"}

func (c CodecType) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return "unknown"
}

func (c CodecType) IsVideo() bool {
	switch c {
	case CodecAvc, CodecMp4v, CodecS263, CodecMjpg:
		return true
	}
	return false
}

func (c CodecType) IsAudio() bool {
	return c == CodecAmr || c == CodecMp4a
}

// FourCC is the sample entry type used to describe the codec in stsd.
func (c CodecType) FourCC() (f FourCC) {
	switch c {
	case CodecAvc:
		f = FourCC_H264
	case CodecMp4v:
		f = FourCC_MP4V
	case CodecS263:
		f = FourCC_S263
	case CodecMjpg:
		f = FourCC_JPEG
	case CodecAmr:
		f = FourCC_SAMR
	case CodecMp4a:
		f = FourCC_MP4A
	}
	return
}

// ParseSampleEntry maps a sample entry fourcc back to a codec.
func ParseSampleEntry(f FourCC) CodecType {
	switch f {
	case FourCC_H264, FourCC{'a', 'v', 'c', '3'}:
		return CodecAvc
	case FourCC_MP4V:
		return CodecMp4v
	case FourCC_S263, FourCC{'h', '2', '6', '3'}:
		return CodecS263
	case FourCC_JPEG, FourCC{'m', 'j', 'p', 'a'}:
		return CodecMjpg
	case FourCC_SAMR:
		return CodecAmr
	case FourCC_MP4A:
		return CodecMp4a
	}
	return CodecNone
}
