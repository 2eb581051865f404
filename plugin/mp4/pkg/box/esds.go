package box

import (
	"encoding/binary"
	"fmt"

	"github.com/yapingcat/gomedia/go-codec"
)

// MPEG-4 systems object types carried in DecoderConfigDescriptor.
const (
	ObjectTypeVisual = 0x20
	ObjectTypeAudio  = 0x40

	StreamTypeVisual = 0x04<<2 | 1
	StreamTypeAudio  = 0x05<<2 | 1
)

const (
	tagES                  = 0x03
	tagDecoderConfig       = 0x04
	tagDecoderSpecificInfo = 0x05
	tagSLConfig            = 0x06

	descriptorHeaderLen = 5
)

// abstract aligned(8) expandable(228-1) class BaseDescriptor : bit(8) tag=0 {
// 	// empty. To be filled by classes extending this class.
// }

//  int sizeOfInstance = 0;
// 	bit(1) nextByte;
// 	bit(7) sizeOfInstance;
// 	while(nextByte) {
// 		bit(1) nextByte;
// 		bit(7) sizeByte;
// 		sizeOfInstance = sizeOfInstance<<7 | sizeByte;
// }

type BaseDescriptor struct {
	tag            uint8
	sizeOfInstance uint32
}

func (base *BaseDescriptor) Decode(data []byte) *codec.BitStream {
	bs := codec.NewBitStream(data)
	base.tag = bs.Uint8(8)
	nextbit := uint8(1)
	for i := 0; nextbit == 1 && i < 4; i++ {
		nextbit = bs.GetBit()
		base.sizeOfInstance = base.sizeOfInstance<<7 | bs.Uint32(7)
	}
	return bs
}

// Encode always uses the 4 byte size form, like ffmpeg mov_write_esds_tag.
func (base *BaseDescriptor) Encode() []byte {
	bsw := codec.NewBitStreamWriter(descriptorHeaderLen + int(base.sizeOfInstance))
	bsw.PutByte(base.tag)
	size := base.sizeOfInstance
	bsw.PutUint8(1, 1)
	bsw.PutUint8(uint8(size>>21), 7)
	bsw.PutUint8(1, 1)
	bsw.PutUint8(uint8(size>>14), 7)
	bsw.PutUint8(1, 1)
	bsw.PutUint8(uint8(size>>7), 7)
	bsw.PutUint8(0, 1)
	bsw.PutUint8(uint8(size), 7)
	return bsw.Bits()[:descriptorHeaderLen+int(base.sizeOfInstance)]
}

// descriptorFits checks that the tag, size and body of the first descriptor are all in b.
func descriptorFits(b []byte) bool {
	size, i := 0, 1
	for ; i < len(b) && i <= 4; i++ {
		size = size<<7 | int(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			return len(b)-i-1 >= size
		}
	}
	return false
}

func makeBaseDescriptor(tag uint8, size uint32) []byte {
	base := BaseDescriptor{
		tag:            tag,
		sizeOfInstance: size,
	}
	return base.Encode()
}

// ESDescriptor is the esds box: an ES_Descriptor holding one
// DecoderConfigDescriptor and an SLConfigDescriptor.
type ESDescriptor struct {
	FullBox
	ESID                uint16
	ObjectType          uint8
	StreamType          uint8
	BufferSize          uint32
	MaxBitrate          uint32
	AvgBitrate          uint32
	DecoderSpecificInfo []byte
}

func (e *ESDescriptor) decoderConfigLen() uint32 {
	n := uint32(13)
	if len(e.DecoderSpecificInfo) > 0 {
		n += descriptorHeaderLen + uint32(len(e.DecoderSpecificInfo))
	}
	return n
}

func (e *ESDescriptor) esLen() uint32 {
	return 3 + descriptorHeaderLen + e.decoderConfigLen() + descriptorHeaderLen + 1
}

func (e *ESDescriptor) contentSize() uint64 {
	return 4 + descriptorHeaderLen + uint64(e.esLen())
}

func (e *ESDescriptor) putContent(buf []byte) int {
	offset := e.put(buf)
	offset += copy(buf[offset:], e.marshalES())
	return offset
}

func (e *ESDescriptor) marshalES() []byte {
	dcd := makeBaseDescriptor(tagDecoderConfig, e.decoderConfigLen())
	dcd[5] = e.ObjectType
	dcd[6] = e.StreamType
	dcd[7] = uint8(e.BufferSize >> 16)
	dcd[8] = uint8(e.BufferSize >> 8)
	dcd[9] = uint8(e.BufferSize)
	binary.BigEndian.PutUint32(dcd[10:], e.MaxBitrate)
	binary.BigEndian.PutUint32(dcd[14:], e.AvgBitrate)
	if len(e.DecoderSpecificInfo) > 0 {
		dsd := makeBaseDescriptor(tagDecoderSpecificInfo, uint32(len(e.DecoderSpecificInfo)))
		copy(dsd[descriptorHeaderLen:], e.DecoderSpecificInfo)
		copy(dcd[18:], dsd)
	}
	sld := makeBaseDescriptor(tagSLConfig, 1)
	sld[5] = 0x02
	esd := makeBaseDescriptor(tagES, e.esLen())
	binary.BigEndian.PutUint16(esd[5:], e.ESID)
	esd[7] = 0x00
	copy(esd[8:], dcd)
	copy(esd[8+len(dcd):], sld)
	return esd
}

func (e *ESDescriptor) decodeContent(b []byte) (err error) {
	if e.FullBox, err = readFullBox(b); err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: esds %v", ErrBoxShort, r)
		}
	}()
	esd := b[4:]
	for len(esd) >= 2 {
		if !descriptorFits(esd) {
			return ErrBoxShort
		}
		based := BaseDescriptor{}
		bs := based.Decode(esd)
		switch based.tag {
		case tagES:
			e.ESID = uint16(bs.Uint32(16))
			streamDependenceFlag := bs.GetBit()
			urlFlag := bs.GetBit()
			oCRstreamFlag := bs.GetBit()
			_ = bs.Uint8(5) // streamPriority
			if streamDependenceFlag == 1 {
				_ = bs.Uint32(16) // dependsOnEsId
			}
			if urlFlag == 1 {
				bs.SkipBits(int(bs.Uint8(8)) * 8)
			}
			if oCRstreamFlag == 1 {
				_ = bs.Uint32(16) // oCREsId
			}
			esd = bs.RemainData()
		case tagDecoderConfig:
			e.ObjectType = bs.Uint8(8)
			e.StreamType = bs.Uint8(8)
			e.BufferSize = bs.Uint32(24)
			e.MaxBitrate = bs.Uint32(32)
			e.AvgBitrate = bs.Uint32(32)
			esd = bs.RemainData()
		case tagDecoderSpecificInfo:
			e.DecoderSpecificInfo = bs.GetBytes(int(based.sizeOfInstance))
			esd = bs.RemainData()
		default:
			bs.SkipBits(int(based.sizeOfInstance) * 8)
			esd = bs.RemainData()
		}
	}
	return
}
