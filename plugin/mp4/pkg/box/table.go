package box

import (
	"encoding/binary"
	"math"
)

// aligned(8) class TimeToSampleBox extends FullBox(’stts’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 		int i;
// 		for (i=0; i < entry_count; i++) {
// 			unsigned int(32) sample_count;
// 			unsigned int(32) sample_delta;
// 		}
// }

type STTSEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

type TimeToSample struct {
	FullBox
	Entries []STTSEntry
}

func (s *TimeToSample) contentSize() uint64 {
	return 8 + 8*uint64(len(s.Entries))
}

func (s *TimeToSample) putContent(buf []byte) int {
	offset := s.put(buf)
	binary.BigEndian.PutUint32(buf[offset:], uint32(len(s.Entries)))
	offset += 4
	for _, e := range s.Entries {
		binary.BigEndian.PutUint32(buf[offset:], e.SampleCount)
		binary.BigEndian.PutUint32(buf[offset+4:], e.SampleDelta)
		offset += 8
	}
	return offset
}

func (s *TimeToSample) decodeContent(b []byte) (err error) {
	n, err := readTableHeader(&s.FullBox, b, 8)
	if err != nil {
		return
	}
	s.Entries = make([]STTSEntry, n)
	for i := range s.Entries {
		off := 8 + 8*i
		s.Entries[i] = STTSEntry{binary.BigEndian.Uint32(b[off:]), binary.BigEndian.Uint32(b[off+4:])}
	}
	return
}

// aligned(8) class SampleToChunkBox
// 	extends FullBox(‘stsc’, version = 0, 0) {
// 	unsigned int(32) entry_count;
// 	for (i=1; i <= entry_count; i++) {
// 		unsigned int(32) first_chunk;
// 		unsigned int(32) samples_per_chunk;
// 		unsigned int(32) sample_description_index;
// 	}
// }

type STSCEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

type SampleToChunk struct {
	FullBox
	Entries []STSCEntry
}

func (s *SampleToChunk) contentSize() uint64 {
	return 8 + 12*uint64(len(s.Entries))
}

func (s *SampleToChunk) putContent(buf []byte) int {
	offset := s.put(buf)
	binary.BigEndian.PutUint32(buf[offset:], uint32(len(s.Entries)))
	offset += 4
	for _, e := range s.Entries {
		binary.BigEndian.PutUint32(buf[offset:], e.FirstChunk)
		binary.BigEndian.PutUint32(buf[offset+4:], e.SamplesPerChunk)
		binary.BigEndian.PutUint32(buf[offset+8:], e.SampleDescriptionIndex)
		offset += 12
	}
	return offset
}

func (s *SampleToChunk) decodeContent(b []byte) (err error) {
	n, err := readTableHeader(&s.FullBox, b, 12)
	if err != nil {
		return
	}
	s.Entries = make([]STSCEntry, n)
	for i := range s.Entries {
		off := 8 + 12*i
		s.Entries[i] = STSCEntry{
			FirstChunk:             binary.BigEndian.Uint32(b[off:]),
			SamplesPerChunk:        binary.BigEndian.Uint32(b[off+4:]),
			SampleDescriptionIndex: binary.BigEndian.Uint32(b[off+8:]),
		}
	}
	return
}

// aligned(8) class SampleSizeBox extends FullBox(‘stsz’, version = 0, 0) {
// 		unsigned int(32) sample_size;
// 		unsigned int(32) sample_count;
// 		if (sample_size==0) {
// 		for (i=1; i <= sample_count; i++) {
// 		unsigned int(32) entry_size;
// 		}
// 	}
// }

type SampleSize struct {
	FullBox
	// Uniform is the constant sample size, Entries is ignored when non zero
	Uniform     uint32
	SampleCount uint32
	Entries     []uint32
}

func (s *SampleSize) contentSize() uint64 {
	if s.Uniform != 0 {
		return 12
	}
	return 12 + 4*uint64(len(s.Entries))
}

func (s *SampleSize) putContent(buf []byte) int {
	offset := s.put(buf)
	binary.BigEndian.PutUint32(buf[offset:], s.Uniform)
	offset += 4
	if s.Uniform != 0 {
		binary.BigEndian.PutUint32(buf[offset:], s.SampleCount)
		return offset + 4
	}
	binary.BigEndian.PutUint32(buf[offset:], uint32(len(s.Entries)))
	offset += 4
	for _, e := range s.Entries {
		binary.BigEndian.PutUint32(buf[offset:], e)
		offset += 4
	}
	return offset
}

func (s *SampleSize) decodeContent(b []byte) (err error) {
	if s.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 12 {
		return ErrBoxShort
	}
	s.Uniform = binary.BigEndian.Uint32(b[4:])
	s.SampleCount = binary.BigEndian.Uint32(b[8:])
	if s.Uniform != 0 {
		return
	}
	if uint64(len(b)-12) < 4*uint64(s.SampleCount) {
		return ErrBoxShort
	}
	s.Entries = make([]uint32, s.SampleCount)
	for i := range s.Entries {
		s.Entries[i] = binary.BigEndian.Uint32(b[12+4*i:])
	}
	return
}

// aligned(8) class ChunkOffsetBox
//     extends FullBox(‘stco’, version = 0, 0) {
//     unsigned int(32) entry_count;
//     for (i=1; i <= entry_count; i++) {
//         unsigned int(32) chunk_offset;
//     }
// }
// aligned(8) class ChunkLargeOffsetBox
//     extends FullBox(‘co64’, version = 0, 0) {
//     unsigned int(32) entry_count;
//     for (i=1; i <= entry_count; i++) {
//         unsigned int(64) chunk_offset;
//     }
// }

// ChunkOffset serves both stco and co64, Large selects the 64-bit layout.
type ChunkOffset struct {
	FullBox
	Large   bool
	Offsets []uint64
}

func (c *ChunkOffset) entryLen() uint64 {
	if c.Large {
		return 8
	}
	return 4
}

func (c *ChunkOffset) contentSize() uint64 {
	return 8 + c.entryLen()*uint64(len(c.Offsets))
}

func (c *ChunkOffset) putContent(buf []byte) int {
	offset := c.put(buf)
	binary.BigEndian.PutUint32(buf[offset:], uint32(len(c.Offsets)))
	offset += 4
	for _, o := range c.Offsets {
		if c.Large {
			binary.BigEndian.PutUint64(buf[offset:], o)
		} else {
			binary.BigEndian.PutUint32(buf[offset:], uint32(o))
		}
		offset += int(c.entryLen())
	}
	return offset
}

func (c *ChunkOffset) decodeContent(b []byte) (err error) {
	n, err := readTableHeader(&c.FullBox, b, int(c.entryLen()))
	if err != nil {
		return
	}
	c.Offsets = make([]uint64, n)
	for i := range c.Offsets {
		if c.Large {
			c.Offsets[i] = binary.BigEndian.Uint64(b[8+8*i:])
		} else {
			c.Offsets[i] = uint64(binary.BigEndian.Uint32(b[8+4*i:]))
		}
	}
	return
}

// AddChunkOffset adds an stco, or a co64 when any offset needs 64 bits.
func (t *Tree) AddChunkOffset(parent NodeID, offsets []uint64) NodeID {
	c := &ChunkOffset{Offsets: offsets}
	for _, o := range offsets {
		if o > math.MaxUint32 {
			c.Large = true
			break
		}
	}
	if c.Large {
		return t.Add(parent, TypeCO64, c)
	}
	return t.Add(parent, TypeSTCO, c)
}

// readTableHeader reads version, flags and entry_count and checks that
// entry_count entries of entryLen bytes follow.
func readTableHeader(fb *FullBox, b []byte, entryLen int) (n int, err error) {
	if *fb, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 8 {
		return 0, ErrBoxShort
	}
	count := uint64(binary.BigEndian.Uint32(b[4:]))
	if uint64(len(b)-8) < count*uint64(entryLen) {
		return 0, ErrBoxShort
	}
	return int(count), nil
}
