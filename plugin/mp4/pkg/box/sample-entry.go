package box

import (
	"encoding/binary"
)

// aligned(8) class SampleDescriptionBox (unsigned int(32) handler_type) extends FullBox('stsd', 0, 0){
// 	int i ;
// 	unsigned int(32) entry_count;
// 	   for (i = 1 ; i <= entry_count ; i++){
// 		  SampleEntry();
// 	   }
// }

// SampleDescription takes its entries from the node's children.
type SampleDescription struct {
	FullBox
	EntryCount uint32
}

func (s *SampleDescription) contentSize() uint64 { return 8 }

func (s *SampleDescription) putContent(buf []byte) int {
	s.put(buf)
	binary.BigEndian.PutUint32(buf[4:], s.EntryCount)
	return 8
}

func (s *SampleDescription) decodeContent(b []byte) (err error) {
	if s.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 8 {
		return ErrBoxShort
	}
	s.EntryCount = binary.BigEndian.Uint32(b[4:])
	return
}

// AddSampleDescription creates an stsd whose entry count follows the entries added to it.
func (t *Tree) AddSampleDescription(parent NodeID) NodeID {
	return t.Add(parent, TypeSTSD, &SampleDescription{})
}

// AddEntry appends a sample entry to an stsd node and bumps its entry count.
func (t *Tree) AddEntry(stsd NodeID, typ [4]byte, p Payload) NodeID {
	if sd, ok := t.nodes[stsd].Payload.(*SampleDescription); ok {
		sd.EntryCount++
	}
	return t.Add(stsd, typ, p)
}

// SampleEntryTypes lists the entry formats of an stsd content, version and
// flags included.
func SampleEntryTypes(content []byte) (types [][4]byte, err error) {
	t := NewTree()
	stsd := t.Add(NoParent, TypeSTSD, &SampleDescription{})
	sd := t.nodes[stsd].Payload.(*SampleDescription)
	if err = sd.decodeContent(content); err != nil {
		return
	}
	if _, err = t.Decode(stsd, content[8:]); err != nil {
		return
	}
	for _, c := range t.Children(stsd) {
		types = append(types, t.nodes[c].Type)
	}
	return
}

// aligned(8) abstract class SampleEntry (unsigned int(32) format) extends Box(format){
// 	const unsigned int(8)[6] reserved = 0;
// 	unsigned int(16) data_reference_index;
// 	}

const sampleEntryLen = 8

func putSampleEntry(buf []byte, dataReferenceIndex uint16) int {
	clear(buf[:6])
	binary.BigEndian.PutUint16(buf[6:], dataReferenceIndex)
	return sampleEntryLen
}

// class VisualSampleEntry(codingname) extends SampleEntry (codingname){
//  unsigned int(16) pre_defined = 0;
// 	const unsigned int(16) reserved = 0;
// 	unsigned int(32)[3] pre_defined = 0;
// 	unsigned int(16) width;
// 	unsigned int(16) height;
// 	template unsigned int(32) horizresolution = 0x00480000; // 72 dpi
//  template unsigned int(32) vertresolution = 0x00480000; // 72 dpi
//  const unsigned int(32) reserved = 0;
// 	template unsigned int(16) frame_count = 1;
// 	string[32] compressorname;
// 	template unsigned int(16) depth = 0x0018;
// 	int(16) pre_defined = -1;
// }

type VisualSampleEntry struct {
	DataReferenceIndex uint16
	Width              uint16
	Height             uint16
	HorizResolution    uint32
	VertResolution     uint32
	FrameCount         uint16
	CompressorName     string
	Depth              uint16
}

const visualSampleEntryLen = sampleEntryLen + 70

func NewVisualSampleEntry(width, height uint16) *VisualSampleEntry {
	return &VisualSampleEntry{
		DataReferenceIndex: 1,
		Width:              width,
		Height:             height,
		HorizResolution:    0x00480000,
		VertResolution:     0x00480000,
		FrameCount:         1,
		Depth:              0x0018,
	}
}

func (e *VisualSampleEntry) contentSize() uint64 { return visualSampleEntryLen }

func (e *VisualSampleEntry) putContent(buf []byte) int {
	offset := putSampleEntry(buf, e.DataReferenceIndex)
	clear(buf[offset : offset+16])
	offset += 16
	binary.BigEndian.PutUint16(buf[offset:], e.Width)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:], e.Height)
	offset += 2
	binary.BigEndian.PutUint32(buf[offset:], e.HorizResolution)
	offset += 4
	binary.BigEndian.PutUint32(buf[offset:], e.VertResolution)
	offset += 4
	clear(buf[offset : offset+4])
	offset += 4
	binary.BigEndian.PutUint16(buf[offset:], e.FrameCount)
	offset += 2
	// pascal string, length byte first
	name := buf[offset : offset+32]
	clear(name)
	n := copy(name[1:], e.CompressorName)
	name[0] = byte(n)
	offset += 32
	binary.BigEndian.PutUint16(buf[offset:], e.Depth)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:], 0xFFFF)
	offset += 2
	return offset
}

func (e *VisualSampleEntry) decodeContent(b []byte) error {
	if len(b) < visualSampleEntryLen {
		return ErrBoxShort
	}
	offset := 6
	e.DataReferenceIndex = binary.BigEndian.Uint16(b[offset:])
	offset += 2 + 16
	e.Width = binary.BigEndian.Uint16(b[offset:])
	offset += 2
	e.Height = binary.BigEndian.Uint16(b[offset:])
	offset += 2
	e.HorizResolution = binary.BigEndian.Uint32(b[offset:])
	offset += 4
	e.VertResolution = binary.BigEndian.Uint32(b[offset:])
	offset += 8
	e.FrameCount = binary.BigEndian.Uint16(b[offset:])
	offset += 2
	n := min(int(b[offset]), 31)
	e.CompressorName = string(b[offset+1 : offset+1+n])
	offset += 32
	e.Depth = binary.BigEndian.Uint16(b[offset:])
	return nil
}

// class AudioSampleEntry(codingname) extends SampleEntry (codingname){
//  const unsigned int(32)[2] reserved = 0;
// 	template unsigned int(16) channelcount = 2;
// 	template unsigned int(16) samplesize = 16;
// 	unsigned int(16) pre_defined = 0;
// 	const unsigned int(16) reserved = 0 ;
// 	template unsigned int(32) samplerate = { default samplerate of media}<<16;
// }

type AudioSampleEntry struct {
	DataReferenceIndex uint16
	ChannelCount       uint16
	SampleSize         uint16
	SampleRate         uint32
}

const audioSampleEntryLen = sampleEntryLen + 20

func NewAudioSampleEntry(channels uint16, sampleRate uint32) *AudioSampleEntry {
	return &AudioSampleEntry{
		DataReferenceIndex: 1,
		ChannelCount:       channels,
		SampleSize:         16,
		SampleRate:         sampleRate,
	}
}

func (e *AudioSampleEntry) contentSize() uint64 { return audioSampleEntryLen }

func (e *AudioSampleEntry) putContent(buf []byte) int {
	offset := putSampleEntry(buf, e.DataReferenceIndex)
	clear(buf[offset : offset+8])
	offset += 8
	binary.BigEndian.PutUint16(buf[offset:], e.ChannelCount)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:], e.SampleSize)
	offset += 2
	clear(buf[offset : offset+4])
	offset += 4
	binary.BigEndian.PutUint32(buf[offset:], e.SampleRate<<16)
	offset += 4
	return offset
}

func (e *AudioSampleEntry) decodeContent(b []byte) error {
	if len(b) < audioSampleEntryLen {
		return ErrBoxShort
	}
	e.DataReferenceIndex = binary.BigEndian.Uint16(b[6:])
	e.ChannelCount = binary.BigEndian.Uint16(b[16:])
	e.SampleSize = binary.BigEndian.Uint16(b[18:])
	e.SampleRate = binary.BigEndian.Uint32(b[24:]) >> 16
	return nil
}
