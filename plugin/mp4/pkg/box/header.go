package box

import (
	"encoding/binary"
	"strings"
)

// Box Type: 'hdlr'
// Container: Media Box (‘mdia’) or Meta Box (‘meta’)
// Mandatory: Yes
// Quantity: Exactly one

// aligned(8) class HandlerBox extends FullBox(‘hdlr’, version = 0, 0) {
//  unsigned int(32) pre_defined = 0;
// 	unsigned int(32) handler_type;
// 	const unsigned int(32)[3] reserved = 0;
// 	   string   name;
// 	}

type Handler struct {
	FullBox
	HandlerType [4]byte
	Name        string
}

func NewHandler(handlerType [4]byte) *Handler {
	h := &Handler{HandlerType: handlerType}
	switch handlerType {
	case TypeVIDE:
		h.Name = "VideoHandler"
	case TypeSOUN:
		h.Name = "SoundHandler"
	}
	return h
}

func (h *Handler) contentSize() uint64 {
	return 4 + 20 + uint64(len(h.Name)+1)
}

func (h *Handler) putContent(buf []byte) int {
	offset := h.put(buf)
	clear(buf[offset : offset+4])
	offset += 4
	offset += copy(buf[offset:], h.HandlerType[:])
	clear(buf[offset : offset+12])
	offset += 12
	offset += copy(buf[offset:], h.Name)
	buf[offset] = 0
	return offset + 1
}

func (h *Handler) decodeContent(b []byte) (err error) {
	if h.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 24 {
		return ErrBoxShort
	}
	copy(h.HandlerType[:], b[8:])
	name := string(b[24:])
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	h.Name = name
	return
}

// aligned(8) class VideoMediaHeaderBox
// extends FullBox(‘vmhd’, version = 0, 1) {
// template unsigned int(16) graphicsmode = 0; // copy, see below template
// unsigned int(16)[3] opcolor = {0, 0, 0};
// }

type VideoMediaHeader struct {
	FullBox
	GraphicsMode uint16
	OpColor      [3]uint16
}

func NewVideoMediaHeader() *VideoMediaHeader {
	return &VideoMediaHeader{FullBox: FullBox{Flags: 1}}
}

func (v *VideoMediaHeader) contentSize() uint64 { return 12 }

func (v *VideoMediaHeader) putContent(buf []byte) int {
	offset := v.put(buf)
	binary.BigEndian.PutUint16(buf[offset:], v.GraphicsMode)
	offset += 2
	for _, c := range v.OpColor {
		binary.BigEndian.PutUint16(buf[offset:], c)
		offset += 2
	}
	return offset
}

func (v *VideoMediaHeader) decodeContent(b []byte) (err error) {
	if v.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 12 {
		return ErrBoxShort
	}
	v.GraphicsMode = binary.BigEndian.Uint16(b[4:])
	for i := range v.OpColor {
		v.OpColor[i] = binary.BigEndian.Uint16(b[6+2*i:])
	}
	return
}

// aligned(8) class SoundMediaHeaderBox
//    extends FullBox(‘smhd’, version = 0, 0) {
//    template int(16) balance = 0;
//    const unsigned int(16)  reserved = 0;
// }

type SoundMediaHeader struct {
	FullBox
	Balance int16
}

func (s *SoundMediaHeader) contentSize() uint64 { return 8 }

func (s *SoundMediaHeader) putContent(buf []byte) int {
	offset := s.put(buf)
	binary.BigEndian.PutUint16(buf[offset:], uint16(s.Balance))
	clear(buf[offset+2 : offset+4])
	return offset + 4
}

func (s *SoundMediaHeader) decodeContent(b []byte) (err error) {
	if s.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 8 {
		return ErrBoxShort
	}
	s.Balance = int16(binary.BigEndian.Uint16(b[4:]))
	return
}

// aligned(8) class DataReferenceBox
//    extends FullBox(‘dref’, version = 0, 0) {
//    unsigned int(32)  entry_count;
//    for (i=1; i <= entry_count; i++) {
//       DataEntryBox(entry_version, entry_flags) data_entry;
//    }
// }

type DataReference struct {
	FullBox
	EntryCount uint32
}

func (d *DataReference) contentSize() uint64 { return 8 }

func (d *DataReference) putContent(buf []byte) int {
	offset := d.put(buf)
	binary.BigEndian.PutUint32(buf[offset:], d.EntryCount)
	return offset + 4
}

func (d *DataReference) decodeContent(b []byte) (err error) {
	if d.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if len(b) < 8 {
		return ErrBoxShort
	}
	d.EntryCount = binary.BigEndian.Uint32(b[4:])
	return
}

// DataEntryURL with flag 1 means the media is in the same file and
// Location is empty.
type DataEntryURL struct {
	FullBox
	Location string
}

func (d *DataEntryURL) contentSize() uint64 {
	if d.Flags&1 != 0 {
		return 4
	}
	return 4 + uint64(len(d.Location)+1)
}

func (d *DataEntryURL) putContent(buf []byte) int {
	offset := d.put(buf)
	if d.Flags&1 != 0 {
		return offset
	}
	offset += copy(buf[offset:], d.Location)
	buf[offset] = 0
	return offset + 1
}

func (d *DataEntryURL) decodeContent(b []byte) (err error) {
	if d.FullBox, err = readFullBox(b); err != nil {
		return
	}
	if d.Flags&1 == 0 && len(b) > 4 {
		d.Location = strings.TrimRight(string(b[4:]), "\x00")
	}
	return
}

// AddDataInformation builds dinf > dref > "url " pointing at the same file.
func (t *Tree) AddDataInformation(parent NodeID) NodeID {
	dinf := t.Add(parent, TypeDINF, nil)
	dref := t.Add(dinf, TypeDREF, &DataReference{EntryCount: 1})
	t.Add(dref, TypeURL, &DataEntryURL{FullBox: FullBox{Flags: 1}})
	return dinf
}

// TrackGeometry reads width and height from tkhd content (version and
// flags included). Both are 16.16 fixed point in the box.
func TrackGeometry(content []byte) (width, height uint32, err error) {
	fb, err := readFullBox(content)
	if err != nil {
		return
	}
	offset := 76
	if fb.Version == 1 {
		offset = 88
	}
	if len(content) < offset+8 {
		return 0, 0, ErrBoxShort
	}
	width = binary.BigEndian.Uint32(content[offset:]) >> 16
	height = binary.BigEndian.Uint32(content[offset+4:]) >> 16
	return
}

// MediaDuration reads timescale and duration from mdhd content.
//
//	if (version==1) {
//	   unsigned int(64) creation_time;
//	   unsigned int(64) modification_time;
//	   unsigned int(32) timescale;
//	   unsigned int(64) duration;
//	} else { // version==0
//	   unsigned int(32) creation_time;
//	   unsigned int(32) modification_time;
//	   unsigned int(32) timescale;
//	   unsigned int(32) duration;
//	}
func MediaDuration(content []byte) (timescale uint32, duration uint64, err error) {
	fb, err := readFullBox(content)
	if err != nil {
		return
	}
	if fb.Version == 1 {
		if len(content) < 32 {
			return 0, 0, ErrBoxShort
		}
		return binary.BigEndian.Uint32(content[20:]), binary.BigEndian.Uint64(content[24:]), nil
	}
	if len(content) < 20 {
		return 0, 0, ErrBoxShort
	}
	return binary.BigEndian.Uint32(content[12:]), uint64(binary.BigEndian.Uint32(content[16:])), nil
}
