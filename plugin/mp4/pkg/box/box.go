package box

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

const (
	BasicBoxLen = 8
	LargeBoxLen = 16
	FullBoxLen  = 12
	UserTypeLen = 16
)

var (
	ErrBoxSize  = errors.New("box: invalid size")
	ErrBoxShort = errors.New("box: content shorter than layout")
)

func f(s string) [4]byte {
	return [4]byte([]byte(s))
}

var (
	TypeFTYP = f("ftyp")
	TypeMOOV = f("moov")
	TypeMVHD = f("mvhd")
	TypeTRAK = f("trak")
	TypeTKHD = f("tkhd")
	TypeMDIA = f("mdia")
	TypeMDHD = f("mdhd")
	TypeHDLR = f("hdlr")
	TypeMINF = f("minf")
	TypeSTBL = f("stbl")
	TypeSTSD = f("stsd")
	TypeSTTS = f("stts")
	TypeSTSS = f("stss")
	TypeSTSC = f("stsc")
	TypeSTSZ = f("stsz")
	TypeSTCO = f("stco")
	TypeCO64 = f("co64")
	TypeMDAT = f("mdat")
	TypeFREE = f("free")
	TypeUUID = f("uuid")

	TypeVMHD = f("vmhd")
	TypeSMHD = f("smhd")
	TypeDINF = f("dinf")
	TypeDREF = f("dref")
	TypeURL  = f("url ")

	TypeAVC1 = f("avc1")
	TypeAVCC = f("avcC")
	TypeMP4V = f("mp4v")
	TypeMP4A = f("mp4a")
	TypeESDS = f("esds")
	TypeS263 = f("s263")
	TypeD263 = f("d263")
	TypeJPEG = f("jpeg")
	TypeSAMR = f("samr")
	TypeDAMR = f("damr")

	TypeVIDE = f("vide")
	TypeSOUN = f("soun")
)

// Header is the decoded size/type prefix of a box.
//
//	aligned(8) class Box (unsigned int(32) boxtype, optional unsigned int(8)[16] extended_type) {
//	    unsigned int(32) size;
//	    unsigned int(32) type = boxtype;
//	    if (size==1) {
//	       unsigned int(64) largesize;
//	    } else if (size==0) {
//	       // box extends to end of file
//	    }
//	    if (boxtype=='uuid') {
//	    unsigned int(8)[16] usertype = extended_type;
//	 }
//	}
type Header struct {
	Size     uint64
	Type     [4]byte
	UserType [16]byte
	// HeaderLen is 8, 16 for large size, plus 16 for uuid
	HeaderLen int
	// ToEnd is set when size==0 and the box runs to the end of its container
	ToEnd bool
}

// ReadHeader decodes a box header. Nothing is consumed on failure.
func ReadHeader(r *util.ByteReader) (h Header, err error) {
	saved := *r
	defer func() {
		if err != nil {
			*r = saved
		}
	}()
	raw, err := r.ReadBytes(BasicBoxLen)
	if err != nil {
		return
	}
	h.Size = uint64(binary.BigEndian.Uint32(raw))
	copy(h.Type[:], raw[4:])
	h.HeaderLen = BasicBoxLen
	switch h.Size {
	case 0:
		h.ToEnd = true
	case 1:
		var large uint64
		if large, err = r.ReadU64(); err != nil {
			return
		}
		h.Size = large
		h.HeaderLen += 8
	}
	if h.Type == TypeUUID {
		var ut []byte
		if ut, err = r.ReadBytes(UserTypeLen); err != nil {
			return
		}
		copy(h.UserType[:], ut)
		h.HeaderLen += UserTypeLen
	}
	if !h.ToEnd && h.Size < uint64(h.HeaderLen) {
		err = ErrBoxSize
	}
	return
}

// PeekHeader decodes the header at buf[0:] without a reader.
func PeekHeader(buf []byte) (Header, error) {
	return ReadHeader(util.NewByteReader(buf))
}

// headerLen is the encoded header size for a box of the given content size.
func headerLen(typ [4]byte, content uint64, large bool) int {
	n := BasicBoxLen
	if large || content+BasicBoxLen > math.MaxUint32 {
		n = LargeBoxLen
	}
	if typ == TypeUUID {
		n += UserTypeLen
	}
	return n
}

// putHeader writes the header and returns the number of bytes used.
func putHeader(buf []byte, typ [4]byte, userType *[16]byte, size uint64, hlen int) int {
	offset := 0
	if hlen-userTypeLen(typ) == LargeBoxLen {
		binary.BigEndian.PutUint32(buf, 1)
		copy(buf[4:], typ[:])
		binary.BigEndian.PutUint64(buf[8:], size)
		offset = LargeBoxLen
	} else {
		binary.BigEndian.PutUint32(buf, uint32(size))
		copy(buf[4:], typ[:])
		offset = BasicBoxLen
	}
	if typ == TypeUUID {
		if userType != nil {
			copy(buf[offset:], userType[:])
		} else {
			clear(buf[offset : offset+UserTypeLen])
		}
		offset += UserTypeLen
	}
	return offset
}

func userTypeLen(typ [4]byte) int {
	if typ == TypeUUID {
		return UserTypeLen
	}
	return 0
}

// aligned(8) class FullBox(unsigned int(32) boxtype, unsigned int(8) v, bit(24) f) extends Box(boxtype) {
//     unsigned int(8) version = v;
//     bit(24) flags = f;
// }

type FullBox struct {
	Version uint8
	Flags   uint32
}

func (box FullBox) put(buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(box.Version)<<24|box.Flags&0xFFFFFF)
	return 4
}

func readFullBox(buf []byte) (box FullBox, err error) {
	if len(buf) < 4 {
		return box, ErrBoxShort
	}
	v := binary.BigEndian.Uint32(buf)
	return FullBox{Version: uint8(v >> 24), Flags: v & 0xFFFFFF}, nil
}
