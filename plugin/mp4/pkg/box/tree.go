package box

import (
	"fmt"

	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

// NodeID addresses a node inside a Tree.
type NodeID int

const NoParent NodeID = -1

// Payload is the type specific content of a box. The set of payloads is
// closed, every implementation lives in this package.
type Payload interface {
	contentSize() uint64
	putContent(buf []byte) int
	decodeContent(buf []byte) error
}

type Node struct {
	Type     [4]byte
	UserType *[16]byte
	// Large forces a 64-bit size field
	Large    bool
	Parent   NodeID
	Children []NodeID
	Payload  Payload
}

// Tree is an arena of boxes. Nodes are never removed, the whole tree is
// dropped as a unit.
type Tree struct {
	nodes []Node
}

func NewTree() *Tree {
	return &Tree{}
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

// Add appends a box as the last child of parent, or as a root for NoParent.
func (t *Tree) Add(parent NodeID, typ [4]byte, p Payload) NodeID {
	if p == nil {
		p = &Container{}
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{Type: typ, Parent: parent, Payload: p})
	if parent != NoParent {
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	}
	return id
}

func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].Parent
}

func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].Children
}

func (t *Tree) Roots() (roots []NodeID) {
	for i := range t.nodes {
		if t.nodes[i].Parent == NoParent {
			roots = append(roots, NodeID(i))
		}
	}
	return
}

// Find walks down from id following the given box types, first match wins.
func (t *Tree) Find(id NodeID, path ...[4]byte) NodeID {
	for _, typ := range path {
		next := NoParent
		for _, c := range t.nodes[id].Children {
			if t.nodes[c].Type == typ {
				next = c
				break
			}
		}
		if next == NoParent {
			return NoParent
		}
		id = next
	}
	return id
}

func (t *Tree) ContentSize(id NodeID) uint64 {
	n := &t.nodes[id]
	size := n.Payload.contentSize()
	for _, c := range n.Children {
		size += t.Size(c)
	}
	return size
}

func (t *Tree) HeaderSize(id NodeID) int {
	n := &t.nodes[id]
	return headerLen(n.Type, t.ContentSize(id), n.Large)
}

// Size is header plus content.
func (t *Tree) Size(id NodeID) uint64 {
	content := t.ContentSize(id)
	n := &t.nodes[id]
	return uint64(headerLen(n.Type, content, n.Large)) + content
}

// Write serializes the box into buf and returns Size(id), or 0 without
// touching buf when it is too small.
func (t *Tree) Write(id NodeID, buf []byte) int {
	size := t.Size(id)
	if uint64(len(buf)) < size {
		return 0
	}
	return t.write(id, buf[:size])
}

func (t *Tree) write(id NodeID, buf []byte) int {
	n := &t.nodes[id]
	content := t.ContentSize(id)
	hlen := headerLen(n.Type, content, n.Large)
	offset := putHeader(buf, n.Type, n.UserType, uint64(hlen)+content, hlen)
	offset += n.Payload.putContent(buf[offset:])
	for _, c := range n.Children {
		offset += t.write(c, buf[offset:])
	}
	return offset
}

// Bytes allocates and writes the box.
func (t *Tree) Bytes(id NodeID) []byte {
	buf := make([]byte, t.Size(id))
	t.Write(id, buf)
	return buf
}

// Decode parses every box in buf into the tree under parent. Unknown types
// become Raw leaves.
func (t *Tree) Decode(parent NodeID, buf []byte) (ids []NodeID, err error) {
	r := util.NewByteReader(buf)
	for r.Available() > 0 {
		start := r.ReadCount()
		var h Header
		if h, err = ReadHeader(r); err != nil {
			return
		}
		size := h.Size
		if h.ToEnd {
			size = uint64(len(buf) - start)
		}
		if size > uint64(len(buf)-start) {
			return ids, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrBoxSize, h.Type[:], size, len(buf)-start)
		}
		body := buf[start+h.HeaderLen : start+int(size)]
		p, kids := newPayload(h.Type, parentType(t, parent))
		id := t.Add(parent, h.Type, p)
		if h.Type == TypeUUID {
			ut := h.UserType
			t.nodes[id].UserType = &ut
		}
		t.nodes[id].Large = h.HeaderLen-userTypeLen(h.Type) == LargeBoxLen
		if err = p.decodeContent(body); err != nil {
			return ids, fmt.Errorf("%s: %w", h.Type[:], err)
		}
		if kids {
			if _, err = t.Decode(id, body[p.contentSize():]); err != nil {
				return
			}
		}
		ids = append(ids, id)
		r.Skip(int(size) - h.HeaderLen)
	}
	return
}

func parentType(t *Tree, parent NodeID) [4]byte {
	if parent == NoParent {
		return [4]byte{}
	}
	return t.nodes[parent].Type
}

// newPayload selects the variant for a box type. kids reports whether
// child boxes follow the fixed content.
func newPayload(typ, parent [4]byte) (p Payload, kids bool) {
	switch typ {
	case TypeMOOV, TypeTRAK, TypeMDIA, TypeMINF, TypeSTBL, TypeDINF:
		return &Container{}, true
	case TypeSTSD:
		return &SampleDescription{}, true
	case TypeDREF:
		return &DataReference{}, true
	case TypeURL:
		return &DataEntryURL{}, false
	case TypeAVC1, TypeMP4V, TypeS263, TypeJPEG:
		if parent == TypeSTSD {
			return &VisualSampleEntry{}, true
		}
	case TypeMP4A, TypeSAMR:
		if parent == TypeSTSD {
			return &AudioSampleEntry{}, true
		}
	case TypeAVCC:
		return &AvcConfiguration{}, false
	case TypeESDS:
		return &ESDescriptor{}, false
	case TypeD263:
		return &D263{}, false
	case TypeDAMR:
		return &AmrSpecific{}, false
	case TypeHDLR:
		return &Handler{}, false
	case TypeVMHD:
		return &VideoMediaHeader{}, false
	case TypeSMHD:
		return &SoundMediaHeader{}, false
	case TypeSTTS:
		return &TimeToSample{}, false
	case TypeSTSC:
		return &SampleToChunk{}, false
	case TypeSTSZ:
		return &SampleSize{}, false
	case TypeSTCO:
		return &ChunkOffset{}, false
	case TypeCO64:
		return &ChunkOffset{Large: true}, false
	}
	return &Raw{}, false
}

// Container boxes carry only children.
type Container struct{}

func (*Container) contentSize() uint64 { return 0 }

func (*Container) putContent([]byte) int { return 0 }

func (*Container) decodeContent([]byte) error { return nil }

// Raw keeps the content bytes of a box verbatim.
type Raw struct {
	Data []byte
}

func (r *Raw) contentSize() uint64 { return uint64(len(r.Data)) }

func (r *Raw) putContent(buf []byte) int {
	return copy(buf, r.Data)
}

func (r *Raw) decodeContent(b []byte) error {
	r.Data = b
	return nil
}
