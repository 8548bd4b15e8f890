// Package mp4 walks the ISO-BMFF box tree of MP4/MOV/HEIF/3GP files and
// decodes the leaf boxes the forensic analyzers depend on. Unknown boxes
// are kept as raw leaves; truncated trees stop cleanly.
package mp4

import (
	"encoding/binary"

	"github.com/rs/zerolog/log"
)

// Box is one node of the box tree. Children is populated for container
// boxes; Body holds the typed payload of a decoded leaf; Raw keeps the
// body bytes of undecoded leaves (never for mdat, which records only
// its extent).
type Box struct {
	Type      string
	Size      uint64
	Offset    int64
	HeaderLen int
	Raw       []byte
	Children  []*Box
	Body      any
}

// BodyOffset returns the absolute file offset of the box body.
func (b *Box) BodyOffset() int64 {
	return b.Offset + int64(b.HeaderLen)
}

// Child returns the first child with the given type.
func (b *Box) Child(typ string) (*Box, bool) {
	for _, c := range b.Children {
		if c.Type == typ {
			return c, true
		}
	}
	return nil, false
}

// ChildAll returns every child with the given type, in on-disk order.
func (b *Box) ChildAll(typ string) []*Box {
	var out []*Box
	for _, c := range b.Children {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Path descends type by type, taking the first match at each level.
func (b *Box) Path(types ...string) (*Box, bool) {
	cur := b
	for _, typ := range types {
		next, ok := cur.Child(typ)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// containerTypes are boxes whose body is a sequence of child boxes.
// meta is a FullBox container: four version/flags bytes precede its
// children.
var containerTypes = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"stbl": true,
	"dinf": true,
	"edts": true,
	"udta": true,
	"meta": true,
	"iprp": true,
	"ipco": true,
	"moof": true,
	"traf": true,
	"mvex": true,
	"iinf": true,
	"iref": true,
	"ilst": true,
}

// fullBoxContainers carry 4 bytes of version/flags before children.
var fullBoxContainers = map[string]bool{
	"meta": true,
	"iinf": true,
	"iref": true,
}

// Tree is the parsed box tree of one file.
type Tree struct {
	Boxes []*Box
	Size  int64
}

// Child returns the first top-level box with the given type.
func (t *Tree) Child(typ string) (*Box, bool) {
	for _, b := range t.Boxes {
		if b.Type == typ {
			return b, true
		}
	}
	return nil, false
}

// ChildAll returns every top-level box with the given type.
func (t *Tree) ChildAll(typ string) []*Box {
	var out []*Box
	for _, b := range t.Boxes {
		if b.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

// Path descends from the top level, first match at each step.
func (t *Tree) Path(types ...string) (*Box, bool) {
	if len(types) == 0 {
		return nil, false
	}
	first, ok := t.Child(types[0])
	if !ok {
		return nil, false
	}
	if len(types) == 1 {
		return first, true
	}
	return first.Path(types[1:]...)
}

// Parse walks the full file buffer into a box tree. Structural damage
// (short headers, sizes past EOF) terminates the affected level with a
// warning; everything decoded so far is kept.
func Parse(data []byte) *Tree {
	tree := &Tree{Size: int64(len(data))}
	tree.Boxes = parseBoxes(data, 0, int64(len(data)))
	return tree
}

// frame is one level of the explicit descent stack.
type frame struct {
	parent *Box
	pos    int64
	end    int64
}

// parseBoxes scans [start, end) of data for sibling boxes, descending
// into containers with an explicit stack so deep nesting cannot
// overflow the goroutine stack.
func parseBoxes(data []byte, start, end int64) []*Box {
	var roots []*Box
	stack := []frame{{parent: nil, pos: start, end: end}}

	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.pos+8 > f.end {
			if f.pos != f.end {
				log.Warn().Int64("offset", f.pos).Msg("truncated box header")
			}
			stack = stack[:len(stack)-1]
			continue
		}

		offset := f.pos
		size := uint64(binary.BigEndian.Uint32(data[offset:]))
		typ := string(data[offset+4 : offset+8])
		headerLen := 8

		switch size {
		case 0:
			// Box extends to the end of the enclosing space.
			size = uint64(f.end - offset)
		case 1:
			if offset+16 > f.end {
				log.Warn().Int64("offset", offset).Msg("truncated extended box size")
				stack = stack[:len(stack)-1]
				continue
			}
			size = binary.BigEndian.Uint64(data[offset+8:])
			headerLen = 16
		}

		if size < uint64(headerLen) || offset+int64(size) > f.end {
			log.Warn().Str("type", typ).Int64("offset", offset).Uint64("size", size).Msg("box size out of range")
			stack = stack[:len(stack)-1]
			continue
		}

		box := &Box{
			Type:      typ,
			Size:      size,
			Offset:    offset,
			HeaderLen: headerLen,
		}
		if f.parent == nil {
			roots = append(roots, box)
		} else {
			f.parent.Children = append(f.parent.Children, box)
		}
		f.pos = offset + int64(size)

		bodyStart := offset + int64(headerLen)
		bodyEnd := offset + int64(size)

		// ilst children are index-typed wrapper boxes around data atoms.
		isContainer := containerTypes[typ] || (f.parent != nil && f.parent.Type == "ilst")
		if isContainer && len(stack) < 64 {
			if fullBoxContainers[typ] {
				if bodyStart+4 > bodyEnd {
					continue
				}
				box.Body = parseFullBoxHeader(data[bodyStart:bodyEnd])
				bodyStart += 4
				if typ == "iinf" {
					// entry_count precedes the infe children.
					n := 2
					if data[offset+int64(headerLen)] != 0 {
						n = 4
					}
					if bodyStart+int64(n) > bodyEnd {
						continue
					}
					bodyStart += int64(n)
				}
			}
			stack = append(stack, frame{parent: box, pos: bodyStart, end: bodyEnd})
			continue
		}

		parseLeaf(box, data, bodyStart, bodyEnd)
	}
	return roots
}

// FullBoxHeader is the version/flags prefix kept for FullBox containers.
type FullBoxHeader struct {
	Version uint8
	Flags   uint32
}

func parseFullBoxHeader(body []byte) *FullBoxHeader {
	if len(body) < 4 {
		return &FullBoxHeader{}
	}
	return &FullBoxHeader{
		Version: body[0],
		Flags:   uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3]),
	}
}
