package mp4

// IlocExtent is one extent of an iloc item.
type IlocExtent struct {
	Index  uint64
	Offset uint64
	Length uint64
}

// IlocItem is one item location entry.
type IlocItem struct {
	ItemID             uint32
	ConstructionMethod uint8
	DataReferenceIndex uint16
	BaseOffset         uint64
	Extents            []IlocExtent
}

// Iloc is the item location box of a HEIF meta tree.
type Iloc struct {
	Version    uint8
	Flags      uint32
	OffsetSize uint8
	LengthSize uint8
	BaseOffsetSize uint8
	IndexSize  uint8
	Items      []IlocItem
}

func parseIloc(body []byte) *Iloc {
	r := newByteReader(body)
	l := &Iloc{}
	l.Version = r.u8()
	l.Flags = r.u24()
	b := r.u8()
	l.OffsetSize = b >> 4
	l.LengthSize = b & 0x0F
	b = r.u8()
	l.BaseOffsetSize = b >> 4
	l.IndexSize = b & 0x0F

	var itemCount uint32
	if l.Version < 2 {
		itemCount = uint32(r.u16())
	} else {
		itemCount = r.u32()
	}
	for i := uint32(0); i < itemCount && !r.short; i++ {
		var item IlocItem
		if l.Version < 2 {
			item.ItemID = uint32(r.u16())
		} else {
			item.ItemID = r.u32()
		}
		if l.Version == 1 || l.Version == 2 {
			item.ConstructionMethod = uint8(r.u16() & 0x0F)
		}
		item.DataReferenceIndex = r.u16()
		item.BaseOffset = r.uvar(int(l.BaseOffsetSize))
		extentCount := int(r.u16())
		for j := 0; j < extentCount && !r.short; j++ {
			var ext IlocExtent
			if (l.Version == 1 || l.Version == 2) && l.IndexSize > 0 {
				ext.Index = r.uvar(int(l.IndexSize))
			}
			ext.Offset = r.uvar(int(l.OffsetSize))
			ext.Length = r.uvar(int(l.LengthSize))
			if r.short {
				break
			}
			item.Extents = append(item.Extents, ext)
		}
		if r.short {
			break
		}
		l.Items = append(l.Items, item)
	}
	return l
}

// Infe is one item information entry.
type Infe struct {
	Version  uint8
	Flags    uint32
	ItemID   uint32
	ItemType string
	ItemName string
}

func parseInfe(body []byte) *Infe {
	r := newByteReader(body)
	e := &Infe{}
	e.Version = r.u8()
	e.Flags = r.u24()
	if e.Version >= 2 {
		if e.Version == 2 {
			e.ItemID = uint32(r.u16())
		} else {
			e.ItemID = r.u32()
		}
		r.skip(2) // item_protection_index
		e.ItemType = r.fourcc()
		if n := r.remaining(); n > 0 {
			name := r.bytes(n)
			for len(name) > 0 && name[len(name)-1] == 0 {
				name = name[:len(name)-1]
			}
			e.ItemName = string(name)
		}
	}
	return e
}

// Keys is the metadata key table (Apple Photos mdta namespace).
type Keys struct {
	Version uint8
	Flags   uint32
	Entries []string
}

func parseKeys(body []byte) *Keys {
	r := newByteReader(body)
	k := &Keys{}
	k.Version = r.u8()
	k.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		size := int(r.u32())
		r.skip(4) // namespace
		if size < 8 || size-8 > r.remaining() {
			break
		}
		k.Entries = append(k.Entries, string(r.bytes(size-8)))
	}
	return k
}

// DataAtom is the value carrier inside an ilst item.
type DataAtom struct {
	TypeIndicator uint32
	Locale        uint32
	Value         []byte
}

// String renders the value bytes as text; the type indicator is not
// consulted.
func (d *DataAtom) String() string {
	return string(d.Value)
}

func parseDataAtom(body []byte) *DataAtom {
	r := newByteReader(body)
	d := &DataAtom{}
	d.TypeIndicator = r.u32()
	d.Locale = r.u32()
	d.Value = r.bytes(r.remaining())
	return d
}

// MetaKeyValue pairs a keys entry with its ilst value.
type MetaKeyValue struct {
	Key   string
	Value string
}

// MetaKeyValues joins a meta box's keys table with its ilst children
// in index order. Items whose data atom is missing are skipped.
func MetaKeyValues(meta *Box) []MetaKeyValue {
	keysBox, ok := meta.Child("keys")
	if !ok {
		return nil
	}
	keys, ok := keysBox.Body.(*Keys)
	if !ok {
		return nil
	}
	ilst, ok := meta.Child("ilst")
	if !ok {
		return nil
	}
	var out []MetaKeyValue
	for i, item := range ilst.Children {
		if i >= len(keys.Entries) {
			break
		}
		dataBox, ok := item.Child("data")
		if !ok {
			continue
		}
		data, ok := dataBox.Body.(*DataAtom)
		if !ok || len(data.Value) == 0 {
			continue
		}
		out = append(out, MetaKeyValue{Key: keys.Entries[i], Value: data.String()})
	}
	return out
}
