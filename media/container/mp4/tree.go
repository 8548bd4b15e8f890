package mp4

// Traks returns every trak box under moov, in on-disk order. Both the
// trak-list and single-trak forms reduce to the same slice.
func (t *Tree) Traks() []*Box {
	moov, ok := t.Child("moov")
	if !ok {
		return nil
	}
	return moov.ChildAll("trak")
}

// TrakHandler returns the handler type of a trak, or "".
func TrakHandler(trak *Box) string {
	hdlrBox, ok := trak.Path("mdia", "hdlr")
	if !ok {
		return ""
	}
	hdlr, ok := hdlrBox.Body.(*Hdlr)
	if !ok {
		return ""
	}
	return hdlr.HandlerType
}

// FirstVideoTrak returns the first trak whose handler is vide.
func (t *Tree) FirstVideoTrak() (*Box, bool) {
	for _, trak := range t.Traks() {
		if TrakHandler(trak) == HandlerVideo {
			return trak, true
		}
	}
	return nil, false
}

// TrakStbl returns a trak's sample table box.
func TrakStbl(trak *Box) (*Box, bool) {
	return trak.Path("mdia", "minf", "stbl")
}

// stblBody fetches a typed leaf body from a sample table.
func stblBody[T any](trak *Box, typ string) (T, bool) {
	var zero T
	stbl, ok := TrakStbl(trak)
	if !ok {
		return zero, false
	}
	box, ok := stbl.Child(typ)
	if !ok {
		return zero, false
	}
	body, ok := box.Body.(T)
	return body, ok
}

// TrakStts returns the trak's decoding time-to-sample table.
func TrakStts(trak *Box) (*Stts, bool) { return stblBody[*Stts](trak, "stts") }

// TrakCtts returns the trak's composition offset table.
func TrakCtts(trak *Box) (*Ctts, bool) { return stblBody[*Ctts](trak, "ctts") }

// TrakStsd returns the trak's sample description table.
func TrakStsd(trak *Box) (*Stsd, bool) { return stblBody[*Stsd](trak, "stsd") }

// TrakStsz returns the trak's sample size table.
func TrakStsz(trak *Box) (*Stsz, bool) { return stblBody[*Stsz](trak, "stsz") }

// TrakStsc returns the trak's sample-to-chunk table.
func TrakStsc(trak *Box) (*Stsc, bool) { return stblBody[*Stsc](trak, "stsc") }

// TrakStco returns the trak's chunk offsets (stco or co64).
func TrakStco(trak *Box) (*Stco, bool) {
	if s, ok := stblBody[*Stco](trak, "stco"); ok {
		return s, true
	}
	return stblBody[*Stco](trak, "co64")
}

// TrakElst returns the trak's edit list.
func TrakElst(trak *Box) (*Elst, bool) {
	elstBox, ok := trak.Path("edts", "elst")
	if !ok {
		return nil, false
	}
	elst, ok := elstBox.Body.(*Elst)
	return elst, ok
}

// TrakTkhd returns the trak's header.
func TrakTkhd(trak *Box) (*Tkhd, bool) {
	tkhdBox, ok := trak.Child("tkhd")
	if !ok {
		return nil, false
	}
	tkhd, ok := tkhdBox.Body.(*Tkhd)
	return tkhd, ok
}

// MdatTotal sums the payload lengths of every mdat box.
func (t *Tree) MdatTotal() int64 {
	var total int64
	for _, b := range t.ChildAll("mdat") {
		if m, ok := b.Body.(*Mdat); ok {
			total += m.Length
		}
	}
	return total
}

// SampleTableConsistent checks that the sample sizes mapped through the
// chunk table stay within the cumulative mdat payload. A tolerance of
// zero demands exact containment; interleaved tracks share mdat, so
// the check is one-sided.
func (t *Tree) SampleTableConsistent(trak *Box) bool {
	stsz, ok := TrakStsz(trak)
	if !ok {
		return true
	}
	stsc, ok := TrakStsc(trak)
	if !ok || len(stsc.Entries) == 0 {
		return true
	}
	stco, ok := TrakStco(trak)
	if !ok {
		return true
	}
	// The stsc runs must cover at least the stsz sample count.
	var mapped uint64
	chunkCount := uint32(len(stco.Offsets))
	for i, e := range stsc.Entries {
		endChunk := chunkCount + 1
		if i+1 < len(stsc.Entries) {
			endChunk = stsc.Entries[i+1].FirstChunk
		}
		if endChunk < e.FirstChunk {
			return false
		}
		mapped += uint64(endChunk-e.FirstChunk) * uint64(e.SamplesPerChunk)
	}
	if mapped < uint64(stsz.Count()) {
		return false
	}
	return stsz.TotalSize() <= uint64(t.MdatTotal())
}
