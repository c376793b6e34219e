package codec

// infoByte packs a struct's presence bits per spec §4.7: bits 0-4 =
// content-ref, bit 5 = parentSub present, bit 6 = rightOrigin present,
// bit 7 = origin present.
func infoByte(r StructRecord) byte {
	b := byte(r.Ref) & 0x1f
	if r.HasParentSub {
		b |= 1 << 5
	}
	if r.HasRightOrigin {
		b |= 1 << 6
	}
	if r.HasOrigin {
		b |= 1 << 7
	}
	return b
}

// hasParentColumn reports whether a struct carries parent/parentSub
// fields at all: every content-bearing struct does, GC and Skip
// placeholders never do (spec §4.7).
func hasParentColumn(ref ContentRef) bool {
	return ref != RefGC && ref != RefSkip
}

// EncodeUpdate serializes u into the version-tagged wire format (spec
// §4.7), writing the V1 (row-major, one struct's fields at a time)
// layout.
func EncodeUpdate(u *Update) []byte {
	w := NewWriter()
	w.WriteByte(versionV1)
	encodeUpdateV1Body(w, u)
	return w.Bytes()
}

// EncodeUpdateV2 serializes u into the version-tagged V2 wire format:
// the same logical fields as V1, but packed column-major — every
// struct's info byte, then every struct's origin (where present), then
// rightOrigin, then parent, then parentSub, then content, each as one
// contiguous run across the client block (spec §4.7 "V2 groups fields
// by column and packs runs").
func EncodeUpdateV2(u *Update) []byte {
	w := NewWriter()
	w.WriteByte(versionV2)
	encodeUpdateV2Body(w, u)
	return w.Bytes()
}

func encodeUpdateV1Body(w *Writer, u *Update) {
	w.WriteVarUint(uint64(len(u.Clients)))
	for _, block := range u.Clients {
		w.WriteVarUint(uint64(len(block.Structs)))
		w.WriteVarUint(uint64(block.Client))
		w.WriteVarUint(uint64(block.FirstClock))
		for _, r := range block.Structs {
			w.WriteByte(infoByte(r))
			if r.HasOrigin {
				writeID(w, r.Origin)
			}
			if r.HasRightOrigin {
				writeID(w, r.RightOrigin)
			}
			if r.HasParent {
				if r.Parent.IsRootName {
					w.WriteByte(1)
					w.WriteString(r.Parent.RootName)
				} else {
					w.WriteByte(0)
					writeID(w, r.Parent.ItemID)
				}
			}
			if r.HasParentSub {
				w.WriteString(r.ParentSub)
			}
			encodeContent(w, r)
		}
	}

	encodeDeleteSet(w, u)
}

func encodeUpdateV2Body(w *Writer, u *Update) {
	w.WriteVarUint(uint64(len(u.Clients)))
	for _, block := range u.Clients {
		w.WriteVarUint(uint64(len(block.Structs)))
		w.WriteVarUint(uint64(block.Client))
		w.WriteVarUint(uint64(block.FirstClock))

		for _, r := range block.Structs {
			w.WriteByte(infoByte(r))
		}
		for _, r := range block.Structs {
			if r.HasOrigin {
				writeID(w, r.Origin)
			}
		}
		for _, r := range block.Structs {
			if r.HasRightOrigin {
				writeID(w, r.RightOrigin)
			}
		}
		for _, r := range block.Structs {
			if !hasParentColumn(r.Ref) {
				continue
			}
			if r.Parent.IsRootName {
				w.WriteByte(1)
				w.WriteString(r.Parent.RootName)
			} else {
				w.WriteByte(0)
				writeID(w, r.Parent.ItemID)
			}
		}
		for _, r := range block.Structs {
			if !hasParentColumn(r.Ref) {
				continue
			}
			if r.HasParentSub {
				w.WriteString(r.ParentSub)
			}
		}
		for _, r := range block.Structs {
			encodeContent(w, r)
		}
	}

	encodeDeleteSet(w, u)
}

// encodeDeleteSet writes the delete-set section shared, byte-for-byte,
// by both wire versions (spec §4.7 "Both encode ... 2. DeleteSet
// section").
func encodeDeleteSet(w *Writer, u *Update) {
	w.WriteVarUint(uint64(len(u.DeleteSet)))
	for _, block := range u.DeleteSet {
		w.WriteVarUint(uint64(block.Client))
		w.WriteVarUint(uint64(len(block.Ranges)))
		for _, rng := range block.Ranges {
			w.WriteVarUint(uint64(rng.Clock))
			w.WriteVarUint(uint64(rng.Length))
		}
	}
}

func writeID(w *Writer, id ID) {
	w.WriteVarUint(uint64(id.Client))
	w.WriteVarUint(uint64(id.Clock))
}

func encodeContent(w *Writer, r StructRecord) {
	switch r.Ref {
	case RefGC, RefSkip:
		w.WriteVarUint(uint64(r.Length))
	case RefDeleted:
		w.WriteVarUint(uint64(r.DeletedLen))
	case RefAny, RefJSON:
		w.WriteVarUint(uint64(len(r.AnyValues)))
		for _, v := range r.AnyValues {
			encodeAny(w, v)
		}
	case RefString:
		w.WriteString(string(r.StringUnits))
	case RefBinary:
		w.WriteBytes(r.BinaryBytes)
	case RefEmbed:
		encodeAny(w, r.EmbedValue)
	case RefFormat:
		w.WriteString(r.FormatKey)
		encodeAny(w, r.FormatValue)
	case RefType:
		w.WriteByte(r.TypeKind)
	case RefDoc:
		// Sub-document content carries only its guid in the wire format;
		// the local host resolves/creates the matching sub-document from
		// that identifier (spec §5 "Sub-documents are independent
		// engines").
		w.WriteString(r.FormatKey)
	}
}

// encodeAny encodes a JSON-ish primitive using a one-byte type tag
// followed by its payload. This is a minimal, self-describing scheme
// sufficient for the Any/Embed/Format content variants (spec §3), not a
// general JSON codec.
func encodeAny(w *Writer, v any) {
	switch val := v.(type) {
	case nil:
		w.WriteByte(0)
	case bool:
		w.WriteByte(1)
		if val {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case float64:
		w.WriteByte(2)
		w.WriteVarInt(int64(val))
	case int:
		w.WriteByte(2)
		w.WriteVarInt(int64(val))
	case int64:
		w.WriteByte(2)
		w.WriteVarInt(val)
	case string:
		w.WriteByte(3)
		w.WriteString(val)
	default:
		// Unrecognized composite (map/slice): fall back to a tagged nil so
		// the stream stays self-consistent rather than panicking on an
		// application-level value this core codec doesn't need to
		// understand structurally (spec §1 scopes out schema validation).
		w.WriteByte(0)
	}
}
