package codec

import "github.com/pkg/errors"

// parseInfo unpacks the bits infoByte wrote.
func parseInfo(b byte) (ref ContentRef, hasParentSub, hasRightOrigin, hasOrigin bool) {
	ref = ContentRef(b & 0x1f)
	hasParentSub = b&(1<<5) != 0
	hasRightOrigin = b&(1<<6) != 0
	hasOrigin = b&(1<<7) != 0
	return
}

// DecodeUpdate parses a version-tagged update: it reads the leading
// version byte EncodeUpdate/EncodeUpdateV2 write and dispatches to the
// matching body decoder, so callers never need to know in advance which
// wire version an update was produced with.
func DecodeUpdate(data []byte) (*Update, error) {
	r := NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch version {
	case versionV1:
		return decodeUpdateV1Body(r)
	case versionV2:
		return decodeUpdateV2Body(r)
	default:
		return nil, errors.Errorf("codec: unknown update wire version %d", version)
	}
}

func decodeUpdateV1Body(r *Reader) (*Update, error) {
	u := &Update{}

	numClients, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numClients; i++ {
		numStructs, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		client, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		firstClock, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		block := ClientBlock{Client: uint32(client), FirstClock: uint32(firstClock)}
		clock := uint32(firstClock)
		for j := uint64(0); j < numStructs; j++ {
			rec, err := decodeStructRecord(r, uint32(client), clock)
			if err != nil {
				return nil, err
			}
			block.Structs = append(block.Structs, rec)
			clock += uint32(recordLength(rec))
		}
		u.Clients = append(u.Clients, block)
	}

	if err := decodeDeleteSet(r, u); err != nil {
		return nil, err
	}
	return u, nil
}

// decodeUpdateV2Body parses the column-major layout encodeUpdateV2Body
// writes. Non-content columns are decoded first since origin/
// rightOrigin/parent reference OTHER structs' ids; the content column is
// decoded next since it only needs each record's own Ref; only once
// content is known can every record's clock be assigned, because a
// struct's clock depends on the content-derived length of the struct
// before it — something a columnar layout can't know until the content
// column itself has been fully read.
func decodeUpdateV2Body(r *Reader) (*Update, error) {
	u := &Update{}

	numClients, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numClients; i++ {
		numStructs, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		client, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		firstClock, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}

		recs := make([]StructRecord, numStructs)

		for j := range recs {
			infoB, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ref, hasParentSub, hasRightOrigin, hasOrigin := parseInfo(infoB)
			recs[j].Ref = ref
			recs[j].HasParentSub = hasParentSub
			recs[j].HasRightOrigin = hasRightOrigin
			recs[j].HasOrigin = hasOrigin
		}
		for j := range recs {
			if !recs[j].HasOrigin {
				continue
			}
			if recs[j].Origin, err = readID(r); err != nil {
				return nil, err
			}
		}
		for j := range recs {
			if !recs[j].HasRightOrigin {
				continue
			}
			if recs[j].RightOrigin, err = readID(r); err != nil {
				return nil, err
			}
		}
		for j := range recs {
			if !hasParentColumn(recs[j].Ref) {
				continue
			}
			recs[j].HasParent = true
			isRootTag, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if isRootTag == 1 {
				name, err := r.ReadString()
				if err != nil {
					return nil, err
				}
				recs[j].Parent = ParentInfo{IsRootName: true, RootName: name}
			} else {
				id, err := readID(r)
				if err != nil {
					return nil, err
				}
				recs[j].Parent = ParentInfo{ItemID: id}
			}
		}
		for j := range recs {
			if !hasParentColumn(recs[j].Ref) {
				recs[j].HasParentSub = false
				continue
			}
			if !recs[j].HasParentSub {
				continue
			}
			if recs[j].ParentSub, err = r.ReadString(); err != nil {
				return nil, err
			}
		}
		for j := range recs {
			if err := decodeContent(r, &recs[j]); err != nil {
				return nil, err
			}
		}

		clock := uint32(firstClock)
		for j := range recs {
			recs[j].ID = ID{Client: uint32(client), Clock: clock}
			clock += uint32(recordLength(recs[j]))
		}

		u.Clients = append(u.Clients, ClientBlock{
			Client:     uint32(client),
			FirstClock: uint32(firstClock),
			Structs:    recs,
		})
	}

	if err := decodeDeleteSet(r, u); err != nil {
		return nil, err
	}
	return u, nil
}

// decodeDeleteSet parses the delete-set section shared, byte-for-byte,
// by both wire versions.
func decodeDeleteSet(r *Reader, u *Update) error {
	numDS, err := r.ReadVarUint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < numDS; i++ {
		client, err := r.ReadVarUint()
		if err != nil {
			return err
		}
		numRanges, err := r.ReadVarUint()
		if err != nil {
			return err
		}
		dblock := DeleteClientBlock{Client: uint32(client)}
		for j := uint64(0); j < numRanges; j++ {
			clock, err := r.ReadVarUint()
			if err != nil {
				return err
			}
			length, err := r.ReadVarUint()
			if err != nil {
				return err
			}
			dblock.Ranges = append(dblock.Ranges, DeleteRange{Clock: uint32(clock), Length: uint32(length)})
		}
		u.DeleteSet = append(u.DeleteSet, dblock)
	}
	return nil
}

func decodeStructRecord(r *Reader, client uint32, clock uint32) (StructRecord, error) {
	infoB, err := r.ReadByte()
	if err != nil {
		return StructRecord{}, err
	}
	ref, hasParentSub, hasRightOrigin, hasOrigin := parseInfo(infoB)

	rec := StructRecord{ID: ID{Client: client, Clock: clock}, Ref: ref}

	if hasOrigin {
		rec.HasOrigin = true
		rec.Origin, err = readID(r)
		if err != nil {
			return rec, err
		}
	}
	if hasRightOrigin {
		rec.HasRightOrigin = true
		rec.RightOrigin, err = readID(r)
		if err != nil {
			return rec, err
		}
	}
	if ref != RefGC && ref != RefSkip {
		isRootTag, err := r.ReadByte()
		if err != nil {
			return rec, err
		}
		rec.HasParent = true
		if isRootTag == 1 {
			name, err := r.ReadString()
			if err != nil {
				return rec, err
			}
			rec.Parent = ParentInfo{IsRootName: true, RootName: name}
		} else {
			id, err := readID(r)
			if err != nil {
				return rec, err
			}
			rec.Parent = ParentInfo{ItemID: id}
		}
		if hasParentSub {
			rec.HasParentSub = true
			rec.ParentSub, err = r.ReadString()
			if err != nil {
				return rec, err
			}
		}
	}

	if err := decodeContent(r, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func readID(r *Reader) (ID, error) {
	client, err := r.ReadVarUint()
	if err != nil {
		return ID{}, err
	}
	clock, err := r.ReadVarUint()
	if err != nil {
		return ID{}, err
	}
	return ID{Client: uint32(client), Clock: uint32(clock)}, nil
}

func decodeContent(r *Reader, rec *StructRecord) error {
	switch rec.Ref {
	case RefGC, RefSkip:
		n, err := r.ReadVarUint()
		if err != nil {
			return err
		}
		rec.Length = int(n)
	case RefDeleted:
		n, err := r.ReadVarUint()
		if err != nil {
			return err
		}
		rec.DeletedLen = int(n)
	case RefAny, RefJSON:
		n, err := r.ReadVarUint()
		if err != nil {
			return err
		}
		rec.AnyValues = make([]any, n)
		for i := range rec.AnyValues {
			v, err := decodeAny(r)
			if err != nil {
				return err
			}
			rec.AnyValues[i] = v
		}
	case RefString:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		rec.StringUnits = []rune(s)
	case RefBinary:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		rec.BinaryBytes = append([]byte{}, b...)
	case RefEmbed:
		v, err := decodeAny(r)
		if err != nil {
			return err
		}
		rec.EmbedValue = v
	case RefFormat:
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		val, err := decodeAny(r)
		if err != nil {
			return err
		}
		rec.FormatKey = key
		rec.FormatValue = val
	case RefType:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		rec.TypeKind = b
	case RefDoc:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		rec.FormatKey = s
	}
	return nil
}

func decodeAny(r *Reader) (any, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case 2:
		v, err := r.ReadVarInt()
		if err != nil {
			return nil, err
		}
		return int(v), nil
	case 3:
		return r.ReadString()
	default:
		return nil, ErrShortBuffer
	}
}

// recordLength reports how many clock units a decoded record occupies,
// mirroring Content.Len() without needing the root package's Content
// types (spec §4.1's "struct length" notion applied at the wire layer).
func recordLength(r StructRecord) int {
	switch r.Ref {
	case RefGC, RefSkip:
		return r.Length
	case RefDeleted:
		return r.DeletedLen
	case RefAny, RefJSON:
		return len(r.AnyValues)
	case RefString:
		return len(r.StringUnits)
	default:
		return 1
	}
}

// RecordLength exports recordLength for callers outside this package
// (the root engine's remote-update path needs it to walk clocks).
func RecordLength(r StructRecord) int { return recordLength(r) }

// EncodeStateVector serializes a client -> clock map (spec §4.7 "State
// vector: client -> clock, varint-encoded pairs").
func EncodeStateVector(sv map[uint32]uint32) []byte {
	w := NewWriter()
	w.WriteVarUint(uint64(len(sv)))
	clients := make([]uint32, 0, len(sv))
	for c := range sv {
		clients = append(clients, c)
	}
	sortUint32s(clients)
	for _, c := range clients {
		w.WriteVarUint(uint64(c))
		w.WriteVarUint(uint64(sv[c]))
	}
	return w.Bytes()
}

// DecodeStateVector parses the format EncodeStateVector writes.
func DecodeStateVector(data []byte) (map[uint32]uint32, error) {
	r := NewReader(data)
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	sv := make(map[uint32]uint32, n)
	for i := uint64(0); i < n; i++ {
		client, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		clock, err := r.ReadVarUint()
		if err != nil {
			return nil, err
		}
		sv[uint32(client)] = uint32(clock)
	}
	return sv, nil
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
