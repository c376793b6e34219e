package codec

// ContentRef mirrors ydoc.ContentKind's wire values (spec §4.7's
// "stable identifiers" table). Duplicated here, rather than imported,
// because this package must not depend on the root ydoc package.
type ContentRef byte

const (
	RefGC      ContentRef = 0
	RefDeleted ContentRef = 1
	RefJSON    ContentRef = 2
	RefBinary  ContentRef = 3
	RefString  ContentRef = 4
	RefEmbed   ContentRef = 5
	RefFormat  ContentRef = 6
	RefType    ContentRef = 7
	RefAny     ContentRef = 8
	RefDoc     ContentRef = 9
	RefSkip    ContentRef = 10
)

// ID is the wire (client, clock) pair.
type ID struct {
	Client uint32
	Clock  uint32
}

// ParentInfo is "1" = root name string, "0" = parent id (spec §4.7).
type ParentInfo struct {
	IsRootName bool
	RootName   string
	ItemID     ID
}

// StructRecord is one decoded struct entry: an Item, a GC marker, or a
// Skip placeholder, with every field the wire format can carry.
// Consumers switch on Ref to know which fields are meaningful.
type StructRecord struct {
	ID     ID
	Length int
	Ref    ContentRef

	HasOrigin      bool
	Origin         ID
	HasRightOrigin bool
	RightOrigin    ID
	HasParentSub   bool
	ParentSub      string
	HasParent      bool
	Parent         ParentInfo

	// Content payload, populated according to Ref.
	AnyValues    []any
	StringUnits  []rune
	BinaryBytes  []byte
	EmbedValue   any
	FormatKey    string
	FormatValue  any
	TypeKind     byte // concrete container kind tag for nested Type content
	DeletedLen   int
}

// ClientBlock groups every struct decoded for one client, in ascending
// clock order, alongside the first clock the block covers (spec §4.7
// "numberOfStructs... firstClock").
type ClientBlock struct {
	Client     uint32
	FirstClock uint32
	Structs    []StructRecord
}

// DeleteRange is a decoded (clock, length) run for one client.
type DeleteRange struct {
	Clock  uint32
	Length uint32
}

// DeleteClientBlock groups the delete ranges for one client.
type DeleteClientBlock struct {
	Client uint32
	Ranges []DeleteRange
}

// Update is the fully decoded wire payload: the struct section plus the
// delete-set section (spec §4.7 "Both encode: 1. Struct section... 2.
// DeleteSet section").
type Update struct {
	Clients    []ClientBlock
	DeleteSet  []DeleteClientBlock
}
