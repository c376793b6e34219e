package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeUpdate_Roundtrip(t *testing.T) {
	u := &Update{
		Clients: []ClientBlock{
			{
				Client:     1,
				FirstClock: 0,
				Structs: []StructRecord{
					{
						ID:          ID{Client: 1, Clock: 0},
						Ref:         RefAny,
						HasOrigin:   false,
						HasParent:   true,
						Parent:      ParentInfo{IsRootName: true, RootName: "doc"},
						AnyValues:   []any{int64(1), int64(2)},
					},
					{
						ID:         ID{Client: 1, Clock: 2},
						Ref:        RefString,
						HasOrigin:  true,
						Origin:     ID{Client: 1, Clock: 1},
						HasParent:  true,
						Parent:     ParentInfo{IsRootName: true, RootName: "doc"},
						StringUnits: []rune("hi"),
					},
				},
			},
		},
		DeleteSet: []DeleteClientBlock{
			{Client: 1, Ranges: []DeleteRange{{Clock: 0, Length: 1}}},
		},
	}

	data := EncodeUpdate(u)
	got, err := DecodeUpdate(data)
	require.NoError(t, err)

	require.Len(t, got.Clients, 1)
	require.Equal(t, uint32(1), got.Clients[0].Client)
	require.Len(t, got.Clients[0].Structs, 2)

	second := got.Clients[0].Structs[1]
	require.Equal(t, RefString, second.Ref)
	require.Equal(t, "hi", string(second.StringUnits))
	require.True(t, second.HasOrigin)
	require.Equal(t, ID{Client: 1, Clock: 1}, second.Origin)

	require.Len(t, got.DeleteSet, 1)
	require.Equal(t, uint32(1), got.DeleteSet[0].Ranges[0].Length)
}

func TestEncodeDecodeUpdateV2_Roundtrip(t *testing.T) {
	u := &Update{
		Clients: []ClientBlock{
			{
				Client:     1,
				FirstClock: 0,
				Structs: []StructRecord{
					{
						ID:        ID{Client: 1, Clock: 0},
						Ref:       RefAny,
						HasOrigin: false,
						HasParent: true,
						Parent:    ParentInfo{IsRootName: true, RootName: "doc"},
						AnyValues: []any{int64(1), int64(2)},
					},
					{
						ID:          ID{Client: 1, Clock: 2},
						Ref:         RefString,
						HasOrigin:   true,
						Origin:      ID{Client: 1, Clock: 1},
						HasParent:   true,
						Parent:      ParentInfo{IsRootName: true, RootName: "doc"},
						StringUnits: []rune("hi"),
					},
					{
						ID:  ID{Client: 1, Clock: 4},
						Ref: RefGC,
					},
				},
			},
		},
		DeleteSet: []DeleteClientBlock{
			{Client: 1, Ranges: []DeleteRange{{Clock: 0, Length: 1}}},
		},
	}

	data := EncodeUpdateV2(u)
	require.Equal(t, byte(2), data[0], "V2 stream must start with the version-2 tag")

	got, err := DecodeUpdate(data)
	require.NoError(t, err)

	require.Len(t, got.Clients, 1)
	require.Len(t, got.Clients[0].Structs, 3)

	first := got.Clients[0].Structs[0]
	require.Equal(t, RefAny, first.Ref)
	require.Equal(t, ID{Client: 1, Clock: 0}, first.ID)

	second := got.Clients[0].Structs[1]
	require.Equal(t, RefString, second.Ref)
	require.Equal(t, "hi", string(second.StringUnits))
	require.True(t, second.HasOrigin)
	require.Equal(t, ID{Client: 1, Clock: 1}, second.Origin)
	require.Equal(t, ID{Client: 1, Clock: 2}, second.ID)

	third := got.Clients[0].Structs[2]
	require.Equal(t, RefGC, third.Ref)
	require.False(t, third.HasParent)
	require.Equal(t, ID{Client: 1, Clock: 4}, third.ID)

	require.Len(t, got.DeleteSet, 1)
	require.Equal(t, uint32(1), got.DeleteSet[0].Ranges[0].Length)
}

func TestStateVector_Roundtrip(t *testing.T) {
	sv := map[uint32]uint32{1: 5, 2: 0, 7: 42}
	data := EncodeStateVector(sv)
	got, err := DecodeStateVector(data)
	require.NoError(t, err)
	require.Len(t, got, len(sv))
	for k, v := range sv {
		require.Equal(t, v, got[k], "state vector entry %d", k)
	}
}

func TestRecordLength(t *testing.T) {
	cases := []struct {
		name string
		rec  StructRecord
		want int
	}{
		{"gc", StructRecord{Ref: RefGC, Length: 5}, 5},
		{"skip", StructRecord{Ref: RefSkip, Length: 3}, 3},
		{"deleted", StructRecord{Ref: RefDeleted, DeletedLen: 7}, 7},
		{"any", StructRecord{Ref: RefAny, AnyValues: []any{1, 2, 3}}, 3},
		{"string", StructRecord{Ref: RefString, StringUnits: []rune("abcd")}, 4},
		{"binary", StructRecord{Ref: RefBinary, BinaryBytes: []byte{1}}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := RecordLength(c.rec); got != c.want {
				t.Fatalf("RecordLength(%s) = %d, want %d", c.name, got, c.want)
			}
		})
	}
}
