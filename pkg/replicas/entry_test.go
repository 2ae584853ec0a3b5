package replicas

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/cowfs/pkg/keys"
)

func Test_NewEntry_Sorts_Devices_When_Given_Unordered_List(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		devs []uint8
		want []uint8
	}{
		{name: "already sorted", devs: []uint8{0, 1, 2}, want: []uint8{0, 1, 2}},
		{name: "reversed", devs: []uint8{5, 3, 1}, want: []uint8{1, 3, 5}},
		{name: "single", devs: []uint8{7}, want: []uint8{7}},
		{name: "interleaved", devs: []uint8{2, 0, 4, 1}, want: []uint8{0, 1, 2, 4}},
		{name: "empty", devs: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewEntry(KindUser, tt.devs)
			if diff := cmp.Diff(tt.want, e.Devs); diff != "" {
				t.Errorf("devs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_NewEntry_Does_Not_Alias_Caller_Slice(t *testing.T) {
	t.Parallel()

	devs := []uint8{3, 1}
	e := NewEntry(KindUser, devs)

	devs[0] = 9

	if e.Devs[0] != 1 || e.Devs[1] != 3 {
		t.Fatalf("entry devs mutated through caller slice: %v", e.Devs)
	}
}

func Test_NewEntry_Panics_When_Given_Superblock_Kind(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for superblock kind")
		}
	}()

	NewEntry(KindSB, []uint8{0})
}

func Test_NewEntry_Panics_When_Given_Out_Of_Range_Kind(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range kind")
		}
	}()

	NewEntry(KindCount, []uint8{0})
}

func Test_NewEntry_Panics_When_Device_Count_Reaches_MaxReplicas(t *testing.T) {
	t.Parallel()

	devs := make([]uint8, MaxReplicas)
	for i := range devs {
		devs[i] = uint8(i)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for MaxReplicas devices")
		}
	}()

	NewEntry(KindUser, devs)
}

func Test_NewEntry_Accepts_MaxReplicas_Minus_One_Devices(t *testing.T) {
	t.Parallel()

	devs := make([]uint8, MaxReplicas-1)
	for i := range devs {
		devs[i] = uint8(i)
	}

	e := NewEntry(KindUser, devs)
	if len(e.Devs) != MaxReplicas-1 {
		t.Fatalf("got %d devs, want %d", len(e.Devs), MaxReplicas-1)
	}
}

func Test_Entry_Bytes_Counts_Header_Plus_Devices(t *testing.T) {
	t.Parallel()

	if got := NewEntry(KindBtree, []uint8{0, 1, 2}).bytes(); got != 5 {
		t.Fatalf("bytes() = %d, want 5", got)
	}

	if got := (Entry{}).bytes(); got != 2 {
		t.Fatalf("empty bytes() = %d, want 2", got)
	}
}

func Test_Entry_PackInto_Roundtrips_Through_UnpackEntry(t *testing.T) {
	t.Parallel()

	e := NewEntry(KindUser, []uint8{4, 2, 9})

	buf := make([]byte, 16)
	e.packInto(buf)

	got, size, ok := unpackEntry(buf)
	if !ok {
		t.Fatal("unpackEntry failed")
	}

	if size != e.bytes() {
		t.Errorf("size = %d, want %d", size, e.bytes())
	}

	if got.Kind != KindUser {
		t.Errorf("kind = %v, want %v", got.Kind, KindUser)
	}

	if diff := cmp.Diff([]uint8{2, 4, 9}, got.Devs); diff != "" {
		t.Errorf("devs mismatch (-want +got):\n%s", diff)
	}
}

func Test_UnpackEntry_Reports_Not_OK_When_Buffer_Truncated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "empty", buf: nil},
		{name: "header only half", buf: []byte{2}},
		{name: "devs missing", buf: []byte{2, 3, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, _, ok := unpackEntry(tt.buf); ok {
				t.Fatal("expected not ok")
			}
		})
	}
}

func Test_Entry_String_Renders_Kind_And_Devices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entry Entry
		want  string
	}{
		{entry: NewEntry(KindUser, []uint8{2, 0}), want: "user: [0 2]"},
		{entry: NewEntry(KindJournal, []uint8{1}), want: "journal: [1]"},
		{entry: NewEntry(KindBtree, nil), want: "btree: []"},
	}

	for _, tt := range tests {
		if got := tt.entry.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func Test_KeyEntry_Skips_Cached_Pointers(t *testing.T) {
	t.Parallel()

	k := keys.Key{
		Kind: keys.KindExtent,
		Ptrs: []keys.Ptr{
			{Dev: 3},
			{Dev: 1, Cached: true},
			{Dev: 0},
		},
	}

	e := KeyEntry(k)

	if e.Kind != KindUser {
		t.Errorf("kind = %v, want %v", e.Kind, KindUser)
	}

	if diff := cmp.Diff([]uint8{0, 3}, e.Devs); diff != "" {
		t.Errorf("devs mismatch (-want +got):\n%s", diff)
	}
}

func Test_KeyEntry_Maps_Btree_Keys_To_Btree_Kind(t *testing.T) {
	t.Parallel()

	k := keys.Key{
		Kind: keys.KindBtreeNode,
		Ptrs: []keys.Ptr{{Dev: 2}, {Dev: 1}},
	}

	e := KeyEntry(k)

	if e.Kind != KindBtree {
		t.Errorf("kind = %v, want %v", e.Kind, KindBtree)
	}

	if diff := cmp.Diff([]uint8{1, 2}, e.Devs); diff != "" {
		t.Errorf("devs mismatch (-want +got):\n%s", diff)
	}
}

func Test_KeyEntry_Returns_Zero_Devices_When_Key_Has_Only_Cached_Pointers(t *testing.T) {
	t.Parallel()

	k := keys.Key{
		Kind: keys.KindExtent,
		Ptrs: []keys.Ptr{{Dev: 1, Cached: true}},
	}

	if e := KeyEntry(k); len(e.Devs) != 0 {
		t.Fatalf("got %d devs, want 0", len(e.Devs))
	}
}

func Test_MaskOf_Sets_Exactly_The_Given_Kinds(t *testing.T) {
	t.Parallel()

	m := MaskOf(KindBtree, KindCached)

	for k := DataKind(0); k < KindCount; k++ {
		want := k == KindBtree || k == KindCached
		if got := m.Has(k); got != want {
			t.Errorf("Has(%v) = %v, want %v", k, got, want)
		}
	}
}
