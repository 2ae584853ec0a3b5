package replicas

import (
	"errors"
	"testing"
)

func emptyIndex(t *testing.T) *index {
	t.Helper()

	x, err := newIndex(0, 0, defaultAlloc)
	if err != nil {
		t.Fatalf("newIndex: %v", err)
	}

	return x
}

func mustInsert(t *testing.T, x *index, e Entry) *index {
	t.Helper()

	out, err := x.insertCopy(e, defaultAlloc)
	if err != nil {
		t.Fatalf("insertCopy(%v): %v", e, err)
	}

	return out
}

func Test_Index_Contains_Reports_False_When_Index_Empty(t *testing.T) {
	t.Parallel()

	x := emptyIndex(t)

	if x.contains(NewEntry(KindUser, []uint8{0})) {
		t.Fatal("empty index claims to contain an entry")
	}
}

func Test_Index_InsertCopy_Grows_Stride_From_Zero_To_Entry_Size(t *testing.T) {
	t.Parallel()

	e := NewEntry(KindUser, []uint8{1, 2})

	x := mustInsert(t, emptyIndex(t), e)

	if x.entrySize != e.bytes() {
		t.Fatalf("entrySize = %d, want %d", x.entrySize, e.bytes())
	}

	if x.nr != 1 {
		t.Fatalf("nr = %d, want 1", x.nr)
	}

	if !x.contains(e) {
		t.Fatal("inserted entry not found")
	}
}

func Test_Index_InsertCopy_Leaves_Original_Unchanged(t *testing.T) {
	t.Parallel()

	a := NewEntry(KindUser, []uint8{0})
	b := NewEntry(KindUser, []uint8{1})

	x := mustInsert(t, emptyIndex(t), a)
	y := mustInsert(t, x, b)

	if x.nr != 1 || x.contains(b) {
		t.Fatal("insertCopy mutated the source index")
	}

	if y.nr != 2 || !y.contains(a) || !y.contains(b) {
		t.Fatal("new index missing entries")
	}
}

func Test_Index_InsertCopy_Restrides_Existing_Entries_When_New_Entry_Is_Wider(t *testing.T) {
	t.Parallel()

	narrow := []Entry{
		NewEntry(KindJournal, []uint8{0}),
		NewEntry(KindBtree, []uint8{1}),
		NewEntry(KindUser, []uint8{2}),
	}

	x := emptyIndex(t)
	for _, e := range narrow {
		x = mustInsert(t, x, e)
	}

	wide := NewEntry(KindUser, []uint8{0, 1, 2, 3, 4})

	x = mustInsert(t, x, wide)

	if x.entrySize != wide.bytes() {
		t.Fatalf("entrySize = %d, want %d", x.entrySize, wide.bytes())
	}

	// Every previously inserted combination must still hit.
	for _, e := range narrow {
		if !x.contains(e) {
			t.Errorf("lost entry %v after restride", e)
		}
	}

	if !x.contains(wide) {
		t.Error("wide entry not found")
	}
}

func Test_Index_Contains_Rejects_Probe_Wider_Than_Stride(t *testing.T) {
	t.Parallel()

	x := mustInsert(t, emptyIndex(t), NewEntry(KindUser, []uint8{0}))

	if x.contains(NewEntry(KindUser, []uint8{0, 1, 2})) {
		t.Fatal("probe wider than stride cannot match")
	}
}

func Test_Index_FilterCopy_Drops_Masked_Kinds(t *testing.T) {
	t.Parallel()

	x := emptyIndex(t)
	for _, e := range []Entry{
		NewEntry(KindJournal, []uint8{0}),
		NewEntry(KindBtree, []uint8{0, 1}),
		NewEntry(KindBtree, []uint8{0, 2}),
		NewEntry(KindUser, []uint8{1}),
	} {
		x = mustInsert(t, x, e)
	}

	got, err := x.filterCopy(MaskOf(KindBtree), defaultAlloc)
	if err != nil {
		t.Fatalf("filterCopy: %v", err)
	}

	if got.nr != 2 {
		t.Fatalf("nr = %d, want 2", got.nr)
	}

	if got.contains(NewEntry(KindBtree, []uint8{0, 1})) ||
		got.contains(NewEntry(KindBtree, []uint8{0, 2})) {
		t.Error("masked kind survived filterCopy")
	}

	if !got.contains(NewEntry(KindJournal, []uint8{0})) ||
		!got.contains(NewEntry(KindUser, []uint8{1})) {
		t.Error("unmasked entries dropped by filterCopy")
	}
}

func Test_Index_InsertCopy_Returns_ErrAllocFailed_When_Allocator_Fails(t *testing.T) {
	t.Parallel()

	failing := func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}

	x := mustInsert(t, emptyIndex(t), NewEntry(KindUser, []uint8{0}))

	_, err := x.insertCopy(NewEntry(KindUser, []uint8{1}), failing)
	if !errors.Is(err, ErrAllocFailed) {
		t.Fatalf("err = %v, want ErrAllocFailed", err)
	}
}

func Test_Index_String_Renders_Entries_In_Ascending_Order(t *testing.T) {
	t.Parallel()

	x := emptyIndex(t)
	x = mustInsert(t, x, NewEntry(KindUser, []uint8{2}))
	x = mustInsert(t, x, NewEntry(KindBtree, []uint8{2}))

	if got, want := x.String(), "btree: [2] user: [2]"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
