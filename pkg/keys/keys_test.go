package keys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_CachedDevs_Returns_Only_Cached_Pointers(t *testing.T) {
	t.Parallel()

	k := Key{
		Kind: KindExtent,
		Ptrs: []Ptr{
			{Dev: 0},
			{Dev: 2, Cached: true},
			{Dev: 1},
			{Dev: 5, Cached: true},
		},
	}

	if diff := cmp.Diff([]uint8{2, 5}, k.CachedDevs()); diff != "" {
		t.Errorf("CachedDevs mismatch (-want +got):\n%s", diff)
	}

	if got := (Key{}).CachedDevs(); got != nil {
		t.Errorf("CachedDevs on empty key = %v, want nil", got)
	}
}

func Test_WalkPointers_Visits_In_Order_And_Honors_Early_Stop(t *testing.T) {
	t.Parallel()

	k := Key{
		Kind: KindBtreeNode,
		Ptrs: []Ptr{{Dev: 3}, {Dev: 1}, {Dev: 2}},
	}

	var seen []uint8

	k.WalkPointers(func(p Ptr) bool {
		seen = append(seen, p.Dev)

		return len(seen) < 2
	})

	if diff := cmp.Diff([]uint8{3, 1}, seen); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}
