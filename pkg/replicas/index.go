package replicas

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// allocFn allocates zeroed index buffers. The tracker's default is plain
// make; tests inject failures to drive the no-partial-state error paths.
type allocFn func(n int) ([]byte, error)

func defaultAlloc(n int) ([]byte, error) { return make([]byte, n), nil }

// index is a packed table of replica entries: nr slots of entrySize bytes
// each, every slot a packed entry zero-padded to the stride. Published
// indices are always in Eytzinger order and never mutated; mutation
// builds a replacement.
type index struct {
	nr        int
	entrySize int
	data      []byte
}

func newIndex(nr, entrySize int, alloc allocFn) (*index, error) {
	data, err := alloc(nr * entrySize)
	if err != nil {
		return nil, fmt.Errorf("%w: index of %d x %d bytes", ErrAllocFailed, nr, entrySize)
	}

	return &index{nr: nr, entrySize: entrySize, data: data}, nil
}

// at returns slot i as a raw stride-sized slice.
func (x *index) at(i int) []byte {
	return x.data[i*x.entrySize : (i+1)*x.entrySize]
}

// entryAt returns a typed view of slot i. The device slice aliases the
// index buffer; callers must not modify it.
func (x *index) entryAt(i int) Entry {
	e, _, ok := unpackEntry(x.at(i))
	if !ok {
		panic(fmt.Sprintf("replicas: corrupt index slot %d", i))
	}

	return e
}

// contains reports whether the index holds an entry equal to e. An entry
// wider than the stride cannot be present.
func (x *index) contains(e Entry) bool {
	if e.bytes() > x.entrySize {
		return false
	}

	probe := make([]byte, x.entrySize)
	e.packInto(probe)

	return eytzingerSearch(x.data, x.nr, x.entrySize, probe) < x.nr
}

// insertCopy returns a new index holding all of x's entries plus e,
// re-striding if e is wider than the current stride. x is unchanged.
func (x *index) insertCopy(e Entry, alloc allocFn) (*index, error) {
	stride := x.entrySize
	if n := e.bytes(); n > stride {
		stride = n
	}

	out, err := newIndex(x.nr+1, stride, alloc)
	if err != nil {
		return nil, err
	}

	for i := 0; i < x.nr; i++ {
		copy(out.at(i), x.at(i))
	}

	e.packInto(out.at(x.nr))

	if err := out.sort(alloc); err != nil {
		return nil, err
	}

	return out, nil
}

// filterCopy returns a new index holding x's entries whose kind bit is
// clear in mask. The stride is preserved.
func (x *index) filterCopy(mask KindMask, alloc allocFn) (*index, error) {
	out, err := newIndex(x.nr, x.entrySize, alloc)
	if err != nil {
		return nil, err
	}

	nr := 0

	for i := 0; i < x.nr; i++ {
		if !mask.Has(x.entryAt(i).Kind) {
			copy(out.at(nr), x.at(i))
			nr++
		}
	}

	out.nr = nr
	out.data = out.data[:nr*out.entrySize]

	if err := out.sort(alloc); err != nil {
		return nil, err
	}

	return out, nil
}

// sort rearranges the slots into Eytzinger order: flat lexicographic sort
// first, then the breadth-first permutation through a scratch buffer.
func (x *index) sort(alloc allocFn) error {
	if x.nr <= 1 {
		return nil
	}

	sort.Sort(&strideSlots{data: x.data, stride: x.entrySize, tmp: make([]byte, x.entrySize)})

	scratch, err := alloc(len(x.data))
	if err != nil {
		return fmt.Errorf("%w: sort scratch", ErrAllocFailed)
	}

	eytzingerize(scratch, x.data, x.nr, x.entrySize)
	copy(x.data, scratch)

	return nil
}

// flatSort sorts the slots lexicographically without the Eytzinger
// permutation. Used by validation, which scans for adjacent duplicates.
func (x *index) flatSort() {
	if x.nr <= 1 {
		return
	}

	sort.Sort(&strideSlots{data: x.data, stride: x.entrySize, tmp: make([]byte, x.entrySize)})
}

// strideSlots adapts a packed slot buffer to sort.Interface. Whole-stride
// byte comparison is the ordering; zero padding keeps it total.
type strideSlots struct {
	data   []byte
	stride int
	tmp    []byte
}

func (s *strideSlots) Len() int { return len(s.data) / s.stride }

func (s *strideSlots) Less(i, j int) bool {
	return bytes.Compare(s.slot(i), s.slot(j)) < 0
}

func (s *strideSlots) Swap(i, j int) {
	copy(s.tmp, s.slot(i))
	copy(s.slot(i), s.slot(j))
	copy(s.slot(j), s.tmp)
}

func (s *strideSlots) slot(i int) []byte {
	return s.data[i*s.stride : (i+1)*s.stride]
}

// inorder visits slots in ascending entry order: the in-order traversal
// of the Eytzinger tree.
func (x *index) inorder(visit func(i int)) {
	var walk func(i int)

	walk = func(i int) {
		if i >= x.nr {
			return
		}

		walk(2*i + 1)
		visit(i)
		walk(2*i + 2)
	}

	walk(0)
}

// String renders all entries, space separated, in ascending order.
func (x *index) String() string {
	var sb strings.Builder

	first := true

	x.inorder(func(i int) {
		if !first {
			sb.WriteByte(' ')
		}

		first = false
		sb.WriteString(x.entryAt(i).String())
	})

	return sb.String()
}
