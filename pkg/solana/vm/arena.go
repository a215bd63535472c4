package vm

import (
	"github.com/pkg/errors"

	"github.com/code-payments/code-program-sdk/pkg/solana/binary"
)

// ErrArenaExhausted is returned when an allocation does not fit in the
// remaining heap.
var ErrArenaExhausted = errors.New("arena exhausted")

// Arena is a bump allocator over a single region. It is scoped to one
// program invocation; nothing it hands out outlives that invocation.
type Arena struct {
	region *Region
	used   int
}

// NewArena returns an Arena that allocates from region.
func NewArena(region *Region) *Arena {
	return &Arena{region: region}
}

// Region returns the backing region.
func (a *Arena) Region() *Region {
	return a.region
}

// Used returns the number of bytes allocated so far, including padding.
func (a *Arena) Used() int {
	return a.used
}

// Alloc reserves n zeroed bytes aligned to align within the region, returning
// their virtual address and backing bytes.
func (a *Arena) Alloc(n, align int) (uint64, []byte, error) {
	if n < 0 {
		return 0, nil, errors.Errorf("negative allocation: %d", n)
	}

	start := a.used + binary.AlignmentPadding(a.used, align)
	if start+n > len(a.region.Data) {
		return 0, nil, errors.Wrapf(ErrArenaExhausted, "alloc %d (align %d) with %d/%d used", n, align, a.used, len(a.region.Data))
	}

	b := a.region.Data[start : start+n : start+n]
	clear(b)
	a.used = start + n
	return a.region.AddrOf(start), b, nil
}

// Put copies v into the arena and returns its virtual address.
func (a *Arena) Put(v []byte) (uint64, error) {
	addr, b, err := a.Alloc(len(v), 1)
	if err != nil {
		return 0, err
	}
	copy(b, v)
	return addr, nil
}

// Mark returns the current allocation watermark.
func (a *Arena) Mark() int {
	return a.used
}

// Release frees every allocation made after mark.
func (a *Arena) Release(mark int) {
	if mark < 0 || mark > a.used {
		return
	}
	a.used = mark
}
