package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Start addresses of the virtual memory regions a program sees.
//
// Reference: https://github.com/solana-labs/rbpf/blob/main/src/ebpf.rs
const (
	ProgramStart uint64 = 0x100000000
	StackStart   uint64 = 0x200000000
	HeapStart    uint64 = 0x300000000
	InputStart   uint64 = 0x400000000
)

// DefaultHeapSize is the heap a host maps for each program invocation.
const DefaultHeapSize = 32 * 1024

var (
	ErrAccessViolation = errors.New("access violation")
	ErrReadonlyRegion  = errors.New("write to readonly region")
)

// Region is a contiguous range of host memory mapped at a virtual address.
type Region struct {
	Addr     uint64
	Data     []byte
	Writable bool
}

// NewRegion returns a writable region of data mapped at addr.
func NewRegion(addr uint64, data []byte) *Region {
	return &Region{
		Addr:     addr,
		Data:     data,
		Writable: true,
	}
}

// Len returns the size of the region in bytes.
func (r *Region) Len() uint64 {
	return uint64(len(r.Data))
}

// End returns the first virtual address past the region.
func (r *Region) End() uint64 {
	return r.Addr + r.Len()
}

// Contains reports whether [addr, addr+n) lies inside the region.
func (r *Region) Contains(addr, n uint64) bool {
	if r == nil || addr < r.Addr {
		return false
	}
	offset := addr - r.Addr
	return offset <= r.Len() && n <= r.Len()-offset
}

// AddrOf returns the virtual address of the byte at offset.
func (r *Region) AddrOf(offset int) uint64 {
	return r.Addr + uint64(offset)
}

// Slice returns the bytes backing [addr, addr+n).
func (r *Region) Slice(addr, n uint64) ([]byte, error) {
	if !r.Contains(addr, n) {
		return nil, errors.Wrapf(ErrAccessViolation, "%#x+%d not in region %s", addr, n, r)
	}
	offset := addr - r.Addr
	return r.Data[offset : offset+n : offset+n], nil
}

func (r *Region) String() string {
	if r == nil {
		return "Region{nil}"
	}
	return fmt.Sprintf("Region{addr=%#x,len=%d,writable=%v}", r.Addr, len(r.Data), r.Writable)
}

// MemoryMap is the set of regions visible to one program invocation.
type MemoryMap struct {
	regions []*Region
}

// NewMemoryMap returns a MemoryMap over the provided regions. Regions must
// not overlap.
func NewMemoryMap(regions ...*Region) (*MemoryMap, error) {
	for i, a := range regions {
		for _, b := range regions[i+1:] {
			if a.Addr < b.End() && b.Addr < a.End() {
				return nil, errors.Errorf("overlapping regions: %s and %s", a, b)
			}
		}
	}
	return &MemoryMap{regions: regions}, nil
}

// Region returns the region mapped at start, if any.
func (m *MemoryMap) Region(start uint64) (*Region, bool) {
	for _, r := range m.regions {
		if r.Addr == start {
			return r, true
		}
	}
	return nil, false
}

// Find returns the region that contains [addr, addr+n).
func (m *MemoryMap) Find(addr, n uint64) (*Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr, n) {
			return r, true
		}
	}
	return nil, false
}

// Translate returns the host bytes backing [addr, addr+n). When write is set
// the containing region must be writable.
func (m *MemoryMap) Translate(addr, n uint64, write bool) ([]byte, error) {
	r, ok := m.Find(addr, n)
	if !ok {
		return nil, errors.Wrapf(ErrAccessViolation, "translate %#x+%d", addr, n)
	}
	if write && !r.Writable {
		return nil, errors.Wrapf(ErrReadonlyRegion, "translate %#x+%d", addr, n)
	}
	return r.Slice(addr, n)
}
