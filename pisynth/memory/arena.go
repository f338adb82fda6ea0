package memory

import "fmt"

// Arena hands out fixed regions of RAM. Allocations live forever.
type Arena struct {
	ram  *RAM
	next uint32
}

// NewArena creates an allocator over the whole of ram.
func NewArena(ram *RAM) *Arena {
	return &Arena{ram: ram, next: ram.Base()}
}

// Alloc reserves size bytes aligned to align (a power of two) and returns
// the ARM physical address of the region.
func (a *Arena) Alloc(size, align int) (uint32, error) {
	if align <= 0 || align&(align-1) != 0 {
		return 0, fmt.Errorf("alignment %d is not a power of two", align)
	}
	start := (a.next + uint32(align) - 1) &^ (uint32(align) - 1)
	end := uint64(start) + uint64(size)
	if end > uint64(a.ram.Base())+uint64(a.ram.Size()) {
		return 0, fmt.Errorf("arena exhausted: %d bytes requested, %d free", size, a.Free())
	}
	a.next = uint32(end)
	return start, nil
}

// Free returns the number of bytes not yet allocated.
func (a *Arena) Free() int {
	return int(a.ram.Base()) + a.ram.Size() - int(a.next)
}
