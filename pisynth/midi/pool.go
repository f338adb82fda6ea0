package midi

import (
	"sync"

	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

// Handle refers to a held pool slot. The zero Handle is never issued.
type Handle uint32

// Pool is a fixed set of packet buffers handed out first-in first-out.
type Pool struct {
	mu    sync.Mutex
	slots []msg.MIDIPacket
	held  []bool
	free  []int
}

func NewPool(size int) *Pool {
	p := &Pool{
		slots: make([]msg.MIDIPacket, size),
		held:  make([]bool, size),
		free:  make([]int, 0, size),
	}
	for i := 0; i < size; i++ {
		p.free = append(p.free, i)
	}
	return p
}

// Alloc takes the oldest free slot. ok is false when the pool is exhausted.
func (p *Pool) Alloc() (h Handle, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return 0, false
	}
	i := p.free[0]
	p.free = p.free[1:]
	p.held[i] = true
	return Handle(i + 1), true
}

func (p *Pool) index(h Handle) int {
	i := int(h) - 1
	fault.Assert(i >= 0 && i < len(p.slots), "handle %d does not belong to the pool", h)
	return i
}

// Free returns a held slot. Freeing a slot that is not held is a fault.
func (p *Pool) Free(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.index(h)
	fault.Assert(p.held[i], "handle %d freed twice", h)
	p.held[i] = false
	p.free = append(p.free, i)
}

// Packet returns the buffer of a held slot.
func (p *Pool) Packet(h Handle) *msg.MIDIPacket {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.index(h)
	fault.Assert(p.held[i], "handle %d is not held", h)
	return &p.slots[i]
}

// Available is the number of free slots.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
