package soc

import "sync"

// USB is the host controller's packet path to the secondary core. Each
// received USB-MIDI event packet raises that core's FIQ.
type USB struct {
	mu    sync.Mutex
	core  *Core
	queue [][4]byte
}

func NewUSB(core *Core) *USB {
	return &USB{core: core}
}

// Receive queues a packet as if it arrived from the device.
func (u *USB) Receive(packet [4]byte) {
	u.mu.Lock()
	u.queue = append(u.queue, packet)
	u.mu.Unlock()
	u.core.FIQ()
}

// Next pops the oldest queued packet.
func (u *USB) Next() ([4]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queue) == 0 {
		return [4]byte{}, false
	}
	p := u.queue[0]
	u.queue = u.queue[1:]
	return p, true
}

// Queued is the number of packets awaiting the FIQ handler.
func (u *USB) Queued() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queue)
}
