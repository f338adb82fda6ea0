// Package midi hands USB-MIDI packets from the secondary core to the main
// core's tasks.
//
// The secondary core owns the cross-core sync buffer while the bridge's IPI
// signal is clear. It fills the buffer and raises the signal; the main
// core's IPI handler copies the buffer into a pool slot, delivers the slot as
// an event and returns, which clears the signal and hands the buffer back.
package midi

import (
	"log/slog"
	"sync/atomic"

	"github.com/valerio/go-pisynth/pisynth/fault"
	"github.com/valerio/go-pisynth/pisynth/irq"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/memory"
	"github.com/valerio/go-pisynth/pisynth/msg"
)

// Signal is the IPI signal carrying the sync buffer handoff.
const Signal = 0

// SyncBufferSize is the RAM needed for the sync buffer: a length word then
// the payload.
const SyncBufferSize = 4 + msg.MaxPacket

// Bridge owns the sync buffer and the packet pool.
type Bridge struct {
	k       *kernel.Kernel
	mailbox *irq.Mailbox
	pool    *Pool
	bus     memory.Bus
	buf     uint32
	spin    Spinner

	received   atomic.Uint64
	overwrites atomic.Uint64
}

// NewBridge creates a bridge whose sync buffer lives at buf on bus. mailbox
// must be the main core's.
func NewBridge(k *kernel.Kernel, mailbox *irq.Mailbox, pool *Pool, bus memory.Bus, buf uint32, spin Spinner) *Bridge {
	return &Bridge{k: k, mailbox: mailbox, pool: pool, bus: bus, buf: buf, spin: spin}
}

// Init registers the main core's IPI handler and the ack handler that
// returns slots to the pool.
func (b *Bridge) Init() {
	b.k.RegisterAckHandler(kernel.EventMIDIPacket, b.release)
	b.mailbox.Register(Signal, b.handleIPI)
}

// HandlePacket runs on the secondary core for every packet the USB host
// controller receives.
func (b *Bridge) HandlePacket(cable int, data []byte) {
	fault.Assert(len(data) <= msg.MaxPacket, "USB packet of %d bytes exceeds %d", len(data), msg.MaxPacket)

	free := b.spin.Until(func() bool { return b.halted() || !b.mailbox.Pending(Signal) })
	if b.halted() {
		return
	}
	if !free {
		n := b.overwrites.Add(1)
		slog.Warn("MIDI packet overwrites an unconsumed one", "cable", cable, "overwrites", n)
	}

	b.bus.Write32(b.buf, uint32(len(data)))
	for off := 0; off < len(data); off += 4 {
		var word uint32
		for i := 0; i < 4 && off+i < len(data); i++ {
			word |= uint32(data[off+i]) << (8 * i)
		}
		b.bus.Write32(b.buf+4+uint32(off), word)
	}
	memory.Barrier()

	b.received.Add(1)
	slog.Debug("MIDI packet handed over", "cable", cable, "len", len(data))
	b.mailbox.Deliver(Signal)
}

func (b *Bridge) halted() bool {
	select {
	case <-b.k.Halted():
		return true
	default:
		return false
	}
}

func (b *Bridge) handleIPI() {
	h, ok := b.pool.Alloc()
	fault.Assert(ok, "MIDI packet pool exhausted")

	pkt := b.pool.Packet(h)
	n := int(b.bus.Read32(b.buf))
	fault.Assert(n <= msg.MaxPacket, "sync buffer length %d exceeds %d", n, msg.MaxPacket)
	pkt.Len = n
	for off := 0; off < n; off += 4 {
		word := b.bus.Read32(b.buf + 4 + uint32(off))
		for i := 0; i < 4 && off+i < n; i++ {
			pkt.Data[off+i] = byte(word >> (8 * i))
		}
	}

	b.k.Deliver(kernel.EventMIDIPacket, uint32(h))
	memory.Barrier()
}

func (b *Bridge) release(data uint32) {
	b.pool.Free(Handle(data))
}

// Packet returns a copy of the packet held under h.
func (b *Bridge) Packet(h uint32) msg.MIDIPacket {
	return *b.pool.Packet(Handle(h))
}

// Stats are the bridge counters shown by the UI.
type Stats struct {
	Received   uint64
	Overwrites uint64
	PoolFree   int
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Received:   b.received.Load(),
		Overwrites: b.overwrites.Load(),
		PoolFree:   b.pool.Available(),
	}
}
