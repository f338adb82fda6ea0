package kernel

import (
	"github.com/valerio/go-pisynth/pisynth/fault"
)

func (k *Kernel) event(id EventID) *event {
	fault.Assert(id >= 0 && id < eventCount, "unknown event %d", id)
	return &k.events[id]
}

// Deliver queues data for the next AwaitEvent on id. It never blocks, so
// it is safe from interrupt context; overflowing the ring is a fault.
func (k *Kernel) Deliver(id EventID, data uint32) {
	ev := k.event(id)

	k.mu.Lock()
	full := len(ev.ring) >= EventRing
	if !full {
		ev.ring = append(ev.ring, data)
		ev.delivered++
		k.changed.Broadcast()
	}
	k.mu.Unlock()

	if full {
		fault.Halt("event %s overflowed its ring of %d", id, EventRing)
	}
}

// RegisterAckHandler installs fn to run whenever an event of id is
// acknowledged.
func (k *Kernel) RegisterAckHandler(id EventID, fn func(data uint32)) {
	ev := k.event(id)

	k.mu.Lock()
	taken := ev.ack != nil
	if !taken {
		ev.ack = fn
	}
	k.mu.Unlock()

	fault.Assert(!taken, "event %s already has an ack handler", id)
}

// AwaitEvent blocks until an event of id is delivered and returns its data.
func (t *Task) AwaitEvent(id EventID) (uint32, error) {
	k := t.k
	ev := k.event(id)

	k.mu.Lock()
	defer k.mu.Unlock()

	ev.waiting++
	k.changed.Broadcast()
	for len(ev.ring) == 0 {
		if k.isHalted() {
			ev.waiting--
			return 0, ErrHalted
		}
		k.changed.Wait()
	}

	data := ev.ring[0]
	ev.ring = ev.ring[1:]
	ev.waiting--
	k.changed.Broadcast()
	return data, nil
}

// AcknowledgeEvent tells the event's producer the task is finished with
// data.
func (t *Task) AcknowledgeEvent(id EventID, data uint32) {
	k := t.k
	ev := k.event(id)

	k.mu.Lock()
	ack := ev.ack
	k.mu.Unlock()

	if ack != nil {
		ack(data)
	}
}

// Quiesce blocks until at least delivered events of id have been delivered,
// every one of them has been taken, and a task is blocked waiting for the
// next. It lets a pacer run hardware in lockstep with the task consuming
// its interrupts.
func (k *Kernel) Quiesce(id EventID, delivered uint64) error {
	ev := k.event(id)

	k.mu.Lock()
	defer k.mu.Unlock()
	for {
		if k.isHalted() {
			return ErrHalted
		}
		if ev.delivered >= delivered && ev.waiting > 0 && len(ev.ring) == 0 {
			return nil
		}
		k.changed.Wait()
	}
}

// Delivered is the number of events of id delivered so far.
func (k *Kernel) Delivered(id EventID) uint64 {
	ev := k.event(id)
	k.mu.Lock()
	defer k.mu.Unlock()
	return ev.delivered
}
