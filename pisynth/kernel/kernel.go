// Package kernel provides the task primitives the synthesizer is written
// against: named tasks, synchronous send/receive/reply, and interrupt
// events that tasks await and acknowledge.
//
// Every blocking primitive returns ErrHalted once the kernel halts, either
// because a task or interrupt context faulted or because of Shutdown.
package kernel

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/valerio/go-pisynth/pisynth/fault"
)

// EventID names an interrupt-sourced event.
type EventID int

const (
	EventTimer EventID = iota
	EventDMA0
	EventMIDIPacket
	eventCount
)

func (e EventID) String() string {
	switch e {
	case EventTimer:
		return "timer"
	case EventDMA0:
		return "dma0"
	case EventMIDIPacket:
		return "midi-packet"
	}
	return "unknown"
}

// EventRing is how many undelivered events of one ID may queue.
const EventRing = 32

var ErrHalted = errors.New("kernel halted")

type event struct {
	ring      []uint32
	waiting   int
	delivered uint64
	ack       func(data uint32)
}

// Kernel owns the tasks, the name table and the event queues.
type Kernel struct {
	mu      sync.Mutex
	changed *sync.Cond
	names   map[string]*Task
	waiters map[string]chan struct{}
	events  [eventCount]event
	nextID  int

	halted   chan struct{}
	haltOnce sync.Once
	fault    *fault.Fault

	wg sync.WaitGroup
}

func New() *Kernel {
	k := &Kernel{
		names:   make(map[string]*Task),
		waiters: make(map[string]chan struct{}),
		halted:  make(chan struct{}),
	}
	k.changed = sync.NewCond(&k.mu)
	return k
}

// Task is a kernel-scheduled goroutine.
type Task struct {
	ID   int
	Name string

	k     *Kernel
	inbox chan *Request
}

// Create starts fn as a task. A fault raised by fn halts the kernel.
func (k *Kernel) Create(name string, fn func(*Task)) *Task {
	k.mu.Lock()
	k.nextID++
	t := &Task{ID: k.nextID, Name: name, k: k, inbox: make(chan *Request)}
	k.mu.Unlock()

	slog.Debug("Task created", "task", name, "id", t.ID)

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		defer fault.Catch(name, k.Halt)
		fn(t)
	}()
	return t
}

// Halt stops the kernel. The first call wins; f may be nil for a clean stop.
func (k *Kernel) Halt(f *fault.Fault) {
	k.haltOnce.Do(func() {
		k.mu.Lock()
		k.fault = f
		k.mu.Unlock()
		close(k.halted)

		k.mu.Lock()
		k.changed.Broadcast()
		k.mu.Unlock()
	})
}

// Halted is closed once the kernel halts.
func (k *Kernel) Halted() <-chan struct{} {
	return k.halted
}

// Fault returns the fault that halted the kernel, if any.
func (k *Kernel) Fault() *fault.Fault {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.fault
}

func (k *Kernel) isHalted() bool {
	select {
	case <-k.halted:
		return true
	default:
		return false
	}
}

// Shutdown halts the kernel cleanly and waits for every task to return.
func (k *Kernel) Shutdown() {
	k.Halt(nil)
	k.wg.Wait()
}

// Wait blocks until every task has returned.
func (k *Kernel) Wait() {
	k.wg.Wait()
}

// RegisterAs binds name to t. Names are unique for the kernel's lifetime.
func (t *Task) RegisterAs(name string) {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()

	_, taken := k.names[name]
	fault.Assert(!taken, "name %q already registered", name)
	k.names[name] = t
	if ch, ok := k.waiters[name]; ok {
		close(ch)
		delete(k.waiters, name)
	}
	slog.Debug("Task registered", "task", t.Name, "as", name)
}

// WhoIs returns the task registered as name, blocking until one is.
func (t *Task) WhoIs(name string) (*Task, error) {
	k := t.k
	k.mu.Lock()
	if found, ok := k.names[name]; ok {
		k.mu.Unlock()
		return found, nil
	}
	ch, ok := k.waiters[name]
	if !ok {
		ch = make(chan struct{})
		k.waiters[name] = ch
	}
	k.mu.Unlock()

	select {
	case <-ch:
	case <-k.halted:
		return nil, ErrHalted
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.names[name], nil
}
