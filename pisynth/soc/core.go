package soc

import (
	"sync"
)

// Core is one ARM core's exception entry. Devices call Interrupt (IRQ) or
// FIQ when a line they drive becomes pending; the core's goroutine then
// enters the installed trap handler.
type Core struct {
	ID int

	mu      sync.Mutex
	irqTrap func()
	fiqTrap func()

	irq  chan struct{}
	fiq  chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newCore(id int) *Core {
	return &Core{
		ID:   id,
		irq:  make(chan struct{}, 1),
		fiq:  make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// SetIRQ installs the IRQ trap entry.
func (c *Core) SetIRQ(trap func()) {
	c.mu.Lock()
	c.irqTrap = trap
	c.mu.Unlock()
}

// SetFIQ installs the FIQ trap entry.
func (c *Core) SetFIQ(trap func()) {
	c.mu.Lock()
	c.fiqTrap = trap
	c.mu.Unlock()
}

// Interrupt marks the IRQ line pending. Never blocks.
func (c *Core) Interrupt() {
	select {
	case c.irq <- struct{}{}:
	default:
	}
}

// FIQ marks the FIQ line pending. Never blocks.
func (c *Core) FIQ() {
	select {
	case c.fiq <- struct{}{}:
	default:
	}
}

// Start runs the exception loop until Stop. FIQs take precedence over IRQs.
func (c *Core) Start() {
	go c.run()
}

func (c *Core) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case <-c.fiq:
			c.enter(&c.fiqTrap)
			continue
		default:
		}

		select {
		case <-c.stop:
			return
		case <-c.fiq:
			c.enter(&c.fiqTrap)
		case <-c.irq:
			c.enter(&c.irqTrap)
		}
	}
}

func (c *Core) enter(trap *func()) {
	c.mu.Lock()
	fn := *trap
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop ends the exception loop and waits for the current trap to return.
func (c *Core) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Wait blocks until the loop started by Start has exited.
func (c *Core) Wait() {
	<-c.done
}
