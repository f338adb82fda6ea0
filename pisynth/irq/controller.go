// Package irq dispatches interrupt lines to handlers and layers an
// inter-processor signal channel over the per-core mailboxes.
package irq

import (
	"fmt"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// Handler services one interrupt line or IPI signal. It must clear the
// peripheral-side condition before returning on level triggered lines.
type Handler func()

// Controller is the capability set every interrupt controller family offers.
// Service is the entry point of the trap path; it returns once nothing is
// pending.
type Controller interface {
	Register(line int, h Handler)
	Enable(line int)
	Disable(line int)
	Service()
}

// New returns the main core's controller for board.
func New(board addr.Board, bus memory.Bus) (Controller, error) {
	switch board {
	case addr.BoardBCM2836:
		return NewBCM2836(bus, 0), nil
	case addr.BoardVExpress:
		return NewGIC(bus), nil
	}
	return nil, fmt.Errorf("no interrupt controller for board %q", board)
}

// PeripheralLine maps a BCM2835 GPU interrupt number to the line a
// controller on board knows it by.
func PeripheralLine(board addr.Board, gpuIRQ int) int {
	if board == addr.BoardVExpress {
		return addr.GICFirstSPI + gpuIRQ
	}
	return gpuIRQ
}
