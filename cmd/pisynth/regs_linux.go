package main

import (
	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/memory"
)

// peripheralWindow covers the clock manager, DMA and PWM blocks.
const peripheralWindow = 0x210000

func openPeripherals(path string) (*memory.DevMem, error) {
	return memory.OpenDevMem(path, addr.IOBase, peripheralWindow)
}
