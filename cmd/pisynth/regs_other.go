//go:build !linux

package main

import (
	"errors"
	"io"

	"github.com/valerio/go-pisynth/pisynth/memory"
)

type peripheralBus interface {
	memory.Bus
	io.Closer
}

func openPeripherals(string) (peripheralBus, error) {
	return nil, errors.New("register dumps need Linux /dev/mem")
}
