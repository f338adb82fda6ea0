//go:build linux

package memory

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMemPath is the physical memory device on Linux.
const DevMemPath = "/dev/mem"

// DevMem is a Bus over a window of physical memory mapped from /dev/mem.
// Addresses outside the window panic.
type DevMem struct {
	file *os.File
	base uint32
	mem  []byte
}

// OpenDevMem maps size bytes of physical memory starting at base.
func OpenDevMem(path string, base uint32, size int) (*DevMem, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &DevMem{file: f, base: base, mem: mem}, nil
}

func (d *DevMem) word(address uint32) *uint32 {
	off := int(address) - int(d.base)
	if off < 0 || off+4 > len(d.mem) || address%4 != 0 {
		panic(fmt.Sprintf("address 0x%08X outside mapped window", address))
	}
	return (*uint32)(unsafe.Pointer(&d.mem[off]))
}

// Read32 performs a single 32-bit load, never split or cached by the compiler.
func (d *DevMem) Read32(address uint32) uint32 {
	return atomic.LoadUint32(d.word(address))
}

// Write32 performs a single 32-bit store.
func (d *DevMem) Write32(address uint32, value uint32) {
	atomic.StoreUint32(d.word(address), value)
}

// Close unmaps the window.
func (d *DevMem) Close() error {
	err := unix.Munmap(d.mem)
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ Bus = (*DevMem)(nil)
