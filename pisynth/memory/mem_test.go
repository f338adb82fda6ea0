package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-pisynth/pisynth/addr"
)

// regFile is a plain register file device.
type regFile map[uint32]uint32

func (r regFile) Read32(address uint32) uint32        { return r[address] }
func (r regFile) Write32(address uint32, value uint32) { r[address] = value }

func TestMMU(t *testing.T) {
	t.Run("dispatches by page", func(t *testing.T) {
		mmu := New()
		gpio := regFile{}
		pwm := regFile{}
		mmu.Map(addr.GPIOBase, addr.PageSize, gpio)
		mmu.Map(addr.PWMBase, addr.PageSize, pwm)

		mmu.Write32(addr.GPFSEL4, 0x24)
		mmu.Write32(addr.PWMRNG1, 5669)

		assert.Equal(t, uint32(0x24), gpio[addr.GPFSEL4])
		assert.Equal(t, uint32(5669), pwm[addr.PWMRNG1])
		assert.Empty(t, pwm[addr.GPFSEL4])
	})

	t.Run("unmapped reads zero", func(t *testing.T) {
		mmu := New()
		assert.Equal(t, uint32(0), mmu.Read32(addr.DMA0CS))
		mmu.Write32(addr.DMA0CS, 1) // ignored
	})

	t.Run("overlap panics", func(t *testing.T) {
		mmu := New()
		mmu.Map(addr.DMABase, addr.PageSize, regFile{})
		assert.Panics(t, func() { mmu.Map(addr.DMAIntStatus, 4, regFile{}) })
	})

	t.Run("read-modify-write helpers", func(t *testing.T) {
		mmu := New()
		mmu.Map(addr.PWMBase, addr.PageSize, regFile{})
		SetBits(mmu, addr.PWMCTL, 0b101)
		ClearBits(mmu, addr.PWMCTL, 0b001)
		assert.Equal(t, uint32(0b100), mmu.Read32(addr.PWMCTL))
	})
}

func TestRAMCache(t *testing.T) {
	const base = 0x00100000

	t.Run("DMA does not observe uncleaned writes", func(t *testing.T) {
		ram := NewRAM(base, 4096)
		ram.Write32(base+8, 0xCAFE)

		assert.Equal(t, uint32(0xCAFE), ram.Read32(base+8), "CPU sees its own write")
		assert.Equal(t, uint32(0), ram.DMARead32(base+8), "DMA reads backing memory")

		ram.Clean(base+8, 4)
		assert.Equal(t, uint32(0xCAFE), ram.DMARead32(base+8))
	})

	t.Run("clean covers every touched line", func(t *testing.T) {
		ram := NewRAM(base, 4096)
		for i := uint32(0); i < 64; i++ {
			ram.Write32(base+i*4, i)
		}
		ram.Clean(base, 256)
		for i := uint32(0); i < 64; i++ {
			assert.Equal(t, i, ram.DMARead32(base+i*4))
		}
	})

	t.Run("partial clean leaves other lines dirty", func(t *testing.T) {
		ram := NewRAM(base, 4096)
		ram.Write32(base, 1)
		ram.Write32(base+LineSize, 2)
		ram.Clean(base, 4)
		assert.Equal(t, uint32(1), ram.DMARead32(base))
		assert.Equal(t, uint32(0), ram.DMARead32(base+LineSize))
	})

	t.Run("invalidate exposes DMA writes and discards dirty data", func(t *testing.T) {
		ram := NewRAM(base, 4096)
		_ = ram.Read32(base) // pull the line into the cache
		ram.DMAWrite32(base, 7)
		assert.Equal(t, uint32(0), ram.Read32(base), "stale cached line")

		ram.Invalidate(base, 4)
		assert.Equal(t, uint32(7), ram.Read32(base))

		ram.Write32(base, 9)
		ram.Invalidate(base, 4)
		assert.Equal(t, uint32(7), ram.Read32(base))
	})

	t.Run("out of range access panics", func(t *testing.T) {
		ram := NewRAM(base, 4096)
		assert.Panics(t, func() { ram.Read32(base + 4096) })
		assert.Panics(t, func() { ram.Write32(base+2, 0) })
	})
}

func TestArena(t *testing.T) {
	ram := NewRAM(0x1000, 256)
	arena := NewArena(ram)

	a, err := arena.Alloc(4, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), a)

	b, err := arena.Alloc(64, 32)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1020), b, "rounded up to 32 bytes")

	_, err = arena.Alloc(8, 3)
	assert.Error(t, err)

	_, err = arena.Alloc(1024, 4)
	assert.ErrorContains(t, err, "arena exhausted")
	assert.Equal(t, 256-0x60, arena.Free())
}

func TestGPIOSetFunction4(t *testing.T) {
	mmu := New()
	mmu.Map(addr.GPIOBase, addr.PageSize, regFile{addr.GPFSEL4: 0xFFFFFFFF})
	gpio := GPIO{Bus: mmu}

	gpio.SetFunction4(addr.AudioRightPin, addr.GPIOAlt0)
	gpio.SetFunction4(addr.AudioLeftPin, addr.GPIOAlt0)

	assert.Equal(t, addr.GPIOAlt0, gpio.Function4(addr.AudioRightPin))
	assert.Equal(t, addr.GPIOAlt0, gpio.Function4(addr.AudioLeftPin))
	// pins 41-44 and 46-49 keep their reset value
	assert.Equal(t, uint32(0xFFFE7FFC), mmu.Read32(addr.GPFSEL4))
}

func TestClockManagerPassword(t *testing.T) {
	mmu := New()
	regs := regFile{}
	mmu.Map(addr.CMPWMBase&^(addr.PageSize-1), addr.PageSize, regs)
	cm := ClockManager{Bus: mmu}

	cm.SetDiv(2 << addr.ClockDivIShift)
	assert.Equal(t, addr.ClockPassword|2<<addr.ClockDivIShift, regs[addr.CMPWMDIV])
}
