package addr

// Board names the interrupt controller family a build targets.
type Board string

const (
	// BoardBCM2836 is the BCM2836: BCM2835 GPU interrupt controller behind the
	// per-core local block, with core mailboxes for IPIs.
	BoardBCM2836 Board = "bcm2836"
	// BoardVExpress is the vexpress-a15 with an ARM GIC and no mailboxes.
	BoardVExpress Board = "vexpress"
)

// Peripheral windows
// Reference: BCM2835 ARM Peripherals, section 1.2.3 (Pi 2 remaps 0x20000000 to 0x3F000000)
const (
	// IOBase is the ARM physical address of the peripheral window.
	IOBase uint32 = 0x3F000000
	// GPUIOBase is the same window as seen from the VideoCore bus (DMA destinations).
	GPUIOBase uint32 = 0x7E000000
	// RAMBusAlias turns an ARM physical RAM address into an uncached bus address for DMA sources.
	RAMBusAlias uint32 = 0xC0000000
	// BusAddressMask strips any bus alias back to the ARM physical address.
	BusAddressMask uint32 = 0x3FFFFFFF
)

// PageSize is the granularity used to map register blocks.
const PageSize uint32 = 0x1000

// Clock manager, PWM clock
const (
	CMPWMBase uint32 = IOBase + 0x1010A0
	CMPWMCTL  uint32 = CMPWMBase + 0x0
	CMPWMDIV  uint32 = CMPWMBase + 0x4

	// ClockPassword must accompany every write to a clock manager register.
	ClockPassword uint32 = 0x5A << 24

	ClockCtlBusy uint32 = 1 << 7
	ClockCtlKill uint32 = 1 << 5
	ClockCtlEnab uint32 = 1 << 4
	// ClockSrcPLLD selects the 500MHz PLLD source.
	ClockSrcPLLD   uint32 = 6
	ClockSrcMask   uint32 = 0xF
	ClockDivIShift        = 12
)

// PWM
// Reference: BCM2835 ARM Peripherals, chapter 9
const (
	PWMBase uint32 = IOBase + 0x20C000
	PWMCTL  uint32 = PWMBase + 0x00
	PWMSTA  uint32 = PWMBase + 0x04
	PWMDMAC uint32 = PWMBase + 0x08
	PWMRNG1 uint32 = PWMBase + 0x10
	PWMDAT1 uint32 = PWMBase + 0x14
	PWMFIF1 uint32 = PWMBase + 0x18
	PWMRNG2 uint32 = PWMBase + 0x20
	PWMDAT2 uint32 = PWMBase + 0x24

	PWMCtlPWEN1 uint32 = 1 << 0
	PWMCtlUSEF1 uint32 = 1 << 5
	PWMCtlCLRF1 uint32 = 1 << 6
	PWMCtlPWEN2 uint32 = 1 << 8
	PWMCtlUSEF2 uint32 = 1 << 13

	PWMStaFull1  uint32 = 1 << 0
	PWMStaEmpty1 uint32 = 1 << 1

	PWMDMACEnab      uint32 = 1 << 31
	// PWMDMACThreshold is the DREQ threshold programmed alongside the enable bit.
	PWMDMACThreshold uint32 = 1

	// PWMFIF1Bus is the FIFO address the DMA engine writes to.
	PWMFIF1Bus uint32 = GPUIOBase + (PWMFIF1 - IOBase)
)

// GPIO function select
// Reference: BCM2835 ARM Peripherals, chapter 6
const (
	GPIOBase    uint32 = IOBase + 0x200000
	GPFSEL4     uint32 = GPIOBase + 0x10
	GPFSEL4Base        = 40
	GPFSELBits         = 3
	GPIOAlt0    uint32 = 0b100

	// AudioRightPin carries PWM channel 1, AudioLeftPin carries PWM channel 2.
	AudioRightPin = 40
	AudioLeftPin  = 45
)

// DMA channel 0 and the global DMA registers
// Reference: BCM2835 ARM Peripherals, chapter 4
const (
	DMABase      uint32 = IOBase + 0x7000
	DMA0CS       uint32 = DMABase + 0x00
	DMA0ConblkAD uint32 = DMABase + 0x04
	DMA0TI       uint32 = DMABase + 0x08
	DMA0SourceAD uint32 = DMABase + 0x0C
	DMA0DestAD   uint32 = DMABase + 0x10
	DMA0TxfrLen  uint32 = DMABase + 0x14
	DMA0Stride   uint32 = DMABase + 0x18
	DMA0NextCB   uint32 = DMABase + 0x1C
	DMAIntStatus uint32 = DMABase + 0xFE0
	DMAEnable    uint32 = DMABase + 0xFF0

	DMACSActive uint32 = 1 << 0
	DMACSEnd    uint32 = 1 << 1
	DMACSInt    uint32 = 1 << 2

	TIIntEn       uint32 = 1 << 0
	TIDestDREQ    uint32 = 1 << 6
	TISrcInc      uint32 = 1 << 8
	TIPermapShift        = 16

	// DREQPWM is the peripheral mapping number of the PWM pacing signal.
	DREQPWM uint32 = 5

	// ControlBlockSize is 8 words; blocks must be 32-byte aligned.
	ControlBlockSize  = 32
	ControlBlockAlign = 32
)

// BCM2835 interrupt controller
// Reference: BCM2835 ARM Peripherals, chapter 7
const (
	ICBase       uint32 = IOBase + 0xB000
	IRQBasicPend uint32 = ICBase + 0x200
	IRQPending1  uint32 = ICBase + 0x204
	IRQPending2  uint32 = ICBase + 0x208
	FIQControl   uint32 = ICBase + 0x20C
	EnableIRQs1  uint32 = ICBase + 0x210
	EnableIRQs2  uint32 = ICBase + 0x214
	EnableBasic  uint32 = ICBase + 0x218
	DisableIRQs1 uint32 = ICBase + 0x21C
	DisableIRQs2 uint32 = ICBase + 0x220
	DisableBasic uint32 = ICBase + 0x224
	FIQEnable    uint32 = 1 << 7
	GPUIRQCount         = 64
)

// GPU interrupt numbers
const (
	IRQTimer3 = 3
	IRQUSB    = 9
	IRQDMA0   = 16
)

// System timer
// Reference: BCM2835 ARM Peripherals, chapter 12
const (
	SysTimerBase uint32 = IOBase + 0x3000
	SysTimerCS   uint32 = SysTimerBase + 0x00
	SysTimerCLO  uint32 = SysTimerBase + 0x04
	SysTimerCHI  uint32 = SysTimerBase + 0x08
	SysTimerC0   uint32 = SysTimerBase + 0x0C
	SysTimerC1   uint32 = SysTimerBase + 0x10
	SysTimerC2   uint32 = SysTimerBase + 0x14
	SysTimerC3   uint32 = SysTimerBase + 0x18

	// SysTimerFreq is the free-running counter rate in Hz.
	SysTimerFreq = 1000000
)

// BCM2836 per-core local peripherals
// Reference: BCM2836 ARM-local peripherals (QA7), section 4
const (
	LocalBase uint32 = 0x40000000

	// MailboxIntControl0 routes core N's mailboxes to its IRQ line, 4 bytes per core.
	MailboxIntControl0 uint32 = LocalBase + 0x50
	// CoreIRQSource0 is core N's IRQ source register, 4 bytes per core.
	CoreIRQSource0 uint32 = LocalBase + 0x60
	// Mailbox0Set0 is the write-1-to-set register of core N's mailbox 0, 16 bytes per core.
	Mailbox0Set0 uint32 = LocalBase + 0x80
	// Mailbox0Clr0 reads and write-1-to-clears core N's mailbox 0, 16 bytes per core.
	Mailbox0Clr0 uint32 = LocalBase + 0xC0

	CoreStride    uint32 = 0x4
	MailboxStride uint32 = 0x10

	// Core IRQ source bits
	SourceMailbox0 = 4
	SourceGPU      = 8

	CoreCount = 4
)

// MailboxSet returns the set register of the given core's mailbox 0.
func MailboxSet(core int) uint32 {
	return Mailbox0Set0 + uint32(core)*MailboxStride
}

// MailboxClr returns the read/clear register of the given core's mailbox 0.
func MailboxClr(core int) uint32 {
	return Mailbox0Clr0 + uint32(core)*MailboxStride
}

// MailboxIntControl returns the mailbox interrupt control register of a core.
func MailboxIntControl(core int) uint32 {
	return MailboxIntControl0 + uint32(core)*CoreStride
}

// CoreIRQSource returns the IRQ source register of a core.
func CoreIRQSource(core int) uint32 {
	return CoreIRQSource0 + uint32(core)*CoreStride
}

// ARM GIC as found on the vexpress-a15
const (
	GICBase        uint32 = 0x2C000000
	GICDistBase    uint32 = GICBase + 0x1000
	GICDControl    uint32 = GICDistBase + 0x000
	GICDSetEnable1 uint32 = GICDistBase + 0x104
	GICDClrEnable1 uint32 = GICDistBase + 0x184
	// GICDTarget32 holds the byte-wide CPU targets of interrupts 32-35; the
	// next seven words cover the remaining SPIs.
	GICDTarget32 uint32 = GICDistBase + 0x820

	GICCPUBase      uint32 = GICBase + 0x2000
	GICCControl     uint32 = GICCPUBase + 0x00
	GICCPriority    uint32 = GICCPUBase + 0x04
	GICCAcknowledge uint32 = GICCPUBase + 0x0C
	GICCEOI         uint32 = GICCPUBase + 0x10

	// GICSpurious is returned by the acknowledge register when nothing is pending.
	GICSpurious uint32 = 0x3FF

	// GICFirstSPI is the physical ID of the first shared peripheral interrupt.
	GICFirstSPI = 32
	GICSPICount = 32
)
