package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-pisynth/pisynth/addr"
	"github.com/valerio/go-pisynth/pisynth/irq"
	"github.com/valerio/go-pisynth/pisynth/kernel"
	"github.com/valerio/go-pisynth/pisynth/soc"
)

func TestTimerTicks(t *testing.T) {
	for _, board := range []addr.Board{addr.BoardBCM2836, addr.BoardVExpress} {
		t.Run(string(board), func(t *testing.T) {
			s, err := soc.New(soc.Config{Board: board, RAMSize: 0x10000})
			require.NoError(t, err)
			ctl, err := irq.New(board, s.Bus)
			require.NoError(t, err)

			k := kernel.New()
			defer k.Shutdown()

			tm := New(s.Bus, k, 10)
			tm.Init(ctl, irq.PeripheralLine(board, addr.IRQTimer3))
			assert.Equal(t, uint32(100_000), s.Bus.Read32(addr.SysTimerC3))

			s.Timer.Advance(99_999)
			ctl.Service()
			assert.Zero(t, tm.Ticks())

			s.Timer.Advance(1)
			ctl.Service()
			assert.Equal(t, uint64(1), tm.Ticks())
			assert.Equal(t, uint32(200_000), s.Bus.Read32(addr.SysTimerC3))
			assert.Zero(t, s.Bus.Read32(addr.SysTimerCS))

			got := make(chan uint32, 1)
			k.Create("tick", func(task *kernel.Task) {
				d, err := task.AwaitEvent(kernel.EventTimer)
				if err == nil {
					got <- d
				}
			})
			select {
			case d := <-got:
				assert.Equal(t, Cookie, d)
			case <-time.After(2 * time.Second):
				t.Fatal("no tick event")
			}
			assert.Equal(t, uint64(100_000), tm.Now())
		})
	}
}
