package speaker

import (
	"encoding/binary"
	"sync"

	"github.com/valerio/go-pisynth/pisynth/backend"
	"github.com/valerio/go-pisynth/pisynth/soc"
)

const bytesPerFrame = 4

// stream is a bounded frame ring read by the host audio device. Reads past
// the queued frames are padded with silence; writes into a full ring drop
// the oldest frames.
type stream struct {
	mu       sync.Mutex
	frames   []soc.Frame
	head     int
	count    int
	dropped  uint64
	underrun uint64
}

func newStream(capacity int) *stream {
	return &stream{frames: make([]soc.Frame, capacity)}
}

func (s *stream) push(frames []soc.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range frames {
		if s.count == len(s.frames) {
			s.head = (s.head + 1) % len(s.frames)
			s.count--
			s.dropped++
		}
		s.frames[(s.head+s.count)%len(s.frames)] = f
		s.count++
	}
}

// Read fills p with signed 16-bit little endian stereo, left first.
func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(p) / bytesPerFrame
	for i := 0; i < n; i++ {
		f := soc.Frame{Right: backend.Midpoint, Left: backend.Midpoint}
		if s.count > 0 {
			f = s.frames[s.head]
			s.head = (s.head + 1) % len(s.frames)
			s.count--
		} else {
			s.underrun++
		}
		binary.LittleEndian.PutUint16(p[i*bytesPerFrame:], uint16(backend.PCM16(f.Left)))
		binary.LittleEndian.PutUint16(p[i*bytesPerFrame+2:], uint16(backend.PCM16(f.Right)))
	}
	return n * bytesPerFrame, nil
}

func (s *stream) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *stream) stats() (dropped, underrun uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped, s.underrun
}
