package midi

import "runtime"

// Spinner busy-waits on a condition. A zero Limit spins forever; a positive
// Limit gives up after that many polls.
type Spinner struct {
	Limit int
}

// Until polls cond until it holds and reports whether it did before the
// limit ran out.
func (s Spinner) Until(cond func() bool) bool {
	for i := 0; s.Limit == 0 || i < s.Limit; i++ {
		if cond() {
			return true
		}
		runtime.Gosched()
	}
	return cond()
}
