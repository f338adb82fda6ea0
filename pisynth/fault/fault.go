// Package fault implements halt-and-report for invariant violations.
//
// A missed audio deadline or a corrupted handoff cannot be repaired after the
// fact, so code that detects one calls Assert or Halt. Both panic with a
// *Fault. Goroutine entry points (tasks, interrupt traps, the secondary core)
// wrap themselves in Catch, which turns the panic into a report to whoever
// owns the system.
package fault

import (
	"fmt"
	"log/slog"
)

// Fault describes an invariant violation.
type Fault struct {
	Context string // task or interrupt context that observed the violation
	Reason  string
}

func (f *Fault) Error() string {
	if f.Context == "" {
		return "fault: " + f.Reason
	}
	return fmt.Sprintf("fault in %s: %s", f.Context, f.Reason)
}

// Halt stops the current context unconditionally.
func Halt(format string, args ...any) {
	panic(&Fault{Reason: fmt.Sprintf(format, args...)})
}

// Assert halts the current context if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&Fault{Reason: fmt.Sprintf(format, args...)})
	}
}

// Catch recovers a *Fault raised in the calling goroutine, stamps it with the
// context name and hands it to report. Any other panic is re-raised.
// It must be deferred directly:
//
//	defer fault.Catch("audio", k.Halt)
func Catch(context string, report func(*Fault)) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(*Fault)
	if !ok {
		panic(r)
	}
	if f.Context == "" {
		f.Context = context
	}
	slog.Error("System halted", "context", f.Context, "reason", f.Reason)
	report(f)
}

// Run calls fn and returns the *Fault it raised, or nil. Intended for tests
// and for synchronous entry points that want the fault as a value.
func Run(fn func()) (f *Fault) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var ok bool
		f, ok = r.(*Fault)
		if !ok {
			panic(r)
		}
	}()
	fn()
	return nil
}
