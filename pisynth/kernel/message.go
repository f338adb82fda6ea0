package kernel

import (
	"github.com/valerio/go-pisynth/pisynth/fault"
)

// Request is a message received by a task, awaiting its reply.
type Request struct {
	Sender *Task
	Msg    any

	reply   []uint32
	done    chan int
	replied bool
}

// ReplyCap is the size of the sender's reply buffer in words.
func (r *Request) ReplyCap() int {
	return len(r.reply)
}

// Send delivers msg to to and blocks until it replies. The reply is copied
// into reply and its length returned.
func (t *Task) Send(to *Task, msg any, reply []uint32) (int, error) {
	k := t.k
	req := &Request{Sender: t, Msg: msg, reply: reply, done: make(chan int, 1)}

	select {
	case to.inbox <- req:
	case <-k.halted:
		return 0, ErrHalted
	}

	select {
	case n := <-req.done:
		return n, nil
	case <-k.halted:
		return 0, ErrHalted
	}
}

// Receive blocks until a message arrives.
func (t *Task) Receive() (*Request, error) {
	select {
	case req := <-t.inbox:
		return req, nil
	case <-t.k.halted:
		return nil, ErrHalted
	}
}

// Reply unblocks the sender of req. A payload larger than the sender's
// buffer is a fault.
func (t *Task) Reply(req *Request, payload []uint32) {
	fault.Assert(!req.replied, "%s replied twice to %s", t.Name, req.Sender.Name)
	fault.Assert(len(payload) <= len(req.reply), "reply of %d words overflows the %d word buffer of %s", len(payload), len(req.reply), req.Sender.Name)

	req.replied = true
	req.done <- copy(req.reply, payload)
}
