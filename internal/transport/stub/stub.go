// Package stub provides an in-memory transport.Ops implementation with no
// real link, used by this package's own tests; the DAP core's tests use
// the separate dapmock package instead. It mirrors the role go-ublk's NewStubRunner and
// stubLoop play for queue/runner tests: exercise the queueing contract
// without touching real hardware.
package stub

import (
	"time"

	"github.com/ehrlich-b/go-adiv5/internal/transport"
)

type opKind int

const (
	opDPRead opKind = iota
	opDPWrite
	opAPRead
	opAPWrite
)

type queuedOp struct {
	kind  opKind
	apNum uint8
	reg   uint32
	val   uint32
	out   *uint32
}

// Handler resolves a queued register access against a simulated target.
// It returns the read value (ignored for writes) and an error to fail
// the whole flush with.
type Handler interface {
	HandleDPRead(reg uint32) (uint32, error)
	HandleDPWrite(reg uint32, val uint32) error
	HandleAPRead(apNum uint8, reg uint32) (uint32, error)
	HandleAPWrite(apNum uint8, reg uint32, val uint32) error
}

// Transport is a queued, in-memory transport.Ops implementation. A nil
// Handler resolves every read as zero and every write as a no-op success,
// which is enough to exercise pure queue-ordering behavior.
type Transport struct {
	Handler Handler
	journal []queuedOp

	// RunCount/LastRunErr let tests assert on flush behavior without a
	// Handler.
	RunCount   int
	LastRunErr error
}

var _ transport.Ops = (*Transport)(nil)

func New(h Handler) *Transport {
	return &Transport{Handler: h}
}

const maxJournalDepth = 4096

func (t *Transport) enqueue(op queuedOp) error {
	if len(t.journal) >= maxJournalDepth {
		return transport.ErrRingFull
	}
	t.journal = append(t.journal, op)
	return nil
}

func (t *Transport) QueueDPRead(reg uint32, out *uint32) error {
	return t.enqueue(queuedOp{kind: opDPRead, reg: reg, out: out})
}

func (t *Transport) QueueDPWrite(reg uint32, val uint32) error {
	return t.enqueue(queuedOp{kind: opDPWrite, reg: reg, val: val})
}

func (t *Transport) QueueAPRead(apNum uint8, reg uint32, out *uint32) error {
	return t.enqueue(queuedOp{kind: opAPRead, apNum: apNum, reg: reg, out: out})
}

func (t *Transport) QueueAPWrite(apNum uint8, reg uint32, val uint32) error {
	return t.enqueue(queuedOp{kind: opAPWrite, apNum: apNum, reg: reg, val: val})
}

// Run executes queued operations in enqueue order, surfacing the first
// failure. Pending-read destinations for operations after the failure are
// left untouched, matching the "unspecified, must not be observed"
// ordering rule.
func (t *Transport) Run() error {
	t.RunCount++
	journal := t.journal
	t.journal = nil

	for _, op := range journal {
		var err error
		var val uint32

		switch op.kind {
		case opDPRead:
			if t.Handler != nil {
				val, err = t.Handler.HandleDPRead(op.reg)
			}
		case opDPWrite:
			if t.Handler != nil {
				err = t.Handler.HandleDPWrite(op.reg, op.val)
			}
		case opAPRead:
			if t.Handler != nil {
				val, err = t.Handler.HandleAPRead(op.apNum, op.reg)
			}
		case opAPWrite:
			if t.Handler != nil {
				err = t.Handler.HandleAPWrite(op.apNum, op.reg, op.val)
			}
		}

		if err != nil {
			t.LastRunErr = err
			return err
		}
		if op.out != nil {
			*op.out = val
		}
	}

	t.LastRunErr = nil
	return nil
}

// PollRegister flushes then retries a DP register read until the masked
// value matches, or timeout elapses.
func (t *Transport) PollRegister(reg uint32, mask, expected uint32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var val uint32
		if err := t.QueueDPRead(reg, &val); err != nil {
			return err
		}
		if err := t.Run(); err != nil {
			return err
		}
		if val&mask == expected {
			return nil
		}
		if time.Now().After(deadline) {
			return &transport.Error{Kind: transport.FaultProtocol, Msg: "poll_register timeout"}
		}
		time.Sleep(time.Millisecond)
	}
}

func (t *Transport) Close() error {
	t.journal = nil
	return nil
}

// Pending returns the number of operations currently queued but not
// flushed, for test assertions.
func (t *Transport) Pending() int {
	return len(t.journal)
}
