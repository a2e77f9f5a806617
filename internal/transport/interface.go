// Package transport defines the capability set the DAP core consumes from
// a physical link (serial-wire or scan-chain byte-shifter), mirroring the
// go-ublk internal/uring.Ring split between a small closed interface and
// its concrete implementations.
package transport

import "time"

// FaultKind classifies why a flush (Run) failed.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultWait
	FaultFault
	FaultProtocol
	FaultOverrun
)

func (k FaultKind) String() string {
	switch k {
	case FaultWait:
		return "WAIT"
	case FaultFault:
		return "FAULT"
	case FaultProtocol:
		return "protocol"
	case FaultOverrun:
		return "overrun"
	default:
		return "none"
	}
}

// Error is a transport-level failure surfaced by Run or PollRegister.
type Error struct {
	Kind FaultKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "transport: " + e.Kind.String()
	}
	return "transport: " + e.Kind.String() + ": " + e.Msg
}

// ErrRingFull is returned when a transport's command journal is at
// capacity. Under normal DAP operation this should not happen: callers
// stage a handful of register operations and flush well before any
// fixed journal limit.
var ErrRingFull = &Error{Kind: FaultProtocol, Msg: "command journal full"}

// Ops is the capability set the DAP core consumes from a transport.
// Two concrete implementations exist in practice (serial-wire,
// scan-chain); a stub exists for tests.
type Ops interface {
	// QueueDPRead schedules a DP register read. The result is written to
	// out only after Run returns success.
	QueueDPRead(reg uint32, out *uint32) error

	// QueueDPWrite schedules a DP register write.
	QueueDPWrite(reg uint32, val uint32) error

	// QueueAPRead schedules a read of register reg on AP apNum.
	QueueAPRead(apNum uint8, reg uint32, out *uint32) error

	// QueueAPWrite schedules a write of register reg on AP apNum.
	QueueAPWrite(apNum uint8, reg uint32, val uint32) error

	// Run flushes the queue. It returns nil only if every queued
	// operation ACKed successfully; on failure the returned error is a
	// *Error classifying the fault, and the queue is drained.
	Run() error

	// PollRegister flushes and retries a DP register read until
	// (read & mask) == expected or timeout elapses.
	PollRegister(reg uint32, mask, expected uint32, timeout time.Duration) error

	// Close releases any resources held by the transport.
	Close() error
}
