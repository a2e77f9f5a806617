//go:build linux

// Package serialwire implements the DAP transport Ops over a bit-banged
// Serial Wire Debug (SWD) link exposed as a Linux character device
// (e.g. a spidev-style adapter). It mirrors the open/mmap/ioctl shape of
// go-ublk's internal/uring real-ring implementation: a small struct
// wrapping a file descriptor, with queued operations applied in order on
// flush.
package serialwire

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

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

// swdFrame is the 8-bit request/ack framing byte layout used on the wire:
// start(1) APnDP(1) RnW(1) A[2:3](2) parity(1) stop(1) park(1).
const (
	swdStartBit = 1 << 0
	swdAPnDP    = 1 << 1
	swdRnW      = 1 << 2
)

// Transport drives an SWD link through a character device using simple
// framed read/write transactions. The device is expected to accept
// one framed request per write(2) and return the 32-bit data phase (for
// reads) via read(2).
type Transport struct {
	fd      int
	journal []queuedOp
}

var _ transport.Ops = (*Transport)(nil)

// Open opens the SWD adapter character device at path.
func Open(path string) (*Transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("serialwire: open %s: %w", path, err)
	}
	return &Transport{fd: fd}, nil
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

// frameRequest builds the SWD request byte for a register access.
func frameRequest(apNotDP bool, isRead bool, reg uint32) byte {
	b := byte(swdStartBit)
	if apNotDP {
		b |= swdAPnDP
	}
	if isRead {
		b |= swdRnW
	}
	b |= byte((reg & 0xC) << 1)
	return b
}

func (t *Transport) transact(apNotDP bool, isRead bool, reg uint32, val uint32) (uint32, error) {
	req := frameRequest(apNotDP, isRead, reg)
	buf := make([]byte, 5)
	buf[0] = req
	if !isRead {
		buf[1] = byte(val)
		buf[2] = byte(val >> 8)
		buf[3] = byte(val >> 16)
		buf[4] = byte(val >> 24)
	}

	if _, err := unix.Write(t.fd, buf); err != nil {
		return 0, &transport.Error{Kind: transport.FaultProtocol, Msg: err.Error()}
	}

	if !isRead {
		return 0, nil
	}

	resp := make([]byte, 5)
	n, err := unix.Read(t.fd, resp)
	if err != nil {
		return 0, &transport.Error{Kind: transport.FaultProtocol, Msg: err.Error()}
	}
	if n < 5 {
		return 0, &transport.Error{Kind: transport.FaultProtocol, Msg: "short SWD response"}
	}

	ack := resp[0] & 0x7
	switch ack {
	case 0x1: // OK
	case 0x2:
		return 0, &transport.Error{Kind: transport.FaultWait, Msg: "SWD WAIT"}
	case 0x4:
		return 0, &transport.Error{Kind: transport.FaultFault, Msg: "SWD FAULT"}
	default:
		return 0, &transport.Error{Kind: transport.FaultProtocol, Msg: "SWD protocol error"}
	}

	data := uint32(resp[1]) | uint32(resp[2])<<8 | uint32(resp[3])<<16 | uint32(resp[4])<<24
	return data, nil
}

// Run flushes the queue in enqueue order, surfacing the first failure.
func (t *Transport) Run() error {
	journal := t.journal
	t.journal = nil

	for _, op := range journal {
		var isRead, apNotDP bool
		switch op.kind {
		case opDPRead:
			isRead, apNotDP = true, false
		case opDPWrite:
			isRead, apNotDP = false, false
		case opAPRead:
			isRead, apNotDP = true, true
		case opAPWrite:
			isRead, apNotDP = false, true
		}

		val, err := t.transact(apNotDP, isRead, op.reg, op.val)
		if err != nil {
			return err
		}
		if op.out != nil {
			*op.out = val
		}
	}
	return nil
}

// PollRegister flushes then retries a DP register read until masked.
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
	if t.fd >= 0 {
		err := unix.Close(t.fd)
		t.fd = -1
		return err
	}
	return nil
}
