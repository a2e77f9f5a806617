//go:build linux

// Package scanchain implements the DAP transport Ops over a JTAG
// scan-chain byte-shifter: register accesses are framed as IR/DR shifts
// (select DPACC or APACC via IR, then shift a 35-bit DR of ack+data)
// rather than the SWD request/ack byte go-adiv5/internal/transport/serialwire
// uses. Structurally it is the scan-chain sibling of serialwire.Transport.
package scanchain

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-adiv5/internal/transport"
)

// JTAG instruction register values selecting the ADIv5 access registers.
const (
	irAbort  = 0x8
	irDPACC  = 0xA
	irAPACC  = 0xB
	irIDCODE = 0xE
	irBypass = 0xF
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

// Transport drives a JTAG scan chain through a character device that
// accepts raw TAP shift requests: a write(2) of an IR-select byte
// followed by a 5-byte DR (3-bit ack header packed into the low bits of
// byte 0, 32 bits of data) and returns the captured DR on read(2).
type Transport struct {
	fd      int
	journal []queuedOp
}

var _ transport.Ops = (*Transport)(nil)

func Open(path string) (*Transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("scanchain: open %s: %w", path, err)
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

func (t *Transport) shiftDR(ir byte, isRead bool, addr uint32, val uint32) (uint32, error) {
	req := make([]byte, 6)
	req[0] = ir
	// bit0 = RnW, bits[2:1] = A[3:2] of the target register address
	ctrl := byte((addr & 0xC) >> 1)
	if isRead {
		ctrl |= 0x1
	}
	req[1] = ctrl
	if !isRead {
		req[2] = byte(val)
		req[3] = byte(val >> 8)
		req[4] = byte(val >> 16)
		req[5] = byte(val >> 24)
	}

	if _, err := unix.Write(t.fd, req); err != nil {
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
		return 0, &transport.Error{Kind: transport.FaultProtocol, Msg: "short JTAG DR capture"}
	}

	ack := resp[0] & 0x7
	switch ack {
	case 0x2: // OK/FAULT in JTAG is ack=2
	case 0x1:
		return 0, &transport.Error{Kind: transport.FaultWait, Msg: "JTAG WAIT"}
	case 0x0:
		return 0, &transport.Error{Kind: transport.FaultProtocol, Msg: "JTAG protocol error"}
	default:
		return 0, &transport.Error{Kind: transport.FaultFault, Msg: "JTAG FAULT"}
	}

	data := uint32(resp[1]) | uint32(resp[2])<<8 | uint32(resp[3])<<16 | uint32(resp[4])<<24
	return data, nil
}

func (t *Transport) Run() error {
	journal := t.journal
	t.journal = nil

	for _, op := range journal {
		var ir byte
		var isRead bool
		switch op.kind {
		case opDPRead:
			ir, isRead = irDPACC, true
		case opDPWrite:
			ir, isRead = irDPACC, false
		case opAPRead:
			ir, isRead = irAPACC, true
		case opAPWrite:
			ir, isRead = irAPACC, false
		}

		val, err := t.shiftDR(ir, isRead, op.reg, op.val)
		if err != nil {
			return err
		}
		if op.out != nil {
			*op.out = val
		}
	}
	return nil
}

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
