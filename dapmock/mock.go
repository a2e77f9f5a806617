// Package dapmock provides a fully simulated ADIv5 target implementing
// transport.Ops, used to exercise the driver's staging, block-transfer,
// bring-up, discovery, and ROM-walk logic without real hardware. It plays
// the role go-ublk's backend.Memory plays for that project's I/O path: an
// in-memory stand-in faithful enough to validate real request/response
// semantics end to end.
package dapmock

import (
	"time"

	"github.com/ehrlich-b/go-adiv5/internal/dapconst"
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

// apState is one simulated AP's register file.
type apState struct {
	csw  uint32
	tar  uint32
	idr  uint32
	base uint32
	cfg  uint32
}

// Transport simulates a DP/MEM-AP target: a CTRL/STAT bring-up handshake,
// per-AP CSW/TAR/IDR/BASE/CFG registers, and a byte-addressable memory
// backing DRW/BDx accesses. Packed and BE-32 transfers are unpacked using
// the same lane arithmetic the real driver uses to build them, so a
// write followed by a read through the driver round-trips correctly.
type Transport struct {
	journal []queuedOp

	ctrlStat uint32
	aps      map[uint8]*apState
	mem      map[uint32]byte

	// BigEndian32 mirrors DAP.TiBE32Quirks for tests exercising the TI
	// byte-lane workaround.
	BigEndian32 bool

	// FailAfter, if non-zero, fails the FailAfter'th flushed op across
	// the transport's lifetime (1-based) with FailErr, simulating a
	// fault partway through a buffer transfer.
	FailAfter int
	FailErr   error

	opsFlushed int
	RunCount   int
}

var _ transport.Ops = (*Transport)(nil)

// New creates an empty simulated target with no APs configured.
func New() *Transport {
	return &Transport{
		aps: map[uint8]*apState{},
		mem: map[uint32]byte{},
	}
}

func (t *Transport) ap(apNum uint8) *apState {
	a, ok := t.aps[apNum]
	if !ok {
		a = &apState{}
		t.aps[apNum] = a
	}
	return a
}

// SetAPIdentity configures the static IDR and BASE an AP reports, the way
// a real Cortex debug component would at fixed register addresses.
func (t *Transport) SetAPIdentity(apNum uint8, idr, base uint32) {
	a := t.ap(apNum)
	a.idr = idr
	a.base = base
}

// WriteMem seeds backing memory starting at addr, byte for byte.
func (t *Transport) WriteMem(addr uint32, data []byte) {
	for i, b := range data {
		t.mem[addr+uint32(i)] = b
	}
}

// ReadMem returns n bytes of backing memory starting at addr.
func (t *Transport) ReadMem(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = t.mem[addr+uint32(i)]
	}
	return out
}

// WriteComponentID writes a CoreSight CID/PID identification block at
// base: the nine registers rom_display reads (lookup_cs_component reads
// only CID1).
func (t *Transport) WriteComponentID(base uint32, cid uint32, pid uint64) {
	cidBytes := []byte{byte(cid), byte(cid >> 8), byte(cid >> 16), byte(cid >> 24)}
	t.mem[base+dapconst.OffsetCID0] = cidBytes[0]
	t.mem[base+dapconst.OffsetCID1] = cidBytes[1]
	t.mem[base+dapconst.OffsetCID2] = cidBytes[2]
	t.mem[base+dapconst.OffsetCID3] = cidBytes[3]

	pidBytes := []byte{byte(pid), byte(pid >> 8), byte(pid >> 16), byte(pid >> 24), byte(pid >> 32)}
	t.mem[base+dapconst.OffsetPID0] = pidBytes[0]
	t.mem[base+dapconst.OffsetPID1] = pidBytes[1]
	t.mem[base+dapconst.OffsetPID2] = pidBytes[2]
	t.mem[base+dapconst.OffsetPID3] = pidBytes[3]
	t.mem[base+dapconst.OffsetPID4] = pidBytes[4]
}

// WriteROMEntry writes a present ROM-table entry at tableBase+slot*4
// pointing at a component whose own base is childBase.
func (t *Transport) WriteROMEntry(tableBase uint32, slot int, childBase uint32) {
	offset := childBase - tableBase
	entry := (offset &^ 0xFFF) | 0x1
	off := uint32(slot) * 4
	t.mem[tableBase+off] = byte(entry)
	t.mem[tableBase+off+1] = byte(entry >> 8)
	t.mem[tableBase+off+2] = byte(entry >> 16)
	t.mem[tableBase+off+3] = byte(entry >> 24)
}

// SetDevtype writes a leaf component's DEVTYPE register.
func (t *Transport) SetDevtype(base uint32, devtype uint8) {
	t.mem[base+dapconst.OffsetDEVTYPE] = devtype
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

func sizeFromCSW(csw uint32) int {
	switch csw & 0x7 {
	case dapconst.CSWSize8:
		return 1
	case dapconst.CSWSize16:
		return 2
	default:
		return 4
	}
}

func incrFromCSW(csw uint32) uint32 {
	return (csw >> 4) & 0x3
}

func be32AddrXor(size int) uint32 {
	switch size {
	case 1:
		return 3
	case 2:
		return 2
	default:
		return 0
	}
}

// effectiveMemAddr resolves which byte address a DRW/BDx register access
// targets: DRW uses TAR directly, while BD0-BD3 address word x of the
// 16-byte-aligned window TAR points at.
func effectiveMemAddr(a *apState, reg uint32) uint32 {
	if reg == dapconst.RegDRW {
		return a.tar
	}
	return (a.tar &^ 0xF) + (reg - dapconst.RegDRW - 0x4)
}

// drwAccess simulates one DRW/BDx beat: write packs up to 4 bytes of
// backing memory using the same (address, lane) arithmetic the driver's
// packWord/unpackWord use, so any packed or BE-32 beat the driver issues
// decodes to the same bytes it encoded.
func (t *Transport) drwAccess(a *apState, reg uint32, write bool, val uint32) uint32 {
	size := sizeFromCSW(a.csw)
	packed := incrFromCSW(a.csw) == dapconst.CSWAddrIncPacked
	be32 := t.BigEndian32 && size < 4

	base := effectiveMemAddr(a, reg)
	cur := base
	if be32 {
		cur = base ^ be32AddrXor(size)
	}

	n := size
	if packed {
		n = 4
	}

	if write {
		for j := 0; j < n; j++ {
			lane := (cur + uint32(j)) & 0x3
			if be32 {
				lane ^= be32AddrXor(size) & 0x3
			}
			t.mem[cur+uint32(j)] = byte(val >> (8 * lane))
		}
		t.advanceTAR(a, reg, size, packed)
		return 0
	}

	var word uint32
	for j := 0; j < n; j++ {
		lane := (cur + uint32(j)) & 0x3
		if be32 {
			lane ^= be32AddrXor(size) & 0x3
		}
		word |= uint32(t.mem[cur+uint32(j)]) << (8 * lane)
	}
	t.advanceTAR(a, reg, size, packed)
	return word
}

// advanceTAR mimics the AP's own internal TAR autoincrement on DRW
// accesses: single transfers move TAR by one unit, packed transfers by a
// full packed beat, and BDx accesses never touch TAR at all.
func (t *Transport) advanceTAR(a *apState, reg uint32, size int, packed bool) {
	if reg != dapconst.RegDRW {
		return
	}
	switch incrFromCSW(a.csw) {
	case dapconst.CSWAddrIncSingle:
		a.tar += uint32(size)
	case dapconst.CSWAddrIncPacked:
		a.tar += maxPackedChunkBytes
	}
}

const maxPackedChunkBytes = 4

// Run flushes the queue in enqueue order against the simulated target,
// surfacing the first failure (or the injected FailAfter failure).
func (t *Transport) Run() error {
	t.RunCount++
	journal := t.journal
	t.journal = nil

	for _, op := range journal {
		t.opsFlushed++
		if t.FailAfter != 0 && t.opsFlushed == t.FailAfter {
			return t.FailErr
		}

		switch op.kind {
		case opDPRead:
			if op.out != nil {
				*op.out = t.readDP(op.reg)
			}
		case opDPWrite:
			t.writeDP(op.reg, op.val)
		case opAPRead:
			a := t.ap(op.apNum)
			val := t.apRegValue(a, op.reg, false, 0)
			if op.out != nil {
				*op.out = val
			}
		case opAPWrite:
			a := t.ap(op.apNum)
			t.apRegValue(a, op.reg, true, op.val)
		}
	}
	return nil
}

func (t *Transport) readDP(reg uint32) uint32 {
	if reg == dapconst.RegDPCTRLSTAT {
		return t.ctrlStat
	}
	return 0
}

func (t *Transport) writeDP(reg uint32, val uint32) {
	if reg != dapconst.RegDPCTRLSTAT {
		return
	}
	if val&dapconst.CtrlStatSStickyErr != 0 {
		t.ctrlStat &^= dapconst.CtrlStatSStickyErr
		return
	}
	// Requesting power-up immediately grants it: there is no real link
	// latency to simulate.
	if val&dapconst.CtrlStatCDbgPwrUpReq != 0 {
		t.ctrlStat |= dapconst.CtrlStatCDbgPwrUpAck
	}
	if val&dapconst.CtrlStatCSysPwrUpReq != 0 {
		t.ctrlStat |= dapconst.CtrlStatCSysPwrUpAck
	}
	t.ctrlStat |= val &^ (dapconst.CtrlStatCDbgPwrUpAck | dapconst.CtrlStatCSysPwrUpAck)
}

// apRegValue dispatches an AP register access to the right simulated
// register: CSW/TAR/IDR/BASE/CFG are plain per-AP state, everything else
// (DRW, BD0-BD3) goes through the memory-backed path.
func (t *Transport) apRegValue(a *apState, reg uint32, write bool, val uint32) uint32 {
	switch reg {
	case dapconst.RegCSW:
		if write {
			a.csw = val
			return 0
		}
		return a.csw
	case dapconst.RegTAR:
		if write {
			a.tar = val
			return 0
		}
		return a.tar
	case dapconst.RegIDR:
		return a.idr
	case dapconst.RegBASE:
		return a.base
	case dapconst.RegCFG:
		return a.cfg
	default:
		return t.drwAccess(a, reg, write, val)
	}
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
		time.Sleep(time.Microsecond)
	}
}

func (t *Transport) Close() error {
	t.journal = nil
	return nil
}
