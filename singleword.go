package dap

import "github.com/ehrlich-b/go-adiv5/internal/dapconst"

// bankedWindow returns the 16-byte-aligned TAR value and the banked-data
// register offset (BD0-BD3) that together address addr without needing a
// dedicated DRW transfer: BDx reaches word x of the aligned window TAR
// already points at, so four consecutive word accesses inside the same
// window only pay for one TAR write.
func bankedWindow(addr uint32) (tar uint32, bdReg uint32) {
	tar = addr &^ 0xF
	bdReg = dapconst.RegBD0 + (addr & 0xC)
	return tar, bdReg
}

// MemAPReadU32Queued stages a 32-bit aligned read at addr without flushing
// the transport. out is populated only after a subsequent Run.
func MemAPReadU32Queued(ap *APState, addr uint32, out *uint32) error {
	tar, bdReg := bankedWindow(addr)
	csw := uint32(dapconst.CSWSize32) | uint32(dapconst.CSWAddrIncOff)<<4

	if err := SetupTransfer(ap, csw, tar); err != nil {
		return err
	}
	if err := ap.dap.Transport.QueueAPRead(ap.apNum, bdReg, out); err != nil {
		return err
	}
	ap.dap.metrics.APReadsQueued.Add(1)
	return nil
}

// MemAPWriteU32Queued stages a 32-bit aligned write of val at addr without
// flushing the transport.
func MemAPWriteU32Queued(ap *APState, addr uint32, val uint32) error {
	tar, bdReg := bankedWindow(addr)
	csw := uint32(dapconst.CSWSize32) | uint32(dapconst.CSWAddrIncOff)<<4

	if err := SetupTransfer(ap, csw, tar); err != nil {
		return err
	}
	if err := ap.dap.Transport.QueueAPWrite(ap.apNum, bdReg, val); err != nil {
		return err
	}
	ap.dap.metrics.APWritesQueued.Add(1)
	return nil
}

// MemAPReadU32 performs a single 32-bit aligned read and flushes
// immediately, returning the value once the transport run completes.
func MemAPReadU32(ap *APState, addr uint32) (uint32, error) {
	var out uint32
	if err := MemAPReadU32Queued(ap, addr, &out); err != nil {
		return 0, err
	}
	if err := ap.dap.run(); err != nil {
		return 0, WrapError("mem_ap_read_atomic_u32", err)
	}
	return out, nil
}

// MemAPWriteU32 performs a single 32-bit aligned write and flushes
// immediately.
func MemAPWriteU32(ap *APState, addr uint32, val uint32) error {
	if err := MemAPWriteU32Queued(ap, addr, val); err != nil {
		return err
	}
	if err := ap.dap.run(); err != nil {
		return WrapError("mem_ap_write_atomic_u32", err)
	}
	return nil
}
