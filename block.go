package dap

import "github.com/ehrlich-b/go-adiv5/internal/dapconst"

// maxPackedChunkBytes is how many bytes a single packed-transfer DRW beat
// carries; the AP's internal packing buffer is exactly one 32-bit word
// wide regardless of unit size.
const maxPackedChunkBytes = 4

func sizeCSW(size int) (uint32, error) {
	switch size {
	case 1:
		return dapconst.CSWSize8, nil
	case 2:
		return dapconst.CSWSize16, nil
	case 4:
		return dapconst.CSWSize32, nil
	default:
		return 0, NewError("mem_ap_buf", ErrCodeUnalignedAccess, "transfer size must be 1, 2, or 4 bytes")
	}
}

// be32AddrXor returns the TI BE-32 byte-lane compensation for a sub-word
// transfer of the given size. The TMS470/TMS570 family wires its bus
// big-endian, so a byte or halfword access must target the mirrored lane
// of the word the address would naturally fall in.
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

// packWord folds chunk (at most 4 bytes, all belonging to the transfer
// starting at address cur) into the 32-bit lane layout a single DRW write
// expects. The loop walks one byte at a time rather than switching on
// size, so packed multi-unit chunks and single sub-word accesses share the
// same lane arithmetic.
func packWord(chunk []byte, cur uint32, size int, be32 bool) uint32 {
	var word uint32
	for j := 0; j < len(chunk); j++ {
		lane := (cur + uint32(j)) & 0x3
		if be32 {
			lane ^= be32AddrXor(size) & 0x3
		}
		word |= uint32(chunk[j]) << (8 * lane)
	}
	return word
}

// unpackWord is packWord's inverse, spreading a DRW read result back into
// chunk using the same lane arithmetic.
func unpackWord(word uint32, chunk []byte, cur uint32, size int, be32 bool) {
	for j := 0; j < len(chunk); j++ {
		lane := (cur + uint32(j)) & 0x3
		if be32 {
			lane ^= be32AddrXor(size) & 0x3
		}
		chunk[j] = byte(word >> (8 * lane))
	}
}

// recoverProgress is called after a queued transfer beat fails to flush.
// It reads TAR back in an attempt to learn how far the device actually
// got — the AP advances TAR on every beat that lands, even if a later one
// faults — purely for diagnostics; the byte count the caller reports back
// to its own caller is always the last known-good position, never this
// readback. If the readback itself fails to flush, no further claim is
// made beyond that known-good position.
func recoverProgress(ap *APState, knownGood int, transferErr error) error {
	var tar uint32
	if err := ap.dap.Transport.QueueAPRead(ap.apNum, dapconst.RegTAR, &tar); err != nil {
		ap.dap.logger.Warn("mem_ap_buf: TAR readback request failed", "ap", ap.apNum, "err", err)
		return WrapError("mem_ap_buf", transferErr)
	}
	if err := ap.dap.run(); err != nil {
		ap.dap.logger.Warn("mem_ap_buf: TAR readback flush failed", "ap", ap.apNum, "err", err)
		return WrapError("mem_ap_buf", transferErr)
	}
	ap.dap.logger.Info("mem_ap_buf: transfer stopped", "ap", ap.apNum, "bytes_done", knownGood, "tar", tar)
	return WrapError("mem_ap_buf", transferErr)
}

// memAPTransferBuf is the shared engine behind MemAPReadBuf, MemAPWriteBuf,
// and their _noincr variants. It returns the number of bytes known to have
// been transferred successfully before any error.
func memAPTransferBuf(ap *APState, buffer []byte, size int, addr uint32, write, autoincr bool) (int, error) {
	cswSize, err := sizeCSW(size)
	if err != nil {
		return 0, err
	}
	if addr%uint32(size) != 0 && ap.UnalignedAccessBad {
		return 0, NewAPError("mem_ap_buf", ap.apNum, ErrCodeUnalignedAccess, "address is not aligned to the transfer size")
	}

	packed := autoincr && ap.PackedTransfers && size < 4
	be32 := ap.dap.TiBE32Quirks && size < 4

	boundary := ap.TarAutoincrBlock
	if boundary == 0 {
		boundary = dapconst.MinTarAutoincrBlock
	}

	nbytes := len(buffer)
	pos := 0
	cur := addr

	for pos < nbytes {
		remaining := nbytes - pos

		untilWrap := uint32(remaining)
		if autoincr {
			if w := boundary - (cur % boundary); w < untilWrap {
				untilWrap = w
			}
		}

		// Every beat queues exactly one DRW/BDx register access, so its
		// byte count is one unit (size) unless this beat packs several
		// units into a single 32-bit transfer. A packed beat always
		// carries a full maxPackedChunkBytes-sized word on the wire, so
		// it is only used when the full beat fits both in what's left to
		// transfer AND before the next autoincrement-block wrap — a
		// partial packed beat would leave the unused lanes writing zeros
		// into real addresses the caller never asked to touch.
		usePacked := packed && uint32(remaining) >= maxPackedChunkBytes && untilWrap >= maxPackedChunkBytes
		chunkBytes := size
		if usePacked {
			chunkBytes = maxPackedChunkBytes
		}
		if chunkBytes > remaining {
			chunkBytes = remaining
		}
		if uint32(chunkBytes) > untilWrap {
			chunkBytes = int(untilWrap)
		}
		if chunkBytes < size {
			chunkBytes = size
		}

		incrField := uint32(dapconst.CSWAddrIncSingle)
		if !autoincr {
			incrField = dapconst.CSWAddrIncOff
		} else if usePacked {
			incrField = dapconst.CSWAddrIncPacked
		}
		csw := uint32(cswSize) | incrField<<4

		tar := cur
		if be32 {
			tar = cur ^ be32AddrXor(size)
		}

		if autoincr {
			// The device mutates TAR itself on every Single/Packed beat,
			// so the driver only needs to (re-)tell it the address on
			// the first beat, when BE-32 compensation makes tar
			// something other than the plain running address, or when
			// this beat opens a fresh autoincrement block the device
			// doesn't carry across on its own. CSW still goes through
			// the ordinary cache-gated path, since its value only
			// changes mid-transfer when a beat switches between packed
			// and single mode (a trailing partial beat, or the beats
			// either side of an autoincrement-block boundary).
			if err := SetupCSW(ap, csw); err != nil {
				return pos, recoverProgress(ap, pos, err)
			}
			if pos == 0 || be32 || cur%boundary == 0 {
				if err := forceSetTAR(ap, tar); err != nil {
					return pos, recoverProgress(ap, pos, err)
				}
			}
		} else if err := SetupTransfer(ap, csw, tar); err != nil {
			return pos, recoverProgress(ap, pos, err)
		}

		var word uint32
		if write {
			word = packWord(buffer[pos:pos+chunkBytes], cur, size, be32)
			if err := ap.dap.Transport.QueueAPWrite(ap.apNum, dapconst.RegDRW, word); err != nil {
				return pos, recoverProgress(ap, pos, err)
			}
			ap.dap.metrics.APWritesQueued.Add(1)
		} else {
			if err := ap.dap.Transport.QueueAPRead(ap.apNum, dapconst.RegDRW, &word); err != nil {
				return pos, recoverProgress(ap, pos, err)
			}
			ap.dap.metrics.APReadsQueued.Add(1)
		}

		if err := ap.dap.run(); err != nil {
			return pos, recoverProgress(ap, pos, err)
		}

		if !write {
			unpackWord(word, buffer[pos:pos+chunkBytes], cur, size, be32)
		}

		pos += chunkBytes
		if autoincr {
			cur += uint32(chunkBytes)
		}
	}

	return pos, nil
}

// MemAPWriteBuf writes buffer to addr using size-byte units (1, 2, or 4),
// letting TAR autoincrement across units. It returns the number of bytes
// actually written before any error.
func MemAPWriteBuf(ap *APState, buffer []byte, size int, addr uint32) (int, error) {
	return memAPTransferBuf(ap, buffer, size, addr, true, true)
}

// MemAPReadBuf reads len(buffer) bytes from addr using size-byte units,
// letting TAR autoincrement across units.
func MemAPReadBuf(ap *APState, buffer []byte, size int, addr uint32) (int, error) {
	return memAPTransferBuf(ap, buffer, size, addr, false, true)
}

// MemAPWriteBufNoincr writes buffer to the single address addr repeatedly,
// one size-byte unit per beat, without autoincrementing TAR — used for
// FIFO-style peripheral registers.
func MemAPWriteBufNoincr(ap *APState, buffer []byte, size int, addr uint32) (int, error) {
	return memAPTransferBuf(ap, buffer, size, addr, true, false)
}

// MemAPReadBufNoincr reads len(buffer) bytes from the single address addr
// repeatedly, one size-byte unit per beat, without autoincrementing TAR.
func MemAPReadBufNoincr(ap *APState, buffer []byte, size int, addr uint32) (int, error) {
	return memAPTransferBuf(ap, buffer, size, addr, false, false)
}
