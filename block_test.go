package dap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-adiv5/internal/dapconst"
)

func TestMemAPWriteReadBufRoundTripsWordAligned(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := MemAPWriteBuf(ap, data, 4, 0x8000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = MemAPReadBuf(ap, out, 4, 0x8000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestMemAPWriteReadBufPackedEightBit(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)
	ap.PackedTransfers = true

	data := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22, 0x33}
	n, err := MemAPWriteBuf(ap, data, 1, 0x9000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = MemAPReadBuf(ap, out, 1, 0x9000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestMemAPWriteReadBufManySequentialWords(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)

	base := uint32(0x10)
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i + 1)
	}

	n, err := MemAPWriteBuf(ap, data, 4, base)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = MemAPReadBuf(ap, out, 4, base)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestMemAPWriteBufPackedChunkNeverStraddlesAutoincrBoundary(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)
	ap.PackedTransfers = true
	ap.TarAutoincrBlock = 16 // below dapconst.MinTarAutoincrBlock, deliberately tight for this test

	// Starting 2 bytes before a 16-byte boundary: a naive 4-byte packed
	// beat here would straddle the boundary, so it must be clamped down
	// to the 2 bytes remaining before the wrap.
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	n, err := MemAPWriteBuf(ap, data, 1, 0x0E)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = MemAPReadBuf(ap, out, 1, 0x0E)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestMemAPWriteBufDoesNotReemitTARBetweenChunks(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)

	data := make([]byte, 16) // 4 word-aligned beats, well inside one block
	for i := range data {
		data[i] = byte(i + 1)
	}

	before := d.Metrics().Snapshot().APWritesQueued
	n, err := MemAPWriteBuf(ap, data, 4, 0x5000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// One CSW write, one TAR write, and one DRW write for the first
	// beat; only a DRW write for each of the remaining three, since the
	// device autoincrements TAR itself and CSW never changes.
	got := d.Metrics().Snapshot().APWritesQueued - before
	require.Equal(t, uint64(6), got, "TAR/CSW must only be re-emitted once, not on every beat")
}

func TestMemAPWriteBufReemitsTARAcrossBoundary(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)
	ap.TarAutoincrBlock = 8 // force a wrap mid-transfer

	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i + 1)
	}

	before := d.Metrics().Snapshot().APWritesQueued
	n, err := MemAPWriteBuf(ap, data, 4, 0x5000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// Beat 0 (0x5000, opens block): CSW+TAR+DRW. Beat 1 (0x5004, same
	// block): DRW only. Beat 2 (0x5008, opens a new 8-byte block):
	// TAR+DRW. Beat 3 (0x500C, same block): DRW only. 3+1+2+1 = 7.
	got := d.Metrics().Snapshot().APWritesQueued - before
	require.Equal(t, uint64(7), got, "a new autoincrement block must force a TAR re-emit")

	out := make([]byte, len(data))
	n, err = MemAPReadBuf(ap, out, 4, 0x5000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestMemAPWriteReadBufNoincrRepeatsSameAddress(t *testing.T) {
	d, mt := newTestDAP()
	ap := d.AP(0)

	mt.WriteMem(0xC000, []byte{0})
	data := []byte{1, 2, 3, 4}
	n, err := MemAPWriteBufNoincr(ap, data, 1, 0xC000)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// Each beat landed at the same address, so only the last byte
	// written survives.
	require.Equal(t, []byte{4}, mt.ReadMem(0xC000, 1))
}

func TestMemAPWriteBufBE32QuirkCompensatesByteLane(t *testing.T) {
	d, mt := newTestDAP()
	mt.BigEndian32 = true
	d.TiBE32Quirks = true
	ap := d.AP(0)
	require.NoError(t, ap.MemAPInit())
	require.False(t, ap.PackedTransfers)

	data := []byte{0x7A}
	n, err := MemAPWriteBuf(ap, data, 1, 0x4001)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	out := make([]byte, 1)
	n, err = MemAPReadBuf(ap, out, 1, 0x4001)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, data, out)
}

func TestMemAPWriteBufRejectsUnknownSize(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)

	_, err := MemAPWriteBuf(ap, []byte{1, 2, 3}, 3, 0x100)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeUnalignedAccess))
}

func TestMemAPWriteBufRejectsUnalignedWhenBad(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)
	ap.UnalignedAccessBad = true

	_, err := MemAPWriteBuf(ap, []byte{1, 2, 3, 4}, 4, 0x1001)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeUnalignedAccess))
}

func TestMemAPWriteBufReportsProgressOnFailure(t *testing.T) {
	d, mt := newTestDAP()
	ap := d.AP(0)

	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i + 1)
	}

	// The first word's CSW+TAR+DRW writes (ops 1-3) succeed; the second
	// word doesn't re-emit CSW or TAR (unchanged, no wrap crossed), so
	// op 4 is straight away its DRW write.
	mt.FailAfter = 4
	mt.FailErr = NewError("inject", ErrCodeTransportFault, "simulated link fault")

	n, err := MemAPWriteBuf(ap, data, 4, 0x5000)
	require.Error(t, err)
	require.Equal(t, 4, n, "only the first word should be reported as transferred")
}

func TestBankedBDRegistersAreDistinctFromDRW(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)

	require.NoError(t, MemAPWriteU32(ap, 0x7000, 0xCAFEBABE))
	tar, bdReg := bankedWindow(0x7000)
	require.Equal(t, uint32(0x7000), tar)
	require.Equal(t, uint32(dapconst.RegBD0), bdReg)
}
