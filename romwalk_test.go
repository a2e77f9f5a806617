package dap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testCID = uint32(0xB105000D)         // class 0x0, a plain leaf component
const testROMTableCID = uint32(0xB105100D) // class 0x1 (bit 15-12 = 1): ROM table

func TestMemAPInitProbesPackedTransfers(t *testing.T) {
	d, _ := newTestDAP()
	ap := d.AP(0)

	require.NoError(t, ap.MemAPInit())
	require.True(t, ap.PackedTransfers)
	require.False(t, ap.UnalignedAccessBad)
}

func TestMemAPInitForcesPackedOffUnderBE32Quirk(t *testing.T) {
	d, _ := newTestDAP()
	d.TiBE32Quirks = true
	ap := d.AP(0)

	require.NoError(t, ap.MemAPInit())
	require.False(t, ap.PackedTransfers)
	require.True(t, ap.UnalignedAccessBad)
}

func TestLookupCSComponentFindsLeafByDevtype(t *testing.T) {
	d, mt := newTestDAP()
	const romBase = uint32(0xE0000000)
	const leafBase = uint32(0xE0001000)

	mt.WriteComponentID(romBase, testROMTableCID, uint64(0))
	mt.WriteROMEntry(romBase, 0, leafBase)
	mt.WriteComponentID(leafBase, testCID, uint64(0))
	mt.SetDevtype(leafBase, 0x21)

	match, err := d.LookupCSComponent(0, romBase, 0x21, 0)
	require.NoError(t, err)
	require.Equal(t, leafBase, match.Address)
}

func TestLookupCSComponentHonorsOrdinalIndex(t *testing.T) {
	d, mt := newTestDAP()
	const romBase = uint32(0xE0000000)
	const leaf0 = uint32(0xE0001000)
	const leaf1 = uint32(0xE0002000)

	mt.WriteComponentID(romBase, testROMTableCID, uint64(0))
	mt.WriteROMEntry(romBase, 0, leaf0)
	mt.WriteROMEntry(romBase, 1, leaf1)
	mt.WriteComponentID(leaf0, testCID, uint64(0))
	mt.SetDevtype(leaf0, 0x21)
	mt.WriteComponentID(leaf1, testCID, uint64(0))
	mt.SetDevtype(leaf1, 0x21)

	match, err := d.LookupCSComponent(0, romBase, 0x21, 1)
	require.NoError(t, err)
	require.Equal(t, leaf1, match.Address)
}

func TestLookupCSComponentReturnsResourceNotAvailableWhenExhausted(t *testing.T) {
	d, mt := newTestDAP()
	const romBase = uint32(0xE0000000)
	mt.WriteComponentID(romBase, testROMTableCID, uint64(0))

	_, err := d.LookupCSComponent(0, romBase, 0x99, 0)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeResourceNotAvailable))
}

func TestRomDisplayWalksEntireTable(t *testing.T) {
	d, mt := newTestDAP()
	const romBase = uint32(0xF0000000)
	const leaf0 = uint32(0xF0001000)
	const leaf1 = uint32(0xF0002000)

	mt.WriteComponentID(romBase, testROMTableCID, uint64(0))
	mt.WriteROMEntry(romBase, 0, leaf0)
	mt.WriteROMEntry(romBase, 1, leaf1)
	mt.WriteComponentID(leaf0, testCID, uint64(0))
	mt.WriteComponentID(leaf1, testCID, uint64(0))

	components, err := d.RomDisplay(0, romBase)
	require.NoError(t, err)
	require.Len(t, components, 3) // the ROM table itself plus its two leaves

	snap := d.Metrics().Snapshot()
	require.Equal(t, uint64(3), snap.RomComponents)
}

func TestRomWalkRespectsMaxDepth(t *testing.T) {
	d, mt := newTestDAP()

	// A ROM table whose single entry points back at itself, offset 0:
	// an entry of exactly 0x1 (present, zero offset) loops forever
	// without the depth guard.
	const base = uint32(0xD0000000)
	mt.WriteComponentID(base, testROMTableCID, uint64(0))
	mt.WriteROMEntry(base, 0, base)

	_, err := d.LookupCSComponent(0, base, 0x1, 0)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeResourceNotAvailable))
}
