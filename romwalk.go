package dap

import (
	"github.com/ehrlich-b/go-adiv5/internal/dapconst"
	"github.com/ehrlich-b/go-adiv5/internal/wire"
)

// MemAPInit probes an AP's optional features before any buffer transfer is
// attempted on it: whether packed 8/16-bit transfers actually work, and
// whether sub-word accesses must be rejected outright. Under the TI BE-32
// quirk neither is worth probing — packed transfers are known broken on
// that family and every sub-word access needs the address-xor workaround,
// so both are set without touching the link.
func (ap *APState) MemAPInit() error {
	d := ap.dap
	if d.TiBE32Quirks {
		ap.PackedTransfers = false
		ap.UnalignedAccessBad = true
		return nil
	}

	probeCSW := uint32(dapconst.CSWSize8) | uint32(dapconst.CSWAddrIncPacked)<<4
	if err := SetupCSW(ap, probeCSW); err != nil {
		return WrapError("mem_ap_init", err)
	}
	var readback uint32
	if err := d.Transport.QueueAPRead(ap.apNum, dapconst.RegCSW, &readback); err != nil {
		return WrapError("mem_ap_init", err)
	}
	if err := d.run(); err != nil {
		return WrapError("mem_ap_init", err)
	}
	ap.PackedTransfers = cswIncrementField(readback) == dapconst.CSWAddrIncPacked

	if err := d.Transport.QueueAPRead(ap.apNum, dapconst.RegCFG, &readback); err != nil {
		return WrapError("mem_ap_init", err)
	}
	if err := d.run(); err != nil {
		return WrapError("mem_ap_init", err)
	}

	ap.UnalignedAccessBad = false
	// The probe CSW is almost certainly not the caller's next desired CSW;
	// don't let it masquerade as a valid cache entry.
	ap.cswValid = false
	return nil
}

// readComponentID reads a component's CID and PID registers from its own
// 4 KiB identification window at base and assembles them into the usual
// packed forms.
func (d *DAP) readComponentID(ap *APState, base uint32) (cid uint32, pid wire.PID, err error) {
	var cid0, cid1, cid2, cid3 uint32
	var pid0, pid1, pid2, pid3, pid4 uint32

	reads := []struct {
		off uint32
		out *uint32
	}{
		{dapconst.OffsetCID0, &cid0}, {dapconst.OffsetCID1, &cid1},
		{dapconst.OffsetCID2, &cid2}, {dapconst.OffsetCID3, &cid3},
		{dapconst.OffsetPID0, &pid0}, {dapconst.OffsetPID1, &pid1},
		{dapconst.OffsetPID2, &pid2}, {dapconst.OffsetPID3, &pid3},
		{dapconst.OffsetPID4, &pid4},
	}
	for _, r := range reads {
		v, e := MemAPReadU32(ap, base+r.off)
		if e != nil {
			return 0, wire.PID(0), WrapError("rom_walk", e)
		}
		*r.out = v
	}

	cid = (cid0 & 0xFF) | (cid1&0xFF)<<8 | (cid2&0xFF)<<16 | (cid3&0xFF)<<24
	pid = wire.AssemblePID(pid0, pid1, pid2, pid3, pid4)
	return cid, pid, nil
}

// ComponentMatch is a single CoreSight component located by
// LookupCSComponent.
type ComponentMatch struct {
	Address uint32
}

// readCID1Class reads only CID1, the single register lookup_cs_component
// needs to tell a ROM table from a leaf component. rom_display reads the
// full nine-register CID/PID block instead, since it needs PID to
// resolve a part name; the lookup path never does, so it stays on this
// cheap one-register probe per node.
func (d *DAP) readCID1Class(ap *APState, base uint32) (uint8, error) {
	cid1, err := MemAPReadU32(ap, base+dapconst.OffsetCID1)
	if err != nil {
		return 0, WrapError("lookup_cs_component", err)
	}
	return uint8((cid1 >> 4) & 0xF), nil
}

// LookupCSComponent recursively walks the ROM table rooted at dbgbase
// (masked to its own 4 KiB-aligned window) looking for the index'th
// component (0-based, in table order) whose DEVTYPE register equals
// wantDevtype. The walk never descends more than RomWalkMaxDepth levels
// and never reads past RomWalkMaxOffset into any one ROM table, both
// guarding against a corrupt or cyclic table wedging the scan forever.
func (d *DAP) LookupCSComponent(apNum uint8, dbgbase uint32, wantDevtype uint8, index int) (ComponentMatch, error) {
	remaining := index
	return d.lookupCSComponent(apNum, dbgbase&^0xFFF, wantDevtype, &remaining, 0)
}

func (d *DAP) lookupCSComponent(apNum uint8, base uint32, wantDevtype uint8, remaining *int, depth int) (ComponentMatch, error) {
	if depth >= dapconst.RomWalkMaxDepth {
		return ComponentMatch{}, NewAPError("lookup_cs_component", apNum, ErrCodeResourceNotAvailable, "ROM walk exceeded max depth")
	}
	ap := d.AP(apNum)

	class, err := d.readCID1Class(ap, base)
	if err != nil {
		return ComponentMatch{}, err
	}

	if class == dapconst.ComponentClassROMTable {
		for offset := uint32(0); offset < dapconst.RomWalkMaxOffset; offset += 4 {
			entry, err := MemAPReadU32(ap, base+offset)
			if err != nil {
				return ComponentMatch{}, WrapError("lookup_cs_component", err)
			}
			if entry == 0 {
				break
			}
			if entry&0x1 == 0 {
				continue
			}
			childBase := base + (entry &^ 0xFFF)
			match, err := d.lookupCSComponent(apNum, childBase, wantDevtype, remaining, depth+1)
			if err == nil {
				return match, nil
			}
			if !IsCode(err, ErrCodeResourceNotAvailable) {
				return ComponentMatch{}, err
			}
		}
		return ComponentMatch{}, NewAPError("lookup_cs_component", apNum, ErrCodeResourceNotAvailable, "ROM table exhausted without a match")
	}

	devtype, err := MemAPReadU32(ap, base+dapconst.OffsetDEVTYPE)
	if err != nil {
		return ComponentMatch{}, WrapError("lookup_cs_component", err)
	}
	if uint8(devtype&0xFF) != wantDevtype {
		return ComponentMatch{}, NewAPError("lookup_cs_component", apNum, ErrCodeResourceNotAvailable, "devtype mismatch")
	}
	if *remaining > 0 {
		*remaining--
		return ComponentMatch{}, NewAPError("lookup_cs_component", apNum, ErrCodeResourceNotAvailable, "ordinal not yet reached")
	}
	return ComponentMatch{Address: base}, nil
}

// PartDescriptor names a known (designer, part number) pair.
type PartDescriptor struct {
	DesignerID uint16
	PartNum    uint16
	ShortName  string
	LongName   string
}

// AnyID is the knownParts wildcard: as a DesignerID it matches any
// designer, and as a PartNum it marks a designer-wide fallback entry.
const AnyID = 0xFFFF

var knownParts = []PartDescriptor{
	{DesignerID: 0x4BB, PartNum: 0x000, ShortName: "SCS", LongName: "System Control Space"},
	{DesignerID: 0x4BB, PartNum: 0x001, ShortName: "ITM", LongName: "Instrumentation Trace Macrocell"},
	{DesignerID: 0x4BB, PartNum: 0x002, ShortName: "DWT", LongName: "Data Watchpoint and Trace"},
	{DesignerID: 0x4BB, PartNum: 0x003, ShortName: "FPB", LongName: "Flash Patch and Breakpoint"},
	{DesignerID: 0x4BB, PartNum: 0x008, ShortName: "SCS-M0", LongName: "System Control Space (Cortex-M0)"},
	{DesignerID: 0x4BB, PartNum: 0x00A, ShortName: "DWT-M0", LongName: "Data Watchpoint and Trace (Cortex-M0)"},
	{DesignerID: 0x4BB, PartNum: 0x00B, ShortName: "BPU-M0", LongName: "Breakpoint Unit (Cortex-M0)"},
	{DesignerID: 0x4BB, PartNum: 0x4C0, ShortName: "ROM", LongName: "Cortex-M0+ ROM table"},
	{DesignerID: 0x4BB, PartNum: 0x471, ShortName: "ROM", LongName: "Cortex-M0 ROM table"},
	{DesignerID: 0x4BB, PartNum: 0x9A1, ShortName: "TPIU", LongName: "Trace Port Interface Unit"},
	{DesignerID: 0x4BB, PartNum: 0x9A6, ShortName: "CTI", LongName: "Cross Trigger Interface"},
	{DesignerID: 0x4BB, PartNum: AnyID, ShortName: "ARM", LongName: "unidentified ARM component"},
}

// findPart looks up a known part, falling back to a designer-only wildcard
// and finally to an unrecognized placeholder.
func findPart(designerID, partNum uint16) PartDescriptor {
	for _, p := range knownParts {
		if (p.DesignerID == designerID || p.DesignerID == AnyID) && p.PartNum == partNum {
			return p
		}
	}
	for _, p := range knownParts {
		if p.DesignerID == designerID && p.PartNum == AnyID {
			return PartDescriptor{DesignerID: designerID, PartNum: partNum, ShortName: p.ShortName, LongName: p.LongName}
		}
	}
	return PartDescriptor{DesignerID: designerID, PartNum: partNum, ShortName: "?", LongName: "unrecognized component"}
}

// ComponentInfo is one row of a RomDisplay walk.
type ComponentInfo struct {
	Address    uint32
	DesignerID uint16
	PartNum    uint16
	ShortName  string
	LongName   string
	Class      uint8
}

// RomDisplay walks the full ROM table rooted at dbgbase (masked to its
// own 4 KiB-aligned window), in depth-first table order, resolving every
// component it finds against knownParts.
func (d *DAP) RomDisplay(apNum uint8, dbgbase uint32) ([]ComponentInfo, error) {
	var out []ComponentInfo
	err := d.romDisplay(apNum, dbgbase&^0xFFF, 0, &out)
	return out, err
}

func (d *DAP) romDisplay(apNum uint8, base uint32, depth int, out *[]ComponentInfo) error {
	if depth >= dapconst.RomWalkMaxDepth {
		return NewAPError("rom_display", apNum, ErrCodeResourceNotAvailable, "ROM walk exceeded max depth")
	}
	ap := d.AP(apNum)

	cid, pid, err := d.readComponentID(ap, base)
	if err != nil {
		return WrapError("rom_display", err)
	}
	if !wire.IsValidCID(cid) {
		return nil
	}

	class := wire.Class(cid)
	desc := findPart(pid.DesignerID(), pid.PartNum())
	*out = append(*out, ComponentInfo{
		Address:    base,
		DesignerID: pid.DesignerID(),
		PartNum:    pid.PartNum(),
		ShortName:  desc.ShortName,
		LongName:   desc.LongName,
		Class:      class,
	})
	d.metrics.ObserveRomComponent()
	d.observer.ObserveRomComponent()

	if class != dapconst.ComponentClassROMTable {
		return nil
	}

	for offset := uint32(0); offset < dapconst.RomWalkMaxOffset; offset += 4 {
		entry, err := MemAPReadU32(ap, base+offset)
		if err != nil {
			return WrapError("rom_display", err)
		}
		if entry == 0 {
			break
		}
		if entry&0x1 == 0 {
			continue
		}
		childBase := base + (entry &^ 0xFFF)
		if err := d.romDisplay(apNum, childBase, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}
