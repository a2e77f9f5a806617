package dap

import "github.com/ehrlich-b/go-adiv5/internal/dapconst"

// APInfo describes one access port found during discovery.
type APInfo struct {
	ApNum    uint8
	IDR      uint32
	DebugBase uint32
}

// DiscoverAPs scans AP indices 0..255 reading IDR on each, returning every
// AP whose IDR reports an ARM JEP106 designer. A slot whose IDR reads as
// zero or as a non-ARM designer (most indices are unimplemented) is simply
// skipped; any queue or Run failure aborts the whole scan, since that
// signals the link itself is no longer trustworthy rather than "this AP
// doesn't exist".
func (d *DAP) DiscoverAPs() ([]APInfo, error) {
	var found []APInfo
	for apNum := 0; apNum < dapconst.APSlotCount; apNum++ {
		ap := d.AP(uint8(apNum))
		var idr uint32
		if err := d.Transport.QueueAPRead(ap.apNum, dapconst.RegIDR, &idr); err != nil {
			return found, err
		}
		if err := d.run(); err != nil {
			return found, WrapError("dap_find_ap", err)
		}
		if idr == 0 {
			continue
		}
		if idr&dapconst.IDRJEP106Mask != dapconst.IDRJEP106ARM {
			continue
		}
		found = append(found, APInfo{ApNum: ap.apNum, IDR: idr})
	}
	return found, nil
}

// FindAP scans AP indices 0..255 for the first AP whose IDR type field
// (bits 0-3) equals dType, returning as soon as a match is found. Unlike
// DiscoverAPs, which lists every ARM-JEP106 AP present, this is the
// single-result, type-filtered lookup external callers use when they
// already know which kind of AP they want (e.g. a MEM-AP).
func (d *DAP) FindAP(dType uint8) (APInfo, error) {
	for apNum := 0; apNum < dapconst.APSlotCount; apNum++ {
		ap := d.AP(uint8(apNum))
		var idr uint32
		if err := d.Transport.QueueAPRead(ap.apNum, dapconst.RegIDR, &idr); err != nil {
			return APInfo{}, err
		}
		if err := d.run(); err != nil {
			return APInfo{}, WrapError("dap_find_ap", err)
		}
		if idr == 0 {
			continue
		}
		if uint8(idr&dapconst.IDRTypeMask) != dType {
			continue
		}
		return APInfo{ApNum: ap.apNum, IDR: idr}, nil
	}
	return APInfo{}, NewError("dap_find_ap", ErrCodeResourceNotAvailable, "no AP matched the requested type")
}

// GetDebugBase fetches an AP's BASE register together with its IDR in a
// single flush, the pairing CoreSight consumers use to validate BASE
// before walking the ROM table it points at.
func (d *DAP) GetDebugBase(apNum uint8) (base uint32, idr uint32, err error) {
	ap := d.AP(apNum)
	if err = d.Transport.QueueAPRead(ap.apNum, dapconst.RegBASE, &base); err != nil {
		return 0, 0, err
	}
	if err = d.Transport.QueueAPRead(ap.apNum, dapconst.RegIDR, &idr); err != nil {
		return 0, 0, err
	}
	if err = d.run(); err != nil {
		return 0, 0, WrapError("get_debugbase", err)
	}
	return base, idr, nil
}
