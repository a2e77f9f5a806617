package dap

import "github.com/ehrlich-b/go-adiv5/internal/dapconst"

// cswIncrementField extracts the address-increment field (bits 4-5) from
// a CSW value.
func cswIncrementField(csw uint32) uint32 {
	return (csw >> 4) & 0x3
}

// SetupCSW stages a CSW update on ap, eliding the write if the effective
// value already matches the cache. The overlay bits DBGSWENABLE,
// MASTER_DEBUG, HPROT, and the AP's own CSWDefault are always ORed in.
func SetupCSW(ap *APState, cswRequested uint32) error {
	effective := cswRequested | dapconst.CSWDbgSwEnable | dapconst.CSWMasterDebug | dapconst.CSWHProt | ap.CSWDefault

	if ap.cswValid && effective == ap.cswCache {
		return nil
	}

	if err := ap.dap.Transport.QueueAPWrite(ap.apNum, dapconst.RegCSW, effective); err != nil {
		return err
	}
	ap.dap.metrics.APWritesQueued.Add(1)

	ap.cswCache = effective
	ap.cswValid = true
	return nil
}

// SetupTAR stages a TAR update on ap. The write is elided only when the
// requested address matches the cache AND the last-known CSW has
// autoincrement off — with autoincrement enabled the device mutates TAR
// behind the driver's back on every access, so a cached match cannot be
// trusted for elision. An unknown (invalid) CSW cache is treated as "not
// off" so TAR is always re-emitted until CSW state is known again.
func SetupTAR(ap *APState, tar uint32) error {
	autoincrOff := ap.cswValid && cswIncrementField(ap.cswCache) == dapconst.CSWAddrIncOff

	if ap.tarValid && tar == ap.tarCache && autoincrOff {
		return nil
	}

	if err := ap.dap.Transport.QueueAPWrite(ap.apNum, dapconst.RegTAR, tar); err != nil {
		return err
	}
	ap.dap.metrics.APWritesQueued.Add(1)

	ap.tarCache = tar
	ap.tarValid = true
	return nil
}

// SetupTransfer stages a CSW update followed by a TAR update.
func SetupTransfer(ap *APState, csw uint32, tar uint32) error {
	if err := SetupCSW(ap, csw); err != nil {
		return err
	}
	return SetupTAR(ap, tar)
}

// forceSetTAR unconditionally (re-)emits a TAR write and refreshes the
// cache, bypassing SetupTAR's elision check entirely. The block engine
// reaches for this on the specific beats where the device's own
// internal TAR cannot be assumed to already hold the right value: the
// first beat of a transfer, a TI BE-32 compensated address (which
// isn't the engine's own running address), and the first beat of a new
// tar_autoincr_block.
func forceSetTAR(ap *APState, tar uint32) error {
	if err := ap.dap.Transport.QueueAPWrite(ap.apNum, dapconst.RegTAR, tar); err != nil {
		return err
	}
	ap.dap.metrics.APWritesQueued.Add(1)

	ap.tarCache = tar
	ap.tarValid = true
	return nil
}
