// Package dap implements the ARM ADIv5 Debug Access Port driver: a
// queued transaction pipeline over a pluggable transport, a cached
// MEM-AP register staging layer, block I/O with packed transfers and
// BE-32 byte-lane handling, DP bring-up, AP discovery, and a CoreSight
// ROM-table walker.
package dap

import (
	"time"

	"github.com/ehrlich-b/go-adiv5/internal/dapconst"
	"github.com/ehrlich-b/go-adiv5/internal/logging"
	"github.com/ehrlich-b/go-adiv5/internal/transport"
)

// APState is per-access-port cached state. It carries a non-owning
// back-reference to its DAP (a plain *DAP pointer, not mutual ownership) so
// operations on an AP slot can dispatch through the owning DAP's
// transport without the AP owning the DAP.
type APState struct {
	apNum uint8
	dap   *DAP

	cswCache uint32
	tarCache uint32
	cswValid bool
	tarValid bool

	// CSWDefault is ORed into every CSW write (e.g. the SPROT bit).
	CSWDefault uint32

	// MemAccessTCK is extra link cycles inserted after a MEM-AP access.
	MemAccessTCK uint8

	// TarAutoincrBlock is the power-of-two boundary at which TAR
	// autoincrement wraps. Minimum dapconst.MinTarAutoincrBlock.
	TarAutoincrBlock uint32

	// PackedTransfers reports whether packed 8/16-bit transfers work on
	// this AP, probed by MemAPInit.
	PackedTransfers bool

	// UnalignedAccessBad reports whether unaligned sub-word accesses
	// must be rejected before any link traffic.
	UnalignedAccessBad bool
}

// ApNum returns this slot's fixed AP index (0..255).
func (a *APState) ApNum() uint8 { return a.apNum }

// invalidate marks this AP's cached CSW/TAR as stale, forcing the next
// setup_csw/setup_tar to re-emit. Called after any transaction failure on
// this AP, since a failed flush leaves no guarantee the device's actual
// CSW/TAR still match what was last staged.
func (a *APState) invalidate() {
	a.cswValid = false
	a.tarValid = false
}

// DAP is the process-local handle for one attached target DAP. It is not
// safe for concurrent use: the queue it feeds is not pre-emptible, and
// nothing here synchronizes access across goroutines, matching the
// single-threaded cooperative model of the source debug-session driver.
type DAP struct {
	Transport transport.Ops

	selectCache uint32 // dapconst.SelectCacheInvalid means "must re-emit"
	dpCtrlStat  uint32

	// Apsel is the currently selected AP index for user-facing commands.
	Apsel uint8

	// TiBE32Quirks applies the TI TMS570/TMS470 byte-lane workaround to
	// every AP under this DAP.
	TiBE32Quirks bool

	ap [dapconst.APSlotCount]APState

	metrics  *Metrics
	observer Observer
	logger   *logging.Logger
}

// Init creates an empty DAP handle bound to the given transport. It
// performs no link traffic; call DPInit to bring the target DAP up.
func Init(t transport.Ops) *DAP {
	d := &DAP{
		Transport:   t,
		selectCache: dapconst.SelectCacheInvalid,
		metrics:     NewMetrics(),
		observer:    &NoOpObserver{},
		logger:      logging.Default(),
	}
	for i := range d.ap {
		d.ap[i].apNum = uint8(i)
		d.ap[i].dap = d
		d.ap[i].TarAutoincrBlock = dapconst.MinTarAutoincrBlock
	}
	return d
}

// SetObserver installs a metrics observer; a nil observer restores the
// no-op default.
func (d *DAP) SetObserver(o Observer) {
	if o == nil {
		o = &NoOpObserver{}
	}
	d.observer = o
}

// Metrics returns this DAP's metrics counters.
func (d *DAP) Metrics() *Metrics { return d.metrics }

// AP returns the cached state slot for access port apNum.
func (d *DAP) AP(apNum uint8) *APState { return &d.ap[apNum] }

// SetApsel sets the AP index addressed by user-facing commands.
func (d *DAP) SetApsel(apNum uint8) { d.Apsel = apNum }

// SetAPCSWSprot toggles the SPROT bit in ap's CSW default overlay.
func SetAPCSWSprot(ap *APState, enabled bool) {
	if enabled {
		ap.CSWDefault |= dapconst.CSWSPROT
	} else {
		ap.CSWDefault &^= dapconst.CSWSPROT
	}
}

// invalidateSelect forces the next DP access to re-emit DP_SELECT.
func (d *DAP) invalidateSelect() {
	d.selectCache = dapconst.SelectCacheInvalid
}

func (d *DAP) run() error {
	start := time.Now()
	err := d.Transport.Run()
	latency := uint64(time.Since(start).Nanoseconds())
	d.observer.ObserveRun(latency, err == nil)
	d.metrics.ObserveRun(latency, err == nil)
	if err != nil {
		// Any failure invalidates all cached state: DP_SELECT shadow and
		// every AP's CSW/TAR must be re-emitted on next use.
		d.invalidateSelect()
		for i := range d.ap {
			d.ap[i].invalidate()
		}
	}
	return err
}
