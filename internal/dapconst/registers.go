// Package dapconst holds the raw numeric constants of the ADIv5 register
// model: AP-local register offsets, CSW/DP bitfields, and component
// identification offsets. No logic lives here, only named numbers, the
// way internal/constants holds go-ublk's ioctl numbers and sizes.
package dapconst

// AP-local register offsets (relative to the AP's own register bank).
const (
	RegCSW = 0x00
	RegTAR = 0x04
	RegDRW = 0x0C
	RegBD0 = 0x10
	RegBD1 = 0x14
	RegBD2 = 0x18
	RegBD3 = 0x1C
	RegCFG = 0xF4
	RegBASE = 0xF8
	RegIDR = 0xFC
)

// Component identification region offsets, relative to a component's own
// 4 KiB window.
const (
	OffsetDEVTYPE = 0xFCC
	OffsetMEMTYPE = 0xFCC // same register, read as MEMTYPE on a ROM table
	OffsetPID4    = 0xFD0
	OffsetPID0    = 0xFE0
	OffsetPID1    = 0xFE4
	OffsetPID2    = 0xFE8
	OffsetPID3    = 0xFEC
	OffsetCID0    = 0xFF0
	OffsetCID1    = 0xFF4
	OffsetCID2    = 0xFF8
	OffsetCID3    = 0xFFC
)

// DP registers (selected via DP_SELECT, addressed through the transport's
// DP read/write operations).
const (
	RegDPCTRLSTAT = 0x04
	RegDPSELECT   = 0x08
)

// CSW access-size encoding (bits 0-2).
const (
	CSWSize8  = 0
	CSWSize16 = 1
	CSWSize32 = 2
)

// CSW address-increment field (bits 4-5).
const (
	CSWAddrIncOff    = 0
	CSWAddrIncSingle = 1
	CSWAddrIncPacked = 2
)

// CSW overlay bits always ORed in by setup_csw.
const (
	CSWDbgSwEnable = 1 << 31
	CSWMasterDebug = 1 << 29 // 1 = master is the debugger
	CSWHProt       = 1 << 25
	CSWSPROT       = 1 << 30
)

// DP_CTRL_STAT bits relevant to bring-up and overrun detection.
const (
	CtrlStatCSysPwrUpAck  = 1 << 31
	CtrlStatCSysPwrUpReq  = 1 << 30
	CtrlStatCDbgPwrUpAck  = 1 << 29
	CtrlStatCDbgPwrUpReq  = 1 << 28
	CtrlStatCOrunDetect   = 1 << 0
	CtrlStatSStickyErr    = 1 << 5
)

// AP IDR fields used for discovery matching.
const (
	IDRJEP106Mask = 0x0FFE0000
	IDRJEP106ARM  = 0x04760000
	IDRTypeMask   = 0x0000000F
)

// CID validity mask/value: cid & CIDMask == CIDExpected iff valid.
const (
	CIDMask     = 0xFFFF0FFF
	CIDExpected = 0xB105000D
)

// Component class, extracted from CID1 bits [7:4].
const (
	ComponentClassROMTable = 0x1
)

// Timing and retry defaults.
const (
	DefaultPollTimeoutMS  = 10
	BringUpMaxAttempts    = 10
	MinTarAutoincrBlock   = 1 << 10
	RomWalkMaxOffset      = 0xF00
	RomWalkMaxDepth       = 16
	APSlotCount           = 256
)

// SelectCacheInvalid marks "must re-emit DP_SELECT on next access".
const SelectCacheInvalid = 0xFFFFFFFF
