package dap

import "github.com/ehrlich-b/go-adiv5/internal/dapconst"

// Re-exported AP-local register offsets.
const (
	RegCSW  = dapconst.RegCSW
	RegTAR  = dapconst.RegTAR
	RegDRW  = dapconst.RegDRW
	RegBD0  = dapconst.RegBD0
	RegBD1  = dapconst.RegBD1
	RegBD2  = dapconst.RegBD2
	RegBD3  = dapconst.RegBD3
	RegCFG  = dapconst.RegCFG
	RegBASE = dapconst.RegBASE
	RegIDR  = dapconst.RegIDR
)

// Re-exported DP registers.
const (
	RegDPCTRLSTAT = dapconst.RegDPCTRLSTAT
	RegDPSELECT   = dapconst.RegDPSELECT
)

// Re-exported CSW access-size and increment-field encodings.
const (
	CSWSize8  = dapconst.CSWSize8
	CSWSize16 = dapconst.CSWSize16
	CSWSize32 = dapconst.CSWSize32

	CSWAddrIncOff    = dapconst.CSWAddrIncOff
	CSWAddrIncSingle = dapconst.CSWAddrIncSingle
	CSWAddrIncPacked = dapconst.CSWAddrIncPacked
)

// MinTarAutoincrBlock is the minimum TAR autoincrement wrap boundary.
const MinTarAutoincrBlock = dapconst.MinTarAutoincrBlock
