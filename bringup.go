package dap

import (
	"time"

	"github.com/ehrlich-b/go-adiv5/internal/dapconst"
)

// DPInit brings the debug port up: it clears any sticky error flag,
// requests debug and system power, and waits for both acknowledgements,
// retrying the whole sequence up to BringUpMaxAttempts times since the
// target may still be coming out of reset when the first attempt runs.
// CORUNDETECT is only enabled in CTRL/STAT once power-up succeeds, so a
// transport fault earlier in the sequence can never be misreported as an
// overrun.
func (d *DAP) DPInit() error {
	var lastErr error
	for attempt := 0; attempt < dapconst.BringUpMaxAttempts; attempt++ {
		if err := d.bringUpAttempt(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return WrapError("dp_init", lastErr)
}

func (d *DAP) bringUpAttempt() error {
	var ctrlStat uint32
	if err := d.Transport.QueueDPRead(dapconst.RegDPCTRLSTAT, &ctrlStat); err != nil {
		return err
	}
	if err := d.run(); err != nil {
		return err
	}

	if err := d.Transport.QueueDPWrite(dapconst.RegDPCTRLSTAT, dapconst.CtrlStatSStickyErr); err != nil {
		return err
	}
	if err := d.run(); err != nil {
		return err
	}

	if err := d.Transport.QueueDPRead(dapconst.RegDPCTRLSTAT, &ctrlStat); err != nil {
		return err
	}
	if err := d.run(); err != nil {
		return err
	}

	req := uint32(dapconst.CtrlStatCDbgPwrUpReq | dapconst.CtrlStatCSysPwrUpReq)
	if err := d.Transport.QueueDPWrite(dapconst.RegDPCTRLSTAT, req); err != nil {
		return err
	}
	if err := d.run(); err != nil {
		return err
	}

	if err := d.Transport.PollRegister(dapconst.RegDPCTRLSTAT, dapconst.CtrlStatCDbgPwrUpAck, dapconst.CtrlStatCDbgPwrUpAck, dapconst.DefaultPollTimeoutMS*time.Millisecond); err != nil {
		return err
	}
	if err := d.Transport.PollRegister(dapconst.RegDPCTRLSTAT, dapconst.CtrlStatCSysPwrUpAck, dapconst.CtrlStatCSysPwrUpAck, dapconst.DefaultPollTimeoutMS*time.Millisecond); err != nil {
		return err
	}

	d.dpCtrlStat = req | dapconst.CtrlStatCOrunDetect
	if err := d.Transport.QueueDPWrite(dapconst.RegDPCTRLSTAT, d.dpCtrlStat); err != nil {
		return err
	}
	if err := d.run(); err != nil {
		return err
	}

	if err := d.Transport.QueueDPRead(dapconst.RegDPCTRLSTAT, &ctrlStat); err != nil {
		return err
	}
	return d.run()
}
