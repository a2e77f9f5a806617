// Command dap-probe brings a target's debug port up, discovers its access
// ports, and walks the CoreSight ROM table of the access port selected
// with -ap, printing the component table it collects along the way.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ehrlich-b/go-adiv5"
	"github.com/ehrlich-b/go-adiv5/internal/logging"
	"github.com/ehrlich-b/go-adiv5/internal/transport"
	"github.com/ehrlich-b/go-adiv5/internal/transport/scanchain"
	"github.com/ehrlich-b/go-adiv5/internal/transport/serialwire"
)

func main() {
	var (
		device        = flag.String("device", "/dev/swd0", "transport character device")
		transportKind = flag.String("transport", "swd", "link type: swd or jtag")
		apIndex       = flag.Uint("ap", 0, "access port index to walk")
		beQuirks      = flag.Bool("ti-be32", false, "apply the TI TMS470/TMS570 BE-32 byte-lane quirk")
		verbose       = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	var (
		ops transport.Ops
		err error
	)
	switch *transportKind {
	case "swd":
		ops, err = serialwire.Open(*device)
	case "jtag":
		ops, err = scanchain.Open(*device)
	default:
		logger.Error("unknown transport", "transport", *transportKind)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open transport", "device", *device, "error", err)
		os.Exit(1)
	}
	defer ops.Close()

	d := dap.Init(ops)
	d.TiBE32Quirks = *beQuirks

	logger.Info("bringing up debug port")
	if err := d.DPInit(); err != nil {
		logger.Error("dp_init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("discovering access ports")
	aps, err := d.DiscoverAPs()
	if err != nil {
		logger.Error("ap discovery failed", "error", err)
		os.Exit(1)
	}
	if len(aps) == 0 {
		logger.Error("no access ports found")
		os.Exit(1)
	}

	ap := d.AP(uint8(*apIndex))
	if err := ap.MemAPInit(); err != nil {
		logger.Error("mem_ap_init failed", "ap", *apIndex, "error", err)
		os.Exit(1)
	}

	base, _, err := d.GetDebugBase(uint8(*apIndex))
	if err != nil {
		logger.Error("get_debugbase failed", "ap", *apIndex, "error", err)
		os.Exit(1)
	}

	components, err := d.RomDisplay(uint8(*apIndex), base)
	if err != nil {
		logger.Error("rom_display failed", "ap", *apIndex, "error", err)
		os.Exit(1)
	}

	fmt.Printf("%-10s %-6s %-6s %-10s %s\n", "ADDRESS", "DESIGN", "PART", "SHORT", "NAME")
	for _, c := range components {
		fmt.Printf("0x%08x 0x%03x  0x%03x  %-10s %s\n", c.Address, c.DesignerID, c.PartNum, c.ShortName, c.LongName)
	}

	snap := d.Metrics().Snapshot()
	logger.Info("probe complete",
		"components", snap.RomComponents,
		"runs_ok", snap.RunOK,
		"runs_fail", snap.RunFail,
		"avg_latency_ns", snap.AvgLatencyNs,
	)
}
