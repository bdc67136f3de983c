package cli

import (
	"testing"

	"github.com/netseam/ipfrag/config"
	"github.com/netseam/ipfrag/wire"
)

func TestParse_FillsConfig(t *testing.T) {
	cfg := config.DefaultConfig
	err := Parse(&cfg, []string{
		"--mtu", "1400",
		"--pmtud",
		"--pmtu-timeout", "120",
		"--pmtu-local-addresses", "10.0.0.1,10.0.0.2",
		"--no-alarms",
		"--input", "eth0",
		"--output", "eth1",
		"--trace",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MTU != 1400 || !cfg.PMTUD || cfg.PMTUTimeout != 120 {
		t.Fatalf("core flags not applied: %+v", cfg)
	}
	if len(cfg.LocalAddresses) != 2 || cfg.LocalAddresses[1] != (wire.Addr{10, 0, 0, 2}) {
		t.Fatalf("local addresses = %v", cfg.LocalAddresses)
	}
	if cfg.UseAlarms {
		t.Fatalf("--no-alarms ignored")
	}
	if cfg.InputIface != "eth0" || cfg.OutputIface != "eth1" {
		t.Fatalf("interfaces = %q %q", cfg.InputIface, cfg.OutputIface)
	}
	if cfg.Verbose != config.VerboseTrace {
		t.Fatalf("verbose = %d", cfg.Verbose)
	}
}

func TestParse_DefaultsSurvive(t *testing.T) {
	cfg := config.DefaultConfig
	if err := Parse(&cfg, nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.PMTUTimeout != 600 || !cfg.UseAlarms || cfg.PMTUD {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}

func TestParse_RejectsUnknownFlag(t *testing.T) {
	cfg := config.DefaultConfig
	if err := Parse(&cfg, []string{"--definitely-not-a-flag"}); err == nil {
		t.Fatalf("unknown flag accepted")
	}
}

func TestParse_RejectsBadAddress(t *testing.T) {
	cfg := config.DefaultConfig
	if err := Parse(&cfg, []string{"--pmtu-local-addresses", "nope"}); err == nil {
		t.Fatalf("bad address accepted")
	}
}
